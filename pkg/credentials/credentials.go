// Package credentials defines the credential bundle submitted when
// establishing a scanning session and the client-side format validation
// applied to it before any network call is made.
package credentials

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Field names used as keys in FieldErrors. They match the input fields of
// the credential form one-to-one.
const (
	FieldAccessKey  = "AccessKey"
	FieldSecretKey  = "SecretKey"
	FieldInstanceID = "InstanceID"
	FieldRepoToken  = "RepoToken"
)

var (
	accessKeyPattern  = regexp.MustCompile(`^AKIA[0-9A-Z]{16}$`)
	instanceIDPattern = regexp.MustCompile(`^i-[0-9a-f]{8,17}$`)
)

// Bundle holds the four credential fields collected from the user. Every
// field is optional; populated fields must satisfy their format rule.
type Bundle struct {
	AccessKey  string `validate:"omitempty,access_key"`
	SecretKey  string `validate:"omitempty,min=10"`
	InstanceID string `validate:"omitempty,instance_id"`
	RepoToken  string `validate:"omitempty,min=5"`
}

// FieldErrors maps a field name to a human-readable validation message,
// suitable for inline rendering next to the offending input.
type FieldErrors map[string]string

// fieldMessages translates a failed field into the message shown to the
// user. Kept identical across entry points so the form and the headless
// commands report the same wording.
var fieldMessages = map[string]string{
	FieldAccessKey:  "Invalid access key format (should start with AKIA)",
	FieldSecretKey:  "Secret key should be at least 10 characters",
	FieldInstanceID: "Invalid instance ID format (should start with i-)",
	FieldRepoToken:  "Token should be at least 5 characters",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for empty tag names, which are constants here.
	_ = v.RegisterValidation("access_key", func(fl validator.FieldLevel) bool {
		return accessKeyPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("instance_id", func(fl validator.FieldLevel) bool {
		return instanceIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// normalized returns a copy of the bundle with surrounding whitespace
// stripped, so whitespace-only input counts as empty.
func (b Bundle) normalized() Bundle {
	return Bundle{
		AccessKey:  strings.TrimSpace(b.AccessKey),
		SecretKey:  strings.TrimSpace(b.SecretKey),
		InstanceID: strings.TrimSpace(b.InstanceID),
		RepoToken:  strings.TrimSpace(b.RepoToken),
	}
}

// Empty reports whether no field carries any input.
func (b Bundle) Empty() bool {
	n := b.normalized()
	return n.AccessKey == "" && n.SecretKey == "" && n.InstanceID == "" && n.RepoToken == ""
}

// Validate checks every populated field against its format rule and
// returns a message per failing field. An empty result means the bundle
// has no format errors (it may still be empty and thus not submittable).
func (b Bundle) Validate() FieldErrors {
	errs := FieldErrors{}
	err := validate.Struct(b.normalized())
	if err == nil {
		return errs
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// Struct-level failures cannot happen for a plain string struct,
		// but never panic on validation.
		errs["_"] = err.Error()
		return errs
	}
	for _, fe := range verrs {
		if msg, ok := fieldMessages[fe.Field()]; ok {
			errs[fe.Field()] = msg
		} else {
			errs[fe.Field()] = "Invalid value"
		}
	}
	return errs
}

// Submittable reports whether the bundle may be sent to the backend: at
// least one field is populated and no populated field fails validation.
func (b Bundle) Submittable() bool {
	return !b.Empty() && len(b.Validate()) == 0
}

// Redact safely redacts a secret value for logging purposes.
func Redact(v string) string {
	if v == "" {
		return ""
	}
	if len(v) <= 4 {
		return "***"
	}
	return v[:4] + "***"
}
