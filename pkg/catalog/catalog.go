// Package catalog holds the normalized set of repositories available for
// scanning within a session. Normalization happens once per session load;
// search, filter, and sort are pure projections over the in-memory
// snapshot and never touch the network.
package catalog

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Defaults applied when upstream omits a field.
const (
	DefaultDescription   = "No description available"
	DefaultLanguage      = "Unknown"
	DefaultVisibility    = "private"
	DefaultDefaultBranch = "main"
)

// Repository is the normalized summary of one scannable repository.
type Repository struct {
	ID            string
	Name          string
	Description   string
	Language      string
	StarCount     int
	Visibility    string
	LastActivity  time.Time
	URL           string
	DefaultBranch string
}

// SortKey selects the comparator used by Query.Apply.
type SortKey string

const (
	// SortByName orders lexicographically by repository name.
	SortByName SortKey = "name"
	// SortByStars orders by star count, descending.
	SortByStars SortKey = "stars"
	// SortByActivity orders by last activity, most recent first.
	SortByActivity SortKey = "lastActivity"
)

// ParseSortKey validates a user-supplied sort key string.
func ParseSortKey(s string) (SortKey, error) {
	switch SortKey(s) {
	case SortByName, SortByStars, SortByActivity:
		return SortKey(s), nil
	case "":
		return SortByName, nil
	}
	return "", fmt.Errorf("unsupported sort key: %s (supported: name, stars, lastActivity)", s)
}

// upstreamProject tolerates the field spellings of the repository shapes
// the backend proxies (GitLab-style and GitHub-style objects).
type upstreamProject struct {
	ID             *json.Number `json:"id"`
	Name           string       `json:"name"`
	Description    string       `json:"description"`
	Language       string       `json:"language"`
	StarCount      *int         `json:"star_count"`
	Stargazers     *int         `json:"stargazers_count"`
	Visibility     string       `json:"visibility"`
	Private        *bool        `json:"private"`
	LastActivityAt string       `json:"last_activity_at"`
	UpdatedAt      string       `json:"updated_at"`
	WebURL         string       `json:"web_url"`
	HTMLURL        string       `json:"html_url"`
	DefaultBranch  string       `json:"default_branch"`
}

// Normalize converts the raw upstream JSON array into repository
// summaries, applying defaults for absent fields. Malformed payloads and
// duplicate ids yield an error and no partial result; the caller renders
// an empty catalog instead.
func Normalize(raw json.RawMessage, now time.Time) ([]Repository, error) {
	var upstream []upstreamProject
	if err := json.Unmarshal(raw, &upstream); err != nil {
		return nil, fmt.Errorf("catalog: malformed repository data: %w", err)
	}

	repos := make([]Repository, 0, len(upstream))
	seen := make(map[string]struct{}, len(upstream))
	for i, up := range upstream {
		if up.ID == nil || up.ID.String() == "" {
			return nil, fmt.Errorf("catalog: repository at index %d missing id", i)
		}
		id := up.ID.String()
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("catalog: duplicate repository id %s", id)
		}
		seen[id] = struct{}{}

		r := Repository{
			ID:            id,
			Name:          up.Name,
			Description:   up.Description,
			Language:      up.Language,
			Visibility:    up.Visibility,
			URL:           firstNonEmpty(up.WebURL, up.HTMLURL),
			DefaultBranch: up.DefaultBranch,
			LastActivity:  parseActivity(firstNonEmpty(up.LastActivityAt, up.UpdatedAt), now),
		}
		if r.Name == "" {
			r.Name = "project-" + id
		}
		if r.Description == "" {
			r.Description = DefaultDescription
		}
		if r.Language == "" {
			r.Language = DefaultLanguage
		}
		if r.Visibility == "" {
			if up.Private != nil && !*up.Private {
				r.Visibility = "public"
			} else {
				r.Visibility = DefaultVisibility
			}
		}
		if r.DefaultBranch == "" {
			r.DefaultBranch = DefaultDefaultBranch
		}
		switch {
		case up.StarCount != nil:
			r.StarCount = *up.StarCount
		case up.Stargazers != nil:
			r.StarCount = *up.Stargazers
		}
		repos = append(repos, r)
	}

	return repos, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func parseActivity(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return now
}

// Query describes one projection over the catalog: a case-insensitive
// text match on name or description, a language equality filter
// ("all" or empty disables it), and a sort key. Composition order is
// text filter, then language filter, then sort.
type Query struct {
	Search   string
	Language string
	Sort     SortKey
}

// Apply returns a new ordered slice; the base collection is never
// mutated. Sorting is stable: repositories comparing equal retain their
// relative normalized order.
func (q Query) Apply(repos []Repository) []Repository {
	out := make([]Repository, 0, len(repos))

	search := strings.ToLower(strings.TrimSpace(q.Search))
	lang := strings.TrimSpace(q.Language)
	for _, r := range repos {
		if search != "" &&
			!strings.Contains(strings.ToLower(r.Name), search) &&
			!strings.Contains(strings.ToLower(r.Description), search) {
			continue
		}
		if lang != "" && !strings.EqualFold(lang, "all") && !strings.EqualFold(r.Language, lang) {
			continue
		}
		out = append(out, r)
	}

	switch q.Sort {
	case SortByStars:
		sort.SliceStable(out, func(i, j int) bool { return out[i].StarCount > out[j].StarCount })
	case SortByActivity:
		sort.SliceStable(out, func(i, j int) bool { return out[i].LastActivity.After(out[j].LastActivity) })
	case SortByName, "":
		sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	}

	return out
}

// Languages returns the distinct languages present in the catalog, sorted
// lexicographically. Used to populate the language filter choices.
func Languages(repos []Repository) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, r := range repos {
		if _, ok := seen[r.Language]; !ok {
			seen[r.Language] = struct{}{}
			out = append(out, r.Language)
		}
	}
	sort.Strings(out)
	return out
}

// FindByID returns the repository with the given id, if present.
func FindByID(repos []Repository, id string) (Repository, bool) {
	for _, r := range repos {
		if r.ID == id {
			return r, true
		}
	}
	return Repository{}, false
}
