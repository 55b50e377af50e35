// Package provider lists scannable repositories directly from a hosting
// provider using the repository token. It is the fallback catalog source
// when no backend base URL is configured; the backend-proxied path
// remains the primary one.
package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
)

// Type names a supported hosting provider.
type Type string

const (
	// TypeGitLab lists projects the token's user is a member of.
	TypeGitLab Type = "gitlab"
	// TypeGitHub lists repositories of the authenticated user.
	TypeGitHub Type = "github"
)

// Source lists the repositories accessible to a token, normalized into
// catalog summaries.
type Source interface {
	ListRepositories(ctx context.Context) ([]catalog.Repository, error)
}

// Config holds common configuration for provider sources.
type Config struct {
	// Token authenticates against the provider API.
	Token string
	// BaseURL overrides the API endpoint for self-hosted instances.
	// Leave empty for gitlab.com / github.com.
	BaseURL string
}

// New creates a source for the named provider. The name is
// case-insensitive.
func New(name string, cfg Config) (Source, error) {
	switch Type(strings.ToLower(strings.TrimSpace(name))) {
	case TypeGitLab:
		return NewGitLabSource(cfg)
	case TypeGitHub:
		return NewGitHubSource(cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s (supported: gitlab, github)", name)
	}
}

// SupportedProviders returns the provider names New accepts.
func SupportedProviders() []string {
	return []string{string(TypeGitLab), string(TypeGitHub)}
}
