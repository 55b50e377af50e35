package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
)

// GitHubSource lists the repositories of the authenticated user.
type GitHubSource struct {
	client *github.Client
	config Config
}

// NewGitHubSource creates a GitHub source with the provided
// configuration. A custom BaseURL selects a GitHub Enterprise instance.
func NewGitHubSource(config Config) (*GitHubSource, error) {
	var client *github.Client

	if config.Token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: config.Token})
		client = github.NewClient(oauth2.NewClient(context.Background(), ts))
	} else {
		client = github.NewClient(nil)
	}

	if config.BaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(config.BaseURL, config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to set GitHub Enterprise URL: %w", err)
		}
	}

	return &GitHubSource{client: client, config: config}, nil
}

// ListRepositories retrieves all repositories visible to the token,
// following pagination, and normalizes them into catalog summaries.
func (g *GitHubSource) ListRepositories(ctx context.Context) ([]catalog.Repository, error) {
	opts := &github.RepositoryListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	var repos []catalog.Repository
	for {
		page, resp, err := g.client.Repositories.List(ctx, "", opts)
		if err != nil {
			return nil, fmt.Errorf("failed to list repositories from GitHub: %w", err)
		}

		for _, r := range page {
			repos = append(repos, normalizeGitHubRepository(r))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return repos, nil
}

func normalizeGitHubRepository(gr *github.Repository) catalog.Repository {
	r := catalog.Repository{
		ID:            strconv.FormatInt(gr.GetID(), 10),
		Name:          gr.GetName(),
		Description:   gr.GetDescription(),
		Language:      gr.GetLanguage(),
		StarCount:     gr.GetStargazersCount(),
		URL:           gr.GetHTMLURL(),
		DefaultBranch: gr.GetDefaultBranch(),
	}
	if r.Description == "" {
		r.Description = catalog.DefaultDescription
	}
	if r.Language == "" {
		r.Language = catalog.DefaultLanguage
	}
	if gr.GetPrivate() {
		r.Visibility = "private"
	} else {
		r.Visibility = "public"
	}
	if r.DefaultBranch == "" {
		r.DefaultBranch = catalog.DefaultDefaultBranch
	}
	if ts := gr.GetUpdatedAt(); !ts.IsZero() {
		r.LastActivity = ts.Time
	} else {
		r.LastActivity = time.Now()
	}
	return r
}
