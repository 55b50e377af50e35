package provider

import (
	"context"
	"fmt"
	"strconv"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/BBarkseeun/devsecops-console/pkg/catalog"
)

// GitLabSource lists the projects the token's user is a member of.
type GitLabSource struct {
	client *gitlab.Client
	config Config
}

// NewGitLabSource creates a GitLab source with the provided
// configuration. A custom BaseURL selects a self-hosted instance.
func NewGitLabSource(config Config) (*GitLabSource, error) {
	opts := []gitlab.ClientOptionFunc{}
	if config.BaseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(config.BaseURL))
	}

	client, err := gitlab.NewClient(config.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitLab client: %w", err)
	}

	return &GitLabSource{client: client, config: config}, nil
}

// ListRepositories retrieves all membership projects, following
// pagination, and normalizes them into catalog summaries.
func (g *GitLabSource) ListRepositories(ctx context.Context) ([]catalog.Repository, error) {
	opts := &gitlab.ListProjectsOptions{
		Membership: gitlab.Ptr(true),
		ListOptions: gitlab.ListOptions{
			PerPage: 100,
		},
	}

	var repos []catalog.Repository
	page := 1
	for {
		opts.Page = page

		projects, resp, err := g.client.Projects.ListProjects(opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to list projects from GitLab: %w", err)
		}

		for _, p := range projects {
			repos = append(repos, normalizeGitLabProject(p))
		}

		if resp.NextPage == 0 {
			break
		}
		page = resp.NextPage
	}

	return repos, nil
}

func normalizeGitLabProject(p *gitlab.Project) catalog.Repository {
	r := catalog.Repository{
		ID:            strconv.Itoa(p.ID),
		Name:          p.Name,
		Description:   p.Description,
		Language:      catalog.DefaultLanguage,
		StarCount:     p.StarCount,
		Visibility:    string(p.Visibility),
		URL:           p.WebURL,
		DefaultBranch: p.DefaultBranch,
	}
	if r.Description == "" {
		r.Description = catalog.DefaultDescription
	}
	if r.Visibility == "" {
		r.Visibility = catalog.DefaultVisibility
	}
	if r.DefaultBranch == "" {
		r.DefaultBranch = catalog.DefaultDefaultBranch
	}
	if p.LastActivityAt != nil {
		r.LastActivity = *p.LastActivityAt
	} else {
		r.LastActivity = time.Now()
	}
	return r
}
