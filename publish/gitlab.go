package publish

import (
	"context"
	"fmt"
	"net/http"

	"github.com/xanzy/go-gitlab"
)

// GitLab files blueprints as GitLab issues.
type GitLab struct {
	client    *gitlab.Client
	projectID string
}

// NewGitLab creates a GitLab publisher. baseURL is empty for gitlab.com.
func NewGitLab(token, baseURL, projectID string) (*GitLab, error) {
	if token == "" {
		return nil, fmt.Errorf("GitLab token is required")
	}
	if projectID == "" {
		return nil, fmt.Errorf("project ID is required")
	}

	var opts []gitlab.ClientOptionFunc
	if baseURL != "" {
		opts = append(opts, gitlab.WithBaseURL(baseURL))
	}
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GitLab client: %w", err)
	}

	return &GitLab{client: client, projectID: projectID}, nil
}

// Publish creates an issue.
func (p *GitLab) Publish(ctx context.Context, issue Issue) (*Published, error) {
	opts := &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(issue.Title),
		Description: gitlab.Ptr(issue.Body),
	}
	if len(issue.Labels) > 0 {
		opts.Labels = gitlab.Ptr(gitlab.LabelOptions(issue.Labels))
	}

	created, resp, err := p.client.Issues.CreateIssue(p.projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		var hr *http.Response
		if resp != nil {
			hr = resp.Response
		}
		return nil, fmt.Errorf("create GitLab issue: %w", statusError(hr, err))
	}
	return &Published{Number: created.IID, URL: created.WebURL}, nil
}
