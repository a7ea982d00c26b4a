package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

// GitHub files blueprints as GitHub issues.
type GitHub struct {
	client *github.Client
	owner  string
	repo   string
}

// NewGitHub creates a GitHub publisher. apiURL is empty for github.com.
func NewGitHub(token, owner, repo, apiURL string) (*GitHub, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}
	if owner == "" || repo == "" {
		return nil, fmt.Errorf("owner and repo are required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(context.Background(), ts))
	if apiURL != "" {
		u, err := url.Parse(strings.TrimSuffix(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("parse GitHub API URL: %w", err)
		}
		client.BaseURL = u
	}

	return &GitHub{client: client, owner: owner, repo: repo}, nil
}

// Publish creates an issue.
func (p *GitHub) Publish(ctx context.Context, issue Issue) (*Published, error) {
	req := &github.IssueRequest{
		Title: github.String(issue.Title),
		Body:  github.String(issue.Body),
	}
	if len(issue.Labels) > 0 {
		labels := issue.Labels
		req.Labels = &labels
	}

	created, resp, err := p.client.Issues.Create(ctx, p.owner, p.repo, req)
	if err != nil {
		var hr *http.Response
		if resp != nil {
			hr = resp.Response
		}
		return nil, fmt.Errorf("create GitHub issue: %w", statusError(hr, err))
	}
	return &Published{Number: created.GetNumber(), URL: created.GetHTMLURL()}, nil
}

// statusError maps well-known HTTP failures to package errors, keeping the
// provider error in the chain.
func statusError(resp *http.Response, err error) error {
	if resp == nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %w", ErrRepoNotFound, err)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return err
}
