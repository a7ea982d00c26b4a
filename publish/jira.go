package publish

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	bphttp "github.com/randalmurphal/blueprint/http"
)

// DefaultJiraIssueType is used when JiraConfig.IssueType is empty.
const DefaultJiraIssueType = "Task"

// maxSummaryRunes is Jira's summary field limit.
const maxSummaryRunes = 255

// JiraConfig configures a Jira publisher.
type JiraConfig struct {
	// URL is the site, e.g. https://acme.atlassian.net.
	URL string
	// Email selects Cloud basic auth with Token as the API token. Without
	// it Token is sent as a personal access token.
	Email     string
	Token     string
	Project   string
	IssueType string
}

// Jira files blueprints as Jira issues through REST API v3.
type Jira struct {
	client    *bphttp.Client
	baseURL   string
	project   string
	issueType string
}

// NewJira creates a Jira publisher.
func NewJira(cfg JiraConfig) (*Jira, error) {
	if cfg.URL == "" || cfg.Token == "" {
		return nil, fmt.Errorf("jira url and token are required")
	}
	if cfg.Project == "" {
		return nil, fmt.Errorf("jira project key is required")
	}
	if cfg.IssueType == "" {
		cfg.IssueType = DefaultJiraIssueType
	}

	authorization := "Bearer " + cfg.Token
	if cfg.Email != "" {
		authorization = "Basic " + base64.StdEncoding.EncodeToString([]byte(cfg.Email+":"+cfg.Token))
	}
	base := strings.TrimRight(cfg.URL, "/")
	client := bphttp.NewClient(bphttp.ClientConfig{
		BaseURL:     base,
		ServiceName: "jira",
		BeforeRequest: func(req *http.Request) {
			req.Header.Set("Authorization", authorization)
		},
	})
	return &Jira{client: client, baseURL: base, project: cfg.Project, issueType: cfg.IssueType}, nil
}

type jiraRef struct {
	Key  string `json:"key,omitempty"`
	Name string `json:"name,omitempty"`
}

type jiraFields struct {
	Project     jiraRef      `json:"project"`
	IssueType   jiraRef      `json:"issuetype"`
	Summary     string       `json:"summary"`
	Description *ADFDocument `json:"description,omitempty"`
	Labels      []string     `json:"labels,omitempty"`
}

type jiraCreated struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// Publish creates an issue. Number is the numeric part of the issue key.
func (p *Jira) Publish(ctx context.Context, issue Issue) (*Published, error) {
	req := struct {
		Fields jiraFields `json:"fields"`
	}{Fields: jiraFields{
		Project:     jiraRef{Key: p.project},
		IssueType:   jiraRef{Name: p.issueType},
		Summary:     Truncate(issue.Title, maxSummaryRunes),
		Description: MarkdownToADF(issue.Body),
		Labels:      jiraLabels(issue.Labels),
	}}

	var created jiraCreated
	if err := p.client.Post(ctx, "/rest/api/3/issue", req, &created); err != nil {
		return nil, fmt.Errorf("create Jira issue: %w", jiraError(err))
	}
	return &Published{Number: keyNumber(created.Key), URL: p.baseURL + "/browse/" + created.Key}, nil
}

func jiraError(err error) error {
	switch {
	case errors.Is(err, bphttp.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrRepoNotFound, err)
	case errors.Is(err, bphttp.ErrUnauthorized), errors.Is(err, bphttp.ErrForbidden):
		return fmt.Errorf("%w: %w", ErrUnauthorized, err)
	}
	return err
}

// jiraLabels replaces whitespace, which Jira labels cannot hold.
func jiraLabels(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		l = strings.Join(strings.Fields(l), "-")
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func keyNumber(key string) int {
	_, num, ok := strings.Cut(key, "-")
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(num)
	return n
}
