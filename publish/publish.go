package publish

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Provider names.
const (
	ProviderNone   = "none"
	ProviderGitHub = "github"
	ProviderGitLab = "gitlab"
	ProviderJira   = "jira"
)

// MaxBodyRunes bounds issue bodies. GitHub rejects bodies above 65536
// characters; GitLab accepts more but renders poorly.
const MaxBodyRunes = 65000

// Publisher files a rendered blueprint with an issue tracker.
type Publisher interface {
	Publish(ctx context.Context, issue Issue) (*Published, error)
}

// Issue is the issue to create.
type Issue struct {
	Title  string
	Body   string
	Labels []string
}

// Published identifies the created issue.
type Published struct {
	Number int
	URL    string
}

// Config selects and configures a publisher.
type Config struct {
	Provider string

	GitHubToken string
	// GitHubRepo is "owner/name".
	GitHubRepo string
	// GitHubAPI overrides the API base URL, mostly for tests.
	GitHubAPI string

	GitLabToken string
	GitLabURL   string
	// GitLabProject is a numeric ID or "namespace/project" path.
	GitLabProject string

	Jira JiraConfig
}

// New returns the publisher named by cfg.Provider. ProviderNone and ""
// return ErrNoPublisher.
func New(cfg Config) (Publisher, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderNone:
		return nil, ErrNoPublisher
	case ProviderGitHub:
		owner, repo, err := ParseRepo(cfg.GitHubRepo)
		if err != nil {
			return nil, err
		}
		return NewGitHub(cfg.GitHubToken, owner, repo, cfg.GitHubAPI)
	case ProviderGitLab:
		return NewGitLab(cfg.GitLabToken, cfg.GitLabURL, cfg.GitLabProject)
	case ProviderJira:
		return NewJira(cfg.Jira)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// ParseRepo splits "owner/name". A git remote URL is accepted too:
// git@github.com:owner/name.git or https://github.com/owner/name.git.
func ParseRepo(s string) (owner, repo string, err error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "git@") {
		_, path, ok := strings.Cut(s, ":")
		if !ok {
			return "", "", fmt.Errorf("invalid SSH URL %q", s)
		}
		s = path
	}
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(strings.Trim(s, "/"), "/")
	if len(parts) < 2 || parts[len(parts)-2] == "" || parts[len(parts)-1] == "" {
		return "", "", fmt.Errorf("invalid repository %q: want owner/name", s)
	}
	return parts[len(parts)-2], parts[len(parts)-1], nil
}

// Builder assembles the issue for one blueprint.
type Builder struct {
	issue Issue
	ref   string
}

// NewBuilder starts an issue titled after the project.
func NewBuilder(projectID string) *Builder {
	return &Builder{issue: Issue{
		Title:  "Implementation blueprint: " + projectID,
		Labels: []string{"blueprint"},
	}}
}

// WithParadigm appends the paradigm to the title and labels.
func (b *Builder) WithParadigm(paradigm string) *Builder {
	if paradigm != "" {
		b.issue.Title += " (" + paradigm + ")"
		b.issue.Labels = append(b.issue.Labels, paradigm)
	}
	return b
}

// WithRunID tags the body footer with the run that produced it.
func (b *Builder) WithRunID(runID string) *Builder {
	b.ref = runID
	return b
}

// WithLabels adds labels.
func (b *Builder) WithLabels(labels ...string) *Builder {
	b.issue.Labels = append(b.issue.Labels, labels...)
	return b
}

// WithMarkdown sets the body. Build truncates it to fit MaxBodyRunes.
func (b *Builder) WithMarkdown(md string) *Builder {
	b.issue.Body = md
	return b
}

// Build returns the issue.
func (b *Builder) Build() Issue {
	issue := b.issue
	footer := "\n\n---\n*Generated by blueprint*"
	if b.ref != "" {
		footer = "\n\n---\n*Generated by blueprint, run " + b.ref + "*"
	}
	issue.Body = Truncate(issue.Body, MaxBodyRunes-utf8.RuneCountInString(footer)) + footer
	return issue
}

// Truncate cuts s to at most n runes, marking the cut.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	const marker = "\n\n_(truncated)_"
	keep := n - utf8.RuneCountInString(marker)
	if keep < 0 {
		keep = 0
	}
	runes := []rune(s)
	return string(runes[:keep]) + marker
}
