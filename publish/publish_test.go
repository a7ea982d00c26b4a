package publish

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseRepo(t *testing.T) {
	tests := []struct {
		in      string
		owner   string
		repo    string
		wantErr bool
	}{
		{"acme/platform", "acme", "platform", false},
		{"git@github.com:acme/platform.git", "acme", "platform", false},
		{"https://github.com/acme/platform.git", "acme", "platform", false},
		{"https://gitlab.example.com/group/sub/proj", "sub", "proj", false},
		{"platform", "", "", true},
		{"acme/", "", "", true},
		{"", "", "", true},
	}
	for _, tt := range tests {
		owner, repo, err := ParseRepo(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseRepo(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if owner != tt.owner || repo != tt.repo {
			t.Errorf("ParseRepo(%q) = %q, %q; want %q, %q", tt.in, owner, repo, tt.owner, tt.repo)
		}
	}
}

func TestNew(t *testing.T) {
	if _, err := New(Config{}); !errors.Is(err, ErrNoPublisher) {
		t.Errorf("New(empty) error = %v, want ErrNoPublisher", err)
	}
	if _, err := New(Config{Provider: "none"}); !errors.Is(err, ErrNoPublisher) {
		t.Errorf("New(none) error = %v, want ErrNoPublisher", err)
	}
	if _, err := New(Config{Provider: "bugzilla"}); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("New(bugzilla) error = %v, want ErrUnknownProvider", err)
	}
	if _, err := New(Config{Provider: "jira", Jira: JiraConfig{URL: "https://acme.atlassian.net", Token: "t"}}); err == nil {
		t.Error("New(jira) without project should fail")
	}
	if _, err := New(Config{Provider: "github", GitHubRepo: "acme/platform"}); err == nil {
		t.Error("New(github) without token should fail")
	}
	if _, err := New(Config{Provider: "github", GitHubToken: "t", GitHubRepo: "bad"}); err == nil {
		t.Error("New(github) with bad repo should fail")
	}
	if _, err := New(Config{Provider: "gitlab", GitLabToken: "t"}); err == nil {
		t.Error("New(gitlab) without project should fail")
	}
	p, err := New(Config{Provider: "GitLab", GitLabToken: "t", GitLabProject: "42"})
	if err != nil {
		t.Fatalf("New(gitlab) error = %v", err)
	}
	if _, ok := p.(*GitLab); !ok {
		t.Errorf("New(gitlab) = %T, want *GitLab", p)
	}
}

func TestBuilder(t *testing.T) {
	issue := NewBuilder("proj-1").
		WithParadigm("application").
		WithRunID("2026-01-02-proj-1-abcd1234").
		WithLabels("generated").
		WithMarkdown("# Blueprint").
		Build()

	if issue.Title != "Implementation blueprint: proj-1 (application)" {
		t.Errorf("Title = %q", issue.Title)
	}
	if got := strings.Join(issue.Labels, ","); got != "blueprint,application,generated" {
		t.Errorf("Labels = %v", issue.Labels)
	}
	if !strings.HasPrefix(issue.Body, "# Blueprint") {
		t.Errorf("Body = %q, want markdown first", issue.Body)
	}
	if !strings.HasSuffix(issue.Body, "run 2026-01-02-proj-1-abcd1234*") {
		t.Errorf("Body footer = %q", issue.Body)
	}
}

func TestBuilderTruncatesLongBodies(t *testing.T) {
	issue := NewBuilder("p").WithMarkdown(strings.Repeat("é", MaxBodyRunes*2)).Build()

	if n := utf8.RuneCountInString(issue.Body); n > MaxBodyRunes {
		t.Errorf("body has %d runes, want <= %d", n, MaxBodyRunes)
	}
	if !strings.Contains(issue.Body, "_(truncated)_") {
		t.Error("truncated body should carry the marker")
	}
	if !utf8.ValidString(issue.Body) {
		t.Error("truncation split a rune")
	}
}

func TestTruncateShort(t *testing.T) {
	if got := Truncate("abc", 10); got != "abc" {
		t.Errorf("Truncate(abc, 10) = %q", got)
	}
}

// =============================================================================
// Providers against fake APIs
// =============================================================================

func TestGitHubPublish(t *testing.T) {
	var got struct {
		Title  string   `json:"title"`
		Body   string   `json:"body"`
		Labels []string `json:"labels"`
	}
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"number": 17, "html_url": "https://github.com/acme/platform/issues/17"}`))
	}))
	defer srv.Close()

	p, err := NewGitHub("gh-token", "acme", "platform", srv.URL)
	if err != nil {
		t.Fatalf("NewGitHub() error = %v", err)
	}
	published, err := p.Publish(context.Background(), Issue{Title: "T", Body: "B", Labels: []string{"blueprint"}})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if published.Number != 17 || published.URL != "https://github.com/acme/platform/issues/17" {
		t.Errorf("Publish() = %+v", published)
	}
	if path != "/repos/acme/platform/issues" {
		t.Errorf("path = %q", path)
	}
	if auth != "Bearer gh-token" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.Title != "T" || got.Body != "B" || len(got.Labels) != 1 {
		t.Errorf("request = %+v", got)
	}
}

func TestGitHubPublishNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "Not Found"}`))
	}))
	defer srv.Close()

	p, _ := NewGitHub("t", "acme", "missing", srv.URL)
	_, err := p.Publish(context.Background(), Issue{Title: "T"})
	if !errors.Is(err, ErrRepoNotFound) {
		t.Errorf("Publish() error = %v, want ErrRepoNotFound", err)
	}
}

func TestGitLabPublish(t *testing.T) {
	var got map[string]any
	var token, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token = r.Header.Get("PRIVATE-TOKEN")
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"iid": 5, "web_url": "https://gitlab.example.com/g/p/-/issues/5"}`))
	}))
	defer srv.Close()

	p, err := NewGitLab("gl-token", srv.URL, "42")
	if err != nil {
		t.Fatalf("NewGitLab() error = %v", err)
	}
	published, err := p.Publish(context.Background(), Issue{Title: "T", Body: "B", Labels: []string{"blueprint", "application"}})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	if published.Number != 5 || !strings.HasSuffix(published.URL, "/issues/5") {
		t.Errorf("Publish() = %+v", published)
	}
	if path != "/api/v4/projects/42/issues" {
		t.Errorf("path = %q", path)
	}
	if token != "gl-token" {
		t.Errorf("PRIVATE-TOKEN = %q", token)
	}
	if got["title"] != "T" || got["description"] != "B" {
		t.Errorf("request = %v", got)
	}
	if got["labels"] != "blueprint,application" {
		t.Errorf("labels = %v", got["labels"])
	}
}

func TestGitLabPublishUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "401 Unauthorized"}`))
	}))
	defer srv.Close()

	p, _ := NewGitLab("bad", srv.URL, "42")
	_, err := p.Publish(context.Background(), Issue{Title: "T"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("Publish() error = %v, want ErrUnauthorized", err)
	}
}

func TestMockPublisher(t *testing.T) {
	m := &MockPublisher{}
	var p Publisher = m
	published, err := p.Publish(context.Background(), Issue{Title: "one"})
	if err != nil || published.Number != 1 {
		t.Fatalf("Publish() = %+v, %v", published, err)
	}
	if got := m.Issues(); len(got) != 1 || got[0].Title != "one" {
		t.Errorf("Issues() = %+v", got)
	}
}
