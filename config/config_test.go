package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestResolver_Defaults(t *testing.T) {
	resolver := NewResolverWithPaths(ResolverConfig{
		Defaults: map[string]string{"output_dir": "output"},
	}, "", "")

	cfg := resolver.Resolve()

	if got := cfg.Get("output_dir"); got != "output" {
		t.Errorf("output_dir = %q, want %q", got, "output")
	}
	if got := cfg.Source("output_dir"); got != SourceDefault {
		t.Errorf("source = %q, want %q", got, SourceDefault)
	}
}

func TestResolver_Priority(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "global", "config.yaml")
	local := filepath.Join(dir, "repo", ".blueprint.yaml")
	writeFile(t, global, "output_dir: global\nmax_items: 4\nlog_level: warn\n")
	writeFile(t, local, "output_dir: local\nmax_items: 5\n")
	t.Setenv("TEST_OUTPUT_DIR", "env")

	resolver := NewResolverWithPaths(ResolverConfig{
		EnvPrefix: "TEST_",
		Defaults:  map[string]string{"output_dir": "default", "max_items": "8", "log_level": "info"},
	}, global, local)

	cfg := resolver.Resolve()

	tests := []struct {
		key    string
		want   string
		source Source
	}{
		{"output_dir", "env", SourceEnv},
		{"max_items", "5", SourceLocal},
		{"log_level", "warn", SourceGlobal},
	}
	for _, tt := range tests {
		got, src := cfg.GetWithSource(tt.key)
		if got != tt.want || src != tt.source {
			t.Errorf("%s = %q (%s), want %q (%s)", tt.key, got, src, tt.want, tt.source)
		}
	}
}

func TestResolver_LocalConfigAtGitRoot(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, LocalConfigName), "store: file\n")

	resolver := NewResolver(ResolverConfig{
		LocalConfigName: LocalConfigName,
		GitRootFinder:   func(string) (string, error) { return root, nil },
		Defaults:        map[string]string{"store": "mongo"},
	})

	if resolver.GitRoot() != root {
		t.Errorf("GitRoot() = %q, want %q", resolver.GitRoot(), root)
	}
	if got := resolver.Resolve().Get("store"); got != "file" {
		t.Errorf("store = %q, want file", got)
	}
}

func TestResolver_EnvAliases(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-alias")
	t.Setenv("GH_TOKEN", "gh-second")

	resolver := NewResolverWithPaths(ResolverConfig{
		EnvPrefix: "BP_",
		EnvAliases: map[string][]string{
			"openai_api_key": {"OPENAI_API_KEY"},
			"github_token":   {"GITHUB_TOKEN", "GH_TOKEN"},
		},
	}, "", "")

	cfg := resolver.Resolve()
	if got := cfg.Get("openai_api_key"); got != "sk-alias" {
		t.Errorf("openai_api_key = %q, want sk-alias", got)
	}
	if got := cfg.Get("github_token"); got != "gh-second" {
		t.Errorf("github_token = %q, want gh-second", got)
	}

	t.Setenv("BP_OPENAI_API_KEY", "sk-prefixed")
	if got := resolver.Resolve().Get("openai_api_key"); got != "sk-prefixed" {
		t.Errorf("prefixed variable should win over alias, got %q", got)
	}
}

func TestResolver_ResolveWithFlags(t *testing.T) {
	resolver := NewResolverWithPaths(ResolverConfig{
		Defaults: map[string]string{"log_format": "text", "log_level": "info"},
	}, "", "")

	cfg := resolver.ResolveWithFlags(map[string]string{"log_format": "json", "log_level": ""})

	if got := cfg.Get("log_format"); got != "json" || cfg.Source("log_format") != SourceFlag {
		t.Errorf("log_format = %q (%s), want json (flag)", got, cfg.Source("log_format"))
	}
	if got := cfg.Get("log_level"); got != "info" {
		t.Errorf("empty flag should not override, log_level = %q", got)
	}
}

func TestResolver_UnknownAndMalformed(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "config.yaml")
	local := filepath.Join(dir, ".blueprint.yaml")
	writeFile(t, global, "output_dir: out\nbogus: 1\n")
	writeFile(t, local, "output_dir: [unclosed\n")

	var buf bytes.Buffer
	resolver := NewResolverWithPaths(ResolverConfig{
		ValidKeys: []string{"output_dir"},
		ErrWriter: &buf,
	}, global, local)

	cfg := resolver.Resolve()

	if got := cfg.Get("output_dir"); got != "out" {
		t.Errorf("output_dir = %q, want out", got)
	}
	if cfg.Get("bogus") != "" {
		t.Error("unknown key should be ignored")
	}
	if len(resolver.Warnings) != 2 {
		t.Errorf("Warnings = %v, want 2", resolver.Warnings)
	}
	if !strings.Contains(buf.String(), "Warning: ") {
		t.Errorf("warnings not written: %q", buf.String())
	}
}

func TestResolver_NestedSections(t *testing.T) {
	dir := t.TempDir()
	global := filepath.Join(dir, "config.yaml")
	writeFile(t, global, "jira:\n  url: https://acme.atlassian.net\n  project: ARCH\nmax_items: 6\n")

	cfg := NewResolverWithPaths(ResolverConfig{
		ValidKeys: []string{"jira_url", "jira_project", "max_items"},
		ErrWriter: &bytes.Buffer{},
	}, global, "").Resolve()

	if got := cfg.Get("jira_url"); got != "https://acme.atlassian.net" {
		t.Errorf("jira_url = %q", got)
	}
	if got := cfg.Get("jira_project"); got != "ARCH" {
		t.Errorf("jira_project = %q", got)
	}
	if got := cfg.Get("max_items"); got != "6" {
		t.Errorf("max_items = %q, want 6", got)
	}
}

func TestResolved_Trace(t *testing.T) {
	dir := t.TempDir()
	local := filepath.Join(dir, ".blueprint.yaml")
	writeFile(t, local, "max_per_chunk: 4\n")
	t.Setenv("TRACE_MAX_PER_CHUNK", "5")

	cfg := NewResolverWithPaths(ResolverConfig{
		EnvPrefix: "TRACE_",
		Defaults:  map[string]string{"max_per_chunk": "3"},
	}, "", local).ResolveWithFlags(map[string]string{"max_per_chunk": "6"})

	trace := cfg.Trace("max_per_chunk")
	want := []Setting{
		{Value: "3", Source: SourceDefault},
		{Value: "4", Source: SourceLocal},
		{Value: "5", Source: SourceEnv},
		{Value: "6", Source: SourceFlag},
	}
	if len(trace) != len(want) {
		t.Fatalf("Trace() = %+v, want %+v", trace, want)
	}
	for i := range want {
		if trace[i] != want[i] {
			t.Errorf("Trace()[%d] = %+v, want %+v", i, trace[i], want[i])
		}
	}
	if cfg.Get("max_per_chunk") != "6" {
		t.Errorf("effective value = %q, want 6", cfg.Get("max_per_chunk"))
	}
}

func TestSource_Rank(t *testing.T) {
	order := []Source{SourceDefault, SourceGlobal, SourceLocal, SourceEnv, SourceFlag}
	for i := 1; i < len(order); i++ {
		if !order[i].Overrides(order[i-1]) || order[i-1].Overrides(order[i]) {
			t.Errorf("%s should override %s", order[i], order[i-1])
		}
	}
	if Source("bogus").Rank() >= SourceDefault.Rank() {
		t.Error("unknown source should rank below default")
	}
}

func TestResolved_AllIsCopy(t *testing.T) {
	cfg := NewResolverWithPaths(ResolverConfig{
		Defaults: map[string]string{"a": "1", "b": "2"},
	}, "", "").Resolve()

	all := cfg.All()
	all["a"] = "changed"
	if cfg.Get("a") != "1" {
		t.Error("All() must return a copy")
	}
	if len(cfg.Keys()) != 2 {
		t.Errorf("Keys() = %v, want 2 keys", cfg.Keys())
	}
}

func TestFindGitRoot(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}

	if got := findGitRoot(nested); got != root {
		t.Errorf("findGitRoot() = %q, want %q", got, root)
	}
}
