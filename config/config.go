package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	// EnvPrefix is prepended to the upper-cased key for environment lookup:
	// with "BLUEPRINT_", output_dir reads BLUEPRINT_OUTPUT_DIR.
	EnvPrefix string

	// EnvAliases lists unprefixed variables consulted when the prefixed one
	// is unset. Earlier names win.
	EnvAliases map[string][]string

	// GlobalConfigDir is the directory under ~/.config holding the global
	// file.
	GlobalConfigDir string

	// GlobalConfigFile defaults to "config.yaml".
	GlobalConfigFile string

	// LocalConfigName is the file looked up at the git root.
	LocalConfigName string

	Defaults map[string]string

	// ValidKeys restricts keys accepted from files. Nil accepts all.
	ValidKeys []string

	// GitRootFinder locates the directory holding the local file. Nil
	// walks up to the nearest .git directory.
	GitRootFinder func(startDir string) (string, error)

	// ErrWriter receives warnings. Nil means os.Stderr.
	ErrWriter io.Writer
}

// Resolver merges defaults, config files, the environment and flags.
type Resolver struct {
	config     ResolverConfig
	globalPath string
	localPath  string
	gitRoot    string

	// Warnings collects problems found in config files.
	Warnings []string
}

// NewResolver locates the global file under the home directory and the
// local file at the git root of the working directory.
func NewResolver(cfg ResolverConfig) *Resolver {
	r := NewResolverWithPaths(cfg, "", "")

	find := cfg.GitRootFinder
	if find == nil {
		find = func(dir string) (string, error) { return findGitRoot(dir), nil }
	}
	if root, err := find("."); err == nil && root != "" {
		r.gitRoot = root
		if cfg.LocalConfigName != "" {
			r.localPath = filepath.Join(root, cfg.LocalConfigName)
		}
	}

	if cfg.GlobalConfigDir != "" {
		if home, err := os.UserHomeDir(); err == nil {
			file := cfg.GlobalConfigFile
			if file == "" {
				file = "config.yaml"
			}
			r.globalPath = filepath.Join(home, ".config", cfg.GlobalConfigDir, file)
		}
	}
	return r
}

// NewResolverWithPaths uses the given files instead of searching for them.
// An empty path skips that layer.
func NewResolverWithPaths(cfg ResolverConfig, globalPath, localPath string) *Resolver {
	if cfg.ErrWriter == nil {
		cfg.ErrWriter = os.Stderr
	}
	return &Resolver{config: cfg, globalPath: globalPath, localPath: localPath}
}

// GitRoot returns the detected git root, if any.
func (r *Resolver) GitRoot() string { return r.gitRoot }

// GlobalPath returns the global config file path.
func (r *Resolver) GlobalPath() string { return r.globalPath }

// LocalPath returns the local config file path.
func (r *Resolver) LocalPath() string { return r.localPath }

// =============================================================================
// Resolved
// =============================================================================

// Resolved is the merged view. Every layer that supplied a key is kept so
// overrides can be explained.
type Resolved struct {
	layers map[string][]Setting
}

func newResolved() *Resolved {
	return &Resolved{layers: make(map[string][]Setting)}
}

// set records a value, keeping the trace ordered by precedence so the last
// entry always wins.
func (c *Resolved) set(key, value string, src Source) {
	trace := c.layers[key]
	i := len(trace)
	for i > 0 && !src.Overrides(trace[i-1].Source) {
		i--
	}
	c.layers[key] = slices.Insert(trace, i, Setting{Value: value, Source: src})
}

func (c *Resolved) winner(key string) Setting {
	trace := c.layers[key]
	if len(trace) == 0 {
		return Setting{}
	}
	return trace[len(trace)-1]
}

// Get returns the effective value of key, or "".
func (c *Resolved) Get(key string) string {
	return c.winner(key).Value
}

// Source returns the layer the effective value came from.
func (c *Resolved) Source(key string) Source {
	return c.winner(key).Source
}

// GetWithSource returns the effective value and its layer.
func (c *Resolved) GetWithSource(key string) (string, Source) {
	w := c.winner(key)
	return w.Value, w.Source
}

// Trace returns every value supplied for key, lowest precedence first. The
// last entry is the effective one.
func (c *Resolved) Trace(key string) []Setting {
	return slices.Clone(c.layers[key])
}

// All returns a copy of the effective values.
func (c *Resolved) All() map[string]string {
	out := make(map[string]string, len(c.layers))
	for k := range c.layers {
		out[k] = c.Get(k)
	}
	return out
}

// Keys returns every resolved key, sorted.
func (c *Resolved) Keys() []string {
	keys := make([]string, 0, len(c.layers))
	for k := range c.layers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// Resolution
// =============================================================================

// Resolve merges defaults, the global file, the local file and the
// environment, later layers winning.
func (r *Resolver) Resolve() *Resolved {
	cfg := newResolved()
	for key, value := range r.config.Defaults {
		cfg.set(key, value, SourceDefault)
	}
	r.applyFile(cfg, r.globalPath, SourceGlobal)
	r.applyFile(cfg, r.localPath, SourceLocal)
	r.applyEnv(cfg)
	return cfg
}

// ResolveWithFlags resolves and then applies non-empty flag values.
func (r *Resolver) ResolveWithFlags(flags map[string]string) *Resolved {
	cfg := r.Resolve()
	keys := make([]string, 0, len(flags))
	for k := range flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if v := flags[key]; v != "" {
			cfg.set(key, v, SourceFlag)
		}
	}
	return cfg
}

func (r *Resolver) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.Warnings = append(r.Warnings, msg)
	fmt.Fprintf(r.config.ErrWriter, "Warning: %s\n", msg)
}

// applyFile reads one YAML layer. Sections flatten into prefixed keys, so
//
//	jira:
//	  url: https://acme.atlassian.net
//
// sets jira_url. A missing file is skipped silently.
func (r *Resolver) applyFile(cfg *Resolved, path string, src Source) {
	if path == "" {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		r.warn("could not parse %s: %v", path, err)
		return
	}

	flat := make(map[string]string)
	flatten("", doc, flat)
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if len(r.config.ValidKeys) > 0 && !slices.Contains(r.config.ValidKeys, key) {
			r.warn("%s: unknown key %q ignored", path, key)
			continue
		}
		if v := flat[key]; v != "" {
			cfg.set(key, v, src)
		}
	}
}

func flatten(prefix string, doc map[string]any, into map[string]string) {
	for k, v := range doc {
		key := k
		if prefix != "" {
			key = prefix + "_" + k
		}
		if section, ok := v.(map[string]any); ok {
			flatten(key, section, into)
			continue
		}
		into[key] = scalar(v)
	}
}

func (r *Resolver) applyEnv(cfg *Resolved) {
	candidates := make(map[string]bool, len(cfg.layers)+len(r.config.EnvAliases))
	for k := range cfg.layers {
		candidates[k] = true
	}
	for k := range r.config.EnvAliases {
		candidates[k] = true
	}

	for key := range candidates {
		var names []string
		if r.config.EnvPrefix != "" {
			names = append(names, r.config.EnvPrefix+strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
		}
		names = append(names, r.config.EnvAliases[key]...)
		for _, name := range names {
			if v := os.Getenv(name); v != "" {
				cfg.set(key, v, SourceEnv)
				break
			}
		}
	}
}

func scalar(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, scalar(item))
		}
		return strings.Join(parts, ",")
	default:
		return ""
	}
}

// findGitRoot walks up from startDir to the first directory holding .git.
func findGitRoot(startDir string) string {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
