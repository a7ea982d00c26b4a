package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Built-in prompt names.
const (
	GuideChunk    = "guide_chunk"
	GuideFinal    = "guide_final"
	ADRsChunk     = "adrs_chunk"
	TechStack     = "tech_stack"
	SystemDiagram = "system_diagram"
)

// Builtin lists the prompts every stage of a run needs.
var Builtin = []string{GuideChunk, GuideFinal, ADRsChunk, TechStack, SystemDiagram}

// Embedded is the origin reported for templates compiled into the binary.
const Embedded = "embedded"

const ext = ".txt"

// ErrNotFound is returned for a name no layer provides.
var ErrNotFound = errors.New("prompt not found")

//go:embed prompts/*.txt
var embedded embed.FS

type layer struct {
	origin string
	fsys   fs.FS
}

// Loader renders prompt templates. Override directories are consulted in
// the order given, then the embedded defaults. Parsed templates are cached;
// a Loader is safe for concurrent use.
type Loader struct {
	layers []layer
	funcs  template.FuncMap

	mu     sync.RWMutex
	parsed map[string]*template.Template
}

// NewLoader returns a loader over the given override directories. Empty
// entries are skipped.
func NewLoader(dirs ...string) *Loader {
	l := &Loader{funcs: funcs(), parsed: make(map[string]*template.Template)}
	for _, dir := range dirs {
		if dir != "" {
			l.layers = append(l.layers, layer{origin: dir, fsys: os.DirFS(dir)})
		}
	}
	defaults, err := fs.Sub(embedded, "prompts")
	if err != nil {
		panic(err)
	}
	l.layers = append(l.layers, layer{origin: Embedded, fsys: defaults})
	return l
}

// ProjectDirs returns the override directories of a project checkout:
// .blueprint/prompts, then prompts.
func ProjectDirs(projectDir string) []string {
	return []string{
		filepath.Join(projectDir, ".blueprint", "prompts"),
		filepath.Join(projectDir, "prompts"),
	}
}

// Render executes the named template with vars. Missing variables render
// as their zero value so templates can fall back with the default func.
func (l *Loader) Render(name string, vars map[string]any) (string, error) {
	tmpl, err := l.template(name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, vars); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", name, err)
	}
	return b.String(), nil
}

// Source returns the unrendered text of a template and the layer it came
// from: an override directory or Embedded.
func (l *Loader) Source(name string) (text, origin string, err error) {
	for _, ly := range l.layers {
		data, err := fs.ReadFile(ly.fsys, name+ext)
		if err == nil {
			return string(data), ly.origin, nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Names lists every template any layer provides, sorted.
func (l *Loader) Names() []string {
	var names []string
	for _, ly := range l.layers {
		matches, err := fs.Glob(ly.fsys, "*"+ext)
		if err != nil {
			continue
		}
		for _, m := range matches {
			names = append(names, strings.TrimSuffix(m, ext))
		}
	}
	slices.Sort(names)
	return slices.Compact(names)
}

// Check parses every built-in prompt so a broken override is reported when
// the engine is built instead of halfway through a run.
func (l *Loader) Check() error {
	var errs []error
	for _, name := range Builtin {
		if _, err := l.template(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (l *Loader) template(name string) (*template.Template, error) {
	l.mu.RLock()
	tmpl, ok := l.parsed[name]
	l.mu.RUnlock()
	if ok {
		return tmpl, nil
	}

	text, origin, err := l.Source(name)
	if err != nil {
		return nil, err
	}
	tmpl, err = template.New(name).Funcs(l.funcs).Option("missingkey=zero").Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s from %s: %w", name, origin, err)
	}

	l.mu.Lock()
	l.parsed[name] = tmpl
	l.mu.Unlock()
	return tmpl, nil
}

func funcs() template.FuncMap {
	return template.FuncMap{
		"join":    strings.Join,
		"trim":    strings.TrimSpace,
		"upper":   strings.ToUpper,
		"lower":   strings.ToLower,
		"title":   Title,
		"indent":  indent,
		"default": fallback,
	}
}

// Title turns an identifier such as "use_case" into "Use Case".
func Title(s string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// indent prefixes every non-empty line with n spaces.
func indent(n int, s string) string {
	pad := strings.Repeat(" ", n)
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = pad + line
		}
	}
	return strings.Join(lines, "\n")
}

// fallback is the template's default func: {{default "N/A" .Guide}}.
func fallback(def, value any) any {
	switch v := value.(type) {
	case nil:
		return def
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
	}
	return value
}
