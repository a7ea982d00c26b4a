package diagram

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	nanoid "github.com/matoous/go-nanoid/v2"

	"github.com/randalmurphal/blueprint/runner"
)

// Renderer produces an image reference for diagram source.
type Renderer interface {
	// Render returns a URL or file path for the rendered diagram. name is a
	// hint used for file naming and may be ignored.
	Render(ctx context.Context, name, code string) (string, error)
}

// URLRenderer references diagrams hosted by a PlantUML server.
type URLRenderer struct {
	BaseURL string
}

// ImageURL returns <base>/svg/<token> for code.
func (r URLRenderer) ImageURL(code string) string {
	return strings.TrimRight(r.BaseURL, "/") + "/svg/" + Encode(code)
}

// Render implements Renderer. It performs no network I/O.
func (r URLRenderer) Render(_ context.Context, _, code string) (string, error) {
	return r.ImageURL(code), nil
}

// LocalRenderer renders PNG files with the PlantUML jar.
type LocalRenderer struct {
	// JarPath is the PlantUML jar.
	JarPath string

	// OutputDir receives the .puml and .png files.
	OutputDir string

	// Java is the java executable. Defaults to "java".
	Java string

	Runner runner.Runner
}

// NewLocalRenderer creates a renderer writing into outputDir.
func NewLocalRenderer(jarPath, outputDir string, r runner.Runner) *LocalRenderer {
	if r == nil {
		r = runner.NewExecRunner()
	}
	return &LocalRenderer{JarPath: jarPath, OutputDir: outputDir, Java: "java", Runner: r}
}

// Render writes code to <name>_<id>.puml, runs the jar and returns the
// absolute path of the produced PNG.
func (r *LocalRenderer) Render(ctx context.Context, name, code string) (string, error) {
	dir, err := filepath.Abs(r.OutputDir)
	if err != nil {
		return "", fmt.Errorf("resolve diagram dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create diagram dir: %w", err)
	}

	id, err := nanoid.New(12)
	if err != nil {
		return "", fmt.Errorf("generate diagram id: %w", err)
	}
	base := fmt.Sprintf("%s_%s", sanitizeName(name), id)
	pumlPath := filepath.Join(dir, base+".puml")
	if err := os.WriteFile(pumlPath, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("write diagram source: %w", err)
	}

	java := r.Java
	if java == "" {
		java = "java"
	}
	if _, err := r.Runner.Run(ctx, dir, java, "-jar", r.JarPath, "-tpng", pumlPath); err != nil {
		return "", fmt.Errorf("plantuml failed: %w", err)
	}

	pngPath := filepath.Join(dir, base+".png")
	if _, err := os.Stat(pngPath); err != nil {
		return "", fmt.Errorf("plantuml produced no image: %w", err)
	}
	return pngPath, nil
}

func sanitizeName(name string) string {
	if name == "" {
		return "diagram"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
}
