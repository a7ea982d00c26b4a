package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/blueprint/artifact"
)

// Fixture is the on-disk layout of one project for the File store.
type Fixture struct {
	ProjectMap  map[string]any              `yaml:"project_map" json:"project_map"`
	Collections map[string][]map[string]any `yaml:"collections" json:"collections"`
	Diagrams    []artifact.DiagramRecord    `yaml:"diagrams" json:"diagrams"`
}

// File loads projects from fixture files named <project_id>.yaml,
// <project_id>.yml or <project_id>.json inside a directory.
type File struct {
	dir    string
	logger *slog.Logger
}

// NewFile creates a fixture store rooted at dir.
func NewFile(dir string) *File {
	return &File{dir: dir, logger: slog.Default()}
}

// WithLogger sets the logger used for load warnings.
func (f *File) WithLogger(logger *slog.Logger) *File {
	if logger != nil {
		f.logger = logger
	}
	return f
}

// LoadProject implements artifact.Store.
func (f *File) LoadProject(ctx context.Context, projectID string) (*artifact.Project, error) {
	fx, err := f.read(projectID)
	if err != nil {
		return nil, err
	}
	if len(fx.ProjectMap) == 0 {
		return nil, fmt.Errorf("fixture %s has no project_map: %w", projectID, artifact.ErrProjectNotFound)
	}

	fetch := func(ctx context.Context, ref artifact.CollectionRef, ids []any) ([]artifact.Record, error) {
		want := make(map[string]bool, len(ids))
		for _, id := range ids {
			want[fmt.Sprint(id)] = true
		}
		var out []artifact.Record
		for _, doc := range fx.Collections[ref.Collection] {
			if id, ok := doc[ref.IDField]; ok && want[fmt.Sprint(id)] {
				out = append(out, artifact.Record(doc))
			}
		}
		return out, nil
	}

	return resolveProject(ctx, f.logger, projectID, artifact.Record(fx.ProjectMap), fetch)
}

// ListDiagrams implements artifact.DiagramSource.
func (f *File) ListDiagrams(ctx context.Context, projectID string) ([]artifact.DiagramRecord, error) {
	fx, err := f.read(projectID)
	if err != nil {
		return nil, err
	}
	var out []artifact.DiagramRecord
	for _, d := range fx.Diagrams {
		if d.Type != "" && d.Code != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

// Save writes a fixture as YAML, replacing any existing file for the project.
func (f *File) Save(projectID string, fx *Fixture) error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("create fixtures dir: %w", err)
	}
	data, err := yaml.Marshal(fx)
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	return os.WriteFile(filepath.Join(f.dir, projectID+".yaml"), data, 0644)
}

func (f *File) read(projectID string) (*Fixture, error) {
	if projectID == "" || filepath.Base(projectID) != projectID {
		return nil, fmt.Errorf("invalid project id %q: %w", projectID, artifact.ErrProjectNotFound)
	}

	for _, ext := range []string{".yaml", ".yml", ".json"} {
		path := filepath.Join(f.dir, projectID+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read fixture: %w", err)
		}

		var fx Fixture
		if ext == ".json" {
			err = json.Unmarshal(data, &fx)
		} else {
			err = yaml.Unmarshal(data, &fx)
		}
		if err != nil {
			return nil, fmt.Errorf("parse fixture %s: %w", path, err)
		}
		return &fx, nil
	}

	return nil, fmt.Errorf("no fixture for %s: %w", projectID, artifact.ErrProjectNotFound)
}
