package artifact

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrProjectNotFound indicates no project map exists for the requested ID.
var ErrProjectNotFound = errors.New("project not found")

// Paradigm values recognised by the diagram allow-lists and prompts.
const (
	ParadigmApplication  = "application"
	ParadigmDataPipeline = "data_pipeline"

	// DefaultParadigm is used when a project map omits the paradigm or the
	// project cannot be loaded.
	DefaultParadigm = ParadigmApplication
)

// TechStack is the technology selection recorded in a project map.
type TechStack struct {
	Frontend           string   `json:"frontend" yaml:"frontend"`
	Backend            string   `json:"backend" yaml:"backend"`
	Database           string   `json:"database" yaml:"database"`
	Messaging          string   `json:"messaging" yaml:"messaging"`
	Orchestration      string   `json:"orchestration" yaml:"orchestration"`
	DataProcessing     string   `json:"data_processing" yaml:"data_processing"`
	StorageLayer       string   `json:"storage_layer" yaml:"storage_layer"`
	ObservabilityStack []string `json:"observability_stack" yaml:"observability_stack"`
	OtherTools         []string `json:"other_tools" yaml:"other_tools"`
	Reasoning          string   `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// TechStackFromRecord converts a stored selection document into a TechStack.
// A nil or empty record yields (nil, nil).
func TechStackFromRecord(r Record) (*TechStack, error) {
	if len(r) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode tech stack: %w", err)
	}
	var ts TechStack
	if err := json.Unmarshal(data, &ts); err != nil {
		return nil, fmt.Errorf("decode tech stack: %w", err)
	}
	return &ts, nil
}

// Project is the loaded view of one project.
type Project struct {
	ID        string
	Paradigm  string
	Artifacts Collection
	TechStack *TechStack

	// Map is the raw project map document.
	Map Record
}

// DiagramRecord is a diagram stored for a project.
type DiagramRecord struct {
	Type string `json:"diagram_type" yaml:"diagram_type"`
	Code string `json:"code" yaml:"code"`
}

// Store loads project artifacts.
type Store interface {
	// LoadProject returns the project, or an error wrapping
	// ErrProjectNotFound when no project map exists.
	LoadProject(ctx context.Context, projectID string) (*Project, error)
}

// DiagramSource lists stored diagrams.
type DiagramSource interface {
	ListDiagrams(ctx context.Context, projectID string) ([]DiagramRecord, error)
}

// IsNotFound reports whether err indicates a missing project.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProjectNotFound)
}
