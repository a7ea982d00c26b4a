// Package testutil provides fixtures and collaborator doubles for tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/randalmurphal/blueprint/artifact"
)

// LoadFixture loads a fixture file from the testdata directory.
// The path is relative to the testdata directory.
func LoadFixture(t *testing.T, path string) []byte {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", path))
	if err != nil {
		t.Fatalf("failed to load fixture %s: %v", path, err)
	}
	return data
}

// LoadJSONFixture loads a fixture file and unmarshals it as JSON.
func LoadJSONFixture[T any](t *testing.T, path string) T {
	t.Helper()

	var result T
	if err := json.Unmarshal(LoadFixture(t, path), &result); err != nil {
		t.Fatalf("failed to parse JSON fixture %s: %v", path, err)
	}
	return result
}

// TempFile creates a temporary file with the given content and returns its
// path.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("failed to create temp file %s: %v", name, err)
	}
	return path
}

// =============================================================================
// Artifact builders
// =============================================================================

// Entity builds an entity record. attrs alternate name, type, description.
func Entity(name string, attrs ...string) artifact.Record {
	var list []any
	for i := 0; i+2 < len(attrs); i += 3 {
		list = append(list, map[string]any{"name": attrs[i], "type": attrs[i+1], "description": attrs[i+2]})
	}
	return artifact.Record{
		"name":        name,
		"description": name + " entity",
		"attributes":  list,
	}
}

// Entities builds n entities named Entity1..EntityN with one id attribute.
func Entities(n int) []artifact.Record {
	out := make([]artifact.Record, n)
	for i := range out {
		out[i] = Entity(fmt.Sprintf("Entity%d", i+1), "id", "uuid", "primary key")
	}
	return out
}

// Flow builds a flow record.
func Flow(name, description string) artifact.Record {
	return artifact.Record{"flow_name": name, "description": description}
}

// Story builds a story record.
func Story(summary, description string) artifact.Record {
	return artifact.Record{"summary": summary, "description": description}
}

// Named builds n records of any type with a "name" field.
func Named(prefix string, n int) []artifact.Record {
	out := make([]artifact.Record, n)
	for i := range out {
		out[i] = artifact.Record{"name": fmt.Sprintf("%s%d", prefix, i+1)}
	}
	return out
}

// TechStack returns a complete stack selection.
func TechStack() *artifact.TechStack {
	return &artifact.TechStack{
		Frontend:           "React",
		Backend:            "Go",
		Database:           "PostgreSQL",
		Messaging:          "RabbitMQ",
		Orchestration:      "Kubernetes",
		DataProcessing:     "Spark",
		StorageLayer:       "S3",
		ObservabilityStack: []string{"Prometheus", "Grafana"},
		OtherTools:         []string{"Docker"},
		Reasoning:          "team familiarity",
	}
}

// Project builds a loaded project with the given artifact sets.
func Project(id, paradigm string, sets ...artifact.Set) *artifact.Project {
	return &artifact.Project{
		ID:        id,
		Paradigm:  paradigm,
		Artifacts: artifact.Collection(sets),
		Map:       artifact.Record{"project_id": id, "paradigm": paradigm},
	}
}
