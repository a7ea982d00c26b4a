package testutil

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/notify"
)

func ask(t *testing.T, o *Oracle, prompt string) (string, error) {
	t.Helper()
	resp, err := o.Complete(context.Background(), llm.CompletionRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func TestOracle_Routing(t *testing.T) {
	o := NewOracle(
		FailOn("guide", "insight", 2),
		Reply("adrs", `{"adrs": []}`),
	)

	if got, err := ask(t, o, "write a guide"); err != nil || got != "insight (call 1)" {
		t.Errorf("first guide call = %q, %v", got, err)
	}
	if _, err := ask(t, o, "another guide"); err == nil {
		t.Error("second guide call should fail")
	}
	if got, _ := ask(t, o, "emit adrs"); got != `{"adrs": []}` {
		t.Errorf("adrs call = %q", got)
	}
	if _, err := ask(t, o, "unknown"); err == nil {
		t.Error("unmatched prompt should fail")
	}

	if o.Calls("guide") != 2 || o.Calls("adrs") != 1 {
		t.Errorf("Calls() = %d guide, %d adrs", o.Calls("guide"), o.Calls("adrs"))
	}
	if len(o.Prompts()) != 4 {
		t.Errorf("Prompts() len = %d, want 4", len(o.Prompts()))
	}
}

func TestOracle_CanceledContext(t *testing.T) {
	o := NewOracle(Reply("", "x"))
	if _, err := o.Complete(CanceledContext(), llm.CompletionRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Complete() error = %v, want context.Canceled", err)
	}
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore(Project("p1", artifact.ParadigmApplication,
		artifact.Set{Type: artifact.TypeEntities, Records: Entities(2)}))
	s.Diagrams["p1"] = []artifact.DiagramRecord{{Type: "erd", Code: "@startuml\n@enduml"}}

	p, err := s.LoadProject(context.Background(), "p1")
	if err != nil {
		t.Fatalf("LoadProject() error = %v", err)
	}
	if got := len(p.Artifacts.Get(artifact.TypeEntities)); got != 2 {
		t.Errorf("entities = %d, want 2", got)
	}
	if _, err := s.LoadProject(context.Background(), "missing"); !artifact.IsNotFound(err) {
		t.Errorf("LoadProject(missing) error = %v, want not found", err)
	}
	if d, _ := s.ListDiagrams(context.Background(), "p1"); len(d) != 1 {
		t.Errorf("ListDiagrams() = %d, want 1", len(d))
	}
}

func TestRecorder(t *testing.T) {
	var r Recorder
	ev := notify.NewEvent(notify.EventNodeCompleted, "p", notify.StatusCompleted)
	ev.Node = "render"
	_ = r.Notify(context.Background(), notify.NewEvent(notify.EventNodeStarted, "p", notify.StatusStarted))
	_ = r.Notify(context.Background(), ev)

	if len(r.Events()) != 2 || len(r.OfType(notify.EventNodeCompleted)) != 1 {
		t.Errorf("recorded %d events", len(r.Events()))
	}
	if got, ok := r.Finished("render"); !ok || got.ID != ev.ID {
		t.Error("Finished(render) did not return the completion event")
	}
}

func TestEntity(t *testing.T) {
	e := Entity("User", "id", "uuid", "primary key", "email", "string", "login")
	if got := len(e.Records("attributes")); got != 2 {
		t.Errorf("attributes = %d, want 2", got)
	}
	if e.Text("name") != "User" {
		t.Errorf("name = %q", e.Text("name"))
	}
}

func TestTempFile(t *testing.T) {
	path := TempFile(t, "x.txt", []byte("hello"))
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "hello" {
		t.Errorf("ReadFile() = %q, %v", data, err)
	}
}

func TestDeadlineContext(t *testing.T) {
	ctx := DeadlineContext(t, 10*time.Millisecond)
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Error("context did not time out")
	}
}

func TestLogger_DropsAfterTestEnds(t *testing.T) {
	var leaked *slog.Logger
	t.Run("inner", func(t *testing.T) {
		leaked = Logger(t)
		leaked.Info("stage finished", "stage", "guide")
	})
	// Logging through t after the subtest completed would panic.
	leaked.Warn("late event")
}
