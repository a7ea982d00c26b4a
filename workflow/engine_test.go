package workflow

import (
	"context"
	"errors"
	"os"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/chunk"
	"github.com/randalmurphal/blueprint/diagram"
	"github.com/randalmurphal/blueprint/export"
	"github.com/randalmurphal/blueprint/notify"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/runner"
	"github.com/randalmurphal/blueprint/testutil"
)

// Substrings identifying each prompt.
const (
	matchGuideChunk = "For this artifact type, describe"
	matchGuideFinal = "## Detailed Artifact Insights"
	matchADRs       = "Architectural Decision Records (ADRs)"
	matchTechStack  = "implementation guide for a software/data platform"
	matchSystem     = "PlantUML Component Diagram"
)

const (
	testPlantUML = "http://plantuml.test"
	adrJSON      = `{"adrs":[{"title":"Use Go","context":"c","decision":"d","alternatives":"a","rationale":"r"}]}`
	systemReply  = "Here you go:\n```plantuml\n@startuml\nactor User\n@enduml\n```"
)

var testClock = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

type harness struct {
	store  *testutil.MemoryStore
	oracle *testutil.Oracle
	events *testutil.Recorder
	outDir string
	engine *Engine
}

func newHarness(t *testing.T, store *testutil.MemoryStore, o *testutil.Oracle, mutate func(*Deps), opts ...Option) *harness {
	t.Helper()
	h := &harness{store: store, oracle: o, events: &testutil.Recorder{}, outDir: t.TempDir()}
	deps := Deps{
		Store:    store,
		Diagrams: store,
		Oracle:   oracle.Static{Client: o},
		Renderer: diagram.URLRenderer{BaseURL: testPlantUML},
		Exporter: export.New(export.Config{OutputDir: h.outDir}),
		Notifier: h.events,
		Logger:   testutil.Logger(t),
	}
	if mutate != nil {
		mutate(&deps)
	}
	e, err := NewEngine(deps, append([]Option{WithClock(testClock)}, opts...)...)
	require.NoError(t, err)
	h.engine = e
	return h
}

func defaultOracle() *testutil.Oracle {
	return testutil.NewOracle(
		testutil.Reply(matchADRs, adrJSON),
		testutil.Reply(matchGuideFinal, "Final guide"),
		testutil.Reply(matchGuideChunk, "- chunk insight"),
		testutil.Reply(matchTechStack, "Stack guidance"),
		testutil.Reply(matchSystem, systemReply),
	)
}

func fullProject() *artifact.Project {
	p := testutil.Project("p1", artifact.ParadigmApplication,
		artifact.Set{Type: artifact.TypeEntities, Records: []artifact.Record{
			testutil.Entity("User", "id", "uuid", "primary key", "email", "string", "login"),
			testutil.Entity("Order", "total", "decimal", "amount"),
		}},
		artifact.Set{Type: artifact.TypeFlows, Records: []artifact.Record{testutil.Flow("Checkout", "pay for cart")}},
		artifact.Set{Type: artifact.TypeStories, Records: []artifact.Record{testutil.Story("Login", "user signs in")}},
	)
	p.TechStack = testutil.TechStack()
	return p
}

func requireStatus(t *testing.T, h *harness, node string, want notify.Status) notify.Event {
	t.Helper()
	ev, ok := h.events.Finished(node)
	require.True(t, ok, "no finish event for %s", node)
	require.Equal(t, want, ev.Status, "node %s metadata %v", node, ev.Metadata)
	return ev
}

// =============================================================================
// Construction
// =============================================================================

func TestNewEngine_Validation(t *testing.T) {
	store := testutil.NewMemoryStore()
	good := Deps{
		Store:    store,
		Oracle:   oracle.Static{Client: defaultOracle()},
		Renderer: diagram.URLRenderer{BaseURL: testPlantUML},
	}

	tests := []struct {
		name   string
		mutate func(*Deps)
		opts   []Option
		want   error
	}{
		{"no store", func(d *Deps) { d.Store = nil }, nil, ErrNoStore},
		{"no oracle", func(d *Deps) { d.Oracle = nil }, nil, ErrNoOracle},
		{"no renderer", func(d *Deps) { d.Renderer = nil }, nil, ErrNoRenderer},
		{"zero chunk size", nil, []Option{WithMaxPerChunk(0)}, ErrInvalidLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := good
			if tt.mutate != nil {
				tt.mutate(&deps)
			}
			_, err := NewEngine(deps, tt.opts...)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	_, err := NewEngine(good, WithADRChunking("random"))
	assert.Error(t, err, "unknown chunk policy should fail construction")

	e, err := NewEngine(good)
	require.NoError(t, err)
	assert.Equal(t, []string{
		NodeLoad, NodeSummarize, NodeGuide, NodeDiagrams,
		NodeADRs, NodeTechStack, NodeSystemDiagram, NodeRender,
	}, e.Stages())
}

func TestRun_EmptyProjectID(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore(), defaultOracle(), nil)
	_, err := h.engine.Run(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrNoProjectID)
}

// =============================================================================
// Pipeline
// =============================================================================

func TestRun_FullPipeline(t *testing.T) {
	store := testutil.NewMemoryStore(fullProject())
	store.Diagrams["p1"] = []artifact.DiagramRecord{
		{Type: "use_case", Code: "@startuml\nactor A\n@enduml"},
		{Type: "dag", Code: "@startuml\n@enduml"},
		{Type: "erd", Code: "@startuml\nentity User\n@enduml"},
	}
	h := newHarness(t, store, defaultOracle(), nil)

	s, err := h.engine.Run(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, "p1", s.ProjectID)
	assert.Equal(t, StateVersion, s.Version)
	assert.Equal(t, artifact.ParadigmApplication, s.Paradigm)
	assert.Empty(t, s.Failed())
	assert.Len(t, s.Stages, 8)

	// summarize
	assert.Equal(t, "**User**: id: primary key; email: login\n**Order**: total: amount", s.EntitySummary)
	assert.Equal(t, "- Checkout — pay for cart", s.FlowSummary)
	assert.Equal(t, "- Login — user signs in", s.StorySummary)

	// guide: one chunk per type plus synthesis
	assert.Equal(t, 3, h.oracle.Calls(matchGuideChunk))
	assert.Equal(t, 1, h.oracle.Calls(matchGuideFinal))
	assert.True(t, strings.HasPrefix(s.ArchitectureGuide, "Final guide\n\n---\n\n## Detailed Artifact Definitions\n\n- chunk insight"))
	assert.Contains(t, s.ArchitectureGuide, "## Entity Definitions\n### Entity: User")
	assert.Contains(t, s.ArchitectureGuide, "| email | string | login |")

	// diagrams: dag is not allowed for applications
	require.Len(t, s.Diagrams, 2)
	assert.Equal(t, []string{"erd", "use_case"}, s.DiagramOrder())
	assert.True(t, strings.HasPrefix(s.Diagrams["erd"][0].ImageURL, testPlantUML+"/svg/"))

	// adrs: three chunks, one record each
	require.Len(t, s.ADRs, 3)
	assert.Equal(t, "Use Go", s.ADRs[2].Title)

	assert.Equal(t, "Stack guidance", s.TechStackGuidance)

	require.NotNil(t, s.SystemDiagram)
	assert.Equal(t, "@startuml\ntitle application System Architecture\nactor User\n@enduml", s.SystemDiagram.Code)
	assert.Equal(t, testPlantUML+"/svg/"+diagram.Encode(s.SystemDiagram.Code), s.SystemDiagram.ImageURL)

	// render
	md := s.BlueprintMarkdown
	assert.NotContains(t, md, NotAvailable)
	assert.Contains(t, md, "_Generated on 2026-01-02T03:04:05.000000Z_")
	assert.Contains(t, md, "#### Use Case Diagram 1\n![use_case diagram 1]("+testPlantUML+"/svg/")
	assert.Contains(t, md, "### ADR 3: Use Go\n**Context:** c\n\n")
	assertOrdered(t, md,
		"## Architecture Guide",
		"## Tech Stack Implementation Guide",
		"## Final System Diagram",
		"## System-Level Diagrams",
		"### Erd Diagrams",
		"### Use Case Diagrams",
		"## Architectural Decision Records (ADRs)",
	)

	mdPath := s.ExportedFiles[export.FormatMarkdown]
	data, err := os.ReadFile(mdPath)
	require.NoError(t, err)
	assert.Equal(t, md, string(data))

	assert.Positive(t, s.Usage.InputTokens)
	assert.Positive(t, s.Duration)

	// events: started and finished for every stage, in order
	var nodes []string
	for _, ev := range h.events.Events() {
		assert.Equal(t, "p1", ev.ProjectID)
		assert.Equal(t, s.RunID, ev.RunID)
		if ev.Type == notify.EventNodeStarted {
			nodes = append(nodes, ev.Node)
		}
	}
	assert.Equal(t, h.engine.Stages(), nodes)

	load := requireStatus(t, h, NodeLoad, notify.StatusSuccess)
	assert.Equal(t, []string{"entities", "flows", "stories"}, load.Metadata["artifact_keys"])
	requireStatus(t, h, NodeSummarize, notify.StatusSuccess)
	diagrams := requireStatus(t, h, NodeDiagrams, notify.StatusCompleted)
	assert.Equal(t, 2, diagrams.Metadata["count"])
	adrs := requireStatus(t, h, NodeADRs, notify.StatusCompleted)
	assert.Equal(t, 3, adrs.Metadata["count"])
	render := requireStatus(t, h, NodeRender, notify.StatusCompleted)
	assert.Equal(t, "N/A", render.Metadata["pdf_file"])
	assert.Equal(t, mdPath, render.Metadata["markdown_file"])
}

func TestRun_GuideChunkFailureKeepsOthers(t *testing.T) {
	store := testutil.NewMemoryStore(testutil.Project("p7", artifact.ParadigmApplication,
		artifact.Set{Type: artifact.TypeEntities, Records: testutil.Entities(7)},
		artifact.Set{Type: artifact.TypeFlows},
	))
	o := testutil.NewOracle(
		testutil.Reply(matchADRs, adrJSON),
		testutil.Reply(matchGuideFinal, "Final guide"),
		testutil.FailOn(matchGuideChunk, "insight", 2),
	)
	h := newHarness(t, store, o, nil, WithMaxPerChunk(3))

	s, err := h.engine.Run(context.Background(), "p7")
	require.NoError(t, err)

	assert.Equal(t, 3, o.Calls(matchGuideChunk), "groups of 3, 3 and 1 entities; none for flows")
	assert.NotEmpty(t, s.ArchitectureGuide)
	assert.Contains(t, s.ArchitectureGuide, "insight (call 1)\n\ninsight (call 3)")
	assert.NotContains(t, s.ArchitectureGuide, "call 2")

	warnings := h.events.OfType(notify.EventChunkFailed)
	require.Len(t, warnings, 1)
	assert.Equal(t, NodeGuide, warnings[0].Node)
	assert.Equal(t, notify.StatusWarning, warnings[0].Status)
	assert.Equal(t, 1, warnings[0].Metadata["chunk_index"])
	assert.Contains(t, warnings[0].Metadata["error"], "call 2")

	guide := requireStatus(t, h, NodeGuide, notify.StatusCompleted)
	assert.Equal(t, 1, guide.Metadata["chunks_failed"])
}

func TestRun_GuideAllChunksFailKeepsEntityTables(t *testing.T) {
	store := testutil.NewMemoryStore(testutil.Project("p8", artifact.ParadigmApplication,
		artifact.Set{Type: artifact.TypeEntities, Records: testutil.Entities(7)},
	))
	o := testutil.NewOracle(
		testutil.Reply(matchADRs, adrJSON),
		testutil.Reply(matchGuideFinal, "Final guide"),
		testutil.FailOn(matchGuideChunk, "insight", 1, 2, 3),
	)
	h := newHarness(t, store, o, nil, WithMaxPerChunk(3))

	s, err := h.engine.Run(context.Background(), "p8")
	require.NoError(t, err)

	assert.Equal(t, 3, o.Calls(matchGuideChunk))
	assert.Equal(t, 1, o.Calls(matchGuideFinal))
	assert.True(t, strings.HasPrefix(s.ArchitectureGuide, "Final guide\n\n---\n\n## Detailed Artifact Definitions\n\n## Entity Definitions\n"), s.ArchitectureGuide)
	assert.Equal(t, 7, strings.Count(s.ArchitectureGuide, "### Entity: "))
	assert.NotContains(t, s.ArchitectureGuide, "insight")
	assert.Len(t, h.events.OfType(notify.EventChunkFailed), 3)

	guide := requireStatus(t, h, NodeGuide, notify.StatusCompleted)
	assert.Equal(t, 3, guide.Metadata["chunks_failed"])
}

func TestRun_ProjectNotFound(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore(), defaultOracle(), nil)

	s, err := h.engine.Run(context.Background(), "ghost")
	require.NoError(t, err)

	assert.Equal(t, artifact.ParadigmApplication, s.Paradigm)
	assert.Equal(t, 0, s.Artifacts.Len())
	assert.Empty(t, s.ArchitectureGuide)
	assert.Empty(t, s.ADRs)
	assert.Empty(t, h.oracle.Prompts())

	assert.Equal(t, 5, strings.Count(s.BlueprintMarkdown, NotAvailable), s.BlueprintMarkdown)
	assert.FileExists(t, s.ExportedFiles[export.FormatMarkdown])

	load := requireStatus(t, h, NodeLoad, notify.StatusSuccess)
	assert.Equal(t, false, load.Metadata["found"])
	diagrams := requireStatus(t, h, NodeDiagrams, notify.StatusFailed)
	assert.Equal(t, ReasonNoDiagrams, diagrams.Metadata["error"])
	requireStatus(t, h, NodeRender, notify.StatusCompleted)
}

func TestRun_MissingTechStack(t *testing.T) {
	p := fullProject()
	p.TechStack = nil
	h := newHarness(t, testutil.NewMemoryStore(p), defaultOracle(), nil)

	s, err := h.engine.Run(context.Background(), "p1")
	require.NoError(t, err)

	assert.Nil(t, s.SystemDiagram)
	assert.Empty(t, s.TechStackGuidance)
	assert.Zero(t, h.oracle.Calls(matchSystem))
	assert.ElementsMatch(t, []string{NodeDiagrams, NodeTechStack, NodeSystemDiagram}, s.Failed())

	ev := requireStatus(t, h, NodeSystemDiagram, notify.StatusFailed)
	assert.Equal(t, notify.EventNodeError, ev.Type)
	assert.Equal(t, "Missing tech stack selection", ev.Metadata["error"])

	requireStatus(t, h, NodeRender, notify.StatusCompleted)
	assert.Contains(t, s.BlueprintMarkdown, "## Final System Diagram\n"+NotAvailable)
	assert.Contains(t, s.BlueprintMarkdown, "Final guide")
}

func TestRun_StoreError(t *testing.T) {
	store := testutil.NewMemoryStore()
	store.Err = errors.New("connection refused")
	h := newHarness(t, store, defaultOracle(), nil)

	s, err := h.engine.Run(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, artifact.ParadigmApplication, s.Paradigm)
	ev := requireStatus(t, h, NodeLoad, notify.StatusFailed)
	assert.Contains(t, ev.Metadata["error"], "connection refused")
	assert.NotEmpty(t, s.BlueprintMarkdown)
}

func TestRun_GuideSynthesisFailure(t *testing.T) {
	o := testutil.NewOracle(
		testutil.Reply(matchADRs, adrJSON),
		testutil.FailOn(matchGuideFinal, "", 1),
		testutil.Reply(matchGuideChunk, "- insight"),
		testutil.Reply(matchTechStack, "Stack guidance"),
		testutil.Reply(matchSystem, systemReply),
	)
	h := newHarness(t, testutil.NewMemoryStore(fullProject()), o, nil)

	s, err := h.engine.Run(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, GuideErrorText, s.ArchitectureGuide)
	requireStatus(t, h, NodeGuide, notify.StatusFailed)
	assert.Len(t, s.ADRs, 3, "later stages still run")
}

func TestRun_ADRChunkMalformed(t *testing.T) {
	o := testutil.NewOracle(
		testutil.Rule{Match: matchADRs, Reply: func(n int, _ string) (string, error) {
			if n == 2 {
				return "I cannot produce JSON today.", nil
			}
			return "```json\n" + strings.Replace(adrJSON, "Use Go", "ADR from call "+string(rune('0'+n)), 1) + "\n```", nil
		}},
		testutil.Reply(matchGuideFinal, "Final guide"),
		testutil.Reply(matchGuideChunk, "- insight"),
		testutil.Reply(matchTechStack, "Stack guidance"),
		testutil.Reply(matchSystem, systemReply),
	)
	h := newHarness(t, testutil.NewMemoryStore(fullProject()), o, nil)

	s, err := h.engine.Run(context.Background(), "p1")
	require.NoError(t, err)

	require.Len(t, s.ADRs, 2)
	assert.Equal(t, "ADR from call 1", s.ADRs[0].Title)
	assert.Equal(t, "ADR from call 3", s.ADRs[1].Title)

	warnings := h.events.OfType(notify.EventChunkFailed)
	require.Len(t, warnings, 1)
	assert.Equal(t, NodeADRs, warnings[0].Node)
	assert.Equal(t, 1, warnings[0].Metadata["chunk_index"])
}

func TestRun_GlobalADRChunking(t *testing.T) {
	store := testutil.NewMemoryStore(testutil.Project("p", artifact.ParadigmDataPipeline,
		artifact.Set{Type: artifact.TypeEntities, Records: testutil.Entities(5)},
		artifact.Set{Type: artifact.TypeDAGTasks, Records: testutil.Named("task", 6)},
	))
	h := newHarness(t, store, defaultOracle(), nil, WithADRChunking(chunk.PolicyGlobal), WithMaxItems(8))

	s, err := h.engine.Run(context.Background(), "p")
	require.NoError(t, err)

	assert.Equal(t, 2, h.oracle.Calls(matchADRs), "11 items in groups of 8")
	assert.Len(t, s.ADRs, 2)

	var first string
	for _, p := range h.oracle.Prompts() {
		if strings.Contains(p, matchADRs) {
			first = p
			break
		}
	}
	assert.Contains(t, first, `"entities"`)
	assert.Contains(t, first, `"dag_tasks"`, "global groups span types")
}

func TestRun_ConcurrentChunksKeepOrder(t *testing.T) {
	store := testutil.NewMemoryStore(testutil.Project("p", artifact.ParadigmApplication,
		artifact.Set{Type: artifact.TypeEntities, Records: testutil.Entities(8)},
	))
	firstEntity := regexp.MustCompile(`Entity\d+`)
	o := testutil.NewOracle(
		testutil.Reply(matchADRs, adrJSON),
		testutil.Reply(matchGuideFinal, "Final guide"),
		testutil.Rule{Match: matchGuideChunk, Reply: func(n int, prompt string) (string, error) {
			name := firstEntity.FindString(prompt)
			// Early chunks finish last.
			if name == "Entity1" {
				time.Sleep(20 * time.Millisecond)
			}
			return "insight for " + name, nil
		}},
	)
	h := newHarness(t, store, o, nil, WithMaxPerChunk(2), WithChunkConcurrency(4))

	s, err := h.engine.Run(context.Background(), "p")
	require.NoError(t, err)

	assertOrdered(t, s.ArchitectureGuide,
		"insight for Entity1", "insight for Entity3", "insight for Entity5", "insight for Entity7")
}

func TestRun_CanceledContextStillRenders(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore(fullProject()), defaultOracle(), nil)

	s, err := h.engine.Run(testutil.CanceledContext(), "p1")
	require.NoError(t, err)

	assert.Empty(t, h.oracle.Prompts())
	assert.Empty(t, s.ArchitectureGuide)
	assert.Empty(t, s.ADRs)
	assert.Contains(t, s.Failed(), NodeTechStack)
	assert.Contains(t, s.Failed(), NodeSystemDiagram)
	assert.FileExists(t, s.ExportedFiles[export.FormatMarkdown])
	requireStatus(t, h, NodeRender, notify.StatusCompleted)
}

type panicRenderer struct{}

func (panicRenderer) Render(context.Context, string, string) (string, error) {
	panic("renderer exploded")
}

func TestRun_PanickingStageDegrades(t *testing.T) {
	store := testutil.NewMemoryStore(fullProject())
	store.Diagrams["p1"] = []artifact.DiagramRecord{{Type: "erd", Code: "@startuml\n@enduml"}}
	h := newHarness(t, store, defaultOracle(), func(d *Deps) { d.Renderer = panicRenderer{} })

	s, err := h.engine.Run(context.Background(), "p1")
	require.NoError(t, err)

	ev := requireStatus(t, h, NodeDiagrams, notify.StatusFailed)
	assert.Contains(t, ev.Metadata["error"], "renderer exploded")
	assert.Nil(t, s.Diagrams)
	requireStatus(t, h, NodeADRs, notify.StatusCompleted)
	requireStatus(t, h, NodeRender, notify.StatusCompleted)
}

func TestRun_PDFFailureIsWarning(t *testing.T) {
	mock := runner.NewMockRunner()
	mock.OnAnyCommand().Return("", errors.New("wkhtmltopdf missing"))

	var outDir string
	h := newHarness(t, testutil.NewMemoryStore(fullProject()), defaultOracle(), func(d *Deps) {
		outDir = t.TempDir()
		d.Exporter = export.New(export.Config{OutputDir: outDir, PDF: true, Runner: mock})
	})

	s, err := h.engine.Run(context.Background(), "p1")
	require.NoError(t, err)

	pdf := h.events.OfType(notify.EventPDFFailed)
	require.Len(t, pdf, 1)
	assert.Equal(t, notify.StatusWarning, pdf[0].Status)
	assert.Contains(t, pdf[0].Metadata["error"], "wkhtmltopdf missing")

	requireStatus(t, h, NodeRender, notify.StatusCompleted)
	assert.NotContains(t, s.ExportedFiles, export.FormatPDF)
	assert.FileExists(t, s.ExportedFiles[export.FormatMarkdown])
}

func TestRun_NotifierErrorsIgnored(t *testing.T) {
	h := newHarness(t, testutil.NewMemoryStore(fullProject()), defaultOracle(), func(d *Deps) {
		d.Notifier = notify.NotifierFunc(func(context.Context, notify.Event) error {
			return errors.New("bus down")
		})
	})

	s, err := h.engine.Run(context.Background(), "p1")
	require.NoError(t, err)
	assert.Empty(t, s.Failed())
}

func assertOrdered(t *testing.T, text string, parts ...string) {
	t.Helper()
	last := -1
	for _, p := range parts {
		i := strings.Index(text, p)
		if !assert.GreaterOrEqual(t, i, 0, "missing %q", p) {
			return
		}
		assert.Greater(t, i, last, "%q out of order", p)
		last = i
	}
}
