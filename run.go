package blueprint

import (
	"context"
	"strings"
	"time"

	"github.com/randalmurphal/blueprint/export"
	"github.com/randalmurphal/blueprint/notify"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/publish"
	"github.com/randalmurphal/blueprint/runstore"
	"github.com/randalmurphal/blueprint/workflow"
)

// RunOptions adjusts a single run.
type RunOptions struct {
	// Principal is recorded with the run.
	Principal string

	// Publish files the finished document with the configured publisher.
	Publish bool

	// Labels are added to the published issue.
	Labels []string
}

// Result is the outcome of one run.
type Result struct {
	RunID             string                        `json:"run_id"`
	ProjectID         string                        `json:"project_id"`
	Paradigm          string                        `json:"paradigm"`
	BlueprintMarkdown string                        `json:"blueprint_markdown"`
	Diagrams          map[string][]workflow.Diagram `json:"diagrams"`
	SystemDiagram     *workflow.Diagram             `json:"system_diagram,omitempty"`
	ADRs              []workflow.ADR                `json:"adrs"`
	// FileInfo maps "markdown" and, when produced, "pdf" to file paths.
	FileInfo     map[string]string `json:"file_info"`
	Status       string            `json:"status"`
	FailedStages []string          `json:"failed_stages,omitempty"`
	IssueURL     string            `json:"issue_url,omitempty"`
	Usage        oracle.Usage      `json:"usage"`
	StartedAt    time.Time         `json:"started_at"`
	EndedAt      time.Time         `json:"ended_at"`
}

// Run generates the blueprint for a project. The returned error is non-nil
// only when no run could be started (empty project ID); stage failures
// degrade the result and are listed in FailedStages.
func (s *Service) Run(ctx context.Context, projectID string, opts RunOptions) (*Result, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, workflow.ErrNoProjectID
	}

	initial := workflow.NewState(projectID)
	started := s.now()
	// Bookkeeping outlives the caller so a cancelled request still leaves a
	// complete record.
	bg := context.WithoutCancel(ctx)

	if s.runs != nil {
		err := s.runs.StartRun(bg, runstore.Run{
			ID:        initial.RunID,
			ProjectID: projectID,
			Principal: opts.Principal,
			StartedAt: started,
		})
		if err != nil {
			s.logger.Warn("record run start", "run_id", initial.RunID, "error", err)
		}
	}

	final, runErr := s.engine.RunState(ctx, initial)
	if runErr != nil {
		s.logger.Error("blueprint run failed", "run_id", initial.RunID, "error", runErr)
	}

	res := newResult(final)
	res.StartedAt, res.EndedAt = started, s.now()
	if runErr != nil {
		res.Status = runstore.StatusError
	}
	if opts.Publish && res.BlueprintMarkdown != "" {
		res.IssueURL = s.publish(ctx, final, opts.Labels)
	}

	s.snapshot(final, res)
	s.ready(bg, final, res)
	s.finish(bg, final, res, runErr)
	return res, nil
}

func newResult(st workflow.State) *Result {
	res := &Result{
		RunID:             st.RunID,
		ProjectID:         st.ProjectID,
		Paradigm:          st.ParadigmOrDefault(),
		BlueprintMarkdown: st.BlueprintMarkdown,
		Diagrams:          st.Diagrams,
		SystemDiagram:     st.SystemDiagram,
		ADRs:              st.ADRs,
		FileInfo:          st.ExportedFiles,
		FailedStages:      st.Failed(),
		Usage:             st.Usage,
	}
	if res.Diagrams == nil {
		res.Diagrams = map[string][]workflow.Diagram{}
	}
	if res.ADRs == nil {
		res.ADRs = []workflow.ADR{}
	}
	if res.FileInfo == nil {
		res.FileInfo = map[string]string{}
	}
	switch {
	case res.BlueprintMarkdown == "":
		res.Status = runstore.StatusError
	case len(res.FailedStages) > 0:
		res.Status = runstore.StatusDegraded
	default:
		res.Status = runstore.StatusCompleted
	}
	return res
}

func (s *Service) publish(ctx context.Context, st workflow.State, labels []string) string {
	if s.publisher == nil {
		s.logger.Warn("publish requested but no publisher configured", "run_id", st.RunID)
		return ""
	}
	issue := publish.NewBuilder(st.ProjectID).
		WithParadigm(st.ParadigmOrDefault()).
		WithRunID(st.RunID).
		WithLabels(labels...).
		WithMarkdown(st.BlueprintMarkdown).
		Build()

	published, err := s.publisher.Publish(ctx, issue)
	if err != nil {
		s.logger.Warn("publish blueprint", "run_id", st.RunID, "error", err)
		return ""
	}
	s.logger.Info("blueprint published", "run_id", st.RunID, "url", published.URL)
	return published.URL
}

func (s *Service) snapshot(st workflow.State, res *Result) {
	if err := s.snapshots.SaveJSON(st.RunID, export.SnapshotState, st); err != nil {
		s.logger.Warn("save state snapshot", "run_id", st.RunID, "error", err)
	}
	if st.BlueprintMarkdown != "" {
		if err := s.snapshots.Save(st.RunID, export.SnapshotMarkdown, []byte(st.BlueprintMarkdown)); err != nil {
			s.logger.Warn("save markdown snapshot", "run_id", st.RunID, "error", err)
		}
	}
	status := res.Status
	if status == runstore.StatusError {
		status = "failed"
	}
	err := s.snapshots.WriteMeta(export.RunMeta{
		RunID:     st.RunID,
		ProjectID: st.ProjectID,
		Status:    status,
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	})
	if err != nil {
		s.logger.Warn("write run metadata", "run_id", st.RunID, "error", err)
	}
}

// ready announces the finished document. Brokers route it with the ready key.
func (s *Service) ready(ctx context.Context, st workflow.State, res *Result) {
	status := notify.StatusCompleted
	if res.Status == runstore.StatusError {
		status = notify.StatusFailed
	}
	event := notify.NewEvent(notify.EventBlueprintReady, st.ProjectID, status)
	event.RunID = st.RunID
	event.Metadata = map[string]any{
		"paradigm":      res.Paradigm,
		"status":        res.Status,
		"markdown_file": res.FileInfo[export.FormatMarkdown],
		"failed_stages": res.FailedStages,
	}
	if pdf, ok := res.FileInfo[export.FormatPDF]; ok {
		event.Metadata["pdf_file"] = pdf
	}
	if res.IssueURL != "" {
		event.Metadata["issue_url"] = res.IssueURL
	}
	_ = s.events.Notify(ctx, event)
}

func (s *Service) finish(ctx context.Context, st workflow.State, res *Result, runErr error) {
	if s.runs == nil {
		return
	}
	run := runstore.Run{
		ID:           st.RunID,
		Paradigm:     res.Paradigm,
		Status:       res.Status,
		EndedAt:      res.EndedAt,
		DurationMS:   st.Duration.Milliseconds(),
		InputTokens:  st.Usage.InputTokens,
		OutputTokens: st.Usage.OutputTokens,
		FailedStages: res.FailedStages,
		MarkdownPath: res.FileInfo[export.FormatMarkdown],
		PDFPath:      res.FileInfo[export.FormatPDF],
		IssueURL:     res.IssueURL,
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := s.runs.FinishRun(ctx, run); err != nil {
		s.logger.Warn("record run finish", "run_id", st.RunID, "error", err)
	}
}
