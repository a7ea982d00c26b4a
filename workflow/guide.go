package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/randalmurphal/blueprint/artifact"
	"github.com/randalmurphal/blueprint/chunk"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/prompt"
	"github.com/randalmurphal/blueprint/task"
)

// GuideErrorText replaces the guide when synthesis fails.
const GuideErrorText = "# Architecture Guide\n\n_An error occurred during generation._"

const definitionsHeading = "\n\n---\n\n## Detailed Artifact Definitions\n\n"

// generated is the output of one oracle call.
type generated struct {
	Text  string
	Usage oracle.Usage
}

// generateGuide asks the oracle for insights on each per-type chunk, then
// synthesizes them into one guide with the insights and entity definition
// tables appended.
//
// Prerequisites: none (nothing to report yields an empty guide)
// Updates: ArchitectureGuide, Usage
func (e *Engine) generateGuide(ctx context.Context, s State) Result {
	groups := chunk.ByType(s.Artifacts, e.opts.maxPerChunk)
	client := e.deps.Oracle.For(task.GuideChunk)
	paradigm := s.ParadigmOrDefault()

	outcomes := chunk.Fanout(ctx, groups, e.opts.concurrency, func(ctx context.Context, g chunk.Group) (generated, error) {
		body, err := chunkJSON(g.Records())
		if err != nil {
			return generated{}, err
		}
		text, err := e.deps.Prompts.Render(prompt.GuideChunk, map[string]any{
			"Paradigm":     paradigm,
			"ArtifactType": g.Type(),
			"Artifacts":    body,
		})
		if err != nil {
			return generated{}, err
		}
		out, usage, err := oracle.Ask(ctx, client, "", text)
		return generated{Text: strings.TrimSpace(out), Usage: usage}, err
	})

	insights := e.collect(ctx, &s, NodeGuide, outcomes)
	meta := map[string]any{
		"chunks":        len(groups),
		"chunks_failed": len(groups) - len(insights),
	}
	// Entity tables are kept when every chunk fails, unless the run was canceled.
	sections := insights
	if tables := EntityTables(s.Artifacts.Get(artifact.TypeEntities)); tables != "" && ctx.Err() == nil {
		sections = append(sections, "## Entity Definitions\n"+tables)
	}
	if len(sections) == 0 {
		meta["output_preview"] = ""
		return completed(s, meta)
	}
	detail := strings.Join(sections, "\n\n")

	final, err := e.synthesizeGuide(ctx, &s, detail)
	if err != nil {
		s.ArchitectureGuide = GuideErrorText
		res := failed(s, err)
		res.Metadata = meta
		return res
	}

	s.ArchitectureGuide = final + definitionsHeading + detail
	meta["output_preview"] = preview(s.ArchitectureGuide, 500)
	return completed(s, meta)
}

func (e *Engine) synthesizeGuide(ctx context.Context, s *State, insights string) (string, error) {
	text, err := e.deps.Prompts.Render(prompt.GuideFinal, map[string]any{
		"Paradigm":      s.ParadigmOrDefault(),
		"EntitySummary": s.EntitySummary,
		"FlowSummary":   s.FlowSummary,
		"StorySummary":  s.StorySummary,
		"Insights":      insights,
	})
	if err != nil {
		return "", err
	}
	out, usage, err := oracle.Ask(ctx, e.deps.Oracle.For(task.GuideSynthesis), "", text)
	s.AddUsage(usage)
	if err != nil {
		return "", fmt.Errorf("synthesize guide: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// collect adds usage from every outcome, reports failed chunks as warnings
// and returns the successful texts in chunk order.
func (e *Engine) collect(ctx context.Context, s *State, node string, outcomes []chunk.Outcome[generated]) []string {
	var texts []string
	for _, o := range outcomes {
		s.AddUsage(o.Value.Usage)
		if o.Err != nil {
			e.logger.Warn("chunk failed", "run_id", s.RunID, "node", node, "chunk_index", o.Group.Index, "error", o.Err)
			e.events.chunkFailed(ctx, *s, node, o.Group.Index, o.Err)
			continue
		}
		texts = append(texts, o.Value.Text)
	}
	return texts
}

// EntityTables renders a definition table for each entity:
//
//	### Entity: Name
//	_Description_: text
//
//	| Name | Type | Description |
//	|------|------|-------------|
//	| attr | type | text |
func EntityTables(entities []artifact.Record) string {
	blocks := make([]string, 0, len(entities))
	for _, ent := range entities {
		lines := []string{
			"### Entity: " + ent.TextOr("name", "Unknown"),
			"_Description_: " + ent.Text("description") + "\n",
			"| Name | Type | Description |",
			"|------|------|-------------|",
		}
		for _, a := range ent.Records("attributes") {
			lines = append(lines, fmt.Sprintf("| %s | %s | %s |",
				tableCell(a.Text("name")), tableCell(a.Text("type")), tableCell(a.Text("description"))))
		}
		lines = append(lines, "")
		blocks = append(blocks, strings.Join(lines, "\n"))
	}
	return strings.Join(blocks, "\n")
}

func tableCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}

func chunkJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode chunk: %w", err)
	}
	return string(data), nil
}
