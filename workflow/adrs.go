package workflow

import (
	"context"
	"errors"
	"strings"

	"github.com/randalmurphal/blueprint/chunk"
	"github.com/randalmurphal/blueprint/oracle"
	"github.com/randalmurphal/blueprint/prompt"
	"github.com/randalmurphal/blueprint/task"
)

type adrBatch struct {
	ADRs []ADR `json:"adrs"`
}

type adrChunk struct {
	ADRs  []ADR
	Usage oracle.Usage
}

// generateADRs asks the oracle for up to three ADRs per chunk. Malformed
// chunk output is dropped with a warning.
//
// Updates: ADRs (never nil after this stage), Usage
func (e *Engine) generateADRs(ctx context.Context, s State) Result {
	size := e.opts.maxPerChunk
	if e.opts.adrPolicy == chunk.PolicyGlobal {
		size = e.opts.maxItems
	}
	groups := chunk.Plan(e.opts.adrPolicy, s.Artifacts, size)
	client := e.deps.Oracle.For(task.ADRChunk)

	outcomes := chunk.Fanout(ctx, groups, e.opts.concurrency, func(ctx context.Context, g chunk.Group) (adrChunk, error) {
		body, err := chunkJSON(g.Collection())
		if err != nil {
			return adrChunk{}, err
		}
		text, err := e.deps.Prompts.Render(prompt.ADRsChunk, map[string]any{
			"MaxADRs":   e.opts.maxADRs,
			"Guide":     s.ArchitectureGuide,
			"Artifacts": body,
		})
		if err != nil {
			return adrChunk{}, err
		}
		out, usage, err := oracle.Ask(ctx, client, "", text)
		if err != nil {
			return adrChunk{Usage: usage}, err
		}
		adrs, err := parseADRs(out)
		return adrChunk{ADRs: adrs, Usage: usage}, err
	})

	adrs := make([]ADR, 0)
	for _, o := range outcomes {
		s.AddUsage(o.Value.Usage)
		if o.Err != nil {
			e.logger.Warn("chunk failed", "run_id", s.RunID, "node", NodeADRs, "chunk_index", o.Group.Index, "error", o.Err)
			e.events.chunkFailed(ctx, s, NodeADRs, o.Group.Index, o.Err)
			continue
		}
		adrs = append(adrs, o.Value.ADRs...)
	}
	s.ADRs = adrs

	return completed(s, map[string]any{
		"count":         len(adrs),
		"chunks":        len(groups),
		"chunks_failed": len(chunk.Failures(outcomes)),
	})
}

// parseADRs decodes {"adrs": [...]} from generated text. Records without a
// title are rejected.
func parseADRs(text string) ([]ADR, error) {
	var batch adrBatch
	if err := oracle.DecodeJSON(text, &batch); err != nil {
		return nil, err
	}
	for i, adr := range batch.ADRs {
		if strings.TrimSpace(adr.Title) == "" {
			return nil, &oracle.Error{Kind: oracle.ErrMalformedOutput, Err: errors.New("adr without title")}
		}
		batch.ADRs[i].Title = strings.TrimSpace(adr.Title)
	}
	return batch.ADRs, nil
}
