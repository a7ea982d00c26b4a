package task

import (
	"fmt"

	"github.com/randalmurphal/llmkit/model"
)

// Type represents the kind of generation a stage is requesting.
// This determines which model tier is appropriate.
type Type string

const (
	// Whole-document reasoning
	GuideSynthesis    Type = "guide_synthesis"
	TechStackGuidance Type = "tech_stack_guidance"

	// Per-chunk generation
	GuideChunk Type = "guide_chunk"
	ADRChunk   Type = "adr_chunk"

	// Structured, template-shaped output
	SystemDiagram Type = "system_diagram"
)

// All lists every task type in pipeline order.
var All = []Type{GuideChunk, GuideSynthesis, ADRChunk, TechStackGuidance, SystemDiagram}

// DefaultModelMap maps task types to default Claude models.
var DefaultModelMap = map[Type]model.ModelName{
	GuideSynthesis:    model.ModelOpus,
	TechStackGuidance: model.ModelOpus,
	GuideChunk:        model.ModelSonnet,
	ADRChunk:          model.ModelSonnet,
	SystemDiagram:     model.ModelHaiku,
}

// Parse converts a string into a known Type.
func Parse(s string) (Type, error) {
	for _, t := range All {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task type %q", s)
}

// TierForTask returns the appropriate tier for a task type.
func TierForTask(t Type) model.Tier {
	switch t {
	case GuideSynthesis, TechStackGuidance:
		return model.TierThinking
	case SystemDiagram:
		return model.TierFast
	default:
		return model.TierDefault
	}
}

// SelectModel selects the Claude model for a task type.
// Uses the default model map unless the type is unknown.
func SelectModel(t Type) model.ModelName {
	if m, ok := DefaultModelMap[t]; ok {
		return m
	}
	switch TierForTask(t) {
	case model.TierThinking:
		return model.ModelOpus
	case model.TierFast:
		return model.ModelHaiku
	default:
		return model.ModelSonnet
	}
}
