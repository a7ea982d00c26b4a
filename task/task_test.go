package task

import (
	"testing"

	"github.com/randalmurphal/llmkit/model"
)

func TestTierForTask(t *testing.T) {
	tests := []struct {
		task Type
		want model.Tier
	}{
		{GuideSynthesis, model.TierThinking},
		{TechStackGuidance, model.TierThinking},
		{GuideChunk, model.TierDefault},
		{ADRChunk, model.TierDefault},
		{SystemDiagram, model.TierFast},
		{Type("unknown"), model.TierDefault},
	}
	for _, tt := range tests {
		if got := TierForTask(tt.task); got != tt.want {
			t.Errorf("TierForTask(%q) = %v, want %v", tt.task, got, tt.want)
		}
	}
}

func TestSelectModel(t *testing.T) {
	tests := []struct {
		task Type
		want model.ModelName
	}{
		{GuideSynthesis, model.ModelOpus},
		{GuideChunk, model.ModelSonnet},
		{SystemDiagram, model.ModelHaiku},
		{Type("unknown"), model.ModelSonnet},
	}
	for _, tt := range tests {
		if got := SelectModel(tt.task); got != tt.want {
			t.Errorf("SelectModel(%q) = %v, want %v", tt.task, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	for _, want := range All {
		got, err := Parse(string(want))
		if err != nil || got != want {
			t.Errorf("Parse(%q) = %q, %v", want, got, err)
		}
	}
	if _, err := Parse("implement"); err == nil {
		t.Error("Parse(implement) should fail")
	}
}
