// Package task classifies blueprint generation calls so the oracle provider
// can pick a model tier per call.
//
// Task types:
//   - GuideChunk: per-chunk artifact insights
//   - GuideSynthesis: the final architecture guide
//   - ADRChunk: structured decision records for one chunk
//   - TechStackGuidance: implementation guidance for the selected stack
//   - SystemDiagram: PlantUML component diagram for the selected stack
//
// Example usage:
//
//	tier := task.TierForTask(task.GuideSynthesis) // model.TierThinking
//	name := task.SelectModel(task.GuideChunk)     // model.ModelSonnet
package task
