// Package oracle wraps the text-generation clients used by the workflow
// stages.
//
// Any value with flowgraph's Complete method is a Client, so llm.ClaudeCLI and
// llm.MockClient work unchanged alongside the OpenAI-compatible client in this
// package. Failures are classified into ErrTimeout, ErrRateLimited and
// ErrMalformedOutput so stages can report them per chunk.
//
// A Provider chooses the client for each task.Type:
//
//	p := oracle.NewOpenAIProvider(oracle.OpenAIConfig{APIKey: key, Model: "gpt-4o"}, "gpt-4o-mini")
//	text, usage, err := oracle.Ask(ctx, p.For(task.GuideChunk), "", prompt)
package oracle
