package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	llm "github.com/randalmurphal/llmkit/claude"

	bphttp "github.com/randalmurphal/blueprint/http"
)

// Error kinds reported by text generation.
var (
	ErrTimeout         = errors.New("text generation timed out")
	ErrRateLimited     = errors.New("text generation rate limited")
	ErrMalformedOutput = errors.New("malformed text generation output")
)

// Client generates text.
type Client interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error)
}

// Error attaches an error kind to an underlying failure.
type Error struct {
	Kind error
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Classify tags err with a kind when one applies. Errors that already carry a
// kind, and unrecognised errors, are returned unchanged.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrRateLimited), errors.Is(err, ErrMalformedOutput):
		return err
	case bphttp.IsRateLimited(err):
		return &Error{Kind: ErrRateLimited, Err: err}
	case bphttp.IsTimeout(err):
		return &Error{Kind: ErrTimeout, Err: err}
	case errors.Is(err, bphttp.ErrDecode):
		return &Error{Kind: ErrMalformedOutput, Err: err}
	default:
		return err
	}
}

// Usage counts tokens consumed by one or more calls.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Add accumulates u2 into u.
func (u *Usage) Add(u2 Usage) {
	u.InputTokens += u2.InputTokens
	u.OutputTokens += u2.OutputTokens
}

// Ask sends prompt as a single user message and returns the generated text.
// Blank output is reported as ErrMalformedOutput.
func Ask(ctx context.Context, c Client, systemPrompt, prompt string) (string, Usage, error) {
	resp, err := c.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", Usage{}, Classify(err)
	}
	if resp == nil {
		return "", Usage{}, &Error{Kind: ErrMalformedOutput, Err: errors.New("no response")}
	}

	usage := Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens}
	if strings.TrimSpace(resp.Content) == "" {
		return "", usage, &Error{Kind: ErrMalformedOutput, Err: errors.New("empty response")}
	}
	return resp.Content, usage, nil
}

// =============================================================================
// Timeout
// =============================================================================

type timeoutClient struct {
	next    Client
	timeout time.Duration
}

// WithTimeout bounds every call to c. A call that exceeds the bound fails
// with ErrTimeout. A non-positive timeout returns c unchanged.
func WithTimeout(c Client, timeout time.Duration) Client {
	if timeout <= 0 {
		return c
	}
	return &timeoutClient{next: c, timeout: timeout}
}

func (c *timeoutClient) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.next.Complete(callCtx, req)
	if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return nil, &Error{Kind: ErrTimeout, Err: err}
	}
	return resp, err
}
