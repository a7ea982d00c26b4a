// Package http is the JSON client blueprint uses for OpenAI-compatible
// endpoints, Jira, webhooks and Slack.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Sentinels an APIError unwraps to.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("authentication failed")
	ErrForbidden    = errors.New("permission denied")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrBadRequest   = errors.New("bad request")
	ErrServerError  = errors.New("server error")

	// ErrDecode marks a 2xx response whose body could not be decoded.
	ErrDecode = errors.New("malformed response")
)

// maxPlainBody caps how much of a non-JSON error body becomes the message.
const maxPlainBody = 200

// APIError is a non-2xx response.
type APIError struct {
	Service    string
	StatusCode int
	Endpoint   string
	Message    string

	// Type is the provider's error type, e.g. OpenAI's "insufficient_quota".
	Type string

	// Details lists per-field problems, e.g. Jira's "summary: is required".
	Details []string

	RequestID  string
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s API error (%d) at %s", e.Service, e.StatusCode, e.Endpoint)
	if e.RequestID != "" {
		fmt.Fprintf(&b, " [%s]", e.RequestID)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(e.Details, "; "))
		b.WriteString(")")
	}
	return b.String()
}

// Unwrap maps the status to a sentinel.
func (e *APIError) Unwrap() error {
	switch code := e.StatusCode; {
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return ErrBadRequest
	case code == http.StatusUnauthorized:
		return ErrUnauthorized
	case code == http.StatusForbidden:
		return ErrForbidden
	case code == http.StatusNotFound, code == http.StatusGone:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= http.StatusInternalServerError:
		return ErrServerError
	}
	return nil
}

// Retryable reports whether repeating the request may succeed.
func (e *APIError) Retryable() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= http.StatusInternalServerError
}

// newAPIError reads an error response. The body shapes understood are
//
//	{"message": "..."}                              GitLab, generic
//	{"error": "..."}                                generic
//	{"error": {"message": "...", "type": "..."}}    OpenAI
//	{"errorMessages": [...], "errors": {f: msg}}    Jira
//
// and plain text, as Slack webhooks answer.
func newAPIError(service, endpoint string, resp *http.Response) *APIError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	e := &APIError{
		Service:    service,
		StatusCode: resp.StatusCode,
		Endpoint:   endpoint,
		RequestID:  firstHeader(resp.Header, "X-Request-Id", "X-Arequestid"),
		RetryAfter: retryAfter(resp.Header),
	}
	e.Message, e.Type, e.Details = decodeErrorBody(body)
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

func decodeErrorBody(body []byte) (msg, typ string, details []string) {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return "", "", nil
	}

	var doc struct {
		Message       string            `json:"message"`
		Error         json.RawMessage   `json:"error"`
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		text := string(body)
		if len(text) > maxPlainBody {
			text = text[:maxPlainBody] + "..."
		}
		return text, "", nil
	}

	msg = doc.Message
	if msg == "" && len(doc.Error) > 0 {
		var s string
		var obj struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if json.Unmarshal(doc.Error, &s) == nil {
			msg = s
		} else if json.Unmarshal(doc.Error, &obj) == nil {
			msg, typ = obj.Message, obj.Type
		}
	}
	if msg == "" && len(doc.ErrorMessages) > 0 {
		msg = strings.Join(doc.ErrorMessages, "; ")
	}

	fields := make([]string, 0, len(doc.Errors))
	for f := range doc.Errors {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		details = append(details, f+": "+doc.Errors[f])
	}
	if msg == "" && len(details) > 0 {
		msg = "invalid fields"
	}
	return msg, typ, details
}

// DecodeError wraps a 2xx body that could not be decoded.
type DecodeError struct {
	Service string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Service, e.Err)
}

// Unwrap returns ErrDecode and the decoder error.
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// IsNotFound reports a 404 or 410.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnauthorized reports a 401.
func IsUnauthorized(err error) bool { return errors.Is(err, ErrUnauthorized) }

// IsRateLimited reports a 429.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// IsTimeout reports a deadline or network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsRetryable reports transient failures.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	return IsTimeout(err)
}
