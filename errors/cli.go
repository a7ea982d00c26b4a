package errors

import (
	"errors"
	"fmt"
	"strings"
)

// CLIError is a fatal CLI failure phrased for the operator.
type CLIError struct {
	// Err is the sentinel the error unwraps to, joined with the cause.
	Err error

	Message    string
	Suggestion string

	// Details carries the cause or one problem per line.
	Details string
}

func (e *CLIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Details != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Details)
	}
	if e.Suggestion != "" {
		sb.WriteString("\n\n")
		sb.WriteString(e.Suggestion)
	}
	return sb.String()
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// ErrorMessenger supplies message and suggestion pairs. target names the
// collaborator involved, such as "mongo store" or "RabbitMQ".
type ErrorMessenger interface {
	CredentialsRejectedMessage(target string) (message, suggestion string)
	PermissionDeniedMessage(target string) (message, suggestion string)
	ConnectionErrorMessage(target string) (message, suggestion string)
	TLSErrorMessage(target string) (message, suggestion string)
	TimeoutErrorMessage(target string) (message, suggestion string)
	InvalidConfigMessage() (message, suggestion string)
}

// DefaultMessenger holds the blueprint CLI wording.
type DefaultMessenger struct{}

func (DefaultMessenger) CredentialsRejectedMessage(target string) (string, string) {
	return fmt.Sprintf("The %s rejected the configured credentials.", target),
		"Check the credential settings with: blueprint config show --reveal"
}

func (DefaultMessenger) PermissionDeniedMessage(target string) (string, string) {
	return fmt.Sprintf("The %s denied access.", target),
		"The credentials are valid but lack the needed role, scope or file permission."
}

func (DefaultMessenger) ConnectionErrorMessage(target string) (string, string) {
	return fmt.Sprintf("Cannot connect to the %s.", target),
		"Check that:\n  - The service is running\n  - The URL in your configuration is correct\n  - Your network connection is working"
}

func (DefaultMessenger) TLSErrorMessage(target string) (string, string) {
	return fmt.Sprintf("TLS/certificate error connecting to the %s.", target),
		"Check that the server certificate is valid and trusted."
}

func (DefaultMessenger) TimeoutErrorMessage(target string) (string, string) {
	return fmt.Sprintf("Connection to the %s timed out.", target),
		"The service may be overloaded or unreachable.\nTry again in a moment."
}

func (DefaultMessenger) InvalidConfigMessage() (string, string) {
	return "The configuration is invalid.",
		"Inspect effective values with: blueprint config show\nSet missing values with: blueprint config set <key> <value>\nor the matching BLUEPRINT_<KEY> environment variable."
}

// Option configures wrapping.
type Option func(*wrapConfig)

type wrapConfig struct {
	messenger ErrorMessenger
}

// WithMessenger replaces DefaultMessenger.
func WithMessenger(m ErrorMessenger) Option {
	return func(c *wrapConfig) { c.messenger = m }
}

func messenger(opts []Option) ErrorMessenger {
	cfg := wrapConfig{messenger: DefaultMessenger{}}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg.messenger
}

// Wrap classifies err and phrases it for the operator. target names the
// collaborator the failing operation talked to. Errors that fit no class
// are returned unchanged.
func Wrap(err error, target string, opts ...Option) error {
	var cliErr *CLIError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &cliErr):
		return err
	case IsConfigError(err):
		return WrapConfigError(err, opts...)
	case IsAuthError(err), IsPermissionError(err):
		return WrapAuthError(err, target, opts...)
	default:
		return WrapConnectionError(err, target, opts...)
	}
}

// WrapAuthError phrases refused credentials and denied access.
func WrapAuthError(err error, target string, opts ...Option) error {
	m := messenger(opts)
	switch {
	case err == nil:
		return nil
	case IsAuthError(err):
		msg, suggestion := m.CredentialsRejectedMessage(target)
		return &CLIError{Err: errors.Join(ErrCredentialsRejected, err), Message: msg, Details: err.Error(), Suggestion: suggestion}
	case IsPermissionError(err):
		msg, suggestion := m.PermissionDeniedMessage(target)
		return &CLIError{Err: errors.Join(ErrPermissionDenied, err), Message: msg, Details: err.Error(), Suggestion: suggestion}
	}
	return err
}

// WrapConnectionError phrases unreachable collaborators. Certificate
// failures and timeouts get their own wording.
func WrapConnectionError(err error, target string, opts ...Option) error {
	if !IsConnectionError(err) {
		return err
	}
	m := messenger(opts)
	var msg, suggestion string
	switch {
	case IsTLSError(err):
		msg, suggestion = m.TLSErrorMessage(target)
	case IsTimeout(err):
		msg, suggestion = m.TimeoutErrorMessage(target)
	default:
		msg, suggestion = m.ConnectionErrorMessage(target)
	}
	return &CLIError{Err: errors.Join(ErrConnectionFailed, err), Message: msg, Details: err.Error(), Suggestion: suggestion}
}

// WrapConfigError lists each validation problem on its own line.
func WrapConfigError(err error, opts ...Option) error {
	if err == nil {
		return nil
	}
	msg, suggestion := messenger(opts).InvalidConfigMessage()
	return &CLIError{
		Err:        errors.Join(ErrInvalidConfig, err),
		Message:    msg,
		Details:    configDetails(err),
		Suggestion: suggestion,
	}
}

func configDetails(err error) string {
	lines := strings.Split(err.Error(), "\n")
	for i, l := range lines {
		lines[i] = "  - " + strings.TrimPrefix(l, "invalid configuration: ")
	}
	return strings.Join(lines, "\n")
}
