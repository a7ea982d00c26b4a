// Package runner executes external programs (plantuml, wkhtmltopdf) behind an
// interface so callers can substitute MockRunner in tests.
package runner

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"sync"
)

// Runner executes commands.
type Runner interface {
	// Run executes name with args in dir and returns trimmed combined output.
	// An empty dir uses the current working directory.
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// CommandError is returned when a command exits unsuccessfully.
type CommandError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

// Error returns the command output when present, since tools report their
// failure reason there.
func (e *CommandError) Error() string {
	if e.Output != "" {
		return e.Output
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "command failed"
}

// Unwrap returns the underlying exec error.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()
	output := strings.TrimSpace(out.String())
	if err != nil {
		return output, &CommandError{
			Command: name,
			Args:    args,
			Output:  output,
			Err:     err,
		}
	}
	return output, nil
}

// =============================================================================
// MockRunner
// =============================================================================

// MockResponse is a canned result for MockRunner.
type MockResponse struct {
	Stdout string
	Err    error
}

// MockCall records one invocation.
type MockCall struct {
	WorkDir string
	Command string
	Args    []string
}

// MockRunner returns canned responses and records calls.
//
// Lookup order: exact "name arg..." key, then "name", then "*", then
// DefaultResponse.
type MockRunner struct {
	Responses       map[string]MockResponse
	DefaultResponse MockResponse
	Calls           []MockCall

	// OnRun, when set, is invoked for every call before the response is
	// returned. Tests use it to create files a real tool would produce.
	OnRun func(call MockCall)

	mu sync.Mutex
}

// NewMockRunner creates an empty MockRunner.
func NewMockRunner() *MockRunner {
	return &MockRunner{Responses: make(map[string]MockResponse)}
}

// MockExpectation configures the response for one key.
type MockExpectation struct {
	runner *MockRunner
	key    string
}

// OnCommand starts an expectation for name with exactly these args.
func (m *MockRunner) OnCommand(name string, args ...string) *MockExpectation {
	return &MockExpectation{runner: m, key: commandKey(name, args)}
}

// OnAnyCommand starts a wildcard expectation.
func (m *MockRunner) OnAnyCommand() *MockExpectation {
	return &MockExpectation{runner: m, key: "*"}
}

// Return sets the response for the expectation.
func (e *MockExpectation) Return(stdout string, err error) {
	e.runner.mu.Lock()
	defer e.runner.mu.Unlock()
	e.runner.Responses[e.key] = MockResponse{Stdout: stdout, Err: err}
}

// Run implements Runner.
func (m *MockRunner) Run(_ context.Context, dir, name string, args ...string) (string, error) {
	call := MockCall{WorkDir: dir, Command: name, Args: args}

	m.mu.Lock()
	m.Calls = append(m.Calls, call)
	resp, ok := m.Responses[commandKey(name, args)]
	if !ok {
		resp, ok = m.Responses[name]
	}
	if !ok {
		resp, ok = m.Responses["*"]
	}
	if !ok {
		resp = m.DefaultResponse
	}
	hook := m.OnRun
	m.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	return resp.Stdout, resp.Err
}

// WasCalled reports whether a call matched name and, when given, a prefix of
// its args.
func (m *MockRunner) WasCalled(name string, args ...string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Calls {
		if c.Command != name {
			continue
		}
		if len(args) == 0 {
			return true
		}
		if len(c.Args) >= len(args) && argsMatch(c.Args[:len(args)], args) {
			return true
		}
	}
	return false
}

// CallCount returns the number of calls to name.
func (m *MockRunner) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Command == name {
			n++
		}
	}
	return n
}

func commandKey(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func argsMatch(actual, expected []string) bool {
	if len(actual) != len(expected) {
		return false
	}
	for i := range actual {
		if actual[i] != expected[i] {
			return false
		}
	}
	return true
}
