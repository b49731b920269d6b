// Package devicetest provides a scriptable in-memory device.Adapter.
package devicetest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ctagard/brs-dap/internal/device"
	"github.com/ctagard/brs-dap/pkg/types"
)

// Fake is a device.Adapter whose answers are set by the test. All fields
// may be set before Connect; afterwards use the setter methods.
type Fake struct {
	mu sync.Mutex

	ConnectErr error
	ThreadList []device.Thread
	Frames     []device.Frame
	Locals     []string
	Variables  map[string]*device.EvaluationResult
	Evals      map[string]string

	// BeforeGetVariable runs before every GetVariable answer, outside the lock.
	BeforeGetVariable func(expression string)

	atPrompt  bool
	host      string
	calls     map[string]int
	queries   map[string]int
	events    chan device.Event
	closeOnce sync.Once
}

// New returns a Fake with an event buffer large enough for any test.
func New() *Fake {
	return &Fake{
		Variables: make(map[string]*device.EvaluationResult),
		Evals:     make(map[string]string),
		calls:     make(map[string]int),
		queries:   make(map[string]int),
		events:    make(chan device.Event, 64),
	}
}

// Dialer returns a device.Dialer that always hands out f.
func (f *Fake) Dialer() device.Dialer {
	return func(*types.LaunchConfig, *slog.Logger) (device.Adapter, error) {
		return f, nil
	}
}

// Emit queues an event for the controller.
func (f *Fake) Emit(ev device.Event) {
	f.events <- ev
}

// Suspend marks the console as at the prompt and emits a SuspendEvent.
func (f *Fake) Suspend() {
	f.SetAtPrompt(true)
	f.Emit(device.SuspendEvent{ThreadID: 1})
}

// SetAtPrompt sets what IsAtDebuggerPrompt reports.
func (f *Fake) SetAtPrompt(v bool) {
	f.mu.Lock()
	f.atPrompt = v
	f.mu.Unlock()
}

// SetFrames replaces the stack trace.
func (f *Fake) SetFrames(frames ...device.Frame) {
	f.mu.Lock()
	f.Frames = frames
	f.mu.Unlock()
}

// SetVariable scripts a GetVariable answer.
func (f *Fake) SetVariable(expression string, v *device.EvaluationResult) {
	f.mu.Lock()
	f.Variables[expression] = v
	f.mu.Unlock()
}

// Host returns the host passed to Connect.
func (f *Fake) Host() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.host
}

// Calls returns how often op was invoked.
func (f *Fake) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Queries returns how often GetVariable was asked for expression.
func (f *Fake) Queries(expression string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[expression]
}

func (f *Fake) record(op string) {
	f.mu.Lock()
	f.calls[op]++
	f.mu.Unlock()
}

func (f *Fake) Connect(_ context.Context, host string) error {
	f.record("connect")
	f.mu.Lock()
	defer f.mu.Unlock()
	f.host = host
	return f.ConnectErr
}

func (f *Fake) resume(op string) error {
	f.record(op)
	f.SetAtPrompt(false)
	return nil
}

func (f *Fake) Continue(context.Context) error { return f.resume("continue") }
func (f *Fake) StepOver(context.Context) error { return f.resume("stepOver") }
func (f *Fake) StepInto(context.Context) error { return f.resume("stepInto") }
func (f *Fake) StepOut(context.Context) error  { return f.resume("stepOut") }

func (f *Fake) Pause(context.Context) error {
	f.record("pause")
	return nil
}

func (f *Fake) Threads(context.Context) ([]device.Thread, error) {
	f.record("threads")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]device.Thread(nil), f.ThreadList...), nil
}

func (f *Fake) StackTrace(context.Context) ([]device.Frame, error) {
	f.record("stackTrace")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]device.Frame(nil), f.Frames...), nil
}

func (f *Fake) ScopeVariables(context.Context) ([]string, error) {
	f.record("scopeVariables")
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.Locals...), nil
}

func (f *Fake) GetVariable(_ context.Context, expression string) (*device.EvaluationResult, error) {
	f.record("getVariable")
	f.mu.Lock()
	f.queries[expression]++
	hook := f.BeforeGetVariable
	v, ok := f.Variables[expression]
	f.mu.Unlock()

	if hook != nil {
		hook(expression)
	}
	if !ok {
		return nil, fmt.Errorf("variable %q is not defined", expression)
	}
	cp := *v
	return &cp, nil
}

func (f *Fake) Evaluate(_ context.Context, expression string) (string, error) {
	f.record("evaluate")
	f.mu.Lock()
	defer f.mu.Unlock()
	if out, ok := f.Evals[expression]; ok {
		return out, nil
	}
	return "", fmt.Errorf("cannot evaluate %q", expression)
}

func (f *Fake) IsAtDebuggerPrompt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.atPrompt
}

func (f *Fake) Events() <-chan device.Event {
	return f.events
}

// Close closes the event channel, like a dropped connection.
func (f *Fake) Close() error {
	f.record("close")
	f.closeOnce.Do(func() { close(f.events) })
	return nil
}
