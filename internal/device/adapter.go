// Package device defines the connection to a device's debugger console.
//
// The console protocol itself lives outside this module: an implementation
// of Adapter speaks it and registers a Dialer under a name. The session
// controller only sees the operations and the event stream below.
package device

import (
	"context"

	"github.com/ctagard/brs-dap/pkg/types"
)

// Adapter is a live debug connection to one device.
//
// Every method that talks to the device blocks until the device answers or
// ctx ends. Events delivers asynchronous notifications; the channel is
// closed when the connection closes, for whatever reason.
type Adapter interface {
	Connect(ctx context.Context, host string) error

	Continue(ctx context.Context) error
	Pause(ctx context.Context) error
	StepOver(ctx context.Context) error
	StepInto(ctx context.Context) error
	StepOut(ctx context.Context) error

	Threads(ctx context.Context) ([]Thread, error)
	StackTrace(ctx context.Context) ([]Frame, error)
	// ScopeVariables lists the names of the locals of the selected frame.
	ScopeVariables(ctx context.Context) ([]string, error)
	GetVariable(ctx context.Context, expression string) (*EvaluationResult, error)
	Evaluate(ctx context.Context, expression string) (string, error)

	// IsAtDebuggerPrompt reports whether the device console is waiting for
	// debugger input.
	IsAtDebuggerPrompt() bool
	Events() <-chan Event
	Close() error
}

// Thread is a device thread as reported by the console.
type Thread struct {
	ID         int
	FilePath   string
	LineNumber int
	IsSelected bool
}

// Frame is one device stack frame. FilePath is in device coordinates and
// LineNumber counts injected lines.
type Frame struct {
	Index              int
	FilePath           string
	LineNumber         int
	FunctionIdentifier string
}

// EvaluationResult is the device's answer to a variable query. Children
// holds one level of members for arrays and objects; array children are
// named by index.
type EvaluationResult struct {
	Name          string
	Value         string
	Type          string
	HighLevelType types.HighLevelType
	Children      []EvaluationResult
	// ElementCount is the number of children the device reported, which can
	// exceed len(Children) when the console truncates the listing.
	ElementCount int
}

// Event is a notification from the device. The concrete types are
// SuspendEvent, RuntimeErrorEvent, CompileErrorsEvent, CannotContinueEvent
// and ConsoleOutputEvent.
type Event interface {
	isEvent()
}

// SuspendEvent reports that execution stopped and the console is at the
// debugger prompt.
type SuspendEvent struct {
	ThreadID int
}

// RuntimeErrorEvent reports an uncaught runtime error. A SuspendEvent
// follows when the program can still be inspected.
type RuntimeErrorEvent struct {
	Message   string
	ErrorCode string
}

// CompileError is one problem the device found in the deployed package.
type CompileError struct {
	Path    string
	Line    int
	Message string
}

// CompileErrorsEvent reports that the package did not compile.
type CompileErrorsEvent struct {
	Errors []CompileError
}

// CannotContinueEvent reports that the program cannot be resumed.
type CannotContinueEvent struct{}

// ConsoleOutputEvent carries raw console text.
type ConsoleOutputEvent struct {
	Text string
}

func (SuspendEvent) isEvent()        {}
func (RuntimeErrorEvent) isEvent()   {}
func (CompileErrorsEvent) isEvent()  {}
func (CannotContinueEvent) isEvent() {}
func (ConsoleOutputEvent) isEvent()  {}
