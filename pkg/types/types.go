// Package types defines shared data types used across the brs-dap bridge.
//
// This package provides type definitions for:
//   - LaunchConfig: the resolved settings of one debug run
//   - SessionState: the controller's lifecycle states
//   - Breakpoint, Variable, StackFrame: values the controller hands to the IDE surface
//   - SessionInfo: summary information about a live session
//
// These types are shared by the controller, the DAP server and the MCP surface
// so none of them depends on another's concrete types.
package types

// ConsoleOutputMode controls how much device console text reaches the IDE.
type ConsoleOutputMode string

const (
	ConsoleOutputFull   ConsoleOutputMode = "full"   // everything the device prints
	ConsoleOutputNormal ConsoleOutputMode = "normal" // program output only
)

// LaunchConfig holds the settings of one debug run. It is owned by the session
// controller and must not change once the run has started.
type LaunchConfig struct {
	Host     string `json:"host"`
	Password string `json:"password,omitempty"`

	// RootDir is the folder that gets staged and deployed.
	RootDir string `json:"rootDir"`
	// DebugRootDir is the folder the IDE shows when a build step produces
	// RootDir from different sources. Empty when the two are the same.
	DebugRootDir string `json:"debugRootDir,omitempty"`
	// OutDir receives the packaged zip.
	OutDir string `json:"outDir,omitempty"`
	// StagingDir is where files are copied before injection. A temporary
	// folder is used when empty.
	StagingDir string `json:"stagingFolderPath,omitempty"`
	// Files are doublestar globs, relative to RootDir, selecting what to stage.
	Files []string `json:"files,omitempty"`

	StopOnEntry         bool              `json:"stopOnEntry"`
	ConsoleOutput       ConsoleOutputMode `json:"consoleOutput,omitempty"`
	RetainStagingFolder bool              `json:"retainStagingFolder,omitempty"`
}

// ClientRoot returns the root the IDE's paths live under.
func (c *LaunchConfig) ClientRoot() string {
	if c.DebugRootDir != "" {
		return c.DebugRootDir
	}
	return c.RootDir
}

// SessionState represents the lifecycle state of a debug session
type SessionState string

const (
	SessionStateIdle       SessionState = "idle"
	SessionStateLaunching  SessionState = "launching"
	SessionStateConnected  SessionState = "connected"
	SessionStateSuspended  SessionState = "suspended"
	SessionStateRunning    SessionState = "running"
	SessionStateTerminated SessionState = "terminated"
)

// SessionInfo represents information about a debug session
type SessionInfo struct {
	SessionID string       `json:"sessionId"`
	State     SessionState `json:"state"`
	Host      string       `json:"host,omitempty"`
	RootDir   string       `json:"rootDir,omitempty"`
}

// Breakpoint is a line breakpoint in a client source file.
type Breakpoint struct {
	ID       int  `json:"id"`
	Line     int  `json:"line"`
	Verified bool `json:"verified"`
	// Entry marks the synthetic breakpoint placed on the program's entry routine.
	Entry bool `json:"entry,omitempty"`
}

// HighLevelType classifies a device value for presentation.
type HighLevelType string

const (
	HighLevelPrimitive     HighLevelType = "primitive"
	HighLevelUninitialized HighLevelType = "uninitialized"
	HighLevelArray         HighLevelType = "array"
	HighLevelObject        HighLevelType = "object"
	HighLevelFunction      HighLevelType = "function"
)

// HasChildren reports whether values of this type can be expanded.
func (t HighLevelType) HasChildren() bool {
	return t == HighLevelArray || t == HighLevelObject
}

// Variable represents a variable as presented to the IDE.
type Variable struct {
	Name               string        `json:"name"`
	EvaluateName       string        `json:"evaluateName,omitempty"`
	Value              string        `json:"value"`
	Type               string        `json:"type,omitempty"`
	HighLevelType      HighLevelType `json:"highLevelType"`
	VariablesReference int           `json:"variablesReference"`
	IndexedVariables   int           `json:"indexedVariables,omitempty"`
	NamedVariables     int           `json:"namedVariables,omitempty"`
}

// Scope represents a variable scope
type Scope struct {
	Name               string `json:"name"`
	VariablesReference int    `json:"variablesReference"`
	Expensive          bool   `json:"expensive,omitempty"`
}

// Thread represents a device thread.
type Thread struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// StackFrame represents a stack frame translated to client coordinates.
type StackFrame struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Path     string `json:"path,omitempty"`
	Line     int    `json:"line"`
	Column   int    `json:"column,omitempty"`
	Resolved bool   `json:"resolved"`
}

// EvaluateResult represents the result of evaluating an expression
type EvaluateResult struct {
	Result             string `json:"result"`
	Type               string `json:"type,omitempty"`
	VariablesReference int    `json:"variablesReference"`
	IndexedVariables   int    `json:"indexedVariables,omitempty"`
	NamedVariables     int    `json:"namedVariables,omitempty"`
}
