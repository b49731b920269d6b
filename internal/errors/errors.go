// Package errors provides structured error types for the brs-dap bridge.
// Every error carries a machine-readable code and a hint telling the user what
// to change, and maps onto one of four classes: fatal launch errors,
// protocol-timing errors, path resolution problems and device runtime errors.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of error for programmatic handling
type ErrorCode string

const (
	// Session errors
	CodeSessionNotFound     ErrorCode = "SESSION_NOT_FOUND"
	CodeSessionLimitReached ErrorCode = "SESSION_LIMIT_REACHED"
	CodeSessionTerminated   ErrorCode = "SESSION_TERMINATED"
	CodeAlreadyLaunched     ErrorCode = "ALREADY_LAUNCHED"

	// Fatal launch errors
	CodeEntryPointNotFound   ErrorCode = "ENTRY_POINT_NOT_FOUND"
	CodeDeployFailed         ErrorCode = "DEPLOY_FAILED"
	CodeInjectFailed         ErrorCode = "INJECT_FAILED"
	CodeAdapterNotSupported  ErrorCode = "ADAPTER_NOT_SUPPORTED"
	CodeAdapterConnectFailed ErrorCode = "ADAPTER_CONNECT_FAILED"
	CodeCompileFailed        ErrorCode = "COMPILE_FAILED"

	// Protocol-timing errors
	CodeBreakpointsLocked ErrorCode = "BREAKPOINTS_LOCKED"
	CodeNotSuspended      ErrorCode = "NOT_SUSPENDED"

	// Device errors
	CodeConnectionLost ErrorCode = "CONNECTION_LOST"
	CodeCannotContinue ErrorCode = "CANNOT_CONTINUE"
	CodeDeviceRequest  ErrorCode = "DEVICE_REQUEST_FAILED"

	// Parameter errors
	CodeMissingParameter ErrorCode = "MISSING_PARAMETER"
	CodeInvalidParameter ErrorCode = "INVALID_PARAMETER"

	// Permission errors
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// Configuration errors
	CodeConfigNotFound ErrorCode = "CONFIG_NOT_FOUND"
	CodeConfigInvalid  ErrorCode = "CONFIG_INVALID"
	CodeMissingInputs  ErrorCode = "MISSING_INPUTS"

	// Runtime errors
	CodeEvaluationFailed ErrorCode = "EVALUATION_FAILED"
	CodeStepFailed       ErrorCode = "STEP_FAILED"
)

// DebugError is a structured error type that includes helpful information
// for the user to understand what went wrong and how to fix it.
type DebugError struct {
	// Code is a machine-readable error category
	Code ErrorCode `json:"code"`

	// Message is a human-readable description of what went wrong
	Message string `json:"message"`

	// Hint provides actionable guidance on how to fix the error
	Hint string `json:"hint,omitempty"`

	// Details contains additional context (e.g., the invalid value, expected format)
	Details map[string]interface{} `json:"details,omitempty"`

	// Cause is the underlying error, if any
	Cause error `json:"-"`
}

// Error implements the error interface
func (e *DebugError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)

	if e.Hint != "" {
		sb.WriteString(" | Hint: ")
		sb.WriteString(e.Hint)
	}

	return sb.String()
}

// Unwrap returns the underlying error for error chaining
func (e *DebugError) Unwrap() error {
	return e.Cause
}

// WithDetails adds details to the error
func (e *DebugError) WithDetails(key string, value interface{}) *DebugError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying cause
func (e *DebugError) WithCause(err error) *DebugError {
	e.Cause = err
	return e
}

// IsFatal reports whether the error ends the session it occurred in.
func (e *DebugError) IsFatal() bool {
	switch e.Code {
	case CodeEntryPointNotFound, CodeDeployFailed, CodeInjectFailed,
		CodeAdapterNotSupported, CodeAdapterConnectFailed, CodeCompileFailed,
		CodeConnectionLost, CodeCannotContinue, CodeSessionTerminated:
		return true
	}
	return false
}

// --- Session Errors ---

// SessionNotFound creates an error for when a session ID doesn't exist
func SessionNotFound(sessionID string) *DebugError {
	return &DebugError{
		Code:    CodeSessionNotFound,
		Message: fmt.Sprintf("session '%s' not found", sessionID),
		Hint:    "Use session_list to see active sessions. Sessions are created when an editor connects to the bridge.",
		Details: map[string]interface{}{
			"sessionId": sessionID,
		},
	}
}

// SessionLimitReached creates an error when max sessions is reached
func SessionLimitReached(maxSessions int) *DebugError {
	return &DebugError{
		Code:    CodeSessionLimitReached,
		Message: fmt.Sprintf("maximum number of sessions (%d) reached", maxSessions),
		Hint:    "Stop an existing debug session before starting a new one, or raise maxSessions in the configuration.",
		Details: map[string]interface{}{
			"maxSessions": maxSessions,
		},
	}
}

// SessionTerminated creates an error for requests against a finished session
func SessionTerminated(sessionID string) *DebugError {
	return &DebugError{
		Code:    CodeSessionTerminated,
		Message: fmt.Sprintf("session '%s' has terminated", sessionID),
		Hint:    "Device debugging is single-shot. Start a new debug session to run the program again.",
		Details: map[string]interface{}{
			"sessionId": sessionID,
		},
	}
}

// AlreadyLaunched creates an error for a second launch request in one session
func AlreadyLaunched() *DebugError {
	return &DebugError{
		Code:    CodeAlreadyLaunched,
		Message: "the session has already been launched",
		Hint:    "Each debug session deploys and runs the program once. Restart the debug session instead.",
	}
}

// --- Launch Errors ---

// EntryPointNotFound creates an error when no entry routine exists in the project
func EntryPointNotFound(rootDir string, routines []string) *DebugError {
	return &DebugError{
		Code:    CodeEntryPointNotFound,
		Message: fmt.Sprintf("no entry routine (%s) found in %s", strings.Join(routines, " or "), rootDir),
		Hint:    "Declare 'sub Main()' or 'sub RunUserInterface()' in a .brs file under source/, and check the files globs of the launch configuration.",
		Details: map[string]interface{}{
			"rootDir":  rootDir,
			"routines": routines,
		},
	}
}

// DeployFailed creates an error when staging or packaging fails
func DeployFailed(step string, err error) *DebugError {
	return &DebugError{
		Code:    CodeDeployFailed,
		Message: fmt.Sprintf("deploy failed while %s: %v", step, err),
		Hint:    "Check that rootDir exists and is readable and that the staging and out folders are writable.",
		Cause:   err,
		Details: map[string]interface{}{
			"step": step,
		},
	}
}

// InjectFailed creates an error when a staged file cannot be rewritten
func InjectFailed(path string, err error) *DebugError {
	return &DebugError{
		Code:    CodeInjectFailed,
		Message: fmt.Sprintf("failed to inject breakpoints into %s: %v", path, err),
		Hint:    "The staged copy of the file could not be rewritten. Check permissions on the staging folder.",
		Cause:   err,
		Details: map[string]interface{}{
			"path": path,
		},
	}
}

// AdapterNotSupported creates an error for an unknown device adapter name
func AdapterNotSupported(name string, supported []string) *DebugError {
	return &DebugError{
		Code:    CodeAdapterNotSupported,
		Message: fmt.Sprintf("no device adapter registered as %q", name),
		Hint:    fmt.Sprintf("Registered adapters are: %s. Set 'adapter' in the server configuration.", strings.Join(supported, ", ")),
		Details: map[string]interface{}{
			"requestedAdapter":  name,
			"supportedAdapters": supported,
		},
	}
}

// AdapterConnectFailed creates an error when connecting to the device fails
func AdapterConnectFailed(host string, err error) *DebugError {
	return &DebugError{
		Code:    CodeAdapterConnectFailed,
		Message: fmt.Sprintf("failed to connect to the device debugger at %s: %v", host, err),
		Hint:    "Check that the device is powered on, reachable on the network, and in developer mode.",
		Cause:   err,
		Details: map[string]interface{}{
			"host": host,
		},
	}
}

// CompileFailed creates an error when the device rejects the program
func CompileFailed(count int) *DebugError {
	return &DebugError{
		Code:    CodeCompileFailed,
		Message: fmt.Sprintf("the device reported %d compile error(s)", count),
		Hint:    "Fix the errors listed in the debug console and start a new session.",
		Details: map[string]interface{}{
			"count": count,
		},
	}
}

// --- Protocol-timing Errors ---

// BreakpointsLocked creates an error for breakpoint changes after launch
func BreakpointsLocked() *DebugError {
	return &DebugError{
		Code:    CodeBreakpointsLocked,
		Message: "breakpoints cannot be changed after the program has been launched",
		Hint:    "The device only honours breakpoints compiled into the deployed source. Restart the debug session to apply new breakpoints.",
	}
}

// NotSuspended creates an error for introspection while the program runs
func NotSuspended(operation string) *DebugError {
	return &DebugError{
		Code:    CodeNotSuspended,
		Message: fmt.Sprintf("%s is unavailable while the program is running", operation),
		Hint:    "Pause the program or wait for a breakpoint before inspecting state.",
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// --- Device Errors ---

// ConnectionLost creates an error when the device closes the debug connection
func ConnectionLost(host string) *DebugError {
	return &DebugError{
		Code:    CodeConnectionLost,
		Message: fmt.Sprintf("lost the debug connection to %s", host),
		Hint:    "The session cannot be resumed. Start a new debug session.",
		Details: map[string]interface{}{
			"host": host,
		},
	}
}

// CannotContinue creates an error when the device cannot resume after a crash
func CannotContinue() *DebugError {
	return &DebugError{
		Code:    CodeCannotContinue,
		Message: "the device reported an unrecoverable runtime error and cannot continue",
		Hint:    "Inspect the last stopped location, fix the error and start a new debug session.",
	}
}

// DeviceRequestFailed creates an error for a failed device operation
func DeviceRequestFailed(operation string, err error) *DebugError {
	return &DebugError{
		Code:    CodeDeviceRequest,
		Message: fmt.Sprintf("device %s request failed: %v", operation, err),
		Hint:    "The device debugger may be busy or disconnected. Check the debug console output.",
		Cause:   err,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// --- Parameter Errors ---

// MissingParameter creates an error for missing required parameters
func MissingParameter(paramName, description string) *DebugError {
	return &DebugError{
		Code:    CodeMissingParameter,
		Message: fmt.Sprintf("required parameter '%s' is missing", paramName),
		Hint:    description,
		Details: map[string]interface{}{
			"parameter": paramName,
		},
	}
}

// InvalidParameter creates an error for invalid parameter values
func InvalidParameter(paramName string, value interface{}, expected string) *DebugError {
	return &DebugError{
		Code:    CodeInvalidParameter,
		Message: fmt.Sprintf("invalid value for parameter '%s': %v", paramName, value),
		Hint:    fmt.Sprintf("Expected: %s", expected),
		Details: map[string]interface{}{
			"parameter": paramName,
			"value":     value,
			"expected":  expected,
		},
	}
}

// --- Permission Errors ---

// PermissionDenied creates an error for operations disabled by the server mode
func PermissionDenied(operation, mode string) *DebugError {
	return &DebugError{
		Code:    CodePermissionDenied,
		Message: fmt.Sprintf("%s is not allowed in current server mode", operation),
		Hint:    fmt.Sprintf("This operation is not allowed in '%s' mode. Start the server with --mode full to enable control tools.", mode),
		Details: map[string]interface{}{
			"operation": operation,
			"mode":      mode,
		},
	}
}

// --- Configuration Errors ---

// ConfigNotFound creates an error for missing launch.json configurations
func ConfigNotFound(configName string, availableConfigs []string) *DebugError {
	var hint string
	if len(availableConfigs) > 0 {
		hint = fmt.Sprintf("Available configurations: %s", strings.Join(availableConfigs, ", "))
	} else {
		hint = "No configurations found in launch.json. Create a brightscript launch configuration first."
	}

	return &DebugError{
		Code:    CodeConfigNotFound,
		Message: fmt.Sprintf("configuration '%s' not found in launch.json", configName),
		Hint:    hint,
		Details: map[string]interface{}{
			"configName":       configName,
			"availableConfigs": availableConfigs,
		},
	}
}

// ConfigInvalid creates an error for invalid configuration
func ConfigInvalid(configName, reason string) *DebugError {
	return &DebugError{
		Code:    CodeConfigInvalid,
		Message: fmt.Sprintf("configuration '%s' is invalid: %s", configName, reason),
		Hint:    "Check the launch configuration for syntax errors and ensure host and rootDir are set.",
		Details: map[string]interface{}{
			"configName": configName,
			"reason":     reason,
		},
	}
}

// MissingInputs creates an error for missing input values
func MissingInputs(inputs []string) *DebugError {
	return &DebugError{
		Code:    CodeMissingInputs,
		Message: fmt.Sprintf("missing required input values: %s", strings.Join(inputs, ", ")),
		Hint:    "Provide the missing values with --input name=value.",
		Details: map[string]interface{}{
			"missingInputs": inputs,
		},
	}
}

// --- Runtime Errors ---

// EvaluationFailed creates an error for expression evaluation failures
func EvaluationFailed(expression string, err error) *DebugError {
	return &DebugError{
		Code:    CodeEvaluationFailed,
		Message: fmt.Sprintf("failed to evaluate expression '%s': %v", expression, err),
		Hint:    "Check that the expression is valid BrightScript and that referenced variables are in scope.",
		Cause:   err,
		Details: map[string]interface{}{
			"expression": expression,
		},
	}
}

// StepFailed creates an error for step failures
func StepFailed(stepType string, err error) *DebugError {
	return &DebugError{
		Code:    CodeStepFailed,
		Message: fmt.Sprintf("%s failed: %v", stepType, err),
		Hint:    "The device may have left the debugger prompt. Check the debug console output.",
		Cause:   err,
		Details: map[string]interface{}{
			"stepType": stepType,
		},
	}
}

// --- Helper for wrapping generic errors ---

// Wrap wraps a generic error with context
func Wrap(code ErrorCode, message string, hint string, err error) *DebugError {
	return &DebugError{
		Code:    code,
		Message: message,
		Hint:    hint,
		Cause:   err,
	}
}

// FromError creates a DebugError from a generic error, attempting to preserve any existing structure
func FromError(err error) *DebugError {
	var de *DebugError
	if stderrors.As(err, &de) {
		return de
	}
	return Wrap("UNKNOWN_ERROR", err.Error(),
		"An unexpected error occurred. Please check the error message for details.", err)
}

// HasCode reports whether err is a DebugError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var de *DebugError
	return stderrors.As(err, &de) && de.Code == code
}

// IsDebugError reports whether err wraps a DebugError.
func IsDebugError(err error) bool {
	var de *DebugError
	return stderrors.As(err, &de)
}
