package dap

import (
	"path/filepath"

	"github.com/google/go-dap"

	"github.com/ctagard/brs-dap/internal/errors"
	"github.com/ctagard/brs-dap/pkg/types"
)

// translateBreakpoints converts store breakpoints to DAP breakpoints.
func translateBreakpoints(path string, bps []types.Breakpoint) []dap.Breakpoint {
	out := make([]dap.Breakpoint, len(bps))
	for i, bp := range bps {
		out[i] = dap.Breakpoint{
			Id:       bp.ID,
			Verified: bp.Verified,
			Line:     bp.Line,
			Source:   &dap.Source{Name: filepath.Base(path), Path: path},
		}
	}
	return out
}

// inRequestOrder lines bps up with the requested lines, one entry per
// request entry. Duplicate lines share a breakpoint; lines the store
// ignored come back unverified. An empty bps means nothing was stored and
// is returned as is.
func inRequestOrder(lines []int, bps []types.Breakpoint) []types.Breakpoint {
	if len(bps) == 0 {
		return bps
	}
	byLine := make(map[int]types.Breakpoint, len(bps))
	for _, bp := range bps {
		byLine[bp.Line] = bp
	}
	out := make([]types.Breakpoint, len(lines))
	for i, l := range lines {
		bp, ok := byLine[l]
		if !ok {
			bp = types.Breakpoint{Line: l}
		}
		out[i] = bp
	}
	return out
}

// translateStackFrames converts controller frames to DAP frames. Frames whose
// file could not be mapped back to the project keep the device path as their
// name and are de-emphasised.
func translateStackFrames(frames []types.StackFrame) []dap.StackFrame {
	out := make([]dap.StackFrame, len(frames))
	for i, f := range frames {
		sf := dap.StackFrame{
			Id:     f.ID,
			Name:   f.Name,
			Line:   f.Line,
			Column: f.Column,
		}
		if f.Resolved {
			sf.Source = &dap.Source{Name: filepath.Base(f.Path), Path: f.Path}
		} else {
			sf.Source = &dap.Source{Name: f.Path, PresentationHint: "deemphasize"}
			sf.PresentationHint = "subtle"
		}
		out[i] = sf
	}
	return out
}

func translateScopes(scopes []types.Scope) []dap.Scope {
	out := make([]dap.Scope, len(scopes))
	for i, s := range scopes {
		out[i] = dap.Scope{
			Name:               s.Name,
			PresentationHint:   "locals",
			VariablesReference: s.VariablesReference,
			Expensive:          s.Expensive,
		}
	}
	return out
}

func translateVariables(vars []types.Variable) []dap.Variable {
	out := make([]dap.Variable, len(vars))
	for i, v := range vars {
		dv := dap.Variable{
			Name:               v.Name,
			Value:              v.Value,
			Type:               v.Type,
			EvaluateName:       v.EvaluateName,
			VariablesReference: v.VariablesReference,
			IndexedVariables:   v.IndexedVariables,
			NamedVariables:     v.NamedVariables,
		}
		if v.HighLevelType == types.HighLevelFunction {
			dv.PresentationHint = &dap.VariablePresentationHint{Kind: "method"}
		}
		out[i] = dv
	}
	return out
}

// pageStackFrames applies the startFrame/levels window of a stackTrace request.
func pageStackFrames(frames []dap.StackFrame, start, levels int) []dap.StackFrame {
	if start < 0 {
		start = 0
	}
	if start > len(frames) {
		start = len(frames)
	}
	end := len(frames)
	if levels > 0 && start+levels < end {
		end = start + levels
	}
	return frames[start:end]
}

// pageVariables applies the start/count window of a variables request.
func pageVariables(vars []dap.Variable, start, count int) []dap.Variable {
	if start < 0 {
		start = 0
	}
	if start > len(vars) {
		start = len(vars)
	}
	end := len(vars)
	if count > 0 && start+count < end {
		end = start + count
	}
	return vars[start:end]
}

// Error message ids by class, so an IDE can tell them apart.
const (
	errorIDGeneric   = 1000
	errorIDLaunch    = 1001
	errorIDTiming    = 1002
	errorIDDevice    = 1003
	errorIDParameter = 1004
)

// translateError converts err to the body of a DAP error response.
func translateError(err error) *dap.ErrorMessage {
	de := errors.FromError(err)
	id := errorIDGeneric
	switch de.Code {
	case errors.CodeEntryPointNotFound, errors.CodeDeployFailed, errors.CodeInjectFailed,
		errors.CodeAdapterNotSupported, errors.CodeAdapterConnectFailed, errors.CodeCompileFailed,
		errors.CodeAlreadyLaunched, errors.CodeSessionLimitReached:
		id = errorIDLaunch
	case errors.CodeBreakpointsLocked, errors.CodeNotSuspended, errors.CodeSessionTerminated:
		id = errorIDTiming
	case errors.CodeConnectionLost, errors.CodeCannotContinue, errors.CodeDeviceRequest,
		errors.CodeEvaluationFailed, errors.CodeStepFailed:
		id = errorIDDevice
	case errors.CodeMissingParameter, errors.CodeInvalidParameter, errors.CodeConfigInvalid,
		errors.CodeMissingInputs:
		id = errorIDParameter
	}

	return &dap.ErrorMessage{
		Id:        id,
		Format:    de.Error(),
		Variables: map[string]string{"code": string(de.Code)},
		ShowUser:  id == errorIDLaunch,
	}
}
