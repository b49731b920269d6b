package session

import "github.com/ctagard/brs-dap/pkg/types"

// transitions lists the states each state may move to.
var transitions = map[types.SessionState][]types.SessionState{
	types.SessionStateIdle:      {types.SessionStateLaunching, types.SessionStateTerminated},
	types.SessionStateLaunching: {types.SessionStateConnected, types.SessionStateTerminated},
	types.SessionStateConnected: {types.SessionStateSuspended, types.SessionStateTerminated},
	types.SessionStateSuspended: {types.SessionStateRunning, types.SessionStateTerminated},
	types.SessionStateRunning:   {types.SessionStateSuspended, types.SessionStateTerminated},
}

// canTransition reports whether from may move to to.
func canTransition(from, to types.SessionState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// isLive reports whether a device connection exists in state s.
func isLive(s types.SessionState) bool {
	switch s {
	case types.SessionStateConnected, types.SessionStateSuspended, types.SessionStateRunning:
		return true
	}
	return false
}

// executing reports whether the program runs on the device in state s.
func executing(s types.SessionState) bool {
	return s == types.SessionStateConnected || s == types.SessionStateRunning
}
