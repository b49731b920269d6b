package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// registerTools registers the inspection tools and, in full mode, the
// control tools.
func (s *Server) registerTools() {
	// Inspection (both modes)
	s.registerSessionList()
	s.registerSessionBreakpoints()
	s.registerSessionStack()
	s.registerSessionEvaluate()

	// Control (full mode only)
	if s.config.CanUseControlTools() {
		s.registerSessionContinue()
		s.registerSessionStep()
		s.registerSessionPause()
		s.registerSessionDisconnect()
	}
}

func sessionIDParam() mcp.ToolOption {
	return mcp.WithString("sessionId",
		mcp.Required(),
		mcp.Description("Session ID from session_list"),
	)
}

func (s *Server) registerSessionList() {
	tool := mcp.NewTool("session_list",
		mcp.WithDescription("List the debug sessions opened by IDEs, with their state (idle, launching, connected, suspended, running) and target device."),
	)
	s.mcpServer.AddTool(tool, s.handleSessionList)
}

func (s *Server) registerSessionBreakpoints() {
	tool := mcp.NewTool("session_breakpoints",
		mcp.WithDescription("Show the breakpoints of a session by source file. After launch this includes the entry breakpoint placed on Main or RunUserInterface."),
		sessionIDParam(),
	)
	s.mcpServer.AddTool(tool, s.handleSessionBreakpoints)
}

func (s *Server) registerSessionStack() {
	tool := mcp.NewTool("session_stack",
		mcp.WithDescription("Get the call stack of a suspended session in source coordinates, with the locals of the top frame. Empty unless the session is suspended."),
		sessionIDParam(),
		mcp.WithNumber("maxStackDepth",
			mcp.Description("Maximum number of frames to return (default: 20)"),
		),
		mcp.WithBoolean("expandVariables",
			mcp.Description("Include the locals of the top frame (default: true)"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSessionStack)
}

func (s *Server) registerSessionEvaluate() {
	tool := mcp.NewTool("session_evaluate",
		mcp.WithDescription("Evaluate a BrightScript expression in a suspended session. Variables such as m.top or list[0] are looked up; with context 'repl' other statements are run on the device console."),
		sessionIDParam(),
		mcp.WithString("expression",
			mcp.Required(),
			mcp.Description("Expression to evaluate, e.g. m.top.id"),
		),
		mcp.WithString("context",
			mcp.Description("Evaluation context: watch (default), hover or repl"),
			mcp.Enum("watch", "hover", "repl"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSessionEvaluate)
}

func (s *Server) registerSessionContinue() {
	tool := mcp.NewTool("session_continue",
		mcp.WithDescription("Resume a suspended session."),
		sessionIDParam(),
	)
	s.mcpServer.AddTool(tool, s.handleSessionContinue)
}

func (s *Server) registerSessionStep() {
	tool := mcp.NewTool("session_step",
		mcp.WithDescription("Step a suspended session."),
		sessionIDParam(),
		mcp.WithString("type",
			mcp.Description("Step type: over (default), into or out"),
			mcp.Enum("over", "into", "out"),
		),
	)
	s.mcpServer.AddTool(tool, s.handleSessionStep)
}

func (s *Server) registerSessionPause() {
	tool := mcp.NewTool("session_pause",
		mcp.WithDescription("Ask the device to break into the debugger."),
		sessionIDParam(),
	)
	s.mcpServer.AddTool(tool, s.handleSessionPause)
}

func (s *Server) registerSessionDisconnect() {
	tool := mcp.NewTool("session_disconnect",
		mcp.WithDescription("End a session. The device is sent back to its home screen."),
		sessionIDParam(),
	)
	s.mcpServer.AddTool(tool, s.handleSessionDisconnect)
}
