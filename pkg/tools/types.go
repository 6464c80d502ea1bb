// Package tools adapts the teacher's command-surface tool abstraction to
// the reminder engine: a single ContextualTool backed by pkg/reminders and
// pkg/parser instead of agent-exposed capabilities.
package tools

import "context"

// ToolResult is a tool invocation's outcome. Silent results are logged but
// not necessarily echoed back verbatim to the user by the caller.
type ToolResult struct {
	Success bool
	Output  string
	Silent  bool
}

func ErrorResult(msg string) *ToolResult {
	return &ToolResult{Success: false, Output: msg}
}

func SilentResult(msg string) *ToolResult {
	return &ToolResult{Success: true, Output: msg, Silent: true}
}

// ContextualTool is a tool whose execution is scoped to the channel/chat it
// was invoked from, so replies and side effects (like where a fired
// reminder gets delivered) land in the right place.
type ContextualTool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, args map[string]interface{}) *ToolResult
	SetContext(channel, chatID string)
}
