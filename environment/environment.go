// Package environment declares the external Environment collaborator (spec
// §6): the caller-supplied surface the engine reports problems to and, in
// some deployments, delegates tool execution or interactive choice
// selection through.
package environment

import (
	"context"
)

// ToolCall and ToolResult mirror the minimal fields Environment.ExecuteTools
// needs; richer types live in the tools package and are converted to/from
// these at the boundary so environment stays dependency-light.
type (
	ToolCall struct {
		ID        string
		ToolName  string
		Arguments []byte
	}

	ToolResult struct {
		ToolCallID string
		Payload    []byte
		Err        error
	}
)

// Environment is the external collaborator the engine reports failures to
// and, optionally, delegates tool execution to. Implementations must not
// let ReportProblem panic or block indefinitely: the engine calls it from
// error paths that are already unwinding.
type Environment interface {
	// ExecuteTools runs a batch of tool calls outside the engine's own tool
	// registry (e.g., a caller-hosted sandbox) and returns results in the
	// same order as calls. Engines that resolve every tool through the local
	// tools.Registry may implement this as a no-op returning an error.
	ExecuteTools(ctx context.Context, calls []ToolCall) ([]ToolResult, error)

	// ReportProblem records a terminal or recoverable error for
	// observability. Must not throw/panic; implementations should swallow
	// their own internal failures (e.g., a logging sink being unavailable).
	ReportProblem(ctx context.Context, err error)
}

// Noop is an Environment that reports tool execution as unsupported and
// silently discards reported problems. Useful for unit tests and for
// strategies that never call Environment.ExecuteTools.
type Noop struct{}

func (Noop) ExecuteTools(context.Context, []ToolCall) ([]ToolResult, error) {
	return nil, errUnsupported
}

func (Noop) ReportProblem(context.Context, error) {}

var errUnsupported = noopError("environment.Noop does not execute tools")

type noopError string

func (e noopError) Error() string { return string(e) }
