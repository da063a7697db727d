// Package engineerr defines the error taxonomy shared across the graph
// execution engine. Every error that can terminate or be recovered from
// during a run is represented here as a distinct, inspectable type so
// callers can use errors.As instead of matching on messages.
package engineerr

import "fmt"

// Kind enumerates the error taxonomy from the engine's error handling
// design. Each Kind corresponds to exactly one concrete error type below.
type Kind string

const (
	KindBuildError            Kind = "build_error"
	KindNoRoute               Kind = "no_route"
	KindIterationLimit        Kind = "iteration_limit_exceeded"
	KindToolValidation        Kind = "tool_validation_error"
	KindToolCallFailed        Kind = "tool_call_failed"
	KindToolChoiceUnsupported Kind = "tool_choice_unsupported"
	KindLLMCallFailed         Kind = "llm_call_failed"
	KindKeyNotFound           Kind = "key_not_found"
	KindNodeNotFound          Kind = "node_not_found"
	KindNotAContainer         Kind = "not_a_container"
	KindCancellation          Kind = "cancellation"
	KindFeatureHandler        Kind = "feature_handler_error"
)

type (
	// BuildError reports an invalid graph: duplicate node paths, dangling
	// edges, or type mismatches detected while constructing or resolving a
	// strategy. BuildError is fatal at run construction time.
	BuildError struct {
		Strategy string
		Reason   string
	}

	// NoRouteError reports that no outgoing edge matched at a branch point.
	NoRouteError struct {
		NodePath string
	}

	// IterationLimitExceededError reports that the executor invoked more
	// nodes than maxAgentIterations allows for a single top-level run.
	IterationLimitExceededError struct {
		Limit      int
		Invocation int
	}

	// ToolValidationError reports that a tool call's arguments failed to
	// decode against the tool's declared argument schema.
	ToolValidationError struct {
		ToolName string
		Reason   string
	}

	// ToolCallFailedError reports that a tool's invoke function returned an
	// error during execution.
	ToolCallFailedError struct {
		ToolName string
		Err      error
	}

	// ToolChoiceUnsupportedError reports that the active model cannot
	// enforce tool-choice and the configured number of synthetic retries
	// were exhausted without the assistant issuing a tool call.
	ToolChoiceUnsupportedError struct {
		ModelID string
		Retries int
	}

	// LLMCallFailedError wraps a failure surfaced by the external LLM
	// executor (including provider timeouts).
	LLMCallFailedError struct {
		ModelID string
		Err     error
	}

	// KeyNotFoundError reports that Store.GetValue was called for a key
	// that is not present.
	KeyNotFoundError struct {
		Key string
	}

	// NodeNotFoundError reports that a checkpoint's node id did not resolve
	// to any path in the current graph during restoration.
	NodeNotFoundError struct {
		NodeID string
	}

	// NotAContainerError reports that restoration tried to enforce an
	// execution point on an intermediate node that does not own sub-nodes.
	NotAContainerError struct {
		NodePath string
	}

	// CancellationError always propagates and is never swallowed by the
	// pipeline or the tool dispatcher.
	CancellationError struct {
		Reason string
	}

	// FeatureHandlerError wraps a panic or error raised by a single feature
	// handler during event dispatch. It is logged and reported to the
	// environment but never aborts dispatch to the remaining handlers.
	FeatureHandlerError struct {
		FeatureKey string
		Event      string
		Err        error
	}
)

func (e *BuildError) Error() string {
	return fmt.Sprintf("build error in strategy %q: %s", e.Strategy, e.Reason)
}

func (e *NoRouteError) Error() string {
	return fmt.Sprintf("no outgoing edge matched at node %q", e.NodePath)
}

func (e *IterationLimitExceededError) Error() string {
	return fmt.Sprintf("iteration limit exceeded: %d invocations (limit %d)", e.Invocation, e.Limit)
}

func (e *ToolValidationError) Error() string {
	return fmt.Sprintf("tool %q argument validation failed: %s", e.ToolName, e.Reason)
}

func (e *ToolCallFailedError) Error() string {
	return fmt.Sprintf("tool %q call failed: %v", e.ToolName, e.Err)
}

func (e *ToolCallFailedError) Unwrap() error { return e.Err }

func (e *ToolChoiceUnsupportedError) Error() string {
	return fmt.Sprintf("model %q does not support tool choice after %d attempts", e.ModelID, e.Retries)
}

func (e *LLMCallFailedError) Error() string {
	return fmt.Sprintf("llm call failed (model %q): %v", e.ModelID, e.Err)
}

func (e *LLMCallFailedError) Unwrap() error { return e.Err }

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("storage key %q not found", e.Key)
}

func (e *NodeNotFoundError) Error() string {
	return fmt.Sprintf("node %q not found while restoring checkpoint", e.NodeID)
}

func (e *NotAContainerError) Error() string {
	return fmt.Sprintf("node %q does not own sub-nodes and cannot enforce an execution point", e.NodePath)
}

func (e *CancellationError) Error() string {
	if e.Reason == "" {
		return "run canceled"
	}
	return fmt.Sprintf("run canceled: %s", e.Reason)
}

func (e *FeatureHandlerError) Error() string {
	return fmt.Sprintf("feature %q handler failed for event %q: %v", e.FeatureKey, e.Event, e.Err)
}

func (e *FeatureHandlerError) Unwrap() error { return e.Err }
