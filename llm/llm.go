// Package llm declares the external LLM executor and tool interfaces the
// engine consumes (spec §6). Concrete transports (Anthropic, OpenAI,
// Bedrock, ...) are out of scope for this module; only the contract the
// executor drives against lives here, plus lightweight types shared by
// callers implementing it.
package llm

import (
	"context"
	"encoding/json"

	"github.com/agentgraph-go/graphrt/prompt"
)

type (
	// ModelID identifies a concrete model binding understood by an Executor
	// implementation (e.g., "claude-opus-4", "gpt-5").
	ModelID string

	// ToolChoice constrains whether and how the model must invoke tools.
	ToolChoice struct {
		Mode ToolChoiceMode
		Name string // set when Mode == ToolChoiceNamed
	}

	// ToolChoiceMode enumerates the supported tool-choice constraints.
	ToolChoiceMode string

	// ToolDeclaration describes one tool available to the model for a single
	// call, as the executor needs to see it (name/description/JSON schema).
	ToolDeclaration struct {
		Name        string
		Description string
		Schema      json.RawMessage
	}

	// ToolCall is a single tool invocation requested by the model.
	ToolCall struct {
		ID        string
		ToolName  string
		Arguments json.RawMessage
	}

	// ResponseMessage is one assistant-authored message returned by a model
	// call: either textual content, one or more tool calls, or both.
	ResponseMessage struct {
		Content   string
		ToolCalls []ToolCall
		Meta      prompt.ResponseMetadata
	}

	// Choice is one of several candidate responses returned by
	// ExecuteMultipleChoices: a complete list of response messages.
	Choice struct {
		Messages []ResponseMessage
	}

	// Frame is a single unit of a streamed response. Frames for a given tool
	// call id are delivered in arrival order; the executor may interleave
	// fragments across different tool call ids but never reorder fragments
	// that share one id.
	Frame struct {
		Kind         FrameKind
		ContentDelta string
		ToolCallID   string
		ToolName     string
		ArgsDelta    string
		Err          error
	}

	// FrameKind enumerates the kinds of streaming frames an Executor emits.
	FrameKind string

	// ModerationResult reports whether a prompt was flagged by the model
	// provider's moderation endpoint.
	ModerationResult struct {
		Flagged    bool
		Categories []string
	}

	// Executor is the external LLM client the engine drives. Implementations
	// adapt a concrete provider SDK to this interface; the engine never
	// performs HTTP I/O itself (spec §1 Non-goals).
	Executor interface {
		// Execute issues one request/response call and returns every
		// assistant message the model produced (normally one, but some
		// providers split content and tool calls across messages).
		Execute(ctx context.Context, p prompt.Prompt, model ModelID, tools []ToolDeclaration) ([]ResponseMessage, error)

		// ExecuteStreaming issues a streamed request. Frames are delivered to
		// the returned channel in arrival order; the channel is closed once a
		// FrameFinish or FrameError frame has been sent.
		ExecuteStreaming(ctx context.Context, p prompt.Prompt, model ModelID, tools []ToolDeclaration) (<-chan Frame, error)

		// ExecuteMultipleChoices requests N candidate responses in a single
		// call, used by the choice/multi-response component (C9).
		ExecuteMultipleChoices(ctx context.Context, p prompt.Prompt, model ModelID, tools []ToolDeclaration, n int) ([]Choice, error)

		// Moderate submits the prompt to the provider's moderation endpoint.
		Moderate(ctx context.Context, p prompt.Prompt, model ModelID) (ModerationResult, error)

		// SupportsRequiredToolChoice reports whether model can be constrained
		// to always emit a tool call. The engine's tool-choice retry loop
		// (spec §4.3) only applies when this returns false.
		SupportsRequiredToolChoice(model ModelID) bool

		// Close releases any resources (connections, goroutines) held by the
		// executor.
		Close() error
	}
)

const (
	ToolChoiceAuto     ToolChoiceMode = "auto"
	ToolChoiceRequired ToolChoiceMode = "required"
	ToolChoiceNone     ToolChoiceMode = "none"
	ToolChoiceNamedVal ToolChoiceMode = "named"

	FrameContentDelta  FrameKind = "content_delta"
	FrameToolCallStart FrameKind = "tool_call_start"
	FrameToolArgsDelta FrameKind = "tool_call_arg_delta"
	FrameToolCallEnd   FrameKind = "tool_call_end"
	FrameError         FrameKind = "error"
	FrameFinish        FrameKind = "finish"
)

// Named builds a ToolChoice constraining the model to call exactly the
// named tool.
func Named(name string) ToolChoice {
	return ToolChoice{Mode: ToolChoiceNamedVal, Name: name}
}
