// Package pipeline implements the feature pipeline (spec component C7): the
// central event bus that dispatches the engine's lifecycle events to
// installed features, in registration order, isolating each handler's
// failures from its siblings.
package pipeline

import (
	"time"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/telemetry"
	"github.com/agentgraph-go/graphrt/tools"
)

// EventType enumerates the fixed lifecycle event catalogue from spec §4.7.
type EventType string

const (
	AgentStarting             EventType = "agent_starting"
	AgentCompleted            EventType = "agent_completed"
	AgentExecutionFailed      EventType = "agent_execution_failed"
	AgentClosing              EventType = "agent_closing"
	EnvironmentTransforming   EventType = "environment_transforming"
	StrategyStarting          EventType = "strategy_starting"
	StrategyCompleted         EventType = "strategy_completed"
	LLMCallStarting           EventType = "llm_call_starting"
	LLMCallCompleted          EventType = "llm_call_completed"
	ToolCallStarting          EventType = "tool_call_starting"
	ToolValidationFailed      EventType = "tool_validation_failed"
	ToolCallFailed            EventType = "tool_call_failed"
	ToolCallCompleted         EventType = "tool_call_completed"
	StreamingStarting         EventType = "streaming_starting"
	StreamingFrameReceived    EventType = "streaming_frame_received"
	StreamingFailed           EventType = "streaming_failed"
	StreamingCompleted        EventType = "streaming_completed"
)

// Event is implemented by every concrete lifecycle event. Handlers use a
// type switch to reach event-specific fields, mirroring the tagged-event
// pattern used across the engine.
type Event interface {
	Type() EventType
	RunID() string
	AgentID() string
	Timestamp() int64
}

type baseEvent struct {
	eventType EventType
	runID     string
	agentID   string
	timestamp int64
}

func newBaseEvent(t EventType, runID, agentID string) baseEvent {
	return baseEvent{eventType: t, runID: runID, agentID: agentID, timestamp: time.Now().UnixMilli()}
}

func (e baseEvent) Type() EventType   { return e.eventType }
func (e baseEvent) RunID() string     { return e.runID }
func (e baseEvent) AgentID() string   { return e.agentID }
func (e baseEvent) Timestamp() int64  { return e.timestamp }

type (
	// AgentStartingEvent fires once, before strategy restoration begins.
	AgentStartingEvent struct {
		baseEvent
		Input any
	}

	// AgentCompletedEvent fires after a run finishes successfully.
	AgentCompletedEvent struct {
		baseEvent
		Output any
	}

	// AgentExecutionFailedEvent fires when a run terminates with an error,
	// after the error has been reported through the environment.
	AgentExecutionFailedEvent struct {
		baseEvent
		Err error
	}

	// AgentClosingEvent fires once, as the run's resources are released.
	AgentClosingEvent struct {
		baseEvent
	}

	// StrategyStartingEvent fires once at the top of the strategy runner
	// (C8), before the first restore-then-execute attempt; retries do not
	// fire it again.
	StrategyStartingEvent struct {
		baseEvent
		StrategyName string
	}

	// StrategyCompletedEvent fires once the graph executor returns without
	// an error; Output may be nil.
	StrategyCompletedEvent struct {
		baseEvent
		StrategyName string
		Output       any
		OutputType   string
	}

	// LLMCallStartingEvent fires immediately before an LLM request node
	// issues its call.
	LLMCallStartingEvent struct {
		baseEvent
		Model llm.ModelID
		Tools []llm.ToolDeclaration
	}

	// LLMCallCompletedEvent fires after an LLM request node's call returns.
	LLMCallCompletedEvent struct {
		baseEvent
		Model    llm.ModelID
		Messages []llm.ResponseMessage
		Err      error
	}

	// ToolCallStartingEvent fires before a tool call is dispatched.
	ToolCallStartingEvent struct {
		baseEvent
		Call tools.CallRequest
	}

	// ToolValidationFailedEvent fires when a tool call's arguments fail
	// decode/schema validation.
	ToolValidationFailedEvent struct {
		baseEvent
		Call tools.CallRequest
		Err  *engineerr.ToolValidationError
	}

	// ToolCallFailedEvent fires when a tool's invoke function returns an
	// error.
	ToolCallFailedEvent struct {
		baseEvent
		Call tools.CallRequest
		Err  *engineerr.ToolCallFailedError
	}

	// ToolCallCompletedEvent fires after a tool call finishes, successfully
	// or not.
	ToolCallCompletedEvent struct {
		baseEvent
		Call      tools.CallRequest
		Result    tools.CallResult
		Telemetry *telemetry.ToolTelemetry
	}

	// StreamingStartingEvent fires before a streamed LLM call begins.
	StreamingStartingEvent struct {
		baseEvent
		Model llm.ModelID
	}

	// StreamingFrameReceivedEvent fires once per streamed frame.
	StreamingFrameReceivedEvent struct {
		baseEvent
		Frame llm.Frame
	}

	// StreamingFailedEvent fires when a streamed call terminates with an
	// error frame.
	StreamingFailedEvent struct {
		baseEvent
		Err error
	}

	// StreamingCompletedEvent fires when a streamed call finishes normally.
	StreamingCompletedEvent struct {
		baseEvent
	}
)

func NewAgentStartingEvent(runID, agentID string, input any) *AgentStartingEvent {
	return &AgentStartingEvent{baseEvent: newBaseEvent(AgentStarting, runID, agentID), Input: input}
}

func NewAgentCompletedEvent(runID, agentID string, output any) *AgentCompletedEvent {
	return &AgentCompletedEvent{baseEvent: newBaseEvent(AgentCompleted, runID, agentID), Output: output}
}

func NewAgentExecutionFailedEvent(runID, agentID string, err error) *AgentExecutionFailedEvent {
	return &AgentExecutionFailedEvent{baseEvent: newBaseEvent(AgentExecutionFailed, runID, agentID), Err: err}
}

func NewAgentClosingEvent(runID, agentID string) *AgentClosingEvent {
	return &AgentClosingEvent{baseEvent: newBaseEvent(AgentClosing, runID, agentID)}
}

func NewStrategyStartingEvent(runID, agentID, strategyName string) *StrategyStartingEvent {
	return &StrategyStartingEvent{baseEvent: newBaseEvent(StrategyStarting, runID, agentID), StrategyName: strategyName}
}

func NewStrategyCompletedEvent(runID, agentID, strategyName string, output any, outputType string) *StrategyCompletedEvent {
	return &StrategyCompletedEvent{
		baseEvent:    newBaseEvent(StrategyCompleted, runID, agentID),
		StrategyName: strategyName,
		Output:       output,
		OutputType:   outputType,
	}
}

func NewLLMCallStartingEvent(runID, agentID string, model llm.ModelID, decls []llm.ToolDeclaration) *LLMCallStartingEvent {
	return &LLMCallStartingEvent{baseEvent: newBaseEvent(LLMCallStarting, runID, agentID), Model: model, Tools: decls}
}

func NewLLMCallCompletedEvent(runID, agentID string, model llm.ModelID, messages []llm.ResponseMessage, err error) *LLMCallCompletedEvent {
	return &LLMCallCompletedEvent{baseEvent: newBaseEvent(LLMCallCompleted, runID, agentID), Model: model, Messages: messages, Err: err}
}

func NewToolCallStartingEvent(runID, agentID string, call tools.CallRequest) *ToolCallStartingEvent {
	return &ToolCallStartingEvent{baseEvent: newBaseEvent(ToolCallStarting, runID, agentID), Call: call}
}

func NewToolValidationFailedEvent(runID, agentID string, call tools.CallRequest, err *engineerr.ToolValidationError) *ToolValidationFailedEvent {
	return &ToolValidationFailedEvent{baseEvent: newBaseEvent(ToolValidationFailed, runID, agentID), Call: call, Err: err}
}

func NewToolCallFailedEvent(runID, agentID string, call tools.CallRequest, err *engineerr.ToolCallFailedError) *ToolCallFailedEvent {
	return &ToolCallFailedEvent{baseEvent: newBaseEvent(ToolCallFailed, runID, agentID), Call: call, Err: err}
}

func NewToolCallCompletedEvent(runID, agentID string, call tools.CallRequest, result tools.CallResult) *ToolCallCompletedEvent {
	return &ToolCallCompletedEvent{baseEvent: newBaseEvent(ToolCallCompleted, runID, agentID), Call: call, Result: result, Telemetry: result.Telemetry}
}

func NewStreamingStartingEvent(runID, agentID string, model llm.ModelID) *StreamingStartingEvent {
	return &StreamingStartingEvent{baseEvent: newBaseEvent(StreamingStarting, runID, agentID), Model: model}
}

func NewStreamingFrameReceivedEvent(runID, agentID string, frame llm.Frame) *StreamingFrameReceivedEvent {
	return &StreamingFrameReceivedEvent{baseEvent: newBaseEvent(StreamingFrameReceived, runID, agentID), Frame: frame}
}

func NewStreamingFailedEvent(runID, agentID string, err error) *StreamingFailedEvent {
	return &StreamingFailedEvent{baseEvent: newBaseEvent(StreamingFailed, runID, agentID), Err: err}
}

func NewStreamingCompletedEvent(runID, agentID string) *StreamingCompletedEvent {
	return &StreamingCompletedEvent{baseEvent: newBaseEvent(StreamingCompleted, runID, agentID)}
}
