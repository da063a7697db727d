package executor

import (
	"context"

	"github.com/agentgraph-go/graphrt/agent"
	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/pipeline"
	"github.com/agentgraph-go/graphrt/tools"
)

// pipelineHooks bridges the tool dispatcher's per-call lifecycle (spec
// §4.3) into the feature pipeline's tool-call event family (spec §4.7),
// so tools stays free of any dependency on pipeline.
type pipelineHooks struct {
	ac *agent.Context
}

var _ tools.Hooks = pipelineHooks{}

func (h pipelineHooks) OnToolCallStarting(ctx context.Context, call tools.CallRequest) {
	h.ac.Pipeline.Dispatch(ctx, pipeline.NewToolCallStartingEvent(h.ac.RunID, h.ac.AgentID, call))
}

func (h pipelineHooks) OnToolValidationFailed(ctx context.Context, call tools.CallRequest, err error) {
	verr, _ := err.(*engineerr.ToolValidationError)
	h.ac.Pipeline.Dispatch(ctx, pipeline.NewToolValidationFailedEvent(h.ac.RunID, h.ac.AgentID, call, verr))
}

func (h pipelineHooks) OnToolCallFailed(ctx context.Context, call tools.CallRequest, err error) {
	cerr, _ := err.(*engineerr.ToolCallFailedError)
	h.ac.Pipeline.Dispatch(ctx, pipeline.NewToolCallFailedEvent(h.ac.RunID, h.ac.AgentID, call, cerr))
}

func (h pipelineHooks) OnToolCallCompleted(ctx context.Context, call tools.CallRequest, result tools.CallResult) {
	h.ac.Pipeline.Dispatch(ctx, pipeline.NewToolCallCompletedEvent(h.ac.RunID, h.ac.AgentID, call, result))
}
