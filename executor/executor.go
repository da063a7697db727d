// Package executor implements the graph executor (spec component C5): it
// interprets a compiled graph.Strategy, invoking node semantics for LLM
// calls and tool execution, selecting outgoing edges, fanning out parallel
// branches, and enforcing the iteration cap and checkpoint restoration
// described in spec §4.5.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/agentgraph-go/graphrt/agent"
	"github.com/agentgraph-go/graphrt/checkpoint"
	"github.com/agentgraph-go/graphrt/choice"
	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/graph"
	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/pipeline"
	"github.com/agentgraph-go/graphrt/prompt"
	"github.com/agentgraph-go/graphrt/runid"
	"github.com/agentgraph-go/graphrt/telemetry"
	"github.com/agentgraph-go/graphrt/tools"
)

// Executor drives a graph.Strategy over a run's agent.Context. It is safe
// to share a single Executor across many concurrent runs: everything
// mutable lives on the agent.Context each call is given.
type Executor struct {
	// LLM is the external model client every LLM request / tool-result
	// send node issues calls against (spec §6).
	LLM llm.Executor
	// Registry resolves tool names for Tool-execute nodes.
	Registry *tools.Registry
	// MaxToolConcurrency bounds parallel tool dispatch; zero means
	// unlimited.
	MaxToolConcurrency int

	// ChoiceStrategy picks among candidate responses when a run's
	// Config.NumberOfChoices calls for more than one (spec component C9).
	// A nil strategy defaults to choice.First.
	ChoiceStrategy choice.SelectionStrategy

	Logger  telemetry.Logger
	Tracer  telemetry.Tracer
	Metrics telemetry.Metrics
}

// New constructs an Executor wired to noop telemetry; callers that want
// real OTel-backed telemetry set the Logger/Tracer/Metrics fields directly.
func New(llmExecutor llm.Executor, registry *tools.Registry) *Executor {
	return &Executor{
		LLM:      llmExecutor,
		Registry: registry,
		Logger:   telemetry.NoopLogger{},
		Tracer:   telemetry.NoopTracer{},
		Metrics:  telemetry.NoopMetrics{},
	}
}

// Execute interprets ac.Strategy's root subgraph starting from input (spec
// §4.5). If ac carries a pending AgentContextData, the restoration
// algorithm (checkpoint.Restore, §4.6) runs first and clears it before any
// node is invoked.
func (ex *Executor) Execute(ctx context.Context, ac *agent.Context, input any) (any, error) {
	if data := ac.TakePendingRollback(); data != nil {
		if err := checkpoint.Restore(ctx, ac.Strategy, ac, data); err != nil {
			return nil, err
		}
	}
	return ex.run(ctx, ac, ac.Strategy.Root, input)
}

// run interprets one subgraph: the control loop from spec §4.5 steps 2-4.
// If ac holds a pending resume point for a node inside sub (installed by a
// prior restoration), execution starts there instead of sub.Start.
func (ex *Executor) run(ctx context.Context, ac *agent.Context, sub *graph.Subgraph, input any) (any, error) {
	current := sub.Start
	value := input
	if path, ep, ok := ac.FindResumePoint(sub); ok {
		current = path
		if ep.Input != nil {
			value = ep.Input
		}
	}
	if current == sub.Finish {
		return value, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, &engineerr.CancellationError{Reason: err.Error()}
		}
		if err := ac.CountIteration(); err != nil {
			return nil, err
		}

		node, ok := sub.Nodes[current]
		if !ok {
			return nil, &engineerr.NodeNotFoundError{NodeID: string(current)}
		}

		out, err := ex.invokeNode(ctx, ac, sub, node, value)
		if err != nil {
			return nil, err
		}

		tail := ac.Prompt.Messages()
		edge, err := sub.SelectEdge(ctx, current, out, tail)
		if err != nil {
			return nil, err
		}

		next := out
		if edge.Transform != nil {
			next, err = edge.Transform(ctx, out)
			if err != nil {
				return nil, err
			}
		}
		value = next
		current = edge.To
		if current == sub.Finish {
			return value, nil
		}
	}
}

// invokeNode interprets a single node per its variant (spec §3 "Node
// variants"), wrapping it in an automatic-persistence checkpoint when
// Config.EnableAutomaticPersistence is set (spec §4.6: capture the node's
// input just before execution). A pure Transform node carries nothing worth
// resuming into, so it is exempt.
func (ex *Executor) invokeNode(ctx context.Context, ac *agent.Context, sub *graph.Subgraph, node *graph.Node, value any) (any, error) {
	if ac.Config.EnableAutomaticPersistence && ac.Checkpoints != nil && node.Kind() != graph.KindTransform {
		if err := ex.autoCheckpoint(ctx, ac, node, value); err != nil {
			return nil, err
		}
	}

	switch p := node.Payload.(type) {
	case *graph.TransformPayload:
		return p.Fn(ctx, value)

	case *graph.LLMRequestPayload:
		model := p.Model
		if model == "" {
			model = ac.Model
		}
		return ex.issueLLMCall(ctx, ac, model, p.Tools, p.ForbidToolCalls)

	case *graph.ToolExecutePayload:
		return ex.executeTools(ctx, ac, p, value)

	case *graph.ToolResultSendPayload:
		return ex.sendToolResult(ctx, ac, p, value)

	case *graph.HistoryCompressPayload:
		if err := ac.Prompt.Write(func(w *prompt.Write) error {
			w.WithMessages(p.Policy)
			return nil
		}); err != nil {
			return nil, err
		}
		return value, nil

	case *graph.ParallelPayload:
		return ex.runParallel(ctx, ac, sub, p, value)

	case *graph.SubgraphPayload:
		return ex.run(ctx, ac, p.Subgraph, value)

	default:
		return nil, fmt.Errorf("executor: node %q has no payload", node.ID)
	}
}

func (ex *Executor) autoCheckpoint(ctx context.Context, ac *agent.Context, node *graph.Node, value any) error {
	cp := checkpoint.Checkpoint{
		CheckpointID:     runid.NewCheckpointID(ac.AgentID),
		AgentID:          ac.AgentID,
		NodeID:           node.ID,
		LastInput:        value,
		LastInputType:    node.InputType,
		MessageHistory:   ac.Prompt.Messages(),
		RollbackStrategy: checkpoint.Default,
	}
	return ac.Checkpoints.SaveCheckpoint(ctx, cp)
}

// issueLLMCall implements the LLM-request node's call: dispatch
// llmCallStarting/llmCallCompleted, honor tool-choice enforcement (spec
// §4.3) when the node offers tools and doesn't forbid them, then append the
// resulting response messages to the prompt.
func (ex *Executor) issueLLMCall(ctx context.Context, ac *agent.Context, model llm.ModelID, toolDecls []llm.ToolDeclaration, forbidToolCalls bool) ([]llm.ResponseMessage, error) {
	ctx, span := ex.Tracer.Start(ctx, "executor.llmCall")
	started := time.Now()
	ex.Logger.Debug(ctx, "issuing llm call", "agentID", ac.AgentID, "model", string(model), "tools", len(toolDecls))

	ac.Pipeline.Dispatch(ctx, pipeline.NewLLMCallStartingEvent(ac.RunID, ac.AgentID, model, toolDecls))

	executor := ex.LLM
	if ac.Config.NumberOfChoices > 1 {
		executor = choice.Wrap(executor, ex.ChoiceStrategy, ac.Config.NumberOfChoices)
	}

	attempt := func(ctx context.Context, p prompt.Prompt) ([]llm.ResponseMessage, error) {
		return executor.Execute(ctx, p, model, toolDecls)
	}

	current := prompt.Prompt{Messages: ac.Prompt.Messages()}

	var messages []llm.ResponseMessage
	var err error
	if !forbidToolCalls && len(toolDecls) > 0 {
		enforcer := tools.NewToolChoiceEnforcer(executor)
		if ac.Config.MaxAttemptsWithoutToolChoice > 0 {
			enforcer.MaxAttempts = ac.Config.MaxAttemptsWithoutToolChoice
		}
		messages, err = enforcer.Enforce(ctx, current, model, attempt)
	} else {
		messages, err = attempt(ctx, current)
	}

	ex.Metrics.RecordTimer("executor.llm_call", time.Since(started), "model", string(model))
	ac.Pipeline.Dispatch(ctx, pipeline.NewLLMCallCompletedEvent(ac.RunID, ac.AgentID, model, messages, err))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.End()
		var tcErr *engineerr.ToolChoiceUnsupportedError
		if errors.As(err, &tcErr) {
			return nil, tcErr
		}
		return nil, &engineerr.LLMCallFailedError{ModelID: string(model), Err: err}
	}
	span.End()

	if err := ac.Prompt.Write(func(w *prompt.Write) error {
		for _, m := range messages {
			w.AppendPrompt(responseToPromptMessages(m)...)
		}
		w.SetTokenUsage(sumTokenUsage(messages))
		return nil
	}); err != nil {
		return nil, err
	}
	return messages, nil
}

// executeTools implements the Tool-execute node: it extracts every tool
// call carried by the preceding LLM response and dispatches them per the
// run's configured RunMode (spec §4.3 dispatch modes), returning the
// dispatched results untouched — appending them to the prompt is the
// Tool-result send node's job.
func (ex *Executor) executeTools(ctx context.Context, ac *agent.Context, p *graph.ToolExecutePayload, value any) ([]tools.CallResult, error) {
	calls, err := extractToolCalls(value, p.Required)
	if err != nil {
		return nil, err
	}
	ctx, span := ex.Tracer.Start(ctx, "executor.toolExecute")
	defer span.End()

	disp := &tools.Dispatcher{Registry: ex.Registry, Hooks: pipelineHooks{ac: ac}, MaxConcurrency: ex.MaxToolConcurrency}

	var results []tools.CallResult
	if ac.Config.RunMode == agent.RunModeParallel && len(calls) > 1 {
		results = disp.DispatchParallel(ctx, calls)
	} else {
		results = disp.DispatchSequential(ctx, calls)
	}

	for i, r := range results {
		ex.Metrics.IncCounter("executor.tool_call", 1, "tool", r.ToolName)
		if r.Err != nil && calls[i].Required {
			span.RecordError(r.Err)
			return nil, &engineerr.ToolCallFailedError{ToolName: r.ToolName, Err: r.Err}
		}
	}
	return results, nil
}

// sendToolResult implements the Tool-result send node: append every tool
// result to the prompt in declaration order, then issue the next LLM call.
func (ex *Executor) sendToolResult(ctx context.Context, ac *agent.Context, p *graph.ToolResultSendPayload, value any) ([]llm.ResponseMessage, error) {
	results, err := asCallResults(value)
	if err != nil {
		return nil, err
	}
	if err := ac.Prompt.Write(func(w *prompt.Write) error {
		for _, r := range results {
			w.AppendPrompt(toolResultMessage(r))
		}
		return nil
	}); err != nil {
		return nil, err
	}
	model := p.Model
	if model == "" {
		model = ac.Model
	}
	return ex.issueLLMCall(ctx, ac, model, nil, false)
}

// runParallel implements the Parallel node: fork a child agent.Context per
// child path, run each concurrently under an errgroup, then reduce per
// p.Reduce. Exactly one of the reducer branches adopts a child's prompt and
// storage back into ac, matching the "selects which child's context becomes
// the active context" rule from spec §4.5.
func (ex *Executor) runParallel(ctx context.Context, ac *agent.Context, sub *graph.Subgraph, p *graph.ParallelPayload, value any) (any, error) {
	results := make([]any, len(p.Children))
	children := make([]*agent.Context, len(p.Children))

	g, gctx := errgroup.WithContext(ctx)
	for i, childPath := range p.Children {
		i, childPath := i, childPath
		node, ok := sub.Nodes[childPath]
		if !ok {
			return nil, &engineerr.NodeNotFoundError{NodeID: string(childPath)}
		}
		childAC := ac.Fork(runid.NewRunID(ac.AgentID))
		children[i] = childAC
		g.Go(func() error {
			out, err := ex.invokeNode(gctx, childAC, sub, node, value)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	switch p.Reduce {
	case graph.ReduceFold:
		acc := p.FoldInit
		var err error
		for i, childPath := range p.Children {
			acc, err = p.Fold(ctx, acc, childPath, results[i])
			if err != nil {
				return nil, err
			}
		}
		if len(children) > 0 {
			if err := ac.Adopt(children[len(children)-1]); err != nil {
				return nil, err
			}
		}
		return acc, nil

	case graph.ReduceSelectBy:
		for i := range p.Children {
			ok, err := p.Predicate(ctx, results[i])
			if err != nil {
				return nil, err
			}
			if ok {
				if err := ac.Adopt(children[i]); err != nil {
					return nil, err
				}
				return results[i], nil
			}
		}
		return nil, fmt.Errorf("executor: parallel node: no child satisfied selectBy predicate")

	case graph.ReduceSelectByMax:
		best := -1
		var bestScore float64
		for i := range p.Children {
			score, err := p.Score(ctx, results[i])
			if err != nil {
				return nil, err
			}
			if best == -1 || score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best == -1 {
			return nil, fmt.Errorf("executor: parallel node: no children to select from")
		}
		if err := ac.Adopt(children[best]); err != nil {
			return nil, err
		}
		return results[best], nil

	default:
		return nil, fmt.Errorf("executor: parallel node: unknown reduce kind %q", p.Reduce)
	}
}
