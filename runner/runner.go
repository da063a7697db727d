// Package runner implements the strategy runner (spec component C8): the
// outermost entry point for a single agent run. It owns the agentStarting/
// agentCompleted/agentExecutionFailed/agentClosing and strategyStarting/
// strategyCompleted lifecycle events, and drives the restore-then-execute
// retry loop that lets a node request an in-run restart from an earlier
// checkpoint without the caller having to re-invoke the runner itself.
package runner

import (
	"context"
	"errors"

	"github.com/agentgraph-go/graphrt/agent"
	"github.com/agentgraph-go/graphrt/executor"
	"github.com/agentgraph-go/graphrt/pipeline"
	"github.com/agentgraph-go/graphrt/run"
)

// Runner drives one or more agent runs against a shared Executor. It is
// safe to share across concurrent runs: all mutable state lives on the
// agent.Context each Execute call is given.
type Runner struct {
	Executor *executor.Executor
	// Runs records coarse-grained run status, if set. Nil disables
	// status tracking entirely.
	Runs run.Store
}

// New constructs a Runner over ex. runs may be nil to disable status
// tracking.
func New(ex *executor.Executor, runs run.Store) *Runner {
	return &Runner{Executor: ex, Runs: runs}
}

// Execute runs ac.Strategy from input to completion (spec §4.8): it emits
// agentStarting once, strategyStarting once, then repeatedly invokes the
// executor, retrying only when a node unwinds with
// agent.ErrRollbackRequested and has left a pending rollback installed via
// ac.SetPendingRollback — the executor's next attempt consumes it via
// checkpoint.Restore before resuming. Any other error ends the run.
func (r *Runner) Execute(ctx context.Context, ac *agent.Context, input any) (any, error) {
	ac.Pipeline.Dispatch(ctx, pipeline.NewAgentStartingEvent(ac.RunID, ac.AgentID, input))
	r.upsertStatus(ac, run.StatusRunning, "")

	ac.Pipeline.Dispatch(ctx, pipeline.NewStrategyStartingEvent(ac.RunID, ac.AgentID, ac.Strategy.Name))

	var result any
	var runErr error
	for {
		result, runErr = r.Executor.Execute(ctx, ac, input)
		if runErr != nil && errors.Is(runErr, agent.ErrRollbackRequested) && ac.HasPendingRollback() {
			continue
		}
		break
	}

	if runErr != nil {
		ac.Environment.ReportProblem(ctx, runErr)
		ac.Pipeline.Dispatch(ctx, pipeline.NewAgentExecutionFailedEvent(ac.RunID, ac.AgentID, runErr))
		r.upsertStatus(ac, run.StatusFailed, runErr.Error())
		ac.Pipeline.Dispatch(ctx, pipeline.NewAgentClosingEvent(ac.RunID, ac.AgentID))
		return nil, runErr
	}

	ac.Pipeline.Dispatch(ctx, pipeline.NewStrategyCompletedEvent(ac.RunID, ac.AgentID, ac.Strategy.Name, result, ac.Strategy.Root.Finish.Last()))
	ac.Pipeline.Dispatch(ctx, pipeline.NewAgentCompletedEvent(ac.RunID, ac.AgentID, result))
	r.upsertStatus(ac, run.StatusCompleted, "")
	ac.Pipeline.Dispatch(ctx, pipeline.NewAgentClosingEvent(ac.RunID, ac.AgentID))

	return result, nil
}

func (r *Runner) upsertStatus(ac *agent.Context, status run.Status, lastError string) {
	if r.Runs == nil {
		return
	}
	_ = r.Runs.Upsert(run.Record{
		RunID:     ac.RunID,
		AgentID:   ac.AgentID,
		Status:    status,
		LastError: lastError,
	})
}
