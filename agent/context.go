// Package agent bundles the per-run collaborators described by the Agent
// Run data model in spec §3: an environment, a prompt, a storage, a state
// manager, a current LLM model binding, a strategy reference, and a
// pipeline. It is the supporting package SPEC_FULL.md adds alongside the
// ten numbered components (C1-C10) to hold what the graph executor (C5)
// and strategy runner (C8) both thread through every call.
package agent

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/agentgraph-go/graphrt/checkpoint"
	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/environment"
	"github.com/agentgraph-go/graphrt/graph"
	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/pipeline"
	"github.com/agentgraph-go/graphrt/prompt"
	"github.com/agentgraph-go/graphrt/storage"
)

// ErrRollbackRequested is returned up through a running strategy (typically
// from a Transform node that decided the run must restart from an earlier
// checkpoint) to unwind the executor cleanly. The caller pairs it with a
// prior SetPendingRollback call; the strategy runner (package runner) is
// the only consumer that treats this error as a retry signal rather than a
// run failure.
var ErrRollbackRequested = errors.New("agent: rollback requested")

// Context is one agent run: it owns everything a strategy execution reads
// or mutates for the lifetime of a single `run(input)` call (spec §3
// "Agent Run" lifecycle: created on run, destroyed when the runner returns
// or fails).
type Context struct {
	RunID   string
	AgentID string

	Strategy *graph.Strategy

	Prompt      *prompt.Controller
	Storage     *storage.Store
	State       *storage.StateManager
	Pipeline    *pipeline.Pipeline
	Checkpoints checkpoint.Provider
	Environment environment.Environment

	Config Config

	// Model is the LLM model currently bound to this run. Nodes whose
	// payload leaves Model unset fall back to this binding.
	Model llm.ModelID

	mu              sync.Mutex
	pending         *checkpoint.AgentContextData
	executionPoints map[*graph.Node]graph.ExecutionPoint

	// iterations is shared (by pointer) across forked children so the
	// "total node invocations" iteration cap in spec §4.5 is enforced
	// run-wide, not per branch.
	iterations *atomic.Int64
}

// New constructs a run-scoped Context. store, if nil, is allocated fresh; a
// State manager is built over the same Store so C1's two surfaces (typed
// store, critical-section state manager) share one underlying map per run.
// Fails with engineerr.BuildError if opts produce an invalid Config (spec
// §8: e.g. a zero tool-choice retry budget).
func New(runID, agentID string, strategy *graph.Strategy, store *storage.Store, env environment.Environment, checkpoints checkpoint.Provider, pl *pipeline.Pipeline, opts ...Option) (*Context, error) {
	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}
	if store == nil {
		store = storage.New()
	}
	if env == nil {
		env = environment.Noop{}
	}
	if pl == nil {
		pl = pipeline.New(nil)
	}
	return &Context{
		RunID:       runID,
		AgentID:     agentID,
		Strategy:    strategy,
		Prompt:      prompt.NewController(),
		Storage:     store,
		State:       storage.NewStateManager(store),
		Pipeline:    pl,
		Checkpoints: checkpoints,
		Environment: env,
		Config:      cfg,
		iterations:  new(atomic.Int64),
	}, nil
}

// ReplacePrompt implements checkpoint.RestoreTarget: it atomically rewrites
// the run's message history inside a write session.
func (c *Context) ReplacePrompt(_ context.Context, messages []prompt.Message) error {
	return c.Prompt.Write(func(w *prompt.Write) error {
		w.RewritePrompt(messages)
		return nil
	})
}

// EnforceExecutionPoint implements checkpoint.RestoreTarget: it records
// which node a subgraph should resume at (and, for the leaf of a
// restoration chain, what input to feed it), keyed by the node pointer
// itself. The executor discovers this via FindResumePoint when it is about
// to run the subgraph that owns node, rather than requiring a parent
// "container" reference threaded down from the caller.
func (c *Context) EnforceExecutionPoint(node *graph.Node, ep graph.ExecutionPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.executionPoints == nil {
		c.executionPoints = make(map[*graph.Node]graph.ExecutionPoint)
	}
	c.executionPoints[node] = ep
	return nil
}

// FindResumePoint scans sub's own nodes for a pending execution point
// installed by a prior restoration, consuming it if found. Restoration
// guarantees at most one pending point per subgraph level, so the first
// match is the only one.
func (c *Context) FindResumePoint(sub *graph.Subgraph) (graph.Path, graph.ExecutionPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.executionPoints) == 0 {
		return "", graph.ExecutionPoint{}, false
	}
	for path, node := range sub.Nodes {
		if ep, ok := c.executionPoints[node]; ok {
			delete(c.executionPoints, node)
			return path, ep, true
		}
	}
	return "", graph.ExecutionPoint{}, false
}

// SetPendingRollback installs data as the rollback request the next
// top-level strategy execution attempt must consume (spec §3
// AgentContextData). A checkpoint/rollback node calls this; the strategy
// runner (C8) picks it up via HasPendingRollback/TakePendingRollback.
func (c *Context) SetPendingRollback(data *checkpoint.AgentContextData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = data
}

// HasPendingRollback reports whether a rollback request is queued.
func (c *Context) HasPendingRollback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending != nil
}

// TakePendingRollback returns and clears the queued rollback request, or
// nil if none is pending. Consumed exactly once, per spec §3.
func (c *Context) TakePendingRollback() *checkpoint.AgentContextData {
	c.mu.Lock()
	defer c.mu.Unlock()
	data := c.pending
	c.pending = nil
	return data
}

// CountIteration increments the run's shared invocation counter and fails
// with IterationLimitExceededError once it exceeds Config.MaxAgentIterations
// (spec §4.5 step 4). A non-positive MaxAgentIterations disables the cap.
func (c *Context) CountIteration() error {
	n := c.iterations.Add(1)
	if c.Config.MaxAgentIterations > 0 && n > int64(c.Config.MaxAgentIterations) {
		return &engineerr.IterationLimitExceededError{Limit: c.Config.MaxAgentIterations, Invocation: int(n)}
	}
	return nil
}

// Fork returns a child Context for a parallel branch (spec §5 "Forking"):
// it shares the strategy reference and the run-wide iteration counter, but
// owns deep copies of the prompt and storage, and a fresh Pipeline (the
// caller is responsible for re-installing any features the parent had
// installed, per spec's "features ... are re-initialized on the child").
func (c *Context) Fork(childRunID string) *Context {
	store := c.Storage.Copy()
	child := &Context{
		RunID:       childRunID,
		AgentID:     c.AgentID,
		Strategy:    c.Strategy,
		Prompt:      clonePrompt(c.Prompt),
		Storage:     store,
		State:       storage.NewStateManager(store),
		Pipeline:    pipeline.New(nil),
		Checkpoints: c.Checkpoints,
		Environment: c.Environment,
		Config:      c.Config,
		Model:       c.Model,
		iterations:  c.iterations,
	}
	return child
}

// Adopt replaces c's prompt and storage contents with child's, implementing
// the parallel-node reducer's "selects which child's context becomes the
// active context" rule (spec §4.5).
func (c *Context) Adopt(child *Context) error {
	messages := child.Prompt.Messages()
	if err := c.Prompt.Write(func(w *prompt.Write) error {
		w.RewritePrompt(messages)
		return nil
	}); err != nil {
		return err
	}
	c.Storage.Clear()
	c.Storage.PutAll(child.Storage.Snapshot())
	return nil
}

func clonePrompt(src *prompt.Controller) *prompt.Controller {
	c := prompt.NewController()
	messages := src.Messages()
	_ = c.Write(func(w *prompt.Write) error {
		w.RewritePrompt(messages)
		return nil
	})
	return c
}

var (
	_ checkpoint.RestoreTarget = (*Context)(nil)
	_ checkpoint.RollbackSink  = (*Context)(nil)
)
