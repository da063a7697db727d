package runner_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentgraph-go/graphrt/agent"
	"github.com/agentgraph-go/graphrt/checkpoint"
	"github.com/agentgraph-go/graphrt/executor"
	"github.com/agentgraph-go/graphrt/graph"
	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/pipeline"
	"github.com/agentgraph-go/graphrt/prompt"
	"github.com/agentgraph-go/graphrt/run"
	"github.com/agentgraph-go/graphrt/runner"
	"github.com/agentgraph-go/graphrt/tools"
)

type noLLM struct{}

func (noLLM) Execute(context.Context, prompt.Prompt, llm.ModelID, []llm.ToolDeclaration) ([]llm.ResponseMessage, error) {
	return nil, fmt.Errorf("not used")
}
func (noLLM) ExecuteStreaming(context.Context, prompt.Prompt, llm.ModelID, []llm.ToolDeclaration) (<-chan llm.Frame, error) {
	return nil, fmt.Errorf("not used")
}
func (noLLM) ExecuteMultipleChoices(context.Context, prompt.Prompt, llm.ModelID, []llm.ToolDeclaration, int) ([]llm.Choice, error) {
	return nil, fmt.Errorf("not used")
}
func (noLLM) Moderate(context.Context, prompt.Prompt, llm.ModelID) (llm.ModerationResult, error) {
	return llm.ModerationResult{}, nil
}
func (noLLM) SupportsRequiredToolChoice(llm.ModelID) bool { return true }
func (noLLM) Close() error                                 { return nil }

// fakeRunStore is a minimal run.Store for assertions on what the runner
// reports, without pulling in a real persistence backend.
type fakeRunStore struct {
	mu      sync.Mutex
	records map[string]run.Record
}

func newFakeRunStore() *fakeRunStore { return &fakeRunStore{records: map[string]run.Record{}} }

func (s *fakeRunStore) Upsert(r run.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[r.RunID] = r
	return nil
}

func (s *fakeRunStore) Load(runID string) (run.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[runID]
	return r, ok
}

func passthrough(_ context.Context, input any) (any, error) { return input, nil }

func trivialStrategy() *graph.Strategy {
	root := &graph.Subgraph{
		Name:   "s",
		Start:  "s:start",
		Finish: "s:finish",
		Nodes: map[graph.Path]*graph.Node{
			"s:start":  {ID: "start", Payload: &graph.TransformPayload{Fn: passthrough}},
			"s:finish": {ID: "finish", Payload: &graph.TransformPayload{Fn: passthrough}},
		},
		Edges: []*graph.Edge{{From: "s:start", To: "s:finish"}},
	}
	return &graph.Strategy{Name: "s", Root: root}
}

type recordingHandler struct {
	events []pipeline.EventType
}

func (h *recordingHandler) HandleEvent(_ context.Context, e pipeline.Event) error {
	h.events = append(h.events, e.Type())
	return nil
}

func TestRunnerExecuteEmitsLifecycleEventsInOrder(t *testing.T) {
	strategy := trivialStrategy()
	pl := pipeline.New(nil)
	rec := &recordingHandler{}
	pl.SubscribeUnfiltered("recorder", rec)

	ac, err := agent.New("run-1", "agent-1", strategy, nil, nil, nil, pl)
	require.NoError(t, err)
	ex := executor.New(noLLM{}, tools.NewRegistry())
	runs := newFakeRunStore()
	r := runner.New(ex, runs)

	out, err := r.Execute(context.Background(), ac, "hello")
	require.NoError(t, err)
	require.Equal(t, "hello", out)

	require.Equal(t, []pipeline.EventType{
		pipeline.AgentStarting,
		pipeline.StrategyStarting,
		pipeline.StrategyCompleted,
		pipeline.AgentCompleted,
		pipeline.AgentClosing,
	}, rec.events)

	rec2, ok := runs.Load("run-1")
	require.True(t, ok)
	require.Equal(t, run.StatusCompleted, rec2.Status)
}

// TestRunnerExecuteRetriesOnRollbackRequest exercises the mid-run rollback
// signal: the start node, on its first invocation, asks for a restart from
// a checkpoint pointing back at itself with different input, then succeeds
// normally once that pending rollback has been consumed.
func TestRunnerExecuteRetriesOnRollbackRequest(t *testing.T) {
	strategy := trivialStrategy()
	ac, err := agent.New("run-1", "agent-1", strategy, nil, nil, nil, nil)
	require.NoError(t, err)

	attempts := 0
	strategy.Root.Nodes["s:start"] = &graph.Node{ID: "start", Payload: &graph.TransformPayload{
		Fn: func(_ context.Context, input any) (any, error) {
			attempts++
			if attempts == 1 {
				ac.SetPendingRollback(&checkpoint.AgentContextData{
					NodeID:           "start",
					LastInput:        "resumed",
					RollbackStrategy: checkpoint.Default,
				})
				return nil, agent.ErrRollbackRequested
			}
			return input, nil
		},
	}}

	ex := executor.New(noLLM{}, tools.NewRegistry())
	r := runner.New(ex, nil)

	out, err := r.Execute(context.Background(), ac, "original")
	require.NoError(t, err)
	require.Equal(t, "resumed", out)
	require.Equal(t, 2, attempts)
}

func TestRunnerExecuteFailsOnGenuineError(t *testing.T) {
	strategy := trivialStrategy()
	strategy.Root.Nodes["s:start"] = &graph.Node{ID: "start", Payload: &graph.TransformPayload{
		Fn: func(context.Context, any) (any, error) {
			return nil, fmt.Errorf("boom")
		},
	}}
	ac, err := agent.New("run-1", "agent-1", strategy, nil, nil, nil, nil)
	require.NoError(t, err)
	ex := executor.New(noLLM{}, tools.NewRegistry())
	runs := newFakeRunStore()
	r := runner.New(ex, runs)

	_, err = r.Execute(context.Background(), ac, "go")
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	rec, ok := runs.Load("run-1")
	require.True(t, ok)
	require.Equal(t, run.StatusFailed, rec.Status)
	require.Contains(t, rec.LastError, "boom")
}
