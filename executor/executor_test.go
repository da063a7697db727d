package executor_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentgraph-go/graphrt/agent"
	"github.com/agentgraph-go/graphrt/checkpoint"
	"github.com/agentgraph-go/graphrt/checkpoint/inmem"
	"github.com/agentgraph-go/graphrt/executor"
	"github.com/agentgraph-go/graphrt/graph"
	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/prompt"
	"github.com/agentgraph-go/graphrt/tools"
)

// scriptedLLM replays a fixed sequence of responses, one per Execute call,
// and reports a fixed SupportsRequiredToolChoice answer.
type scriptedLLM struct {
	responses          [][]llm.ResponseMessage
	call               int
	supportsRequired    bool
}

func (s *scriptedLLM) Execute(_ context.Context, _ prompt.Prompt, _ llm.ModelID, _ []llm.ToolDeclaration) ([]llm.ResponseMessage, error) {
	if s.call >= len(s.responses) {
		return nil, fmt.Errorf("scriptedLLM: no more scripted responses (call %d)", s.call)
	}
	out := s.responses[s.call]
	s.call++
	return out, nil
}

func (s *scriptedLLM) ExecuteStreaming(context.Context, prompt.Prompt, llm.ModelID, []llm.ToolDeclaration) (<-chan llm.Frame, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *scriptedLLM) ExecuteMultipleChoices(context.Context, prompt.Prompt, llm.ModelID, []llm.ToolDeclaration, int) ([]llm.Choice, error) {
	return nil, fmt.Errorf("not implemented")
}

func (s *scriptedLLM) Moderate(context.Context, prompt.Prompt, llm.ModelID) (llm.ModerationResult, error) {
	return llm.ModerationResult{}, nil
}

func (s *scriptedLLM) SupportsRequiredToolChoice(llm.ModelID) bool { return s.supportsRequired }

func (s *scriptedLLM) Close() error { return nil }

func echoRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	spec := tools.TypeSpec{
		Codec: tools.JSONCodec[any]{
			ToJSON:   func(v any) ([]byte, error) { return json.Marshal(v) },
			FromJSON: func(raw []byte) (any, error) {
				var v any
				err := json.Unmarshal(raw, &v)
				return v, err
			},
		},
	}
	require.NoError(t, reg.Register(tools.Registration{
		Descriptor: tools.Descriptor{Name: "echo"},
		ArgSpec:    spec,
		ResultSpec: spec,
		Invoke:     func(_ context.Context, args any) (any, error) { return args, nil },
	}))
	return reg
}

func passthrough(_ context.Context, input any) (any, error) { return input, nil }

// sequentialToolStrategy builds the scenario S1 chain:
// start -> llmRequest -> execTool -> sendToolResult -> finish.
func sequentialToolStrategy() *graph.Strategy {
	root := &graph.Subgraph{
		Name:   "s",
		Start:  "s:start",
		Finish: "s:finish",
		Nodes: map[graph.Path]*graph.Node{
			"s:start":  {ID: "start", Payload: &graph.TransformPayload{Fn: passthrough}},
			"s:llm":    {ID: "llm", Payload: &graph.LLMRequestPayload{Model: "test-model", Tools: []llm.ToolDeclaration{{Name: "echo"}}}},
			"s:exec":   {ID: "exec", Payload: &graph.ToolExecutePayload{}},
			"s:send":   {ID: "send", Payload: &graph.ToolResultSendPayload{Model: "test-model"}},
			"s:finish": {ID: "finish", Payload: &graph.TransformPayload{Fn: passthrough}},
		},
		Edges: []*graph.Edge{
			{From: "s:start", To: "s:llm"},
			{From: "s:llm", To: "s:exec"},
			{From: "s:exec", To: "s:send"},
			{From: "s:send", To: "s:finish"},
		},
	}
	return &graph.Strategy{Name: "s", Root: root}
}

func TestExecuteSequentialToolCallChain(t *testing.T) {
	toolCallArgs := json.RawMessage(`{"q":"weather"}`)
	fake := &scriptedLLM{
		supportsRequired: true,
		responses: [][]llm.ResponseMessage{
			{{ToolCalls: []llm.ToolCall{{ID: "call-1", ToolName: "echo", Arguments: toolCallArgs}}}},
			{{Content: "done"}},
		},
	}
	ex := executor.New(fake, echoRegistry(t))
	ac, err := agent.New("run-1", "agent-1", sequentialToolStrategy(), nil, nil, nil, nil)
	require.NoError(t, err)
	ac.Model = "test-model"

	out, err := ex.Execute(context.Background(), ac, "go")
	require.NoError(t, err)
	messages, ok := out.([]llm.ResponseMessage)
	require.True(t, ok)
	require.Len(t, messages, 1)
	require.Equal(t, "done", messages[0].Content)

	tail := ac.Prompt.Messages()
	var sawToolCall, sawToolResult bool
	for _, m := range tail {
		if m.Role == prompt.RoleToolCall {
			sawToolCall = true
		}
		if m.Role == prompt.RoleToolResult {
			sawToolResult = true
			require.JSONEq(t, `{"q":"weather"}`, m.Content)
		}
	}
	require.True(t, sawToolCall)
	require.True(t, sawToolResult)
}

func TestExecuteEnforcesIterationLimit(t *testing.T) {
	root := &graph.Subgraph{
		Name:   "s",
		Start:  "s:start",
		Finish: "s:finish",
		Nodes: map[graph.Path]*graph.Node{
			"s:start":  {ID: "start", Payload: &graph.TransformPayload{Fn: passthrough}},
			"s:finish": {ID: "finish", Payload: &graph.TransformPayload{Fn: passthrough}},
		},
		// A self-loop so the run never reaches Finish on its own; the
		// iteration cap is the only thing that stops it.
		Edges: []*graph.Edge{{From: "s:start", To: "s:start"}},
	}
	strategy := &graph.Strategy{Name: "s", Root: root}
	ex := executor.New(&scriptedLLM{}, tools.NewRegistry())
	ac, err := agent.New("run-1", "agent-1", strategy, nil, nil, nil, nil, agent.WithMaxIterations(3))
	require.NoError(t, err)

	_, err = ex.Execute(context.Background(), ac, "go")
	require.Error(t, err)
}

// TestExecuteResumesFromCheckpointRestore exercises checkpoint.Restore's
// effect on a subsequent Execute call: a prior run is assumed to have
// stopped after the llm node, and a checkpoint rollback resumes exactly at
// the "send" node with the tool results as input.
func TestExecuteResumesFromCheckpointRestore(t *testing.T) {
	fake := &scriptedLLM{
		supportsRequired: true,
		responses: [][]llm.ResponseMessage{
			{{Content: "done"}},
		},
	}
	ex := executor.New(fake, echoRegistry(t))
	strategy := sequentialToolStrategy()
	checkpoints := inmem.New()
	ac, err := agent.New("run-1", "agent-1", strategy, nil, nil, checkpoints, nil)
	require.NoError(t, err)
	ac.Model = "test-model"

	resumeResults := []tools.CallResult{{ID: "call-1", ToolName: "echo", Result: json.RawMessage(`{"ok":true}`)}}
	ac.SetPendingRollback(&checkpoint.AgentContextData{
		NodeID:           "send",
		LastInput:        resumeResults,
		MessageHistory:   []prompt.Message{{Role: prompt.RoleSystem, Content: "sys"}},
		RollbackStrategy: checkpoint.Default,
	})

	out, err := ex.Execute(context.Background(), ac, nil)
	require.NoError(t, err)
	messages, ok := out.([]llm.ResponseMessage)
	require.True(t, ok)
	require.Equal(t, "done", messages[0].Content)
	require.Equal(t, 1, fake.call, "restoration must skip straight to the send node's LLM call")
}

func TestExecuteParallelSelectByMax(t *testing.T) {
	root := &graph.Subgraph{
		Name:   "s",
		Start:  "s:start",
		Finish: "s:finish",
		Nodes: map[graph.Path]*graph.Node{
			"s:start": {ID: "start", Payload: &graph.TransformPayload{Fn: passthrough}},
			"s:par": {ID: "par", Payload: &graph.ParallelPayload{
				Children: []graph.Path{"s:a", "s:b"},
				Reduce:   graph.ReduceSelectByMax,
				Score: func(_ context.Context, value any) (float64, error) {
					return value.(float64), nil
				},
			}},
			"s:a":      {ID: "a", Payload: &graph.TransformPayload{Fn: func(context.Context, any) (any, error) { return 1.0, nil }}},
			"s:b":      {ID: "b", Payload: &graph.TransformPayload{Fn: func(context.Context, any) (any, error) { return 2.0, nil }}},
			"s:finish": {ID: "finish", Payload: &graph.TransformPayload{Fn: passthrough}},
		},
		Edges: []*graph.Edge{
			{From: "s:start", To: "s:par"},
			{From: "s:par", To: "s:finish"},
		},
	}
	strategy := &graph.Strategy{Name: "s", Root: root}
	ex := executor.New(&scriptedLLM{}, tools.NewRegistry())
	ac, err := agent.New("run-1", "agent-1", strategy, nil, nil, nil, nil)
	require.NoError(t, err)

	out, err := ex.Execute(context.Background(), ac, nil)
	require.NoError(t, err)
	require.Equal(t, 2.0, out)
}
