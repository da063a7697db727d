package choice_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentgraph-go/graphrt/choice"
	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/prompt"
)

type stubExecutor struct{}

func (stubExecutor) Execute(context.Context, prompt.Prompt, llm.ModelID, []llm.ToolDeclaration) ([]llm.ResponseMessage, error) {
	return []llm.ResponseMessage{{Content: "deterministic answer"}}, nil
}
func (stubExecutor) ExecuteStreaming(context.Context, prompt.Prompt, llm.ModelID, []llm.ToolDeclaration) (<-chan llm.Frame, error) {
	return nil, nil
}
func (s stubExecutor) ExecuteMultipleChoices(ctx context.Context, p prompt.Prompt, model llm.ModelID, tools []llm.ToolDeclaration, n int) ([]llm.Choice, error) {
	messages, _ := s.Execute(ctx, p, model, tools)
	choices := make([]llm.Choice, n)
	for i := range choices {
		choices[i] = llm.Choice{Messages: messages}
	}
	return choices, nil
}
func (stubExecutor) Moderate(context.Context, prompt.Prompt, llm.ModelID) (llm.ModerationResult, error) {
	return llm.ModerationResult{}, nil
}
func (stubExecutor) SupportsRequiredToolChoice(llm.ModelID) bool { return true }
func (stubExecutor) Close() error                                 { return nil }

func TestWrapWithFirstStrategyRoundTripsToUnderlyingExecute(t *testing.T) {
	provider := stubExecutor{}
	wrapped := choice.Wrap(provider, choice.First, 3)

	direct, err := provider.Execute(context.Background(), prompt.Prompt{}, "model-x", nil)
	require.NoError(t, err)

	viaWrapper, err := wrapped.Execute(context.Background(), prompt.Prompt{}, "model-x", nil)
	require.NoError(t, err)

	require.Equal(t, direct, viaWrapper)
}

func TestSelectFirstFailsOnEmptyChoiceList(t *testing.T) {
	_, err := choice.First.Select(context.Background(), nil)
	require.ErrorIs(t, err, choice.ErrEmptyChoiceList)
}

func TestWrapUsesCustomStrategy(t *testing.T) {
	calls := 0
	strategy := choice.SelectionStrategyFunc(func(_ context.Context, choices []llm.Choice) (llm.Choice, error) {
		calls++
		return choices[len(choices)-1], nil
	})
	wrapped := choice.Wrap(stubExecutor{}, strategy, 4)
	_, err := wrapped.Execute(context.Background(), prompt.Prompt{}, "model-x", nil)
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}
