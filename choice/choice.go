// Package choice implements the N-choice LLM response handling (spec
// component C9): selecting among several candidate responses and adapting a
// plain llm.Executor into one that always requests multiple choices and
// returns the selected one.
package choice

import (
	"context"
	"fmt"

	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/prompt"
)

// SelectionStrategy picks one Choice out of several candidates. May consult
// the environment (e.g., for interactive selection), hence the context.
type SelectionStrategy interface {
	Select(ctx context.Context, choices []llm.Choice) (llm.Choice, error)
}

// SelectionStrategyFunc adapts a plain function to SelectionStrategy.
type SelectionStrategyFunc func(ctx context.Context, choices []llm.Choice) (llm.Choice, error)

func (fn SelectionStrategyFunc) Select(ctx context.Context, choices []llm.Choice) (llm.Choice, error) {
	return fn(ctx, choices)
}

// First is the default SelectionStrategy: it always returns the first
// choice.
var First SelectionStrategy = SelectionStrategyFunc(func(_ context.Context, choices []llm.Choice) (llm.Choice, error) {
	if len(choices) == 0 {
		return llm.Choice{}, ErrEmptyChoiceList
	}
	return choices[0], nil
})

// ErrEmptyChoiceList is returned when a SelectionStrategy is asked to choose
// from zero candidates.
var ErrEmptyChoiceList = fmt.Errorf("choice: empty choice list")

// executorWithChoiceSelection wraps an llm.Executor so that Execute
// internally requests NumberOfChoices candidates and returns the one
// Strategy selects. Execute always goes through ExecuteMultipleChoices (Wrap
// never builds one with fewer than 2 choices); with First as the strategy it
// returns the same messages as the underlying Execute whenever the
// provider's first choice matches its single-call response.
type executorWithChoiceSelection struct {
	llm.Executor
	Strategy        SelectionStrategy
	NumberOfChoices int
}

// Wrap returns an llm.Executor that requests numberOfChoices candidates per
// call (minimum 2) and returns strategy's pick, projected back to the
// []llm.ResponseMessage shape Execute callers expect. If strategy is nil,
// First is used.
func Wrap(executor llm.Executor, strategy SelectionStrategy, numberOfChoices int) llm.Executor {
	if strategy == nil {
		strategy = First
	}
	if numberOfChoices < 2 {
		numberOfChoices = 2
	}
	return &executorWithChoiceSelection{Executor: executor, Strategy: strategy, NumberOfChoices: numberOfChoices}
}

func (e *executorWithChoiceSelection) Execute(ctx context.Context, p prompt.Prompt, model llm.ModelID, toolDecls []llm.ToolDeclaration) ([]llm.ResponseMessage, error) {
	choices, err := e.Executor.ExecuteMultipleChoices(ctx, p, model, toolDecls, e.NumberOfChoices)
	if err != nil {
		return nil, err
	}
	selected, err := e.Strategy.Select(ctx, choices)
	if err != nil {
		return nil, err
	}
	return selected.Messages, nil
}
