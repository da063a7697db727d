package tools

import (
	"context"

	"github.com/agentgraph-go/graphrt/engineerr"
	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/prompt"
)

// SyntheticToolChoiceNudge is the literal text injected as a user message
// when a model cannot be constrained with a required tool choice and the
// assistant's last turn produced no tool call.
const SyntheticToolChoiceNudge = "# DO NOT CHAT WITH ME DIRECTLY! CALL TOOLS, INSTEAD."

// DefaultMaxAttemptsWithoutToolChoice is the number of model calls the
// engine makes before giving up on a model that does not support required
// tool choice (spec §4.3, scenario S5).
const DefaultMaxAttemptsWithoutToolChoice = 3

// ToolChoiceEnforcer drives the synthetic-retry loop for models whose
// Executor reports SupportsRequiredToolChoice == false: it calls attempt
// repeatedly, appending SyntheticToolChoiceNudge as a user message between
// attempts, until attempt returns at least one tool call or the retry budget
// is exhausted.
type ToolChoiceEnforcer struct {
	Executor    llm.Executor
	MaxAttempts int
}

// NewToolChoiceEnforcer constructs an enforcer with the default retry budget.
func NewToolChoiceEnforcer(executor llm.Executor) *ToolChoiceEnforcer {
	return &ToolChoiceEnforcer{Executor: executor, MaxAttempts: DefaultMaxAttemptsWithoutToolChoice}
}

// Attempt is the model-call function the enforcer drives: given the current
// prompt, it returns whatever assistant messages the model produced.
type Attempt func(ctx context.Context, p prompt.Prompt) ([]llm.ResponseMessage, error)

// Enforce calls attempt, and if the model supports required tool choice
// natively it returns the result unchanged. Otherwise it retries up to
// MaxAttempts times, injecting the synthetic nudge message each time the
// assistant's response contains no tool call, and fails with
// ToolChoiceUnsupportedError once the budget is exhausted.
func (e *ToolChoiceEnforcer) Enforce(ctx context.Context, p prompt.Prompt, model llm.ModelID, attempt Attempt) ([]llm.ResponseMessage, error) {
	if e.Executor.SupportsRequiredToolChoice(model) {
		return attempt(ctx, p)
	}

	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttemptsWithoutToolChoice
	}

	current := p
	for attempts := 0; attempts < maxAttempts; attempts++ {
		messages, err := attempt(ctx, current)
		if err != nil {
			return nil, err
		}
		if containsToolCall(messages) {
			return messages, nil
		}
		current = current.Clone()
		current.Messages = append(current.Messages, prompt.Message{
			Role:    prompt.RoleUser,
			Content: SyntheticToolChoiceNudge,
		})
	}
	return nil, &engineerr.ToolChoiceUnsupportedError{ModelID: string(model), Retries: maxAttempts}
}

func containsToolCall(messages []llm.ResponseMessage) bool {
	for _, m := range messages {
		if len(m.ToolCalls) > 0 {
			return true
		}
	}
	return false
}
