package executor

import (
	"fmt"

	"github.com/agentgraph-go/graphrt/llm"
	"github.com/agentgraph-go/graphrt/prompt"
	"github.com/agentgraph-go/graphrt/tools"
)

// responseToPromptMessages projects one LLM response message onto the
// prompt's message shape: a ToolCall entry per tool call the model
// requested, plus an Assistant entry for any textual content (skipped when
// the response is pure tool calls with no content).
func responseToPromptMessages(m llm.ResponseMessage) []prompt.Message {
	var out []prompt.Message
	if m.Content != "" || len(m.ToolCalls) == 0 {
		out = append(out, prompt.Message{Role: prompt.RoleAssistant, Content: m.Content, Metadata: m.Meta})
	}
	for _, tc := range m.ToolCalls {
		out = append(out, prompt.Message{
			Role:     prompt.RoleToolCall,
			Content:  string(tc.Arguments),
			ToolName: tc.ToolName,
			ToolCall: tc.ID,
			Metadata: m.Meta,
		})
	}
	return out
}

func sumTokenUsage(messages []llm.ResponseMessage) prompt.TokenUsage {
	var tu prompt.TokenUsage
	for _, m := range messages {
		tu.PromptTokens += m.Meta.PromptTokens
		tu.OutputTokens += m.Meta.OutputTokens
		tu.TotalTokens += m.Meta.TotalTokens
	}
	return tu
}

// toolResultMessage renders a dispatched CallResult as the ToolResult
// message appended to the prompt by a Tool-result send node.
func toolResultMessage(r tools.CallResult) prompt.Message {
	content := string(r.Result)
	if content == "" && r.Err != nil {
		content = r.Err.Error()
	}
	return prompt.Message{Role: prompt.RoleToolResult, Content: content, ToolName: r.ToolName, ToolCall: r.ID}
}

// extractToolCalls collects every tool call carried by value, which must be
// either a single llm.ResponseMessage or a []llm.ResponseMessage (the
// output of an LLM request / tool-result send node), in declaration order
// across messages. required is stamped onto every resulting CallRequest
// from the owning Tool-execute node's payload.
func extractToolCalls(value any, required bool) ([]tools.CallRequest, error) {
	var messages []llm.ResponseMessage
	switch v := value.(type) {
	case []llm.ResponseMessage:
		messages = v
	case llm.ResponseMessage:
		messages = []llm.ResponseMessage{v}
	default:
		return nil, fmt.Errorf("executor: tool execute node expects an LLM response, got %T", value)
	}
	var calls []tools.CallRequest
	for _, m := range messages {
		for _, tc := range m.ToolCalls {
			calls = append(calls, tools.CallRequest{ID: tc.ID, ToolName: tc.ToolName, Arguments: tc.Arguments, Required: required})
		}
	}
	return calls, nil
}

// asCallResults normalizes a Tool-result send node's input to a slice,
// accepting either a single tools.CallResult or a []tools.CallResult (what
// a preceding Tool-execute node returns).
func asCallResults(value any) ([]tools.CallResult, error) {
	switch v := value.(type) {
	case []tools.CallResult:
		return v, nil
	case tools.CallResult:
		return []tools.CallResult{v}, nil
	default:
		return nil, fmt.Errorf("executor: tool result send node expects a tool call result, got %T", value)
	}
}
