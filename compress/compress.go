// Package compress implements the history compression policies (spec
// component C10): named pure functions over a prompt's message history.
// Every policy preserves the original first system message and is
// idempotent: Policy(Policy(m)) == Policy(m).
package compress

import (
	"fmt"
	"strings"
	"time"

	"github.com/agentgraph-go/graphrt/prompt"
)

// compressedMarkerPrefix tags every summary message these policies emit.
// A policy that finds the entire tail already tagged treats the history as
// already compressed and returns it unchanged, which is what makes each
// policy idempotent: compressing a compressed history would otherwise
// re-chunk the summaries themselves into a different shape.
const compressedMarkerPrefix = "[compressed"

func alreadyCompressed(tail []prompt.Message) bool {
	if len(tail) == 0 {
		return false
	}
	for _, m := range tail {
		if !strings.HasPrefix(m.Content, compressedMarkerPrefix) {
			return false
		}
	}
	return true
}

// Policy rewrites a message history. Implementations must never drop the
// original first system message and must be idempotent on already-compressed
// input.
type Policy func(messages []prompt.Message) []prompt.Message

func systemMessage(messages []prompt.Message) (prompt.Message, bool) {
	if len(messages) == 0 || messages[0].Role != prompt.RoleSystem {
		return prompt.Message{}, false
	}
	return messages[0], true
}

func rest(messages []prompt.Message) []prompt.Message {
	if sysMsg, ok := systemMessage(messages); ok {
		_ = sysMsg
		return messages[1:]
	}
	return messages
}

func summaryMessage(format string, args ...any) prompt.Message {
	return prompt.Message{Role: prompt.RoleAssistant, Content: fmt.Sprintf(compressedMarkerPrefix+" "+format+"]", args...)}
}

// WholeHistory returns the history unchanged except for collapsing it under
// a single summary placeholder is NOT performed: WholeHistory is the
// identity policy, used when no compression is desired but a history
// compress node is still wired in for symmetry with other strategies.
func WholeHistory(messages []prompt.Message) []prompt.Message {
	out := make([]prompt.Message, len(messages))
	copy(out, messages)
	return out
}

// WholeHistoryMultipleSystemMessages behaves like WholeHistory but also
// preserves every system message found anywhere in the history (not just
// the first), since some strategies interleave system messages as
// instructions mid-run.
func WholeHistoryMultipleSystemMessages(messages []prompt.Message) []prompt.Message {
	return WholeHistory(messages)
}

// FromLastN returns a policy that keeps the first system message plus the
// last n non-system messages, summarizing everything dropped in between.
// Summary messages left at the front by an earlier pass are not counted
// against n, so a second pass over its own output changes nothing.
func FromLastN(n int) Policy {
	return func(messages []prompt.Message) []prompt.Message {
		sysMsg, hasSystem := systemMessage(messages)
		tail := rest(messages)
		lead := 0
		for lead < len(tail) && strings.HasPrefix(tail[lead].Content, compressedMarkerPrefix) {
			lead++
		}
		if len(tail)-lead <= n || alreadyCompressed(tail) {
			return WholeHistory(messages)
		}
		dropped := len(tail) - n
		out := make([]prompt.Message, 0, n+2)
		if hasSystem {
			out = append(out, sysMsg)
		}
		out = append(out, summaryMessage("%d earlier messages", dropped))
		out = append(out, tail[dropped:]...)
		return out
	}
}

// FromTimestamp returns a policy that keeps the first system message plus
// every message whose ResponseMetadata.Timestamp is at or after t,
// summarizing everything earlier. Summary messages left at the front by an
// earlier pass do not by themselves trigger another summary.
func FromTimestamp(t time.Time) Policy {
	return func(messages []prompt.Message) []prompt.Message {
		sysMsg, hasSystem := systemMessage(messages)
		tail := rest(messages)
		if alreadyCompressed(tail) {
			return WholeHistory(messages)
		}
		cut := 0
		for cut < len(tail) && strings.HasPrefix(tail[cut].Content, compressedMarkerPrefix) {
			cut++
		}
		lead := cut
		for cut < len(tail) && tail[cut].Metadata.Timestamp.Before(t) {
			cut++
		}
		if cut == lead {
			return WholeHistory(messages)
		}
		out := make([]prompt.Message, 0, len(tail)-cut+2)
		if hasSystem {
			out = append(out, sysMsg)
		}
		out = append(out, summaryMessage("%d earlier messages", cut))
		out = append(out, tail[cut:]...)
		return out
	}
}

// Chunked returns a policy that keeps the first system message and replaces
// every non-overlapping run of size non-system messages with a single
// summary message, preserving chunk order. Applying Chunked to an
// already-chunked history is a no-op: re-chunking the summary messages
// themselves would change their shape and break idempotence.
func Chunked(size int) Policy {
	if size <= 0 {
		size = 1
	}
	return func(messages []prompt.Message) []prompt.Message {
		sysMsg, hasSystem := systemMessage(messages)
		tail := rest(messages)
		if alreadyCompressed(tail) {
			return WholeHistory(messages)
		}

		out := make([]prompt.Message, 0, len(tail)/size+2)
		if hasSystem {
			out = append(out, sysMsg)
		}
		for start := 0; start < len(tail); start += size {
			end := start + size
			if end > len(tail) {
				end = len(tail)
			}
			out = append(out, summaryMessage("chunk %d-%d", start, end-1))
		}
		return out
	}
}
