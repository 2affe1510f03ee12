package agent

import (
	"github.com/aileronlabs/aileron/pkg/llms"
)

// trimContext selects the messages worth keeping once the conversation
// outgrows the history limit: any system message, the initial user
// message, the last tool observation per unique tool, and the last four
// messages. Kept tool observations drag along the assistant message
// that requested them, and a kept assistant message drags along all of
// its observations, so the context never contains a half of a tool-call
// exchange. The selection is deterministic given the message stream.
//
// Only the view sent to the model is trimmed; the run's message list is
// append-only.
func trimContext(msgs []llms.Message) []llms.Message {
	keep := make([]bool, len(msgs))

	for i, m := range msgs {
		if m.Role == llms.RoleSystem {
			keep[i] = true
		}
	}
	for i, m := range msgs {
		if m.Role == llms.RoleUser {
			keep[i] = true
			break
		}
	}

	lastPerTool := make(map[string]int)
	for i, m := range msgs {
		if m.Role == llms.RoleTool {
			lastPerTool[m.Name] = i
		}
	}
	for _, i := range lastPerTool {
		keep[i] = true
	}

	for i := len(msgs) - 4; i < len(msgs); i++ {
		if i >= 0 {
			keep[i] = true
		}
	}

	closeToolCallPairs(msgs, keep)

	trimmed := make([]llms.Message, 0, len(msgs))
	for i, m := range msgs {
		if keep[i] {
			trimmed = append(trimmed, m)
		}
	}
	return trimmed
}

// closeToolCallPairs extends the keep set so that every kept tool
// observation is preceded by the assistant message carrying its call,
// and every kept assistant message with tool calls is followed by all
// of its observations. Chat endpoints reject orphaned halves.
func closeToolCallPairs(msgs []llms.Message, keep []bool) {
	carrier := make(map[string]int)
	replies := make(map[int][]int)

	for i, m := range msgs {
		switch m.Role {
		case llms.RoleAssistant:
			for _, call := range m.ToolCalls {
				carrier[call.ID] = i
			}
		case llms.RoleTool:
			if ci, ok := carrier[m.ToolCallID]; ok {
				replies[ci] = append(replies[ci], i)
			}
		}
	}

	for changed := true; changed; {
		changed = false
		for i, m := range msgs {
			if !keep[i] {
				continue
			}
			switch m.Role {
			case llms.RoleTool:
				if ci, ok := carrier[m.ToolCallID]; ok && !keep[ci] {
					keep[ci] = true
					changed = true
				}
			case llms.RoleAssistant:
				for _, ri := range replies[i] {
					if !keep[ri] {
						keep[ri] = true
						changed = true
					}
				}
			}
		}
	}
}
