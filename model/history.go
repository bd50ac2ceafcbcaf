package model

// RawMessage is one entry of a thread's server-side history.
type RawMessage struct {
	ID         string        `json:"id,omitempty"`
	Role       string        `json:"role"`
	Content    string        `json:"content,omitempty"`
	ToolCalls  []RawToolCall `json:"tool_calls,omitempty"`
	ToolCallID string        `json:"tool_call_id,omitempty"`
}

// RawToolCall is a finished tool call as stored in history.
type RawToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// BuildTranscript turns stored history into transcript messages.
//
// An assistant entry with empty content and tool calls is an announcement:
// its calls are carried forward onto the next assistant entry that has
// content. Tool results are dropped. If a user entry or the end of history
// arrives while calls are still pending, they are emitted as their own
// assistant entry so they are not attributed to a later turn. citations, if
// any, go to the last assistant message.
func BuildTranscript(raw []RawMessage, citations []Source, newID func() string) []Message {
	msgs := make([]Message, 0, len(raw))
	var pending []ToolCall

	flushPending := func() {
		if len(pending) == 0 {
			return
		}
		msgs = append(msgs, Message{ID: newID(), Role: RoleAssistant, ToolCalls: pending})
		pending = nil
	}

	idFor := func(r RawMessage) string {
		if r.ID != "" {
			return r.ID
		}
		return newID()
	}

	for _, r := range raw {
		switch Role(r.Role) {
		case RoleTool:
			continue

		case RoleUser:
			flushPending()
			msgs = append(msgs, Message{ID: idFor(r), Role: RoleUser, Content: r.Content})

		default:
			calls := completedCalls(r.ToolCalls)
			if r.Content == "" {
				pending = append(pending, calls...)
				continue
			}
			msg := Message{ID: idFor(r), Role: RoleAssistant, Content: r.Content}
			if all := append(pending, calls...); len(all) > 0 {
				msg.ToolCalls = all
			}
			pending = nil
			msgs = append(msgs, msg)
		}
	}
	flushPending()

	if len(citations) > 0 {
		for i := len(msgs) - 1; i >= 0; i-- {
			if msgs[i].Role == RoleAssistant {
				msgs[i].Sources = append([]Source(nil), citations...)
				break
			}
		}
	}
	return msgs
}

func completedCalls(raw []RawToolCall) []ToolCall {
	if len(raw) == 0 {
		return nil
	}
	out := make([]ToolCall, len(raw))
	for i, tc := range raw {
		out[i] = ToolCall{ID: tc.ID, Function: tc.Function, Status: ToolCallCompleted}
	}
	return out
}
