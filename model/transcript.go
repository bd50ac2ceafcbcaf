package model

// ErrorSuffix is appended to an assistant reply when its stream fails.
const ErrorSuffix = "\n\n[an error occurred, please retry]"

// Turn is the in-flight assistant message of one send, together with the
// tool-call state needed to apply the next frame.
type Turn struct {
	Message Message
	tools   ToolCallAccumulator
}

// NewTurn starts a turn for the given assistant placeholder.
func NewTurn(placeholder Message) Turn {
	return Turn{Message: placeholder}
}

// ApplyFrame is the transcript reducer. It never mutates t; the returned
// Turn owns fresh slices for every field it changed.
func ApplyFrame(t Turn, f Frame) Turn {
	switch f.Kind {
	case FrameCitations:
		t.Message.Sources = append([]Source(nil), f.Sources...)

	case FrameToolStatus:
		t.tools.StartTool(f.Tool)
		t.Message.Status = StatusToolCalling
		t.Message.ActiveToolName = f.Tool
		t.Message.ToolCalls = t.tools.Snapshot()

	case FrameToolCallDelta:
		t.tools.ApplyDeltas(f.ToolCalls)
		t.Message.Status = StatusToolCalling
		t.Message.ToolCalls = t.tools.Snapshot()

	case FrameContent:
		t.tools.EndTools()
		t.Message.Content += f.Content
		t.Message.Status = StatusStreaming
		t.Message.ActiveToolName = ""
		t.Message.ToolCalls = t.tools.Snapshot()
	}
	return t
}

// Finish settles the turn after the stream ends or [DONE] arrives. Content,
// tool calls and sources are kept as they are.
func Finish(t Turn) Turn {
	t.Message.Status = StatusIdle
	t.Message.ActiveToolName = ""
	return t
}

// Fail settles the turn after a transport error by appending ErrorSuffix to
// whatever content already arrived.
func Fail(t Turn) Turn {
	t = Finish(t)
	t.Message.Content += ErrorSuffix
	return t
}

// ReplaceMessage returns a copy of msgs with the entry whose ID matches
// msg.ID swapped for msg. The input slice is left untouched.
func ReplaceMessage(msgs []Message, msg Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i].ID == msg.ID {
			out[i] = msg
			break
		}
	}
	return out
}
