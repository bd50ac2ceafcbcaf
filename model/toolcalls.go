package model

// ToolCallAccumulator rebuilds tool invocations from streamed delta
// fragments for a single assistant turn. At most one call is in progress at
// a time; everything before it is completed.
//
// The accumulator has value semantics: copying it and mutating the copy
// never affects the original, which keeps ApplyFrame pure.
type ToolCallAccumulator struct {
	current   ToolCall
	running   bool
	completed []ToolCall
}

// StartTool handles a tool_calling status frame. It flushes the in-progress
// call as completed even if its arguments are still arriving.
//
// TODO: if the backend ever announces a second tool before the first call's
// deltas finish, key in-progress calls by delta index instead of flushing.
func (a *ToolCallAccumulator) StartTool(name string) {
	if name == "" {
		return
	}
	a.flush()
}

// ApplyDeltas merges fragments into the in-progress call, in order. id and
// name overwrite, arguments append.
func (a *ToolCallAccumulator) ApplyDeltas(deltas []ToolCallDelta) {
	for _, d := range deltas {
		if !a.running {
			a.current = ToolCall{}
			a.running = true
		}
		if d.HasID && d.ID != "" {
			a.current.ID = d.ID
		}
		if d.HasName && d.Name != "" {
			a.current.Function.Name = d.Name
		}
		if d.HasArguments {
			a.current.Function.Arguments += d.Arguments
		}
	}
}

// EndTools handles a content delta: text means tool calling for the turn is over.
func (a *ToolCallAccumulator) EndTools() {
	a.flush()
}

// Running reports whether a call is in progress.
func (a *ToolCallAccumulator) Running() bool {
	return a.running
}

// Snapshot returns completed calls followed by the running call, if any.
// The slice is freshly allocated on every call.
func (a *ToolCallAccumulator) Snapshot() []ToolCall {
	n := len(a.completed)
	if a.running {
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]ToolCall, 0, n)
	for _, tc := range a.completed {
		tc.Status = ToolCallCompleted
		out = append(out, tc)
	}
	if a.running {
		tc := a.current
		tc.Status = ToolCallRunning
		out = append(out, tc)
	}
	return out
}

func (a *ToolCallAccumulator) flush() {
	if !a.running {
		return
	}
	n := len(a.completed)
	a.completed = append(a.completed[:n:n], a.current)
	a.current = ToolCall{}
	a.running = false
}
