package model

import "time"

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	// RoleTool only exists on the wire; tool results never become transcript entries.
	RoleTool Role = "tool"
)

// Status is the live state of an assistant turn. The zero value means idle.
type Status string

const (
	StatusIdle        Status = ""
	StatusToolCalling Status = "tool_calling"
	StatusStreaming   Status = "streaming"
)

// ToolCallStatus tracks a single tool invocation within one turn.
type ToolCallStatus string

const (
	ToolCallRunning   ToolCallStatus = "running"
	ToolCallCompleted ToolCallStatus = "completed"
)

// Message represents one turn in a conversation
type Message struct {
	ID             string     `json:"id"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	Status         Status     `json:"status,omitempty"`
	ActiveToolName string     `json:"active_tool_name,omitempty"`
	ToolCalls      []ToolCall `json:"tool_calls,omitempty"`
	Sources        []Source   `json:"sources,omitempty"`
	CreatedAt      time.Time  `json:"created_at,omitzero"`
}

// FunctionCall is the name and raw JSON arguments of a tool invocation.
type FunctionCall struct {
	Name string `json:"name"`
	// Arguments is the concatenation of every streamed fragment. It is only
	// meaningful as JSON once the call is completed.
	Arguments string `json:"arguments"`
}

// ToolCall is a tool invocation attached to an assistant turn.
type ToolCall struct {
	ID       string         `json:"id"`
	Function FunctionCall   `json:"function"`
	Status   ToolCallStatus `json:"status,omitempty"`
}

// Source is a citation attributed to an assistant turn. Sources are never
// merged or updated once attached.
type Source struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	SiteID      *int64   `json:"siteId,omitempty"`
	DocumentID  *int64   `json:"documentId,omitempty"`
	SiteName    string   `json:"siteName,omitempty"`
	SiteDomain  string   `json:"siteDomain,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	SourceIndex *int     `json:"sourceIndex,omitempty"`
}

// IsStreaming reports whether the message is still receiving frames.
func (m Message) IsStreaming() bool {
	return m.Status != StatusIdle
}

// CloneMessages returns a shallow copy of msgs with fresh backing arrays for
// the per-message slices, so callers can hand it out without sharing state.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		if m.ToolCalls != nil {
			m.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
		}
		if m.Sources != nil {
			m.Sources = append([]Source(nil), m.Sources...)
		}
		out[i] = m
	}
	return out
}
