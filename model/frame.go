package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go/v3"
)

// ErrMalformedFrame is returned by ParseFrame for payloads that are not JSON.
var ErrMalformedFrame = errors.New("malformed frame")

// FrameKind classifies a decoded stream frame.
type FrameKind int

const (
	// FrameIgnored is valid JSON the transcript has no use for, such as a
	// role-only delta or a finish_reason chunk.
	FrameIgnored FrameKind = iota
	FrameCitations
	FrameToolStatus
	FrameToolCallDelta
	FrameContent
)

func (k FrameKind) String() string {
	switch k {
	case FrameCitations:
		return "citations"
	case FrameToolStatus:
		return "tool_status"
	case FrameToolCallDelta:
		return "tool_call_delta"
	case FrameContent:
		return "content"
	default:
		return "ignored"
	}
}

// ToolCallDelta is one partial tool-call fragment. Fields are only applied
// when their Has* flag is set, so an explicit empty string still counts.
type ToolCallDelta struct {
	Index        int64
	ID           string
	HasID        bool
	Name         string
	HasName      bool
	Arguments    string
	HasArguments bool
}

// Frame is one decoded `data:` payload.
type Frame struct {
	Kind      FrameKind
	Sources   []Source
	Tool      string
	ToolCalls []ToolCallDelta
	Content   string
}

type wireFrame struct {
	Citations json.RawMessage `json:"citations"`
	Sources   json.RawMessage `json:"sources"`
	Status    string          `json:"status"`
	Tool      string          `json:"tool"`
	Choices   json.RawMessage `json:"choices"`
}

// ParseFrame decodes one SSE payload. Recognised shapes, checked in order:
//
//	{"citations": [...]}                      (also {"sources": [...]})
//	{"status": "tool_calling", "tool": "..."}
//	{"choices": [{"delta": {"tool_calls": [...]}}]}
//	{"choices": [{"delta": {"content": "..."}}]}
//
// Anything else that is valid JSON yields FrameIgnored.
func ParseFrame(payload []byte) (Frame, error) {
	var w wireFrame
	if err := json.Unmarshal(payload, &w); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	if raw := present(w.Citations, w.Sources); raw != nil {
		var sources []Source
		if err := json.Unmarshal(raw, &sources); err != nil {
			return Frame{}, fmt.Errorf("%w: citations: %v", ErrMalformedFrame, err)
		}
		return Frame{Kind: FrameCitations, Sources: sources}, nil
	}

	if w.Status == string(StatusToolCalling) && w.Tool != "" {
		return Frame{Kind: FrameToolStatus, Tool: w.Tool}, nil
	}

	if present(w.Choices) == nil {
		return Frame{Kind: FrameIgnored}, nil
	}

	var chunk openai.ChatCompletionChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return Frame{}, fmt.Errorf("%w: choices: %v", ErrMalformedFrame, err)
	}
	if len(chunk.Choices) == 0 {
		return Frame{Kind: FrameIgnored}, nil
	}

	delta := chunk.Choices[0].Delta
	if len(delta.ToolCalls) > 0 {
		frame := Frame{Kind: FrameToolCallDelta, ToolCalls: make([]ToolCallDelta, 0, len(delta.ToolCalls))}
		for _, tc := range delta.ToolCalls {
			frame.ToolCalls = append(frame.ToolCalls, ToolCallDelta{
				Index:        tc.Index,
				ID:           tc.ID,
				HasID:        tc.JSON.ID.Valid(),
				Name:         tc.Function.Name,
				HasName:      tc.Function.JSON.Name.Valid(),
				Arguments:    tc.Function.Arguments,
				HasArguments: tc.Function.JSON.Arguments.Valid(),
			})
		}
		return frame, nil
	}

	if delta.Content != "" {
		return Frame{Kind: FrameContent, Content: delta.Content}, nil
	}

	return Frame{Kind: FrameIgnored}, nil
}

// present returns the first raw value that exists and is not JSON null.
func present(raws ...json.RawMessage) json.RawMessage {
	for _, raw := range raws {
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			continue
		}
		return trimmed
	}
	return nil
}
