package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dileep-u-k/openapi-agent/internal/api"
	"github.com/dileep-u-k/openapi-agent/internal/tools"
)

// =================================================================================
// Conversation Model
// =================================================================================

// Role represents the originator of a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// PartType tags the variants of ContentPart on the wire.
type PartType string

const (
	PartText       PartType = "text"
	PartToolUse    PartType = "tool_use"
	PartToolResult PartType = "tool_result"
)

// ContentPart is one of TextPart, ToolUsePart or ToolResultPart. The set is
// closed: the unexported method keeps other packages from adding variants,
// so a type switch over the three is exhaustive.
type ContentPart interface {
	Type() PartType
	isContentPart()
}

// TextPart is plain text.
type TextPart struct {
	Text string
}

// ToolUsePart is a tool invocation emitted by the model.
type ToolUsePart struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResultPart carries a tool's serialized result back to the model.
type ToolResultPart struct {
	ToolUseID string
	Content   string
}

func (TextPart) Type() PartType       { return PartText }
func (ToolUsePart) Type() PartType    { return PartToolUse }
func (ToolResultPart) Type() PartType { return PartToolResult }

func (TextPart) isContentPart()       {}
func (ToolUsePart) isContentPart()    {}
func (ToolResultPart) isContentPart() {}

// Message is a single turn of the conversation.
type Message struct {
	Role    Role
	Content []ContentPart
}

// NewUserText builds a user message holding a single text part.
func NewUserText(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart{Text: text}}}
}

// NewToolResult builds the user message that answers a tool invocation.
func NewToolResult(toolUseID, content string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{ToolResultPart{ToolUseID: toolUseID, Content: content}}}
}

// =================================================================================
// Request / Response
// =================================================================================

// Request is a single model round trip.
type Request struct {
	Model     string
	MaxTokens int
	System    string
	Tools     []tools.Tool
	Messages  []Message
}

// Response is the model's answer to a Request.
type Response struct {
	ID         string
	Model      string
	Content    []ContentPart
	StopReason string
	Usage      api.Usage
}

// FirstToolUse returns the first tool invocation in the response. Any further
// invocations in the same response are ignored by the conversation loop.
func (r *Response) FirstToolUse() (ToolUsePart, bool) {
	for _, part := range r.Content {
		if tu, ok := part.(ToolUsePart); ok {
			return tu, true
		}
	}
	return ToolUsePart{}, false
}

// Text concatenates the text parts of the response.
func (r *Response) Text() string {
	var b strings.Builder
	for _, part := range r.Content {
		if t, ok := part.(TextPart); ok {
			b.WriteString(t.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

// =================================================================================
// Client Interface
// =================================================================================

// Client is implemented by every model provider.
type Client interface {
	// CreateMessage sends the conversation and tool schemas to the model and
	// returns its response. Errors are returned as-is and are fatal to the
	// conversation run.
	CreateMessage(ctx context.Context, req *Request) (*Response, error)
}

// =================================================================================
// JSON encoding
// =================================================================================

// wirePart is the flat JSON shape shared by all content parts.
type wirePart struct {
	Type      PartType        `json:"type"`
	Text      string          `json:"text,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	Content   string          `json:"content,omitempty"`
}

type wireMessage struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

func toWirePart(part ContentPart) (wirePart, error) {
	switch p := part.(type) {
	case TextPart:
		return wirePart{Type: PartText, Text: p.Text}, nil
	case ToolUsePart:
		input := p.Input
		if input == nil {
			input = map[string]any{}
		}
		raw, err := json.Marshal(input)
		if err != nil {
			return wirePart{}, fmt.Errorf("failed to encode tool input for %s: %w", p.Name, err)
		}
		return wirePart{Type: PartToolUse, ID: p.ID, Name: p.Name, Input: raw}, nil
	case ToolResultPart:
		return wirePart{Type: PartToolResult, ToolUseID: p.ToolUseID, Content: p.Content}, nil
	default:
		return wirePart{}, fmt.Errorf("unsupported content part %T", part)
	}
}

func fromWirePart(w wirePart) (ContentPart, error) {
	switch w.Type {
	case PartText:
		return TextPart{Text: w.Text}, nil
	case PartToolUse:
		var input map[string]any
		if len(w.Input) > 0 {
			if err := json.Unmarshal(w.Input, &input); err != nil {
				return nil, fmt.Errorf("failed to decode tool input for %s: %w", w.Name, err)
			}
		}
		return ToolUsePart{ID: w.ID, Name: w.Name, Input: input}, nil
	case PartToolResult:
		return ToolResultPart{ToolUseID: w.ToolUseID, Content: w.Content}, nil
	default:
		return nil, fmt.Errorf("unsupported content part type %q", w.Type)
	}
}

// MarshalJSON encodes the message in the provider wire format.
func (m Message) MarshalJSON() ([]byte, error) {
	parts := make([]wirePart, 0, len(m.Content))
	for _, part := range m.Content {
		w, err := toWirePart(part)
		if err != nil {
			return nil, err
		}
		parts = append(parts, w)
	}
	content, err := json.Marshal(parts)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireMessage{Role: m.Role, Content: content})
}

// UnmarshalJSON accepts content either as a list of parts or as a plain string.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if w.Role != RoleUser && w.Role != RoleAssistant {
		return fmt.Errorf("invalid message role %q", w.Role)
	}
	m.Role = w.Role
	m.Content = nil

	var text string
	if err := json.Unmarshal(w.Content, &text); err == nil {
		m.Content = []ContentPart{TextPart{Text: text}}
		return nil
	}
	var parts []wirePart
	if err := json.Unmarshal(w.Content, &parts); err != nil {
		return fmt.Errorf("invalid message content: %w", err)
	}
	for _, wp := range parts {
		part, err := fromWirePart(wp)
		if err != nil {
			return err
		}
		m.Content = append(m.Content, part)
	}
	return nil
}
