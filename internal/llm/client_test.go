package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseFirstToolUse(t *testing.T) {
	resp := &Response{Content: []ContentPart{
		TextPart{Text: "Let me look that up."},
		ToolUsePart{ID: "toolu_1", Name: "api_call_get_a"},
		ToolUsePart{ID: "toolu_2", Name: "api_call_get_b"},
	}}

	tu, ok := resp.FirstToolUse()
	require.True(t, ok)
	assert.Equal(t, "toolu_1", tu.ID)

	_, ok = (&Response{Content: []ContentPart{TextPart{Text: "done"}}}).FirstToolUse()
	assert.False(t, ok)
}

func TestResponseText(t *testing.T) {
	resp := &Response{Content: []ContentPart{
		TextPart{Text: "  Hello"},
		ToolUsePart{ID: "x"},
		TextPart{Text: " world \n"},
	}}
	assert.Equal(t, "Hello world", resp.Text())
}

func TestMessageJSONWireFormat(t *testing.T) {
	msg := Message{Role: RoleAssistant, Content: []ContentPart{
		TextPart{Text: "calling"},
		ToolUsePart{ID: "toolu_1", Name: "api_call_get_x", Input: map[string]any{"url": "https://api.example.com/x"}},
	}}
	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"role": "assistant",
		"content": [
			{"type": "text", "text": "calling"},
			{"type": "tool_use", "id": "toolu_1", "name": "api_call_get_x", "input": {"url": "https://api.example.com/x"}}
		]
	}`, string(raw))

	result, err := json.Marshal(NewToolResult("toolu_1", `{"ok":true}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":[{"type":"tool_result","tool_use_id":"toolu_1","content":"{\"ok\":true}"}]}`, string(result))
}

func TestMessageToolUseWithoutInputEncodesEmptyObject(t *testing.T) {
	raw, err := json.Marshal(Message{Role: RoleAssistant, Content: []ContentPart{ToolUsePart{ID: "t", Name: "n"}}})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"input":{}`)
}

func TestMessageUnmarshal(t *testing.T) {
	var msgs []Message
	require.NoError(t, json.Unmarshal([]byte(`[
		{"role": "user", "content": "hi there"},
		{"role": "assistant", "content": [{"type": "tool_use", "id": "t1", "name": "api_call", "input": {"method": "GET"}}]},
		{"role": "user", "content": [{"type": "tool_result", "tool_use_id": "t1", "content": "{}"}]}
	]`), &msgs))

	require.Len(t, msgs, 3)
	assert.Equal(t, NewUserText("hi there"), msgs[0])
	assert.Equal(t, ToolUsePart{ID: "t1", Name: "api_call", Input: map[string]any{"method": "GET"}}, msgs[1].Content[0])
	assert.Equal(t, NewToolResult("t1", "{}"), msgs[2])
}

func TestMessageUnmarshalRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{name: "unknown role", data: `{"role": "system", "content": "x"}`, want: "invalid message role"},
		{name: "unknown part", data: `{"role": "user", "content": [{"type": "image"}]}`, want: "unsupported content part type"},
		{name: "bad content", data: `{"role": "user", "content": 12}`, want: "invalid message content"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			assert.ErrorContains(t, json.Unmarshal([]byte(tt.data), &m), tt.want)
		})
	}
}
