package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/google/generative-ai-go/genai"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/dileep-u-k/openapi-agent/internal/api"
	"github.com/dileep-u-k/openapi-agent/internal/tools"
)

// GeminiClient adapts Google's Gemini models to the tool-use protocol.
// Gemini identifies function responses by name rather than by id, so ids are
// minted here and resolved back to names from the conversation.
type GeminiClient struct {
	client *genai.Client
}

var _ Client = (*GeminiClient)(nil)

// NewGeminiClient creates a client bound to apiKey.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// Close releases the underlying connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// CreateMessage sends the conversation as a chat session and returns the reply.
func (c *GeminiClient) CreateMessage(ctx context.Context, req *Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("gemini request has no messages")
	}
	model := c.client.GenerativeModel(req.Model)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	model.SetMaxOutputTokens(int32(maxTokens))
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	model.Tools = toGeminiTools(req.Tools)

	contents, err := toGeminiContents(req.Messages)
	if err != nil {
		return nil, err
	}
	chat := model.StartChat()
	chat.History = contents[:len(contents)-1]
	last := contents[len(contents)-1]

	resp, err := chat.SendMessage(ctx, last.Parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini API call failed: %w", err)
	}
	out, err := parseGeminiResponse(resp)
	if err != nil {
		return nil, err
	}
	out.Model = req.Model
	return out, nil
}

// toGeminiTools declares every tool as a function of a single genai.Tool.
func toGeminiTools(toolset []tools.Tool) []*genai.Tool {
	if len(toolset) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(toolset))
	for _, t := range toolset {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  convertSchema(t.InputSchema),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

// convertSchema maps a decoded JSON schema onto genai.Schema. Keywords that
// Gemini does not model are dropped.
func convertSchema(s map[string]any) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{}
	out.Description, _ = s["description"].(string)
	out.Format, _ = s["format"].(string)
	out.Nullable, _ = s["nullable"].(bool)

	props, _ := s["properties"].(map[string]any)
	typeName, _ := s["type"].(string)
	switch typeName {
	case "object":
		out.Type = genai.TypeObject
	case "array":
		out.Type = genai.TypeArray
	case "string":
		out.Type = genai.TypeString
	case "number":
		out.Type = genai.TypeNumber
	case "integer":
		out.Type = genai.TypeInteger
	case "boolean":
		out.Type = genai.TypeBoolean
	default:
		if props != nil {
			out.Type = genai.TypeObject
		} else {
			out.Type = genai.TypeString
		}
	}

	if len(props) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			if prop, ok := raw.(map[string]any); ok {
				out.Properties[name] = convertSchema(prop)
			}
		}
	}
	if items, ok := s["items"].(map[string]any); ok {
		out.Items = convertSchema(items)
	}
	out.Required = stringList(s["required"])
	out.Enum = stringList(s["enum"])
	return out
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		out = append(out, fmt.Sprint(item))
	}
	return out
}

// toGeminiContents converts the conversation, resolving tool_result ids to
// the names of the invocations they answer.
func toGeminiContents(messages []Message) ([]*genai.Content, error) {
	names := make(map[string]string)
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		content := &genai.Content{Role: role}
		for _, part := range msg.Content {
			switch p := part.(type) {
			case TextPart:
				content.Parts = append(content.Parts, genai.Text(p.Text))
			case ToolUsePart:
				names[p.ID] = p.Name
				content.Parts = append(content.Parts, genai.FunctionCall{Name: p.Name, Args: p.Input})
			case ToolResultPart:
				name, ok := names[p.ToolUseID]
				if !ok {
					return nil, fmt.Errorf("tool result %s does not answer any earlier tool invocation", p.ToolUseID)
				}
				content.Parts = append(content.Parts, genai.FunctionResponse{Name: name, Response: toolResponse(p.Content)})
			}
		}
		contents = append(contents, content)
	}
	return contents, nil
}

// toolResponse wraps a serialized tool result into the object Gemini expects.
func toolResponse(content string) map[string]any {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(content), &decoded); err == nil {
		return decoded
	}
	return map[string]any{"content": content}
}

func parseGeminiResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no content returned from Gemini")
	}
	candidate := resp.Candidates[0]
	out := &Response{ID: uuid.NewString(), StopReason: candidate.FinishReason.String()}
	for _, part := range candidate.Content.Parts {
		switch v := part.(type) {
		case genai.Text:
			out.Content = append(out.Content, TextPart{Text: string(v)})
		case genai.FunctionCall:
			out.Content = append(out.Content, ToolUsePart{
				ID:    "gemini-toolcall-" + uuid.NewString(),
				Name:  v.Name,
				Input: v.Args,
			})
		default:
			log.Printf("Skipping gemini part of type %T", part)
		}
	}
	if resp.UsageMetadata != nil {
		out.Usage = api.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:  int(resp.UsageMetadata.TotalTokenCount),
		}
	}
	return out, nil
}
