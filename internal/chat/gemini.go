package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

// GeminiModel implements Model on the Gemini API
type GeminiModel struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGeminiModel creates a Gemini client authenticated with an API key
func NewGeminiModel(ctx context.Context, apiKey, model string) (*GeminiModel, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w: missing API key", ErrUnauthorized)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &GeminiModel{client: client, model: model, temperature: 0.2}, nil
}

// Generate runs one GenerateContent call
func (m *GeminiModel) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.model, toContents(req.Transcript), m.config(req))
	if err != nil {
		return nil, classifyAPIError(err)
	}
	return fromResponse(resp), nil
}

func (m *GeminiModel) config(req GenerateRequest) *genai.GenerateContentConfig {
	temperature := m.temperature
	cfg := &genai.GenerateContentConfig{Temperature: &temperature}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}

	switch {
	case req.WebSearch:
		cfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	case req.Tool != nil:
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: []*genai.FunctionDeclaration{functionDeclaration(req.Tool)}}}
		mode := genai.FunctionCallingConfigModeAuto
		if req.ToolMode == ToolModeNone {
			mode = genai.FunctionCallingConfigModeNone
		}
		cfg.ToolConfig = &genai.ToolConfig{
			FunctionCallingConfig: &genai.FunctionCallingConfig{Mode: mode},
		}
	}
	return cfg
}

func functionDeclaration(t *ToolDeclaration) *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name,
		Description: t.Description,
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				t.ParamName: {Type: genai.TypeString, Description: t.ParamDescription},
			},
			Required: []string{t.ParamName},
		},
	}
}

// toContents maps the transcript to Gemini contents. Tool calls are model turns,
// tool results and errors are function responses sent back as user turns.
func toContents(entries []Entry) []*genai.Content {
	contents := make([]*genai.Content, 0, len(entries))
	for _, e := range entries {
		switch e.Kind {
		case EntryUser:
			contents = append(contents, genai.NewContentFromText(e.Content, genai.RoleUser))
		case EntryAssistant:
			contents = append(contents, genai.NewContentFromText(e.Content, genai.RoleModel))
		case EntryToolCall:
			part := genai.NewPartFromFunctionCall(e.ToolName, map[string]any{knowledgeTool.ParamName: e.Query})
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleModel))
		case EntryToolResult:
			part := genai.NewPartFromFunctionResponse(e.ToolName, map[string]any{"output": e.Content})
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		case EntryToolError:
			part := genai.NewPartFromFunctionResponse(e.ToolName, map[string]any{"error": e.Content})
			contents = append(contents, genai.NewContentFromParts([]*genai.Part{part}, genai.RoleUser))
		}
	}
	return contents
}

func fromResponse(resp *genai.GenerateContentResponse) *Generation {
	gen := &Generation{Grounding: GroundingSources(resp)}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return gen
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		if part.FunctionCall != nil && gen.ToolCall == nil {
			gen.ToolCall = &ToolCall{Name: part.FunctionCall.Name, Query: stringArg(part.FunctionCall.Args, knowledgeTool.ParamName)}
			continue
		}
		text.WriteString(part.Text)
	}
	gen.Text = text.String()
	return gen
}

func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// classifyAPIError wraps rate-limit and credential failures in the package sentinels
func classifyAPIError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("gemini generate: %w", err)
	}
	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("gemini generate: %w: %w", ErrRateLimited, err)
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden,
		apiErr.Status == "PERMISSION_DENIED" || apiErr.Status == "UNAUTHENTICATED",
		strings.Contains(apiErr.Message, "API key not valid"):
		return fmt.Errorf("gemini generate: %w: %w", ErrUnauthorized, err)
	default:
		return fmt.Errorf("gemini generate: %w", err)
	}
}
