package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/argus-core/backend/internal/model"
)

// OpenAIProvider speaks the chat-completions streaming protocol directly
// over net/http; no ecosystem SDK for OpenAI appears anywhere in the
// retrieval pack, so this follows the teacher's plain JSON-over-HTTP client
// shape instead of adding an unrelated dependency.
type OpenAIProvider struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

func NewOpenAIProvider(apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://api.openai.com/v1/chat/completions",
	}
}

func (p *OpenAIProvider) EstimateTokens(req Request) int64 {
	return estimateTokensFromText(flattenHistory(req)) + int64(req.MaxTokens)
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description"`
		Parameters  map[string]any `json:"parameters"`
	} `json:"function"`
}

type openaiChunk struct {
	Choices []struct {
		Delta struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	messages := make([]openaiMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openaiMessage{Role: "system", Content: req.System})
	}
	for _, t := range req.Messages {
		messages = append(messages, openaiMessage{Role: string(t.Role), Content: t.Content})
	}

	tools := make([]openaiTool, 0, len(req.Tools))
	for _, d := range req.Tools {
		tool := openaiTool{Type: "function"}
		tool.Function.Name = d.Name
		tool.Function.Description = d.Description
		tool.Function.Parameters = toJSONSchema(d)
		tools = append(tools, tool)
	}

	body, err := json.Marshal(map[string]any{
		"model":      p.model,
		"messages":   messages,
		"tools":      tools,
		"stream":     true,
		"max_tokens": req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("openai request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("openai returned status %d", resp.StatusCode)
	}

	out := make(chan Delta, 8)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		var usage Usage
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				break
			}
			var chunk openaiChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if chunk.Usage != nil {
				usage.PromptTokens = chunk.Usage.PromptTokens
				usage.CompletionTokens = chunk.Usage.CompletionTokens
			}
			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					select {
					case out <- Delta{Kind: DeltaText, Text: choice.Delta.Content}:
					case <-ctx.Done():
						return
					}
				}
				for _, tc := range choice.Delta.ToolCalls {
					var args map[string]any
					_ = json.Unmarshal([]byte(tc.Function.Arguments), &args)
					select {
					case out <- Delta{Kind: DeltaToolCall, ToolCall: &model.ToolCall{
						ID:        tc.ID,
						Name:      tc.Function.Name,
						Arguments: args,
					}}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		out <- Delta{Kind: DeltaDone, Usage: &usage, Err: scanner.Err()}
	}()
	return out, nil
}

func toJSONSchema(d model.ToolDefinition) map[string]any {
	props := map[string]any{}
	var required []string
	for _, arg := range d.Arguments {
		prop := map[string]any{"type": arg.Type, "description": arg.Description}
		if len(arg.Enum) > 0 {
			prop["enum"] = arg.Enum
		}
		props[arg.Name] = prop
		if arg.Required {
			required = append(required, arg.Name)
		}
	}
	return map[string]any{"type": "object", "properties": props, "required": required}
}
