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

// AnthropicProvider mirrors OpenAIProvider's shape against Anthropic's
// messages-streaming API; no SDK for Anthropic exists in the retrieval pack
// either, so both follow the same plain-HTTP pattern for consistency.
type AnthropicProvider struct {
	httpClient *http.Client
	apiKey     string
	model      string
	baseURL    string
}

func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-3-5-sonnet-20241022"
	}
	return &AnthropicProvider{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		apiKey:     apiKey,
		model:      model,
		baseURL:    "https://api.anthropic.com/v1/messages",
	}
}

func (p *AnthropicProvider) EstimateTokens(req Request) int64 {
	return estimateTokensFromText(flattenHistory(req)) + int64(req.MaxTokens)
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type        string `json:"type"`
		Text        string `json:"text"`
		PartialJSON string `json:"partial_json"`
	} `json:"delta"`
	ContentBlock struct {
		Type  string `json:"type"`
		ID    string `json:"id"`
		Name  string `json:"name"`
		Input map[string]any `json:"input"`
	} `json:"content_block"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	messages := make([]anthropicMessage, 0, len(req.Messages))
	for _, t := range req.Messages {
		role := "user"
		if t.Role == model.RoleAssistant {
			role = "assistant"
		}
		messages = append(messages, anthropicMessage{Role: role, Content: t.Content})
	}

	tools := make([]anthropicTool, 0, len(req.Tools))
	for _, d := range req.Tools {
		tools = append(tools, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: toJSONSchema(d)})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	body, err := json.Marshal(map[string]any{
		"model":      p.model,
		"system":     req.System,
		"messages":   messages,
		"tools":      tools,
		"max_tokens": maxTokens,
		"stream":     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("anthropic request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("anthropic returned status %d", resp.StatusCode)
	}

	out := make(chan Delta, 8)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		var usage Usage
		var pendingToolName, pendingToolID string
		var pendingArgsJSON strings.Builder

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev anthropicEvent
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
				continue
			}
			switch ev.Type {
			case "content_block_start":
				if ev.ContentBlock.Type == "tool_use" {
					pendingToolName = ev.ContentBlock.Name
					pendingToolID = ev.ContentBlock.ID
					pendingArgsJSON.Reset()
				}
			case "content_block_delta":
				switch ev.Delta.Type {
				case "text_delta":
					select {
					case out <- Delta{Kind: DeltaText, Text: ev.Delta.Text}:
					case <-ctx.Done():
						return
					}
				case "input_json_delta":
					pendingArgsJSON.WriteString(ev.Delta.PartialJSON)
				}
			case "content_block_stop":
				if pendingToolName != "" {
					var args map[string]any
					_ = json.Unmarshal([]byte(pendingArgsJSON.String()), &args)
					select {
					case out <- Delta{Kind: DeltaToolCall, ToolCall: &model.ToolCall{
						ID:        pendingToolID,
						Name:      pendingToolName,
						Arguments: args,
					}}:
					case <-ctx.Done():
						return
					}
					pendingToolName = ""
				}
			case "message_delta":
				if ev.Usage.OutputTokens > 0 {
					usage.CompletionTokens = ev.Usage.OutputTokens
				}
			case "message_start":
				if ev.Usage.InputTokens > 0 {
					usage.PromptTokens = ev.Usage.InputTokens
				}
			}
		}
		out <- Delta{Kind: DeltaDone, Usage: &usage, Err: scanner.Err()}
	}()
	return out, nil
}
