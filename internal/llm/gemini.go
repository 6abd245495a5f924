package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genai"

	"github.com/argus-core/backend/internal/model"
)

// GeminiProvider streams chat turns through the genai SDK, the same client
// construction the embedding path uses.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

func NewGeminiProvider(ctx context.Context, apiKey, model string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing ARGUS_LLM_API_KEY for gemini provider")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("failed to construct gemini client: %w", err)
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiProvider{client: client, model: model}, nil
}

func (p *GeminiProvider) EstimateTokens(req Request) int64 {
	return estimateTokensFromText(flattenHistory(req)) + int64(req.MaxTokens)
}

func (p *GeminiProvider) Stream(ctx context.Context, req Request) (<-chan Delta, error) {
	contents := toGeminiContents(req.Messages)
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Tools:             toGeminiTools(req.Tools),
	}

	out := make(chan Delta, 8)
	go func() {
		defer close(out)

		var usage Usage
		for resp, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, cfg) {
			if err != nil {
				out <- Delta{Kind: DeltaDone, Err: err}
				return
			}
			if resp == nil || len(resp.Candidates) == 0 {
				continue
			}
			if resp.UsageMetadata != nil {
				usage.PromptTokens = int64(resp.UsageMetadata.PromptTokenCount)
				usage.CompletionTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
			}
			for _, part := range resp.Candidates[0].Content.Parts {
				switch {
				case part.Text != "":
					select {
					case out <- Delta{Kind: DeltaText, Text: part.Text}:
					case <-ctx.Done():
						return
					}
				case part.FunctionCall != nil:
					args, _ := json.Marshal(part.FunctionCall.Args)
					var argMap map[string]any
					_ = json.Unmarshal(args, &argMap)
					select {
					case out <- Delta{Kind: DeltaToolCall, ToolCall: &model.ToolCall{
						Name:      part.FunctionCall.Name,
						Arguments: argMap,
					}}:
					case <-ctx.Done():
						return
					}
				}
			}
		}
		out <- Delta{Kind: DeltaDone, Usage: &usage}
	}()
	return out, nil
}

func toGeminiContents(turns []model.Turn) []*genai.Content {
	contents := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := genai.Role(genai.RoleUser)
		if t.Role == model.RoleAssistant {
			role = genai.Role(genai.RoleModel)
		}
		if t.Content == "" {
			continue
		}
		contents = append(contents, genai.NewContentFromText(t.Content, role))
	}
	return contents
}

func toGeminiTools(defs []model.ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		props := map[string]*genai.Schema{}
		var required []string
		for _, arg := range d.Arguments {
			props[arg.Name] = &genai.Schema{Type: genaiArgType(arg.Type), Description: arg.Description}
			if arg.Required {
				required = append(required, arg.Name)
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: props,
				Required:   required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func genaiArgType(t string) genai.Type {
	switch t {
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	default:
		return genai.TypeString
	}
}
