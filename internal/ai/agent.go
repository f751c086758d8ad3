package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/responses"
	"github.com/openai/openai-go/shared"
	"github.com/openai/openai-go/shared/constant"
)

// Briefing is the assistant's structured answer to an operational question.
type Briefing struct {
	Answer           string   `json:"answer"`
	Highlights       []string `json:"highlights"`
	SuggestedActions []string `json:"suggested_actions"`
}

// AgentService answers operational questions about stock, purchasing and
// builds. Read-only: it can summarize and recommend but never changes state.
type AgentService interface {
	Brief(ctx context.Context, question string, registry *ToolRegistry) (*Briefing, error)
}

type Agent struct {
	client *openai.Client
}

func NewAgent(apiKey string) *Agent {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &Agent{client: &client}
}

// Brief executes every read tool in the registry, assembles the results into
// one prompt, and asks the model for a structured briefing.
func (a *Agent) Brief(ctx context.Context, question string, registry *ToolRegistry) (*Briefing, error) {
	var sections strings.Builder
	for _, tool := range registry.All() {
		result, err := tool.Handler(ctx)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", tool.Name, err)
		}
		fmt.Fprintf(&sections, "## %s\n%s\n%s\n\n", tool.Name, tool.Description, result)
	}

	prompt := fmt.Sprintf(`You are an operations assistant for an electronics production workshop.
Answer the question using ONLY the data sections below.
Rules:
1. Quantities and part numbers must come verbatim from the data.
2. If the data does not cover the question, say so in the answer.
3. Highlights are short facts an operator should know right now.
4. Suggested actions are concrete next steps (e.g. "expedite PO-2026-003"), or empty.

%s
Question: %s`, sections.String(), question)

	schemaStruct := generateSchema()
	schemaJSON, err := json.Marshal(schemaStruct)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	var schemaMap map[string]any
	if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal schema to map: %w", err)
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(shared.ChatModelGPT4o),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: param.NewOpt(prompt),
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Type:        constant.JSONSchema("json_schema"),
					Name:        "operations_briefing",
					Strict:      param.NewOpt(true),
					Schema:      schemaMap,
					Description: param.NewOpt("A briefing answering an operational question about stock, purchasing and builds"),
				},
			},
		},
	}

	resp, err := a.client.Responses.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai responses error: %w", err)
	}

	content := resp.OutputText()
	if content == "" {
		return nil, fmt.Errorf("empty response content")
	}

	var briefing Briefing
	if err := json.Unmarshal([]byte(content), &briefing); err != nil {
		return nil, fmt.Errorf("failed to parse completion: %w", err)
	}
	return &briefing, nil
}

func generateSchema() interface{} {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v Briefing
	return reflector.Reflect(v)
}
