package gate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/responses"
)

const llmInstructions = `You are a content-sensitivity filter for a chat assistant.
Decide whether the user's message must be refused (illegal activity, self-harm instructions,
sexual content involving minors, targeted harassment, requests for personal data about private people).
Ordinary questions, including on difficult topics, must be allowed.
Answer with the JSON object only.`

type llmVerdict struct {
	Blocked bool   `json:"blocked" jsonschema:"description=true when the message must be refused"`
	Reason  string `json:"reason" jsonschema:"description=short reason; empty when allowed"`
}

var llmVerdictSchema = generateSchema[llmVerdict]()

// LLMClassifier asks an OpenAI model for a strict JSON verdict. Blocked
// utterances always get the same canned response; the model's reason is
// never shown to the user.
type LLMClassifier struct {
	client   *openai.Client
	model    string
	response string
}

func NewLLMClassifier(client *openai.Client, model, response string) *LLMClassifier {
	if response == "" {
		response = DefaultBlockedResponse
	}
	return &LLMClassifier{client: client, model: model, response: response}
}

func (c *LLMClassifier) Classify(ctx context.Context, text string) (Verdict, error) {
	if c.client == nil {
		return nil, errors.New("llm classifier: client is nil")
	}

	params := responses.ResponseNewParams{
		Model:           c.model,
		MaxOutputTokens: openai.Int(200),
		Instructions:    openai.String(llmInstructions),
		Input: responses.ResponseNewParamsInputUnion{
			OfInputItemList: []responses.ResponseInputItemUnionParam{
				responses.ResponseInputItemParamOfMessage(text, responses.EasyInputMessageRoleUser),
			},
		},
		Text: responses.ResponseTextConfigParam{
			Format: responses.ResponseFormatTextConfigUnionParam{
				OfJSONSchema: &responses.ResponseFormatTextJSONSchemaConfigParam{
					Name:        "SensitivityVerdict",
					Schema:      llmVerdictSchema,
					Strict:      openai.Bool(true),
					Description: openai.String("Sensitivity verdict JSON"),
					Type:        "json_schema",
				},
			},
		},
	}

	resp, err := c.client.Responses.New(ctx, params)
	if err != nil {
		return nil, err
	}

	var out llmVerdict
	if err := decodeModelJSON(resp.OutputText(), &out); err != nil {
		return nil, err
	}
	if out.Blocked {
		return Blocked{Response: c.response}, nil
	}
	return Passed{}, nil
}

func generateSchema[T any]() map[string]any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	var v T
	b, err := reflector.Reflect(v).MarshalJSON()
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	// strict mode wants every property required and no extras
	m["additionalProperties"] = false
	if props, ok := m["properties"].(map[string]any); ok {
		required := make([]string, 0, len(props))
		for name := range props {
			required = append(required, name)
		}
		m["required"] = required
	}
	return m
}

func decodeModelJSON(outputText string, v any) error {
	s := strings.TrimSpace(outputText)
	if s == "" {
		return errors.New("empty model output")
	}
	if err := json.Unmarshal([]byte(s), v); err == nil {
		return nil
	}
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start == -1 || end <= start {
		return fmt.Errorf("no JSON object found in model output (len=%d)", len(s))
	}
	return json.Unmarshal([]byte(s[start:end+1]), v)
}
