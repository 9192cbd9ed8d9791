// Package modelclient provides implementations of the external
// note-generation model interface: an OpenAI-backed client and a static
// deterministic client for tests and model-free deployments.
package modelclient

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/starford/ansuz/internal/assembler"
)

const systemPrompt = "You write one short grammatical note about a node of an " +
	"English sentence tree. Answer with the note text only, no preamble."

const systemPromptTwoStage = "You pick the best template id for a node of an " +
	"English sentence tree. Answer with the template id only."

// OpenAI calls the chat-completions API. The context deadline set by the
// assembler bounds every call; a timeout surfaces as ctx.Err and the
// caller degrades to the fallback path.
type OpenAI struct {
	client *openai.Client
	model  string
}

// NewOpenAI creates a client. model defaults to gpt-4o-mini.
func NewOpenAI(apiKey, model string) (*OpenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("modelclient: api key is required")
	}
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{client: openai.NewClient(apiKey), model: model}, nil
}

// Generate implements assembler.ModelClient.
func (o *OpenAI) Generate(ctx context.Context, req assembler.ModelRequest) (assembler.ModelResponse, error) {
	system := systemPrompt
	if req.WantTemplateID {
		system = systemPromptTwoStage
	}
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt(req)},
		},
	})
	if err != nil {
		return assembler.ModelResponse{}, fmt.Errorf("modelclient: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return assembler.ModelResponse{}, fmt.Errorf("modelclient: no choices returned")
	}
	out := strings.TrimSpace(resp.Choices[0].Message.Content)
	if req.WantTemplateID {
		return assembler.ModelResponse{TemplateID: out}, nil
	}
	return assembler.ModelResponse{Text: out}, nil
}

func prompt(req assembler.ModelRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "node family: %s\n", req.Family)
	fmt.Fprintf(&b, "text: %q\n", req.Content)
	if req.PartOfSpeech != "" {
		fmt.Fprintf(&b, "part of speech: %s\n", req.PartOfSpeech)
	}
	if req.DepLabel != "" {
		fmt.Fprintf(&b, "dependency label: %s\n", req.DepLabel)
	}
	fmt.Fprintf(&b, "context key: %s\n", req.ContextKey)
	return b.String()
}
