// Package advisor wraps the OpenAI chat API behind a small text-generation
// interface so services never depend on the SDK directly.
package advisor

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.opentelemetry.io/otel/trace"
)

const systemPrompt = "You are a concise crypto market analyst. " +
	"Summarize quantitative results in plain language, two or three sentences, " +
	"no financial advice disclaimers."

type Advisor struct {
	client openai.Client
	model  string
	tracer trace.Tracer
}

func New(tracer trace.Tracer, apiKey, model string) *Advisor {
	return &Advisor{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		tracer: tracer,
	}
}

// GenerateText sends one user prompt and returns the first completion choice.
func (a *Advisor) GenerateText(ctx context.Context, prompt string) (string, error) {
	ctx, span := a.tracer.Start(ctx, "advisor.generate-text")
	defer span.End()

	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
