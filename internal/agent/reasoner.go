package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/medassist/clinical-portal/pkg/model"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap"
)

// Reasoner produces a short clinical reasoning summary for a set of
// critical measurements. It is an optional enrichment: the escalation
// pipeline works without one and ignores reasoner failures.
type Reasoner struct {
	client *openai.Client
	model  string
	logger *zap.Logger
}

// NewReasoner creates a Reasoner backed by an OpenAI-compatible API.
func NewReasoner(apiKey, modelName string, logger *zap.Logger) (*Reasoner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("apiKey is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	client := openai.NewClient(option.WithAPIKey(apiKey))

	return &Reasoner{
		client: &client,
		model:  modelName,
		logger: logger,
	}, nil
}

// Summarize asks the model for a brief reasoning summary of the given
// critical measurements.
func (r *Reasoner) Summarize(ctx context.Context, measurements []model.Measurement) (string, error) {
	var sb strings.Builder
	for _, m := range measurements {
		sb.WriteString(fmt.Sprintf("- %s: %v %s (status: %s)\n", m.Name, m.Value, m.Unit, m.Status))
	}

	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(r.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage("You are a clinical decision support assistant. Given a list of out-of-range laboratory measurements, explain in two or three sentences why they require urgent specialist attention. Do not give treatment advice."),
			openai.UserMessage(sb.String()),
		},
	})
	if err != nil {
		return "", fmt.Errorf("reasoning request failed: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty reasoning response")
	}

	r.logger.Info("reasoning summary generated",
		zap.Int("measurement_count", len(measurements)),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
	)

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
