package services

import (
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/sirupsen/logrus"
)

// OpenAIAdvisor asks an OpenAI chat model to assess covered-call candidates
type OpenAIAdvisor struct {
	client openai.Client
	model  string
	logger *logrus.Logger
}

// NewOpenAIAdvisor creates an advisor; baseURL may be empty for the public API
func NewOpenAIAdvisor(apiKey, model, baseURL string) *OpenAIAdvisor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	opts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(1)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "gpt-4o"
	}

	return &OpenAIAdvisor{
		client: openai.NewClient(opts...),
		model:  model,
		logger: logger,
	}
}

func (a *OpenAIAdvisor) Name() string    { return "openai" }
func (a *OpenAIAdvisor) Available() bool { return true }

// AnalyzeCandidate sends the candidate prompt and parses the JSON reply
func (a *OpenAIAdvisor) AnalyzeCandidate(ctx context.Context, candidate CandidateContext) (*Advice, error) {
	resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(buildCandidatePrompt(candidate)),
		},
		Temperature: openai.Float(0.2),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in completion")
	}

	advice, err := parseAdvice(a.Name(), resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"symbol":     candidate.Symbol,
		"confidence": advice.Confidence,
		"model":      a.model,
	}).Debug("OpenAI advice received")
	return advice, nil
}
