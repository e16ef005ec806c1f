package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = openai.GPT4oMini

// OpenAIService works against any OpenAI-compatible chat completions API;
// BaseURL points it at OpenRouter, vLLM or a local gateway.
type OpenAIService struct {
	client *openai.Client
	model  string
}

func NewOpenAIService(cfg ServiceConfig) (*OpenAIService, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, errors.New("openai: api key is required")
	}
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	config.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIService{client: openai.NewClientWithConfig(config), model: model}, nil
}

func (s *OpenAIService) Name() string {
	return string(KindOpenAI)
}

func (s *OpenAIService) Translate(ctx context.Context, texts []string, d Directives) ([]string, error) {
	if len(texts) == 0 {
		return []string{}, nil
	}

	prompt, err := buildUserPrompt(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}

	req := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: buildSystemPrompt(d)},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}
	if d.Decoding.MaxNewTokens > 0 {
		req.MaxTokens = d.Decoding.MaxNewTokens * len(texts)
	}

	resp, err := s.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai: no choices in response")
	}

	return parseBatch(s.Name(), resp.Choices[0].Message.Content, texts)
}
