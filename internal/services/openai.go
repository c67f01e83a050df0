package services

import (
	"context"
	"fmt"
	"log"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIScriptService writes answer scripts with any OpenAI-compatible chat
// completion endpoint (OpenAI itself, or Ark/Doubao through BaseURL).
type OpenAIScriptService struct {
	client *openai.Client
	model  string
}

var _ ScriptService = (*OpenAIScriptService)(nil)

// NewOpenAIScriptService creates the client. Empty baseURL and model use the
// OpenAI defaults.
func NewOpenAIScriptService(apiKey, baseURL, model string) *OpenAIScriptService {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIScriptService{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// GenerateScript asks the model for an insertion index and dialogue in JSON mode.
func (s *OpenAIScriptService) GenerateScript(ctx context.Context, req ScriptRequest) (*Script, error) {
	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildScriptSystemPrompt(req),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildScriptUserPrompt(req),
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.8,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai request failed: %v", ErrScriptGenerationFailed, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no response from openai", ErrScriptGenerationFailed)
	}

	raw := resp.Choices[0].Message.Content
	script, err := parseScriptReply(raw, req.CurrentIndex)
	if err != nil {
		log.Printf("[OpenAI script] parse failed: %v; raw response: %s", err, truncateString(raw, 2000))
		return nil, err
	}
	if err := validateScript(script, req); err != nil {
		log.Printf("[OpenAI script] invalid script: %v", err)
		return nil, err
	}

	log.Printf("[OpenAI script] %d lines, insert after %d (%s)", len(script.Lines), script.InsertAfterIndex, script.Reason)
	return script, nil
}

// truncateString truncates a string to maxLen and appends "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
