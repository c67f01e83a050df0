package services

import (
	"context"
	"fmt"
	"log"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiScriptService writes answer scripts through the Google Gen AI SDK.
// It is the alternative to the OpenAI-compatible writer.
type GeminiScriptService struct {
	client *genai.Client
	model  string
}

var _ ScriptService = (*GeminiScriptService)(nil)

// NewGeminiScriptService creates the genai client once; it is safe for
// concurrent use by all questions.
func NewGeminiScriptService(ctx context.Context, apiKey, model string) (*GeminiScriptService, error) {
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiScriptService{client: client, model: model}, nil
}

// GenerateScript requests a JSON reply and parses it like the OpenAI writer.
func (s *GeminiScriptService) GenerateScript(ctx context.Context, req ScriptRequest) (*Script, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buildScriptSystemPrompt(req), genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.8),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(buildScriptUserPrompt(req)), config)
	if err != nil {
		return nil, fmt.Errorf("%w: gemini request failed: %v", ErrScriptGenerationFailed, err)
	}

	raw := resp.Text()
	if raw == "" {
		return nil, fmt.Errorf("%w: empty response from gemini", ErrScriptGenerationFailed)
	}

	script, err := parseScriptReply(raw, req.CurrentIndex)
	if err != nil {
		log.Printf("[Gemini script] parse failed: %v; raw response: %s", err, truncateString(raw, 2000))
		return nil, err
	}
	if err := validateScript(script, req); err != nil {
		log.Printf("[Gemini script] invalid script: %v", err)
		return nil, err
	}

	log.Printf("[Gemini script] %d lines, insert after %d (%s)", len(script.Lines), script.InsertAfterIndex, script.Reason)
	return script, nil
}
