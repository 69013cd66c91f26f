package external

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/drug-repurposing-server/internal/domain"
)

// LLMClient calls an OpenAI-compatible chat completion endpoint for
// narrative synthesis. The pipeline treats it as optional: a disabled or
// failing LLM degrades the literature and web-intel agents to their
// deterministic fallbacks.
type LLMClient struct {
	collaborator
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	enabled     bool
}

// NewLLMClient creates a new chat completion client
func NewLLMClient(config domain.LLMConfig, logger *logrus.Logger) *LLMClient {
	clientConfig := domain.APIClientConfig{
		BaseURL: config.BaseURL,
		APIKey:  config.APIKey,
		Timeout: config.Timeout,
	}
	// Completions are non-deterministic, so they bypass the response cache
	return &LLMClient{
		collaborator: newCollaborator("llm", clientConfig, nil, logger),
		baseURL:      config.BaseURL,
		apiKey:       config.APIKey,
		model:        config.Model,
		temperature:  config.Temperature,
		enabled:      config.Enabled,
	}
}

// Enabled reports whether the client is configured for use
func (c *LLMClient) Enabled() bool {
	return c != nil && c.enabled && c.baseURL != ""
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate runs one completion and returns the raw text
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", fmt.Errorf("LLM client is disabled")
	}

	var text string
	err := c.fetch(ctx, "llm/chat", nil, &text, func(ctx context.Context) error {
		body := map[string]interface{}{
			"model": c.model,
			"messages": []map[string]string{
				{"role": "user", "content": prompt},
			},
			"temperature": c.temperature,
		}
		headers := map[string]string{}
		if c.apiKey != "" {
			headers["Authorization"] = "Bearer " + c.apiKey
		}

		var result chatCompletionResponse
		endpoint := strings.TrimSuffix(c.baseURL, "/") + "/chat/completions"
		if err := postJSON(ctx, c.httpClient, endpoint, body, headers, &result); err != nil {
			return err
		}
		if len(result.Choices) == 0 {
			return Permanent(fmt.Errorf("completion returned no choices"))
		}
		text = result.Choices[0].Message.Content
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// GenerateJSON runs a completion and decodes the response as JSON. Models
// wrap JSON in prose or code fences; the decoder falls back to the first
// balanced object found in the text.
func (c *LLMClient) GenerateJSON(ctx context.Context, prompt string, out interface{}) error {
	text, err := c.Generate(ctx, prompt)
	if err != nil {
		return err
	}
	return DecodeLenientJSON(text, out)
}

// DecodeLenientJSON decodes model output that may surround a JSON object
// with prose or markdown fences.
func DecodeLenientJSON(text string, out interface{}) error {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if err := json.Unmarshal([]byte(trimmed), out); err == nil {
		return nil
	}

	if candidate, ok := firstBalancedObject(trimmed); ok {
		return json.Unmarshal([]byte(candidate), out)
	}
	return fmt.Errorf("no JSON object found in completion")
}

// firstBalancedObject extracts the first brace-balanced substring,
// ignoring braces inside string literals.
func firstBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch ch {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
