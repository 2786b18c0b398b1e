package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/aktagon/llmkit/anthropic"
	"github.com/aktagon/llmkit/anthropic/types"

	"doubot/internal/config"
)

const anthropicSystemPrompt = `Você é um especialista em legislação fiscal/tributária que resume publicações do Diário Oficial da União. Responda sempre em português do Brasil, com no máximo 150 palavras, sem introduções e sem mencionar elementos do portal.`

// anthropicProvider wraps the Anthropic Messages API.
type anthropicProvider struct {
	model     string
	apiKey    string
	maxTokens int
}

func newAnthropic(cfg config.AnthropicConfig) *anthropicProvider {
	return &anthropicProvider{
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: cfg.MaxTokens,
	}
}

func (a *anthropicProvider) name() string { return "anthropic" }

func (a *anthropicProvider) summarize(ctx context.Context, req summaryRequest) (string, error) {
	// The underlying client has no context support; honor cancellation at
	// least between attempts.
	if err := ctx.Err(); err != nil {
		return "", err
	}

	user := fmt.Sprintf("PUBLICAÇÃO: %s\nÓRGÃO: %s\n\nTEXTO:\n%s\n\nResuma os pontos fiscais/tributários relevantes.",
		publicationLabel(req),
		organLabel(req),
		truncateRunes(req.Text, 2500),
	)

	resp, err := anthropic.PromptWithSettings(anthropicSystemPrompt, user, "", a.apiKey, types.RequestSettings{
		Model:       a.model,
		MaxTokens:   a.maxTokens,
		Temperature: 0.2,
	})
	if err != nil {
		return "", fmt.Errorf("call anthropic: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("anthropic returned no content")
	}

	text := strings.TrimSpace(resp.Content[0].Text)
	if text == "" {
		return "", fmt.Errorf("anthropic returned empty text")
	}
	return text, nil
}
