package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"doubot/internal/config"
)

const geminiPrompt = `Você é um especialista em legislação fiscal/tributária analisando publicações do Diário Oficial da União.

PUBLICAÇÃO: %s
ÓRGÃO: %s

TEXTO DA PUBLICAÇÃO:
%s

INSTRUÇÕES PARA O RESUMO:

1. Foque nos aspectos fiscais/tributários: alterações em leis, impactos para empresas e contribuintes, prazos, alíquotas e valores.
2. Estruture em no máximo 150 palavras, começando pelo tipo e número da norma.
3. Use linguagem clara e objetiva, em português do Brasil.
4. Evite opiniões, repetições e menções a elementos do portal.

Gere APENAS o resumo, sem introduções ou explicações adicionais.`

// gemini talks to the Generative Language API.
type gemini struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

func newGemini(cfg config.GeminiConfig, client *http.Client) *gemini {
	return &gemini{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		apiKey:   cfg.APIKey,
		client:   client,
	}
}

func (g *gemini) name() string { return "gemini" }

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens"`
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *gemini) summarize(ctx context.Context, req summaryRequest) (string, error) {
	prompt := fmt.Sprintf(geminiPrompt,
		publicationLabel(req),
		organLabel(req),
		truncateRunes(req.Text, 2500),
	)

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenConfig{
			MaxOutputTokens: 300,
			Temperature:     0.2,
			TopP:            0.8,
			TopK:            40,
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	url := g.endpoint + "/models/" + g.model + ":generateContent"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var decoded geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}

	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, part := range decoded.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("gemini returned empty text")
	}
	return text, nil
}

func publicationLabel(req summaryRequest) string {
	if req.Title != "" {
		return req.Title
	}
	if req.Kind != "" {
		return req.Kind
	}
	return "Norma"
}

func organLabel(req summaryRequest) string {
	if req.Organ != "" {
		return req.Organ
	}
	return "Órgão não especificado"
}
