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

// huggingFace calls the hosted inference API with a summarization model.
type huggingFace struct {
	endpoint string
	model    string
	token    string
	client   *http.Client
}

func newHuggingFace(cfg config.HuggingFaceConfig, client *http.Client) *huggingFace {
	return &huggingFace{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		model:    cfg.Model,
		token:    cfg.Token,
		client:   client,
	}
}

func (h *huggingFace) name() string { return "huggingface" }

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
	Options    hfOptions    `json:"options"`
}

type hfParameters struct {
	MaxLength int `json:"max_length,omitempty"`
	MinLength int `json:"min_length,omitempty"`
}

type hfOptions struct {
	WaitForModel bool `json:"wait_for_model"`
}

// hfResult covers both summarization and text2text model outputs.
type hfResult struct {
	SummaryText   string `json:"summary_text"`
	GeneratedText string `json:"generated_text"`
}

func (h *huggingFace) summarize(ctx context.Context, req summaryRequest) (string, error) {
	body, err := json.Marshal(hfRequest{
		Inputs:     truncateRunes(req.Text, 2000),
		Parameters: hfParameters{MaxLength: 200, MinLength: 30},
		Options:    hfOptions{WaitForModel: true},
	})
	if err != nil {
		return "", fmt.Errorf("marshal huggingface payload: %w", err)
	}

	url := h.endpoint + "/" + h.model
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+h.token)

	resp, err := h.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("call huggingface: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("huggingface error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var results []hfResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return "", fmt.Errorf("decode huggingface response: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("huggingface returned no results")
	}

	text := strings.TrimSpace(results[0].SummaryText)
	if text == "" {
		text = strings.TrimSpace(results[0].GeneratedText)
	}
	if text == "" {
		return "", fmt.Errorf("huggingface returned empty text")
	}
	return text, nil
}
