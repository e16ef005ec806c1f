package quality

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// HTTPEmbedder calls a sentence-embedding service that takes
// {"texts": [...], "normalize": true} at /embed and answers
// {"model": "...", "dims": n, "vectors": [[...], ...]}.
type HTTPEmbedder struct {
	baseURL string
	client  *http.Client
}

func NewHTTPEmbedder(baseURL string, timeout time.Duration) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var resp struct {
		Model   string      `json:"model"`
		Dims    int         `json:"dims"`
		Vectors [][]float32 `json:"vectors"`
	}
	req := struct {
		Texts     []string `json:"texts"`
		Normalize bool     `json:"normalize"`
	}{texts, true}
	if err := postJSON(ctx, e.client, e.baseURL+"/embed", req, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Vectors) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(resp.Vectors), len(texts))
	}
	return resp.Vectors, nil
}

// OpenAIEmbedder uses an OpenAI-compatible embeddings endpoint.
type OpenAIEmbedder struct {
	client *openai.Client
	model  openai.EmbeddingModel
}

func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	return &OpenAIEmbedder{client: openai.NewClientWithConfig(config), model: m}
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embed: vector index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// HTTPScorer asks a scoring service for the average token log-probability
// of a translation: POST /score {"source", "target", "source_lang",
// "target_lang"} → {"avg_logprob": x}.
type HTTPScorer struct {
	baseURL    string
	sourceLang string
	targetLang string
	client     *http.Client
}

func NewHTTPScorer(baseURL, sourceLang, targetLang string, timeout time.Duration) *HTTPScorer {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPScorer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sourceLang: sourceLang,
		targetLang: targetLang,
		client:     &http.Client{Timeout: timeout},
	}
}

func (s *HTTPScorer) Score(ctx context.Context, source, target string) (float64, error) {
	req := map[string]string{
		"source":      source,
		"target":      target,
		"source_lang": s.sourceLang,
		"target_lang": s.targetLang,
	}
	var resp struct {
		AvgLogProb *float64 `json:"avg_logprob"`
	}
	if err := postJSON(ctx, s.client, s.baseURL+"/score", req, &resp); err != nil {
		return 0, fmt.Errorf("score: %w", err)
	}
	if resp.AvgLogProb == nil {
		return 0, fmt.Errorf("score: response has no avg_logprob")
	}
	return *resp.AvgLogProb, nil
}

func postJSON(ctx context.Context, client *http.Client, url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("API returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
