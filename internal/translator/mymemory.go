package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const myMemoryURL = "https://api.mymemory.translated.net/get"

// MyMemoryService has no batch endpoint, so each sentence is its own request.
type MyMemoryService struct {
	baseURL string
	email   string
	client  *http.Client
}

func NewMyMemoryService(cfg ServiceConfig) *MyMemoryService {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = myMemoryURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &MyMemoryService{
		baseURL: baseURL,
		email:   cfg.Email,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *MyMemoryService) Name() string {
	return string(KindMyMemory)
}

func (s *MyMemoryService) Translate(ctx context.Context, texts []string, d Directives) ([]string, error) {
	sourceLang := d.SourceLang
	if sourceLang == "" || sourceLang == "auto" {
		sourceLang = "en"
	}
	langPair := fmt.Sprintf("%s|%s", sourceLang, d.TargetLang)

	out := make([]string, 0, len(texts))
	for _, text := range texts {
		t, err := s.translateOne(ctx, text, langPair)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// statusCode accepts both the numeric and the quoted form the API uses.
type statusCode int

func (c *statusCode) UnmarshalJSON(b []byte) error {
	s := string(b)
	if uq, err := strconv.Unquote(s); err == nil {
		s = uq
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("invalid response status %s", b)
	}
	*c = statusCode(n)
	return nil
}

func (s *MyMemoryService) translateOne(ctx context.Context, text, langPair string) (string, error) {
	q := url.Values{}
	q.Set("q", text)
	q.Set("langpair", langPair)
	if s.email != "" {
		q.Set("de", s.email)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var mymemResp struct {
		ResponseData struct {
			TranslatedText string  `json:"translatedText"`
			Match          float64 `json:"match"`
		} `json:"responseData"`
		ResponseStatus  statusCode `json:"responseStatus"`
		ResponseDetails string     `json:"responseDetails"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&mymemResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	if mymemResp.ResponseStatus != http.StatusOK {
		return "", fmt.Errorf("API error: %s (%d)", mymemResp.ResponseDetails, mymemResp.ResponseStatus)
	}

	return html.UnescapeString(mymemResp.ResponseData.TranslatedText), nil
}
