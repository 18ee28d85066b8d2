// Package gemini is an alternative text-generation oracle backed by the
// Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/receipt-assistant/internal/core/domain"
	"github.com/kirillkom/receipt-assistant/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

type Options struct {
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
	Executor *resilience.Executor
}

type Generator struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	executor   *resilience.Executor
}

func NewGenerator(options Options) (*Generator, error) {
	if strings.TrimSpace(options.APIKey) == "" {
		return nil, errors.New("missing GEMINI_API_KEY")
	}
	if strings.TrimSpace(options.Model) == "" {
		return nil, errors.New("missing GEMINI_MODEL")
	}
	baseURL := strings.TrimRight(options.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Generator{
		baseURL:    baseURL,
		apiKey:     options.APIKey,
		model:      options.Model,
		timeout:    timeout,
		httpClient: &http.Client{},
		executor:   options.Executor,
	}, nil
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":      0.2,
			"maxOutputTokens":  2048,
			"responseMimeType": "application/json",
		},
	}

	out, err := resilience.Call(ctx, g.executor, resilience.OracleOperation("gemini"), func(callCtx context.Context) (string, error) {
		return g.generate(callCtx, payload)
	}, resilience.ClassifyHTTPError)
	if err != nil {
		class := resilience.ClassifyHTTPError(err)
		if class.Retryable || errors.Is(err, context.DeadlineExceeded) {
			return "", domain.WrapError(domain.ErrTemporary, "gemini generate", err)
		}
		return "", err
	}
	return out, nil
}

func (g *Generator) generate(ctx context.Context, payload any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", resilience.NewHTTPStatusError("gemini", "generate", resp)
	}

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode generate response: %w", err)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty gemini response")
	}
	return strings.TrimSpace(result.Candidates[0].Content.Parts[0].Text), nil
}
