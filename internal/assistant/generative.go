package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultGenerativeBaseURL = "https://generativelanguage.googleapis.com"

// GenerativeConfig configures the generateContent HTTP adapter.
type GenerativeConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// GenerativeClient implements Assistant against a generative-language
// REST endpoint.
type GenerativeClient struct {
	cfg GenerativeConfig
}

// NewGenerativeClient builds the adapter. A nil HTTP client and empty
// base URL pick working defaults.
func NewGenerativeClient(cfg GenerativeConfig) *GenerativeClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultGenerativeBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &GenerativeClient{cfg: cfg}
}

// ExtractKeywords asks the model for one or two search keywords.
func (c *GenerativeClient) ExtractKeywords(ctx context.Context, text string) ([]string, error) {
	out, err := c.generate(ctx, keywordPrompt(text))
	if err != nil {
		return nil, err
	}
	return splitKeywords(out), nil
}

// Converse produces a grounded reply for the bot's fallback flow.
func (c *GenerativeClient) Converse(ctx context.Context, input ConversationInput) (string, error) {
	out, err := c.generate(ctx, conversationPrompt(input))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

func (c *GenerativeClient) generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("assistant api key is empty")
	}
	type part struct {
		Text string `json:"text"`
	}
	type content struct {
		Parts []part `json:"parts"`
	}
	reqBody := struct {
		Contents []content `json:"contents"`
	}{Contents: []content{{Parts: []part{{Text: prompt}}}}}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.cfg.BaseURL, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generate content: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("generate content: empty response")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}
