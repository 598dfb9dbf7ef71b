// Package extract turns unstructured customer text into a field map with an
// OpenAI-compatible chat completions endpoint.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Field names the model is asked to produce. BodyFull is also the single key
// of the degraded map used when extraction fails.
const (
	NameMain  = "NAME_MAIN"
	DateMain  = "DATE_MAIN"
	TimeMain  = "TIME_MAIN"
	PlaceMain = "PLACE_MAIN"
	QuoteTop  = "QUOTE_TOP"
	BodyText  = "BODY_TEXT"
	BodyFull  = "BODY_FULL"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("extract: no API key configured")
	// ErrEmptyResponse is returned when the model answers with no content.
	ErrEmptyResponse = errors.New("extract: empty model response")
)

// Client calls the chat completions API.
type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	HTTP    *http.Client
}

// New returns a Client. An empty apiKey yields a client whose every call
// fails with ErrNotConfigured.
func New(apiKey, baseURL, model string, timeout time.Duration) *Client {
	return &Client{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

const systemPrompt = `You are a typography assistant for a print shop.
Extract structured data from the customer's text for a %s design.
Answer with a JSON object using only these keys, all string values:
NAME_MAIN (main names), DATE_MAIN, TIME_MAIN, PLACE_MAIN, QUOTE_TOP (quote or poem at the top),
BODY_TEXT (body without names, date and place), BODY_FULL (the whole text with line breaks).
Omit missing fields. Keep wording and capitalization exactly as written.`

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	ResponseFormat map[string]string `json:"response_format"`
	Temperature    float64           `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// ExtractFields asks the model for a field map. Non-string values in the
// model's answer are dropped.
func (c *Client) ExtractFields(ctx context.Context, sourceText, templateKey string) (map[string]string, error) {
	if c == nil || c.APIKey == "" {
		return nil, ErrNotConfigured
	}
	kind := templateKey
	if kind == "" {
		kind = "print"
	}
	body, err := json.Marshal(chatRequest{
		Model: c.Model,
		Messages: []chatMessage{
			{Role: "system", Content: fmt.Sprintf(systemPrompt, kind)},
			{Role: "user", Content: sourceText},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("extract: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("extract: decode response: %w", err)
	}
	if len(cr.Choices) == 0 || strings.TrimSpace(cr.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyResponse
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(cr.Choices[0].Message.Content), &raw); err != nil {
		return nil, fmt.Errorf("extract: model answer is not JSON: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
			out[k] = s
		}
	}
	if len(out) == 0 {
		return nil, ErrEmptyResponse
	}
	return out, nil
}

// Degraded is the field map stored when extraction is unavailable: the whole
// source text under BODY_FULL, for the operator to split by hand.
func Degraded(sourceText string) map[string]string {
	return map[string]string{BodyFull: sourceText}
}
