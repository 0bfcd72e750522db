// Package quote wraps the text-generation service behind the pipeline's
// quote contract: a short string, classified errors, bounded retry.
package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"quote-shorts-pipeline/config"
	"quote-shorts-pipeline/retry"
	"quote-shorts-pipeline/types"
)

const defaultBaseURL = "https://api.groq.com/openai/v1"

const systemPrompt = `You are an assistant generating short inspirational quotes for vertical videos.
Respond with ONLY the quote text — no attribution, no quotation marks, no explanation.`

// Constraints bound what the provider may return.
type Constraints struct {
	MaxChars int
	Tone     string
	Lang     string
}

// Provider generates quotes via an OpenAI-compatible chat completions API.
type Provider struct {
	cfg        *config.Config
	httpClient *http.Client

	// BaseURL and RetryPolicy are overridable for tests.
	BaseURL     string
	RetryPolicy retry.Policy
}

// New creates a new quote Provider.
func New(cfg *config.Config) *Provider {
	return &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Quote.TimeoutSeconds) * time.Second},
		BaseURL:    defaultBaseURL,
		RetryPolicy: retry.Policy{
			MaxAttempts: cfg.Quote.MaxAttempts,
			BaseDelay:   2 * time.Second,
			MaxDelay:    30 * time.Second,
		},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Fetch returns one quote about topic that satisfies c, plus the number of
// attempts it took. Transient service failures are retried with backoff; auth
// and request errors fail immediately.
func (p *Provider) Fetch(ctx context.Context, topic string, c Constraints) (types.Quote, int, error) {
	log.Printf("[quote] Generating quote (topic: %q, max %d chars)...", topic, c.MaxChars)

	var text string
	attempts, err := retry.Do(ctx, p.RetryPolicy, func() error {
		var callErr error
		text, callErr = p.call(ctx, topic, c)
		return callErr
	})
	if err != nil {
		return types.Quote{}, attempts, fmt.Errorf("quote fetch: %w", err)
	}

	text = cleanQuote(text)
	if chars := utf8.RuneCountInString(text); chars > c.MaxChars {
		truncated := truncateAtWord(text, c.MaxChars)
		log.Printf("[quote] ⚠️  Provider returned %d chars (max %d) — truncated to %q", chars, c.MaxChars, truncated)
		text = truncated
	}

	log.Printf("[quote] ✅ Quote ready after %d attempt(s): %q", attempts, text)
	return types.Quote{Text: text, Lang: c.Lang, Provider: "groq/" + p.cfg.Quote.Model}, attempts, nil
}

func (p *Provider) call(ctx context.Context, topic string, c Constraints) (string, error) {
	userPrompt := fmt.Sprintf(
		"Generate one short %s quote about %s, in %s, at most %d characters.",
		p.cfg.Quote.Tone, topic, c.Lang, c.MaxChars,
	)

	reqBody := chatRequest{
		Model: p.cfg.Quote.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: p.cfg.Quote.Temperature,
		MaxTokens:   256,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NonRetryable(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", types.NonRetryable(err)
	}
	req.Header.Set("Authorization", "Bearer "+p.cfg.Credentials.GroqAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, resets) are worth another try.
		return "", types.Transient(fmt.Errorf("quote request: %w", err))
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.Transient(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyStatus(resp.StatusCode, respBytes)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBytes, &chatResp); err != nil {
		return "", types.NonRetryable(fmt.Errorf("parse response: %w", err))
	}
	if chatResp.Error != nil {
		return "", types.NonRetryable(fmt.Errorf("service error: %s", chatResp.Error.Message))
	}
	if len(chatResp.Choices) == 0 {
		return "", types.NonRetryable(errors.New("service returned no choices"))
	}

	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", types.NonRetryable(errors.New("service returned empty text"))
	}
	return text, nil
}

// classifyStatus maps HTTP status codes to the retry taxonomy: rate limits
// and server errors are transient, everything else is not.
func classifyStatus(code int, body []byte) error {
	msg := fmt.Errorf("HTTP %d: %s", code, summarize(body))
	switch {
	case code == http.StatusTooManyRequests || code == http.StatusRequestTimeout || code >= 500:
		return types.Transient(msg)
	default:
		return types.NonRetryable(msg)
	}
}

func summarize(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// cleanQuote strips the decoration LLMs like to add around a bare quote:
// markdown fences, then surrounding quotation marks.
func cleanQuote(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	s = strings.Trim(strings.TrimSpace(s), "\"'“”")
	return strings.TrimSpace(s)
}

// truncateAtWord cuts s to at most max characters, breaking at the last space
// so no word is split. A single over-long word gets a hard cut. Operates on
// runes so a multi-byte character is never split.
func truncateAtWord(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
