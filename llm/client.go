package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const (
	defaultTimeout  = 30 * time.Second
	geminiAPIBase   = "https://generativelanguage.googleapis.com/v1beta/models"
	openaiAPIBase   = "https://api.openai.com/v1/chat/completions"
	defaultGemini   = "gemini-1.5-flash"
	defaultOpenAIMd = "gpt-4o-mini"
)

// Config selects the backend and model for a Client.
type Config struct {
	Provider Provider
	Model    string
	APIKey   string // falls back to GEMINI_API_KEY / OPENAI_API_KEY env var
	Locale   Locale
}

// Client is a provider-agnostic chat-completion gateway. It tracks
// cumulative token usage across every call made through it, per spec
// §3's "TokenUsage counters are monotonically non-decreasing" invariant.
type Client struct {
	cfg   Config
	http  *http.Client
	usage TokenUsage
}

// NewClient builds a Client from cfg, resolving a missing APIKey from
// the provider's conventional environment variable.
func NewClient(cfg Config) *Client {
	if cfg.APIKey == "" {
		switch cfg.Provider {
		case ProviderOpenAI:
			cfg.APIKey = os.Getenv("OPENAI_API_KEY")
		default:
			cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}
	if cfg.Model == "" {
		if cfg.Provider == ProviderOpenAI {
			cfg.Model = defaultOpenAIMd
		} else {
			cfg.Model = defaultGemini
		}
	}
	if cfg.Provider == "" {
		cfg.Provider = ProviderGemini
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: defaultTimeout}}
}

// Usage returns a snapshot of cumulative token counters.
func (c *Client) Usage() TokenUsage { return c.usage }

// Complete sends prompt to the configured provider and returns the
// model's raw text response. A StreamFunc, if non-nil, is invoked with
// each chunk as it is decoded (best-effort: the HTTP providers below do
// a single non-streaming call and invoke it once with the full text,
// since chunked SSE parsing is out of scope for the core).
type StreamFunc func(chunk string)

func (c *Client) Complete(ctx context.Context, prompt string, stream StreamFunc) (string, error) {
	var text string
	var promptTok, completionTok int
	var err error

	switch c.cfg.Provider {
	case ProviderOpenAI:
		text, promptTok, completionTok, err = c.completeOpenAI(ctx, prompt)
	default:
		text, promptTok, completionTok, err = c.completeGemini(ctx, prompt)
	}
	if err != nil {
		return "", &Error{Op: "complete", Err: err}
	}

	c.usage.add(promptTok, completionTok)
	if stream != nil {
		stream(text)
	}
	return text, nil
}

func (c *Client) completeGemini(ctx context.Context, prompt string) (string, int, int, error) {
	reqBody := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, 0, fmt.Errorf("encoding request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiAPIBase, c.cfg.Model, c.cfg.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(buf))
	if err != nil {
		return "", 0, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("calling gemini: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, 0, fmt.Errorf("reading gemini response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("gemini HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, 0, fmt.Errorf("decoding gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", 0, 0, fmt.Errorf("gemini response had no candidates")
	}

	return parsed.Candidates[0].Content.Parts[0].Text,
		parsed.UsageMetadata.PromptTokenCount,
		parsed.UsageMetadata.CandidatesTokenCount,
		nil
}

func (c *Client) completeOpenAI(ctx context.Context, prompt string) (string, int, int, error) {
	reqBody := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	buf, err := json.Marshal(reqBody)
	if err != nil {
		return "", 0, 0, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, openaiAPIBase, bytes.NewReader(buf))
	if err != nil {
		return "", 0, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, 0, fmt.Errorf("calling openai: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, 0, fmt.Errorf("reading openai response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, 0, fmt.Errorf("openai HTTP %d: %s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", 0, 0, fmt.Errorf("decoding openai response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", 0, 0, fmt.Errorf("openai response had no choices")
	}

	return parsed.Choices[0].Message.Content,
		parsed.Usage.PromptTokens,
		parsed.Usage.CompletionTokens,
		nil
}
