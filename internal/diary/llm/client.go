package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blueplan/diary-go/internal/diary/config"
)

type Message struct {
	Role    string
	Content string
	// Images are data URLs (data:image/...;base64,...) attached to the message.
	Images []string
}

// Request is one completion call.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Response carries every candidate the backend returned, in backend order.
type Response struct {
	Candidates       []string
	PromptTokens     int
	CompletionTokens int
}

// Client is a single-shot completion backend. Implementations never retry.
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// HTTPError is a non-2xx answer from a provider.
type HTTPError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// NewClient creates a client for the named provider.
func NewClient(provider string, cfg config.LLMProviderConfig) (Client, error) {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "openai":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm provider openai: api key not configured")
		}
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model, httpClient), nil
	case "gemini":
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm provider gemini: api key not configured")
		}
		return NewGemini(cfg.BaseURL, cfg.APIKey, cfg.Model, httpClient), nil
	case "mock":
		return &echoClient{}, nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}

// echoClient answers with a canned diary line; used when no provider is
// configured so the service still runs locally.
type echoClient struct{}

func (e *echoClient) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Response{Candidates: []string{"Dear diary 📓\nToday happened, and honestly? It went great 😎"}}, nil
}
