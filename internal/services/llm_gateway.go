package services

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
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// GatewayErrorKind classifies why a model call failed
type GatewayErrorKind string

const (
	GatewayErrorAuth    GatewayErrorKind = "auth"    // Missing or rejected credential
	GatewayErrorNetwork GatewayErrorKind = "network" // Request never produced an HTTP response
	GatewayErrorStatus  GatewayErrorKind = "status"  // Provider answered with a non-2xx status
	GatewayErrorDecode  GatewayErrorKind = "decode"  // 2xx body was not a usable completion
)

// GatewayError is the classified failure of a single model call
type GatewayError struct {
	Kind       GatewayErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *GatewayError) Error() string {
	switch e.Kind {
	case GatewayErrorStatus:
		return fmt.Sprintf("API Error (%d): %s", e.StatusCode, e.Message)
	case GatewayErrorNetwork:
		return fmt.Sprintf("network error: %s", e.Message)
	default:
		return e.Message
	}
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ErrMissingAPIKey is wrapped by the auth GatewayError when no credential was supplied
var ErrMissingAPIKey = errors.New("no API key configured, add your OpenRouter key in settings")

// LLMGateway issues one blocking completion: prompt in, generated text out.
// No retries and no streaming.
type LLMGateway interface {
	Complete(ctx context.Context, prompt, apiKey, model string) (string, error)
}

// OpenRouterGateway calls an OpenAI-compatible /chat/completions endpoint
type OpenRouterGateway struct {
	baseURL    string
	referer    string
	title      string
	httpClient *http.Client
	limiter    *credentialLimiter
	metrics    *Metrics
}

// GatewayOptions configures OpenRouterGateway
type GatewayOptions struct {
	BaseURL       string
	Referer       string
	Title         string
	Timeout       time.Duration // 0 means no client timeout
	RatePerSecond float64       // 0 disables rate limiting
	RateBurst     int
	HTTPClient    *http.Client // Optional, mainly for tests
	Metrics       *Metrics
}

// NewOpenRouterGateway creates a gateway client
func NewOpenRouterGateway(opts GatewayOptions) *OpenRouterGateway {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	var limiter *credentialLimiter
	if opts.RatePerSecond > 0 {
		limiter = newCredentialLimiter(opts.RatePerSecond, opts.RateBurst)
	}

	return &OpenRouterGateway{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		referer:    opts.Referer,
		title:      opts.Title,
		httpClient: client,
		limiter:    limiter,
		metrics:    opts.Metrics,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type providerErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends the prompt as a single user message and returns the first choice's text
func (g *OpenRouterGateway) Complete(ctx context.Context, prompt, apiKey, model string) (string, error) {
	start := time.Now()
	text, err := g.complete(ctx, prompt, apiKey, model)

	outcome := "ok"
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		outcome = string(gwErr.Kind)
	}
	g.metrics.observeGateway(model, outcome, time.Since(start))

	return text, err
}

func (g *OpenRouterGateway) complete(ctx context.Context, prompt, apiKey, model string) (string, error) {
	if strings.TrimSpace(apiKey) == "" {
		return "", &GatewayError{Kind: GatewayErrorAuth, Message: ErrMissingAPIKey.Error(), Err: ErrMissingAPIKey}
	}

	if g.limiter != nil {
		if err := g.limiter.wait(ctx, apiKey); err != nil {
			return "", &GatewayError{Kind: GatewayErrorNetwork, Message: err.Error(), Err: err}
		}
	}

	reqBody, err := json.Marshal(chatCompletionRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	if g.referer != "" {
		httpReq.Header.Set("HTTP-Referer", g.referer)
	}
	if g.title != "" {
		httpReq.Header.Set("X-Title", g.title)
	}

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		return "", &GatewayError{Kind: GatewayErrorNetwork, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &GatewayError{Kind: GatewayErrorNetwork, Message: fmt.Sprintf("failed to read response: %v", err), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := providerMessage(body, resp.Status)
		// SECURITY: Only the provider's message is logged, never the prompt
		log.Printf("⚠️ [GATEWAY] %s returned %d: %s", model, resp.StatusCode, message)
		return "", &GatewayError{Kind: GatewayErrorStatus, StatusCode: resp.StatusCode, Message: message}
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", &GatewayError{Kind: GatewayErrorDecode, Message: fmt.Sprintf("failed to parse API response: %v", err), Err: err}
	}
	if len(completion.Choices) == 0 {
		return "", &GatewayError{Kind: GatewayErrorDecode, Message: "no choices in model response"}
	}

	return completion.Choices[0].Message.Content, nil
}

// providerMessage pulls error.message out of a provider error body, falling back to the raw body
func providerMessage(body []byte, status string) string {
	var decoded providerErrorBody
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return status
	}
	if len(trimmed) > 200 {
		trimmed = trimmed[:200]
	}
	return trimmed
}

// credentialLimiter keeps one token bucket per API key
type credentialLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	perSec   rate.Limit
	burst    int
}

func newCredentialLimiter(perSecond float64, burst int) *credentialLimiter {
	if burst < 1 {
		burst = 1
	}
	return &credentialLimiter{perSec: rate.Limit(perSecond), burst: burst}
}

func (l *credentialLimiter) wait(ctx context.Context, apiKey string) error {
	limiter, _ := l.limiters.LoadOrStore(apiKey, rate.NewLimiter(l.perSec, l.burst))
	return limiter.(*rate.Limiter).Wait(ctx)
}
