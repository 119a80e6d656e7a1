package groq

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/docflow/docflow/internal/core/domain"
	"github.com/docflow/docflow/internal/infrastructure/resilience"
)

// Client speaks the OpenAI-style chat-completions wire protocol against a
// Groq endpoint. One client instance lives for the whole process and is
// shared by every stage.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int

	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
}

type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	// RequestsPerSecond paces outbound calls; zero disables pacing.
	RequestsPerSecond float64
	Executor          *resilience.Executor
}

func New(cfg Config) *Client {
	model := cfg.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
		httpClient:  &http.Client{Timeout: 120 * time.Second},
		limiter:     limiter,
		executor:    cfg.Executor,
	}
}

// Analyzer implements the three document analyses on top of the shared
// client.
type Analyzer struct {
	client *Client
}

func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

func (a *Analyzer) Classify(ctx context.Context, docType domain.DocumentType, excerpt string) (domain.Classification, error) {
	respText, err := a.client.complete(ctx, "classify", buildClassificationPrompt(docType, excerpt))
	if err != nil {
		return domain.Classification{}, err
	}

	var result domain.Classification
	if err := decodeStrictOrExtract(respText, &result); err != nil {
		return domain.Classification{}, domain.WrapError(domain.ErrMalformedAIResponse, "parse classification", err)
	}
	if result.KeyEntities == nil {
		result.KeyEntities = []string{}
	}
	return result, nil
}

func (a *Analyzer) Summarize(ctx context.Context, docType domain.DocumentType, excerpt string, keyEntities []string) (string, error) {
	respText, err := a.client.complete(ctx, "summarize", buildSummaryPrompt(docType, excerpt, keyEntities))
	if err != nil {
		return "", err
	}
	return respText, nil
}

func (a *Analyzer) AssessRisk(ctx context.Context, docType domain.DocumentType, summary string, cls domain.Classification) (domain.RiskAssessment, error) {
	respText, err := a.client.complete(ctx, "risk", buildRiskPrompt(docType, summary, cls))
	if err != nil {
		return domain.RiskAssessment{}, err
	}

	var result domain.RiskAssessment
	if err := decodeStrictOrExtract(respText, &result); err != nil {
		return domain.RiskAssessment{}, domain.WrapError(domain.ErrMalformedAIResponse, "parse risk assessment", err)
	}
	return result, nil
}

func (c *Client) complete(ctx context.Context, operation, prompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	reqBody := map[string]any{
		"model":       c.model,
		"messages":    []map[string]string{{"role": "user", "content": prompt}},
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
	}

	var response struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, "/chat/completions", reqBody, &response, operation)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "groq."+operation, call, classifyGroqError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return "", wrapTemporaryIfNeeded(operation, err)
	}

	if len(response.Choices) == 0 {
		return "", domain.WrapError(domain.ErrMalformedAIResponse, operation, fmt.Errorf("empty choices"))
	}
	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
