package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avolkova/ragcore/internal/core/domain"
	"github.com/avolkova/ragcore/internal/core/ports"
	"github.com/avolkova/ragcore/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL        string
	GenerateModel  string
	EmbedModel     string
	RequestTimeout time.Duration
	CostPerToken   float64
	Resilience     resilience.Config
}

func (c Config) normalize() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.CostPerToken < 0 {
		c.CostPerToken = 0
	}
	c.BaseURL = strings.TrimRight(c.BaseURL, "/")
	return c
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	exec       *resilience.Executor
}

func New(cfg Config) *Client {
	cfg = cfg.normalize()
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		exec:       resilience.NewExecutor(cfg.Resilience),
	}
}

// Generator produces cited answers through the Ollama generate API.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

var _ ports.AnswerGenerator = (*Generator)(nil)

// generatedPayload is the strict JSON shape the prompt asks the model for.
type generatedPayload struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
	Citations  []struct {
		Text          string  `json:"text"`
		SourceChunkID string  `json:"source_chunk_id"`
		Confidence    float64 `json:"confidence"`
	} `json:"citations"`
}

func (g *Generator) Generate(
	ctx context.Context,
	query string,
	chunks []domain.RerankedChunk,
	intent domain.IntentAnalysis,
	answerability domain.AnswerabilityResult,
) (*ports.GenerationResult, error) {
	prompt := buildAnswerPrompt(query, chunks, intent, answerability)

	var raw generateResponse
	err := g.client.exec.Execute(ctx, "generate", func(ctx context.Context) error {
		var callErr error
		raw, callErr = g.client.generate(ctx, prompt, true)
		return callErr
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("generate answer", err)
	}

	tokens := raw.PromptEvalCount + raw.EvalCount
	result := &ports.GenerationResult{
		TokensUsed: tokens,
		Cost:       float64(tokens) * g.client.cfg.CostPerToken,
	}

	var payload generatedPayload
	if parseErr := json.Unmarshal([]byte(extractJSONObject(raw.Response)), &payload); parseErr != nil {
		// The model ignored the JSON instruction. Return the raw text
		// without citations rather than fabricating any.
		slog.Warn("generate_response_not_json", "error", parseErr)
		result.Answer = strings.TrimSpace(raw.Response)
		result.Confidence = 0.3
		return result, nil
	}

	result.Answer = strings.TrimSpace(payload.Answer)
	result.Confidence = clamp01(payload.Confidence)
	for i, cit := range payload.Citations {
		result.Citations = append(result.Citations, domain.Citation{
			ID:            fmt.Sprintf("cit-%d", i+1),
			Text:          cit.Text,
			SourceChunkID: cit.SourceChunkID,
			Confidence:    clamp01(cit.Confidence),
		})
	}
	return result, nil
}

// Embedder encodes text through the Ollama embed API.
type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

var _ ports.Embedder = (*Embedder)(nil)

func (e *Embedder) Encode(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{
		"model": e.client.cfg.EmbedModel,
		"input": []string{text},
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := e.client.exec.Execute(ctx, "embed", func(ctx context.Context) error {
		return e.client.postJSON(ctx, "/api/embed", request, &response, "embed")
	}, classifyOllamaError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("encode text", err)
	}
	if len(response.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

type generateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *Client) generate(ctx context.Context, prompt string, jsonFormat bool) (generateResponse, error) {
	reqBody := map[string]any{
		"model":  c.cfg.GenerateModel,
		"prompt": prompt,
		"stream": false,
	}
	if jsonFormat {
		reqBody["format"] = "json"
	}

	var response generateResponse
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response, "generate"); err != nil {
		return generateResponse{}, err
	}
	return response, nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
