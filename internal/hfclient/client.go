// Package hfclient is an HTTP client for the Hugging Face inference API,
// implementing the remote classification strategy: a sentiment model and a
// zero-shot topic model, with bearer auth, bounded timeouts, rate limiting,
// and an in-memory result cache.
package hfclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/watchwise/watchwise/internal/classifier"
	"github.com/watchwise/watchwise/internal/domain"
	"github.com/watchwise/watchwise/internal/logging"
	"github.com/watchwise/watchwise/internal/telemetry"
)

// ErrNoCredential indicates no API key is configured; callers should use the
// local strategy instead of constructing a client.
var ErrNoCredential = errors.New("inference API credential not configured")

// maxAlternatives caps the runner-up labels taken from a zero-shot response.
const maxAlternatives = 3

// Config holds client settings.
type Config struct {
	APIBase         string
	APIKey          string
	SentimentModel  string
	TopicModel      string
	CandidateLabels []string
	RequestTimeout  time.Duration
	CacheTTL        time.Duration
	RPS             int
}

// Client talks to the inference provider. It satisfies
// classifier.RemoteProvider.
type Client struct {
	cfg        Config
	httpClient *http.Client
	cache      *resultCache
	limiter    *rate.Limiter
	telemetry  *telemetry.Provider
	logger     logging.Logger
}

// NewClient creates a client, or ErrNoCredential when no key is configured.
func NewClient(cfg Config, tel *telemetry.Provider, logger logging.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoCredential
	}
	rps := cfg.RPS
	if rps <= 0 {
		rps = 1
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		cache:      newResultCache(cfg.CacheTTL),
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		telemetry:  tel,
		logger:     logger,
	}, nil
}

// inferenceRequest is the request body for model inference. The
// wait_for_model option tolerates provider-side model loading; the HTTP
// client timeout still bounds the whole call.
type inferenceRequest struct {
	Inputs     string            `json:"inputs"`
	Options    *inferenceOptions `json:"options,omitempty"`
	Parameters *zeroShotParams   `json:"parameters,omitempty"`
}

type inferenceOptions struct {
	WaitForModel bool `json:"wait_for_model"`
	UseCache     bool `json:"use_cache"`
}

type zeroShotParams struct {
	CandidateLabels []string `json:"candidate_labels"`
}

// labelScore is one label/score pair in a classification response.
type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// zeroShotResponse is the body returned by the zero-shot topic model.
type zeroShotResponse struct {
	Labels []string  `json:"labels"`
	Scores []float64 `json:"scores"`
}

// AnalyzeSentiment classifies text with the remote sentiment model.
func (c *Client) AnalyzeSentiment(ctx context.Context, text string) (classifier.SentimentResult, error) {
	if cached, ok := cacheGet[classifier.SentimentResult](c.cache, c.cfg.SentimentModel, text); ok {
		return cached, nil
	}

	body, err := c.post(ctx, c.cfg.SentimentModel, inferenceRequest{
		Inputs:  text,
		Options: &inferenceOptions{WaitForModel: true, UseCache: true},
	})
	if err != nil {
		return classifier.SentimentResult{}, err
	}

	// The sentiment model returns a nested array of label scores, best first.
	var parsed [][]labelScore
	if err := json.Unmarshal(body, &parsed); err != nil {
		return classifier.SentimentResult{}, fmt.Errorf("decode sentiment response: %w", err)
	}
	if len(parsed) == 0 || len(parsed[0]) == 0 {
		return classifier.SentimentResult{}, errors.New("empty sentiment response")
	}

	top := parsed[0][0]
	result := classifier.SentimentResult{
		Sentiment:  mapSentimentLabel(top.Label),
		Confidence: top.Score,
		Method:     domain.MethodRemote,
	}
	cachePut(c.cache, c.cfg.SentimentModel, text, result)
	return result, nil
}

// AnalyzeTopic classifies text with the remote zero-shot model against the
// fixed candidate-label set. The top label becomes the topic; the next up to
// three become alternatives.
func (c *Client) AnalyzeTopic(ctx context.Context, text string) (classifier.TopicResult, error) {
	if cached, ok := cacheGet[classifier.TopicResult](c.cache, c.cfg.TopicModel, text); ok {
		return cached, nil
	}

	body, err := c.post(ctx, c.cfg.TopicModel, inferenceRequest{
		Inputs:     text,
		Parameters: &zeroShotParams{CandidateLabels: c.cfg.CandidateLabels},
	})
	if err != nil {
		return classifier.TopicResult{}, err
	}

	var parsed zeroShotResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return classifier.TopicResult{}, fmt.Errorf("decode topic response: %w", err)
	}
	if len(parsed.Labels) == 0 || len(parsed.Labels) != len(parsed.Scores) {
		return classifier.TopicResult{}, errors.New("malformed topic response")
	}

	result := classifier.TopicResult{
		Topic:      parsed.Labels[0],
		Confidence: parsed.Scores[0],
		Method:     domain.MethodRemote,
	}
	for i := 1; i < len(parsed.Labels) && i <= maxAlternatives; i++ {
		result.Alternatives = append(result.Alternatives, domain.TopicAlternative{
			Topic:      parsed.Labels[i],
			Confidence: parsed.Scores[i],
		})
	}
	cachePut(c.cache, c.cfg.TopicModel, text, result)
	return result, nil
}

// post sends an inference request and returns the raw response body. Any
// non-2xx status is an error; callers fall back to the local strategy.
func (c *Client) post(ctx context.Context, model string, req inferenceRequest) (body []byte, err error) {
	if err = c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.APIBase+"/"+model, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	// Latency is measured past the limiter wait; a failed call here is one
	// that fell back to the local strategy.
	start := time.Now()
	defer func() { c.telemetry.RecordRemoteCall(ctx, model, time.Since(start), err) }()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("inference API returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	c.logger.Debug("inference call complete",
		logging.String("model", model),
		logging.Duration("latency", time.Since(start)),
	)
	return body, nil
}

// mapSentimentLabel maps provider labels into the sentiment enum. Unknown
// labels resolve to neutral.
func mapSentimentLabel(label string) domain.Sentiment {
	switch label {
	case "LABEL_0", "negative":
		return domain.SentimentNegative
	case "LABEL_1", "neutral":
		return domain.SentimentNeutral
	case "LABEL_2", "positive":
		return domain.SentimentPositive
	}
	return domain.SentimentNeutral
}

const maxErrorBodyLen = 200

func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyLen {
		body = body[:maxErrorBodyLen]
	}
	return string(body)
}
