package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/tokens"
	"inferd/pkg/types"
)

// RemoteClient issues calls to a network endpoint implementing a
// chat-completion contract. Batch calls fan out with bounded concurrency
// while preserving input-order correspondence in the output.
type RemoteClient struct {
	cfg       config.Config
	baseURL   string
	estimator *tokens.Estimator
	stats     *statsTracker
	log       zerolog.Logger
	http      *http.Client

	mu    sync.Mutex
	ready bool
}

// NewRemote constructs an unconnected remote client.
func NewRemote(cfg config.Config, log zerolog.Logger) *RemoteClient {
	cfg = cfg.WithDefaults()
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.RemoteConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Timeout stays 0 on the client: every request carries a context-based
	// deadline instead, so streaming responses are not cut mid-read.
	return &RemoteClient{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.RemoteURL, "/"),
		estimator: tokens.NewEstimator(
			tokens.HeuristicCounter{CharsPerToken: cfg.CharsPerToken},
			cfg.MaxModelLen, cfg.MaxPromptTokens, cfg.SafetyMarginTokens, cfg.MinCompletionTokens),
		stats: newStatsTracker(VariantRemote),
		log:   log.With().Str("variant", string(VariantRemote)).Logger(),
		http:  &http.Client{Transport: tr, Timeout: 0},
	}
}

func (c *RemoteClient) Variant() Variant { return VariantRemote }

// Connect validates configuration and probes the endpoint's model listing.
func (c *RemoteClient) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ready {
		return nil
	}
	if err := c.cfg.Validate(); err != nil {
		return &ConfigError{Reason: err.Error()}
	}
	if c.baseURL == "" {
		return &ConfigError{Reason: "remote_url is not set"}
	}
	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.RemoteConnectTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/v1/models", nil)
	if err != nil {
		return &ConnectionError{Endpoint: c.baseURL, Err: err}
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectionError{Endpoint: c.baseURL, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ConnectionError{Endpoint: c.baseURL, Err: fmt.Errorf("endpoint returned %d", resp.StatusCode)}
	}
	c.ready = true
	c.log.Info().Str("endpoint", c.baseURL).Msg("remote client connected")
	return nil
}

func (c *RemoteClient) IsReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ready
}

func (c *RemoteClient) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	if !c.IsReady() {
		return types.GenerateResponse{}, &ModelNotLoadedError{Variant: VariantRemote}
	}
	start := time.Now()
	id := uuid.NewString()

	_, promptTokens, maxTokens, err := estimateRequest(c.estimator, c.cfg, req)
	if err != nil {
		c.stats.recordOverflow()
		c.stats.recordFailure(time.Since(start))
		return types.GenerateResponse{}, err
	}

	resp, err := c.chatCompletion(ctx, req, maxTokens)
	dur := time.Since(start)
	if err != nil {
		c.stats.recordFailure(dur)
		return types.GenerateResponse{}, err
	}

	out := c.buildResponse(id, resp, promptTokens, dur)
	c.stats.recordSuccess(out.CompletionTokens, dur)
	c.log.Debug().
		Str("request_id", id).
		Int("completion_tokens", out.CompletionTokens).
		Dur("dur", dur).
		Msg("generation complete")
	return out, nil
}

// GenerateBatch fans requests out with bounded concurrency. The result slice
// is index-aligned to reqs even though requests complete out of order.
func (c *RemoteClient) GenerateBatch(ctx context.Context, reqs []types.GenerateRequest) []Result {
	results := make([]Result, len(reqs))
	if !c.IsReady() {
		for i := range results {
			results[i].Err = &ModelNotLoadedError{Variant: VariantRemote}
		}
		return results
	}

	limit := c.cfg.RemoteMaxInFlight
	if limit > len(reqs) {
		limit = len(reqs)
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i := range reqs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return
			}
			resp, err := c.Generate(ctx, reqs[i])
			results[i] = Result{Response: resp, Err: err}
		}(i)
	}
	wg.Wait()
	return results
}

func (c *RemoteClient) Stats() types.ClientStats {
	return c.stats.Snapshot()
}

// Disconnect drops pooled connections. Idempotent.
func (c *RemoteClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.ready {
		return nil
	}
	c.ready = false
	c.http.CloseIdleConnections()
	c.log.Info().Msg("remote client disconnected")
	return nil
}

// chatCompletionRequest is the payload for POST /v1/chat/completions.
type chatCompletionRequest struct {
	Model    string          `json:"model,omitempty"`
	Messages []types.Message `json:"messages"`
	// Temperature has no omitempty: a deterministic 0 must serialize.
	Temperature float64  `json:"temperature"`
	TopP        float64  `json:"top_p,omitempty"`
	Seed        int64    `json:"seed,omitempty"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Stream      bool     `json:"stream"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func (c *RemoteClient) chatCompletion(ctx context.Context, req types.GenerateRequest, maxTokens int) (*chatCompletionResponse, error) {
	s := effectiveSampling(c.cfg, req)
	payload := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    req.Messages,
		Temperature: s.Temperature,
		TopP:        s.TopP,
		Seed:        s.Seed,
		MaxTokens:   maxTokens,
		Stop:        req.Stop,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.RemoteTimeout)
	defer cancel()
	httpReq, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, &GenerationError{Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.authorize(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// Transport failures mid-call are transient for retry purposes;
		// fallback only happens at construction time.
		return nil, &GenerationError{Retryable: true, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &GenerationError{
			Retryable: resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			Err:       fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))),
		}
	}
	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, &GenerationError{Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(out.Choices) == 0 {
		return nil, &GenerationError{Err: fmt.Errorf("endpoint returned no choices")}
	}
	return &out, nil
}

func (c *RemoteClient) authorize(r *http.Request) {
	if c.cfg.RemoteAPIKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.cfg.RemoteAPIKey)
	}
}

func (c *RemoteClient) buildResponse(id string, resp *chatCompletionResponse, promptTokens int, dur time.Duration) types.GenerateResponse {
	choice := resp.Choices[0]
	if resp.Usage.PromptTokens > 0 {
		promptTokens = resp.Usage.PromptTokens
	}
	completion := resp.Usage.CompletionTokens
	if completion == 0 {
		completion = c.estimator.Count(choice.Message.Content)
	}
	reason := choice.FinishReason
	if reason == "" {
		reason = "stop"
	}
	return types.GenerateResponse{
		ID:               id,
		Content:          choice.Message.Content,
		PromptTokens:     promptTokens,
		CompletionTokens: completion,
		LatencyMs:        dur.Milliseconds(),
		FinishReason:     reason,
	}
}
