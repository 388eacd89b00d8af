package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"inferd/internal/config"
	"inferd/pkg/types"
)

// fakeEndpoint serves the chat-completion contract and records what it saw.
type fakeEndpoint struct {
	mu       sync.Mutex
	requests []chatCompletionRequest

	completionStatus int           // 0 means 200
	completionDelay  func(i int) time.Duration
	errBody          string
}

func (f *fakeEndpoint) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/models", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"object":"list","data":[{"id":"extractor-7b"}]}`)
	})
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req chatCompletionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		i := len(f.requests)
		f.requests = append(f.requests, req)
		status := f.completionStatus
		delay := f.completionDelay
		f.mu.Unlock()

		if delay != nil {
			time.Sleep(delay(i))
		}
		if status != 0 {
			http.Error(w, f.errBody, status)
			return
		}
		var resp chatCompletionResponse
		resp.Choices = make([]struct {
			Message struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"message"`
			FinishReason string `json:"finish_reason"`
		}, 1)
		resp.Choices[0].Message.Role = "assistant"
		// Echo the last user message so tests can verify slot alignment.
		last := req.Messages[len(req.Messages)-1].Content
		resp.Choices[0].Message.Content = "echo:" + last + " seed=" + strconv.FormatInt(req.Seed, 10)
		resp.Choices[0].FinishReason = "stop"
		resp.Usage.PromptTokens = 12
		resp.Usage.CompletionTokens = 5
		resp.Usage.TotalTokens = 17
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})
	return mux
}

func (f *fakeEndpoint) seen() []chatCompletionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]chatCompletionRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

func remoteTestClient(t *testing.T, mutate func(*config.Config)) (*RemoteClient, *fakeEndpoint) {
	t.Helper()
	ep := &fakeEndpoint{}
	srv := httptest.NewServer(ep.handler())
	t.Cleanup(srv.Close)
	cfg := testConfig()
	cfg.RemoteURL = srv.URL
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRemote(cfg, testLogger()), ep
}

func TestRemoteConnectProbeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "loading", http.StatusServiceUnavailable)
	}))
	cfg := testConfig()
	cfg.RemoteURL = srv.URL
	c := NewRemote(cfg, testLogger())
	err := c.Connect(context.Background())
	srv.Close()
	if !IsConnection(err) {
		t.Fatalf("expected ConnectionError, got %v", err)
	}

	// Connection refused after the listener is gone.
	err = c.Connect(context.Background())
	if !IsConnection(err) {
		t.Fatalf("expected ConnectionError on refused dial, got %v", err)
	}
}

func TestRemoteConnectMissingURL(t *testing.T) {
	c := NewRemote(testConfig(), testLogger())
	if err := c.Connect(context.Background()); !IsConfig(err) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestRemoteGenerate(t *testing.T) {
	c, ep := remoteTestClient(t, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	resp, err := c.Generate(context.Background(), types.GenerateRequest{
		Messages: userMessage("extract fields"),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(resp.Content, "echo:extract fields") {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.PromptTokens != 12 || resp.CompletionTokens != 5 {
		t.Errorf("usage not propagated: %+v", resp)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("FinishReason = %q", resp.FinishReason)
	}
	if resp.ID == "" {
		t.Error("response must carry an ID")
	}

	seen := ep.seen()
	if len(seen) != 1 {
		t.Fatalf("endpoint saw %d requests", len(seen))
	}
	if seen[0].Seed != 42 || seen[0].Temperature != 0 {
		t.Errorf("deterministic sampling not forwarded: seed=%d temp=%v", seen[0].Seed, seen[0].Temperature)
	}
	if seen[0].Stream {
		t.Error("stream must be false")
	}
}

func TestRemoteOverridesDiscarded(t *testing.T) {
	c, ep := remoteTestClient(t, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	hot := 0.95
	seed := int64(1234)
	_, err := c.Generate(context.Background(), types.GenerateRequest{
		Messages:    userMessage("hi"),
		Temperature: &hot,
		Seed:        &seed,
	})
	if err != nil {
		t.Fatal(err)
	}
	seen := ep.seen()
	if seen[0].Temperature != 0 || seen[0].Seed != 42 {
		t.Errorf("overrides leaked to the wire: temp=%v seed=%d", seen[0].Temperature, seen[0].Seed)
	}
}

func TestRemoteErrorClassification(t *testing.T) {
	cases := []struct {
		status    int
		retryable bool
	}{
		{http.StatusInternalServerError, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusTooManyRequests, true},
		{http.StatusBadRequest, false},
		{http.StatusUnauthorized, false},
	}
	for _, tc := range cases {
		t.Run(strconv.Itoa(tc.status), func(t *testing.T) {
			c, ep := remoteTestClient(t, nil)
			if err := c.Connect(context.Background()); err != nil {
				t.Fatal(err)
			}
			ep.mu.Lock()
			ep.completionStatus = tc.status
			ep.errBody = "nope"
			ep.mu.Unlock()
			_, err := c.Generate(context.Background(), types.GenerateRequest{Messages: userMessage("hi")})
			if !IsGeneration(err) {
				t.Fatalf("expected GenerationError, got %v", err)
			}
			if IsRetryable(err) != tc.retryable {
				t.Errorf("status %d: retryable = %v, want %v", tc.status, IsRetryable(err), tc.retryable)
			}
		})
	}
}

func TestRemoteOverflowRejectedLocally(t *testing.T) {
	c, ep := remoteTestClient(t, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	_, err := c.Generate(context.Background(), types.GenerateRequest{
		Messages: userMessage(strings.Repeat("abcd", 31000)),
	})
	if err == nil {
		t.Fatal("expected overflow error")
	}
	if got := len(ep.seen()); got != 0 {
		t.Errorf("over-budget request must not hit the wire, endpoint saw %d", got)
	}
}

func TestRemoteBatchOrderPreserved(t *testing.T) {
	c, ep := remoteTestClient(t, func(cfg *config.Config) {
		cfg.RemoteMaxInFlight = 2
	})
	// Early slots finish last, so any ordering bug shows up.
	ep.mu.Lock()
	ep.completionDelay = func(i int) time.Duration {
		return time.Duration(6-i) * 10 * time.Millisecond
	}
	ep.mu.Unlock()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}

	reqs := make([]types.GenerateRequest, 6)
	for i := range reqs {
		reqs[i] = types.GenerateRequest{Messages: userMessage(fmt.Sprintf("slot-%d", i))}
	}
	results := c.GenerateBatch(context.Background(), reqs)
	if len(results) != len(reqs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(reqs))
	}
	for i, r := range results {
		if r.Err != nil {
			t.Fatalf("slot %d: %v", i, r.Err)
		}
		want := fmt.Sprintf("echo:slot-%d ", i)
		if !strings.HasPrefix(r.Response.Content, want) {
			t.Errorf("slot %d: content %q does not match its request", i, r.Response.Content)
		}
	}
}

func TestRemoteBatchCancellation(t *testing.T) {
	c, ep := remoteTestClient(t, func(cfg *config.Config) {
		cfg.RemoteMaxInFlight = 1
	})
	ep.mu.Lock()
	ep.completionDelay = func(i int) time.Duration { return 200 * time.Millisecond }
	ep.mu.Unlock()
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	reqs := make([]types.GenerateRequest, 4)
	for i := range reqs {
		reqs[i] = types.GenerateRequest{Messages: userMessage("hi")}
	}
	results := c.GenerateBatch(ctx, reqs)
	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed == 0 {
		t.Error("expected at least one slot to fail once the context expired")
	}
}

func TestRemoteDisconnectIdempotent(t *testing.T) {
	c, _ := remoteTestClient(t, nil)
	if err := c.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatal(err)
	}
	if err := c.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if _, err := c.Generate(context.Background(), types.GenerateRequest{Messages: userMessage("hi")}); !IsModelNotLoaded(err) {
		t.Errorf("expected ModelNotLoadedError after disconnect, got %v", err)
	}
}
