package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"inferd/internal/client"
	"inferd/internal/tokens"
	"inferd/pkg/types"
)

// fakeService implements Service with canned behaviors.
type fakeService struct {
	ready   bool
	variant client.Variant
	genErr  error
	gpu     *types.GPUStatus
}

func (f *fakeService) IsReady() bool { return f.ready }

func (f *fakeService) Variant() client.Variant {
	if f.variant == "" {
		return client.VariantDirect
	}
	return f.variant
}

func (f *fakeService) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	if f.genErr != nil {
		return types.GenerateResponse{}, f.genErr
	}
	return types.GenerateResponse{
		ID:               "req-1",
		Content:          "answer",
		PromptTokens:     10,
		CompletionTokens: 2,
		FinishReason:     "stop",
	}, nil
}

func (f *fakeService) GenerateBatch(ctx context.Context, reqs []types.GenerateRequest) []client.Result {
	results := make([]client.Result, len(reqs))
	for i := range reqs {
		resp, err := f.Generate(ctx, reqs[i])
		if i == 1 {
			// Second slot always fails, exercising mixed batch reporting.
			err = &tokens.ContextOverflowError{EstimatedTokens: 31000, MaxTokens: 28000, ExcessTokens: 488}
			resp = types.GenerateResponse{}
		}
		results[i] = client.Result{Response: resp, Err: err}
	}
	return results
}

func (f *fakeService) Stats() types.ClientStats {
	return types.ClientStats{Variant: string(f.Variant()), Requests: 5, Successes: 4, Failures: 1}
}

// GPUStatus implements client.GPUReporter when gpu is set.
func (f *fakeService) GPUStatus() (types.GPUStatus, bool) {
	if f.gpu == nil {
		return types.GPUStatus{}, false
	}
	return *f.gpu, true
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateEndpoint(t *testing.T) {
	h := NewMux(&fakeService{ready: true}, "extractor-7b")
	rec := postJSON(t, h, "/v1/generate", `{"messages":[{"role":"user","content":"hi"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp types.GenerateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Content != "answer" || resp.ID != "req-1" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestGenerateRequiresMessages(t *testing.T) {
	h := NewMux(&fakeService{ready: true}, "extractor-7b")
	rec := postJSON(t, h, "/v1/generate", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateContentType(t *testing.T) {
	h := NewMux(&fakeService{ready: true}, "extractor-7b")
	req := httptest.NewRequest(http.MethodPost, "/v1/generate", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status = %d, want 415", rec.Code)
	}
}

func TestGenerateErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		status    int
		retryable bool
	}{
		{"overflow", &tokens.ContextOverflowError{EstimatedTokens: 31000, MaxTokens: 28000, ExcessTokens: 488}, http.StatusRequestEntityTooLarge, false},
		{"not_loaded", &client.ModelNotLoadedError{Variant: client.VariantDirect}, http.StatusServiceUnavailable, false},
		{"gpu_memory", &client.GPUMemoryError{RequiredGB: 8, FreeGB: 2}, http.StatusServiceUnavailable, true},
		{"retryable_generation", &client.GenerationError{Retryable: true, Err: context.DeadlineExceeded}, http.StatusServiceUnavailable, true},
		{"permanent_generation", &client.GenerationError{Err: errors.New("endpoint returned 400")}, http.StatusBadGateway, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewMux(&fakeService{ready: true, genErr: tc.err}, "extractor-7b")
			rec := postJSON(t, h, "/v1/generate", `{"messages":[{"role":"user","content":"hi"}]}`)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.status, rec.Body)
			}
			var er types.ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
				t.Fatal(err)
			}
			if er.Retryable != tc.retryable {
				t.Errorf("retryable = %v, want %v", er.Retryable, tc.retryable)
			}
			if er.Code != tc.status {
				t.Errorf("payload code = %d, want %d", er.Code, tc.status)
			}
		})
	}
}

func TestBatchEndpoint(t *testing.T) {
	h := NewMux(&fakeService{ready: true}, "extractor-7b")
	rec := postJSON(t, h, "/v1/batch", `{"requests":[
		{"messages":[{"role":"user","content":"a"}]},
		{"messages":[{"role":"user","content":"b"}]},
		{"messages":[{"role":"user","content":"c"}]}
	]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var resp types.BatchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(resp.Results))
	}
	if resp.Succeeded != 2 || resp.Failed != 1 {
		t.Errorf("succeeded/failed = %d/%d, want 2/1", resp.Succeeded, resp.Failed)
	}
	if resp.Results[1].Error == "" || resp.Results[1].Response != nil {
		t.Errorf("slot 1 must carry the error: %+v", resp.Results[1])
	}
	for _, i := range []int{0, 2} {
		if resp.Results[i].Response == nil {
			t.Errorf("slot %d must carry a response", i)
		}
		if resp.Results[i].Index != i {
			t.Errorf("slot %d reports index %d", i, resp.Results[i].Index)
		}
	}
}

func TestBatchRequiresRequests(t *testing.T) {
	h := NewMux(&fakeService{ready: true}, "extractor-7b")
	rec := postJSON(t, h, "/v1/batch", `{"requests":[]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	gpu := &types.GPUStatus{MemoryTotalMB: 24576, MemoryFreeMB: 6144, Known: true}
	h := NewMux(&fakeService{ready: true, variant: client.VariantDirect, gpu: gpu}, "extractor-7b")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp types.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "ready" || resp.Variant != "direct" || resp.Model != "extractor-7b" {
		t.Errorf("unexpected status %+v", resp)
	}
	if resp.GPU == nil || resp.GPU.MemoryFreeMB != 6144 {
		t.Errorf("gpu sample missing: %+v", resp.GPU)
	}
	if resp.Stats.Requests != 5 {
		t.Errorf("stats not propagated: %+v", resp.Stats)
	}
}

func TestStatusWithoutGPU(t *testing.T) {
	h := NewMux(&fakeService{ready: false}, "extractor-7b")
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var resp types.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State != "unavailable" {
		t.Errorf("State = %q", resp.State)
	}
	if resp.GPU != nil {
		t.Errorf("gpu must be omitted when unreported: %+v", resp.GPU)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	h := NewMux(&fakeService{ready: false}, "extractor-7b")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/healthz = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("/readyz = %d before ready", rec.Code)
	}

	ready := NewMux(&fakeService{ready: true}, "extractor-7b")
	rec = httptest.NewRecorder()
	ready.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("/readyz = %d when ready", rec.Code)
	}
}
