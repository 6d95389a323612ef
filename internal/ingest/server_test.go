package ingest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"capflow/internal/capture"
	"capflow/internal/correlate"
	"capflow/internal/documents"
	"capflow/internal/ingest"
	"capflow/internal/testsupport"
)

const playlistURL = "https://aod.example.com/item/master.m3u8"

func newServer(t *testing.T, opts ...ingest.Option) (*ingest.Server, *httptest.Server) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithMaxBodyBytes(64*1024))
	srv, err := ingest.New(cfg, correlate.NewEngine(documents.Codec{}), opts...)
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func post(t *testing.T, url string, tx capture.Transaction) *http.Response {
	t.Helper()
	payload, err := json.Marshal(capture.NewRecord(tx))
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	resp, err := http.Post(url+"/v1/transactions", "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("post transaction: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestIngestCompletesSessionOverHTTP(t *testing.T) {
	var recorded bytes.Buffer
	srv, ts := newServer(t, ingest.WithRecorder(&recorded))

	txs := []capture.Transaction{
		testsupport.DispatchTx(t, playlistURL, "Night Drive"),
		testsupport.PlaylistTx(playlistURL, "v1.m3u8"),
		testsupport.VariantTx("https://aod.example.com/item/v1.m3u8", "skd://k1"),
	}
	for _, tx := range txs {
		if resp := post(t, ts.URL, tx); resp.StatusCode != http.StatusAccepted {
			t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusAccepted)
		}
	}

	resp := post(t, ts.URL, testsupport.KeyTx(t, "skd://k1", "ckc"))
	var body struct {
		Completed []int64 `json:"completed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Completed) != 1 || body.Completed[0] != 1 {
		t.Fatalf("completed = %v, want [1]", body.Completed)
	}

	if srv.Received() != 4 {
		t.Fatalf("received = %d, want 4", srv.Received())
	}
	if lines := strings.Count(recorded.String(), "\n"); lines != 4 {
		t.Fatalf("recorded %d lines, want 4", lines)
	}

	report := srv.Finalize()
	if len(report.Completed) != 1 || report.Completed[0].Title() != "Night Drive" {
		t.Fatalf("unexpected report %+v", report)
	}
	if resp := post(t, ts.URL, testsupport.KeyTx(t, "skd://k2", "late")); resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("post after finalize status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestRecordedCaptureReplays(t *testing.T) {
	var recorded bytes.Buffer
	_, ts := newServer(t, ingest.WithRecorder(&recorded))
	post(t, ts.URL, testsupport.DispatchTx(t, playlistURL, ""))

	tx, err := capture.NewJSONLReader(&recorded).Next()
	if err != nil {
		t.Fatalf("read recorded capture: %v", err)
	}
	if tx.URL != testsupport.DispatchURL || tx.Status != 200 {
		t.Fatalf("unexpected recorded transaction %+v", tx)
	}
}

func TestIngestRejectsBadRecords(t *testing.T) {
	_, ts := newServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"not json", "{", http.StatusBadRequest},
		{"missing status", `{"url":"https://example.com"}`, http.StatusBadRequest},
		{"too large", `{"url":"https://example.com","status":200,"response_body":"` + strings.Repeat("x", 70*1024) + `"}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/v1/transactions", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	resp, err := http.Get(ts.URL + "/v1/transactions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("GET status = %d, want %d", resp.StatusCode, http.StatusMethodNotAllowed)
	}
}

func TestSessionsAndHealth(t *testing.T) {
	_, ts := newServer(t)
	post(t, ts.URL, testsupport.DispatchTx(t, playlistURL, "Pending"))

	resp, err := http.Get(ts.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("get sessions: %v", err)
	}
	defer resp.Body.Close()
	var sessions struct {
		InProgress []correlate.SessionSummary `json:"in_progress"`
		Completed  []correlate.SessionSummary `json:"completed"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sessions); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	if len(sessions.InProgress) != 1 || sessions.InProgress[0].Stage != correlate.StageAwaitingPlaylist {
		t.Fatalf("unexpected sessions %+v", sessions)
	}
	if sessions.InProgress[0].Title != "Pending" || len(sessions.Completed) != 0 {
		t.Fatalf("unexpected sessions %+v", sessions)
	}

	health, err := http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	defer health.Body.Close()
	var h struct {
		Status       string `json:"status"`
		Transactions int    `json:"transactions"`
		InProgress   int    `json:"in_progress"`
	}
	if err := json.NewDecoder(health.Body).Decode(&h); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if h.Status != "ok" || h.Transactions != 1 || h.InProgress != 1 {
		t.Fatalf("unexpected health %+v", h)
	}
}

func TestTokenRequiredWhenConfigured(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Ingest.Token = "secret"
	srv, err := ingest.New(cfg, correlate.NewEngine(documents.Codec{}))
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/sessions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	var denied struct {
		Error string `json:"error"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&denied)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q, want application/json", got)
	}
	if decodeErr != nil || denied.Error != "unauthorized" {
		t.Fatalf("unexpected unauthorized body %+v (%v)", denied, decodeErr)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/v1/sessions", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authorized get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	health, err := http.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatalf("get health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health must not require a token, status %d", health.StatusCode)
	}
}

type panickingWriter struct{}

func (panickingWriter) Write([]byte) (int, error) {
	panic("recorder exploded")
}

func TestPanicDuringIngestReleasesLock(t *testing.T) {
	srv, ts := newServer(t, ingest.WithRecorder(panickingWriter{}))
	client := &http.Client{Timeout: 5 * time.Second}

	payload, err := json.Marshal(capture.NewRecord(testsupport.DispatchTx(t, playlistURL, "")))
	if err != nil {
		t.Fatalf("marshal record: %v", err)
	}
	if resp, err := client.Post(ts.URL+"/v1/transactions", "application/json", bytes.NewReader(payload)); err == nil {
		resp.Body.Close()
		t.Fatal("expected the panicking request to abort the connection")
	}

	health, err := client.Get(ts.URL + "/v1/health")
	if err != nil {
		t.Fatalf("health after panic: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want %d", health.StatusCode, http.StatusOK)
	}

	done := make(chan struct{})
	go func() {
		srv.Finalize()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Finalize blocked on a lock left held by the panic")
	}
}

func TestRunHoldsSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := ingest.New(cfg, correlate.NewEngine(documents.Codec{}))
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for first.Addr() == "" {
		if time.Now().After(deadline) {
			cancel()
			t.Fatal("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}

	second, err := ingest.New(cfg, correlate.NewEngine(documents.Codec{}))
	if err != nil {
		t.Fatalf("ingest.New: %v", err)
	}
	if err := second.Run(context.Background()); err == nil || !strings.Contains(err.Error(), "another capflow ingest server") {
		t.Fatalf("expected lock conflict, got %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
