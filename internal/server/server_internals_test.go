package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/example/kannada-bpe/internal/config"
)

// --- New & WithShutdownTimeout ---

func TestNew_DefaultShutdownTimeout(t *testing.T) {
	s := New(config.DefaultConfig(), nil)
	if s == nil {
		t.Fatal("New() returned nil")
	}

	if s.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v; want 30s", s.shutdownTimeout)
	}
}

func TestWithShutdownTimeout_Chaining(t *testing.T) {
	s := New(config.DefaultConfig(), nil)

	returned := s.WithShutdownTimeout(10 * time.Second)
	if returned != s {
		t.Error("WithShutdownTimeout should return the same *Server")
	}

	if s.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v; want 10s", s.shutdownTimeout)
	}
}

// --- Start ---

func TestStart_NoVocabulary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New(config.DefaultConfig(), nil).Start(ctx); err == nil {
		t.Error("Start() = nil; want error without a vocabulary")
	}
}

func TestStart_LifecycleHealthAndShutdown(t *testing.T) {
	// Find an available port.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	addr := ln.Addr().String()
	ln.Close() // free it for the server

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = addr

	s := New(cfg, bpe.NewBase()).
		WithShutdownTimeout(2 * time.Second).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)

	go func() {
		errCh <- s.Start(ctx)
	}()

	// Wait for the server to be ready.
	for range 50 {
		err = ProbeHTTP(addr)
		if err == nil {
			break
		}

		time.Sleep(20 * time.Millisecond)
	}

	if err != nil {
		t.Fatalf("server never became ready: %v", err)
	}

	client := &http.Client{Timeout: 2 * time.Second}

	resp, err := client.Get(fmt.Sprintf("http://%s/v1/vocab", addr))
	if err != nil {
		t.Fatalf("GET /v1/vocab: %v", err)
	}
	defer resp.Body.Close()

	var body vocabResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode /v1/vocab: %v", err)
	}

	if body.Size != bpe.BaseSize || body.Merges != 0 {
		t.Errorf("vocab = %+v; want base vocabulary", body)
	}

	// Graceful shutdown.
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Start() returned error on shutdown: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start() did not return within 5s of context cancel")
	}
}

func TestStart_AddressInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	cfg := config.DefaultConfig()
	cfg.Server.ListenAddr = ln.Addr().String()

	s := New(cfg, bpe.NewBase()).WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Start(ctx); err == nil {
		t.Error("Start() = nil; want listen error")
	}
}

// --- ProbeHTTP ---

func TestProbeHTTP_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	// ProbeHTTP uses "http://" prefix + addr, so strip the scheme.
	addr := srv.Listener.Addr().String()

	err := ProbeHTTP(addr)
	if err != nil {
		t.Errorf("ProbeHTTP(%q) = %v; want nil", addr, err)
	}
}

func TestProbeHTTP_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := ProbeHTTP(srv.Listener.Addr().String())
	if err == nil {
		t.Error("ProbeHTTP() = nil; want error for non-200 response")
	}
}

func TestProbeHTTP_ConnectionRefused(t *testing.T) {
	err := ProbeHTTP("127.0.0.1:1")
	if err == nil {
		t.Error("ProbeHTTP() = nil; want error for unreachable host")
	}
}

// --- Functional options ---

func TestOptions_WithMaxTextBytes(t *testing.T) {
	opts := defaultOptions()
	WithMaxTextBytes(1024)(&opts)

	if opts.maxTextBytes != 1024 {
		t.Errorf("maxTextBytes = %d; want 1024", opts.maxTextBytes)
	}
}

func TestOptions_WithWorkers(t *testing.T) {
	opts := defaultOptions()
	WithWorkers(8)(&opts)

	if opts.workers != 8 {
		t.Errorf("workers = %d; want 8", opts.workers)
	}
}

func TestOptions_WithRequestTimeout(t *testing.T) {
	opts := defaultOptions()
	WithRequestTimeout(90 * time.Second)(&opts)

	if opts.requestTimeout != 90*time.Second {
		t.Errorf("requestTimeout = %v; want 90s", opts.requestTimeout)
	}
}

func TestNewHandler_ZeroWorkersDisablesThrottling(t *testing.T) {
	h := NewHandler(bpe.NewBase(), WithWorkers(0)).(*http.ServeMux)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("want 200, got %d", rec.Code)
	}
}
