package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/example/kannada-bpe/internal/bpe"
	"github.com/example/kannada-bpe/internal/config"
	"github.com/example/kannada-bpe/internal/visualize"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Tokenizer is the vocabulary surface the handler serves. *bpe.Vocabulary
// implements it.
type Tokenizer interface {
	EncodeChunks(text string) []bpe.Chunk
	Decode(ids []int) (string, error)
	TokenText(id int) (string, bool)
	Size() int
	NumMerges() int
	Pattern() string
	PatternVersion() int
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   64 * 1024,
		workers:        4,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum text length in bytes for encode and
// visualize requests, and the maximum id count for decode requests.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent tokenizer calls.
// n <= 0 disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	tok  Tokenizer
	opts options
	sem  chan struct{} // semaphore for worker pool
	log  *slog.Logger
}

// NewHandler returns an http.Handler serving the tokenizer JSON API:
//
//	GET  /health
//	GET  /v1/vocab
//	GET  /v1/tokens/{id}
//	POST /v1/encode
//	POST /v1/decode
//	POST /v1/visualize
func NewHandler(tok Tokenizer, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		tok:  tok,
		opts: opts,
		log:  opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /v1/vocab", h.handleVocab)
	mux.HandleFunc("GET /v1/tokens/{id}", h.handleToken)
	mux.HandleFunc("POST /v1/encode", h.handleEncode)
	mux.HandleFunc("POST /v1/decode", h.handleDecode)
	mux.HandleFunc("POST /v1/visualize", h.handleVisualize)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

type vocabResponse struct {
	Size           int    `json:"size"`
	BaseSize       int    `json:"base_size"`
	Merges         int    `json:"merges"`
	Pattern        string `json:"pattern"`
	PatternVersion int    `json:"pattern_version"`
}

func (h *handler) handleVocab(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vocabResponse{
		Size:           h.tok.Size(),
		BaseSize:       bpe.BaseSize,
		Merges:         h.tok.NumMerges(),
		Pattern:        h.tok.Pattern(),
		PatternVersion: h.tok.PatternVersion(),
	})
}

type tokenResponse struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
	Hex  string `json:"hex"`
}

func (h *handler) handleToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "token id must be an integer")
		return
	}

	text, ok := h.tok.TokenText(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("token %d not in vocabulary of size %d", id, h.tok.Size()))
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		ID:   id,
		Text: strings.ToValidUTF8(text, "\uFFFD"),
		Hex:  hex.EncodeToString([]byte(text)),
	})
}

type textRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	IDs    []int       `json:"ids"`
	Count  int         `json:"count"`
	Chunks []bpe.Chunk `json:"chunks"`
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readText(w, r)
	if !ok {
		return
	}

	var chunks []bpe.Chunk
	start := time.Now()
	if !h.run(w, r, func() { chunks = h.tok.EncodeChunks(req.Text) }) {
		return
	}

	ids := []int{}
	for _, c := range chunks {
		ids = append(ids, c.IDs...)
	}
	if chunks == nil {
		chunks = []bpe.Chunk{}
	}

	h.log.InfoContext(r.Context(), "encode complete",
		slog.Int("text_len", len(req.Text)),
		slog.Int("tokens", len(ids)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)

	writeJSON(w, http.StatusOK, encodeResponse{IDs: ids, Count: len(ids), Chunks: chunks})
}

type decodeRequest struct {
	IDs []int `json:"ids"`
}

type decodeResponse struct {
	Text string `json:"text"`
}

func (h *handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}

	if len(req.IDs) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("ids exceed maximum count of %d", h.opts.maxTextBytes))
		return
	}

	var (
		text string
		err  error
	)
	if !h.run(w, r, func() { text, err = h.tok.Decode(req.IDs) }) {
		return
	}

	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, bpe.ErrUnknownToken) {
			status = http.StatusBadRequest
		}
		h.log.WarnContext(r.Context(), "decode failed",
			slog.Int("ids", len(req.IDs)),
			slog.String("error", err.Error()),
		)
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, decodeResponse{Text: text})
}

func (h *handler) handleVisualize(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readText(w, r)
	if !ok {
		return
	}

	var d visualize.Display
	if !h.run(w, r, func() { d = visualize.Build(h.tok.EncodeChunks(req.Text), h.tok) }) {
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// readText decodes a {"text": ...} body and enforces the size limit. Empty
// text is valid and encodes to no tokens.
func (h *handler) readText(w http.ResponseWriter, r *http.Request) (textRequest, bool) {
	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return req, false
	}

	return req, true
}

// run executes fn in a worker slot under the request deadline. It writes the
// error response itself and reports whether fn completed.
func (h *handler) run(w http.ResponseWriter, r *http.Request, fn func()) bool {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	// Acquire a worker slot, honouring cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-ctx.Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return false
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if h.sem != nil {
			defer func() { <-h.sem }()
		}
		fn()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		h.log.WarnContext(r.Context(), "request timed out",
			slog.String("path", r.URL.Path),
			slog.String("error", ctx.Err().Error()),
		)
		writeError(w, http.StatusGatewayTimeout, "request timed out")
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// HTTP server lifecycle
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	tok             Tokenizer
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.Config, tok Tokenizer) *Server {
	return &Server{
		cfg:             cfg,
		tok:             tok,
		logger:          slog.Default(),
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the request logger.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

func (s *Server) Start(ctx context.Context) error {
	if s.tok == nil {
		return errors.New("server: no vocabulary loaded")
	}

	h := NewHandler(s.tok,
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithLogger(s.logger),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.Info("server listening",
		slog.String("addr", s.cfg.Server.ListenAddr),
		slog.Int("vocab_size", s.tok.Size()),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
