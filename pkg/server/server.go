// Package server exposes caption fusion over HTTP.
//
//	GET  /api/health   -> {"status":"ok"}
//	POST /api/caption  multipart "file" [+ "topk"] -> InferenceResult
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/menta2k/panoptic-captioner/internal/utils"
	"github.com/menta2k/panoptic-captioner/pkg/labels"
	"github.com/menta2k/panoptic-captioner/pkg/processing"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

// DefaultMaxUploadBytes caps a single multipart upload.
const DefaultMaxUploadBytes = 50 << 20

const shutdownTimeout = 10 * time.Second

// Captioner runs one inference on encoded image bytes.
type Captioner interface {
	CaptionBytes(ctx context.Context, data []byte, topK int) (*types.InferenceResult, error)
}

// Server routes HTTP requests to a Captioner.
type Server struct {
	captioner   Captioner
	logger      *zap.Logger
	maxUpload   int64
	defaultTopK int
	mux         *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxUploadBytes caps the request body size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

// WithDefaultTopK sets the label count used when the form omits topk.
func WithDefaultTopK(k int) Option {
	return func(s *Server) {
		if k > 0 {
			s.defaultTopK = k
		}
	}
}

// New returns a server with its routes registered.
func New(captioner Captioner, opts ...Option) *Server {
	s := &Server{
		captioner:   captioner,
		logger:      zap.NewNop(),
		maxUpload:   DefaultMaxUploadBytes,
		defaultTopK: labels.DefaultTopK,
		mux:         http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/caption", s.handleCaption)
	return s
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(corsMiddleware(s.mux))
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) handleCaption(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, fmt.Sprintf("upload exceeds %d bytes", s.maxUpload), http.StatusRequestEntityTooLarge)
			return
		}
		respondError(w, "Failed to parse form", http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	topK, err := parseTopK(r.FormValue("topk"), s.defaultTopK)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, "No file uploaded", http.StatusBadRequest)
		return
	}
	defer file.Close()
	s.logger.Debug("upload received",
		zap.String("filename", header.Filename),
		zap.String("size", utils.FormatFileSize(header.Size)),
		zap.Int("topk", topK),
	)

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, "Failed to read file", http.StatusBadRequest)
		return
	}

	result, err := s.captioner.CaptionBytes(r.Context(), data, topK)
	if err != nil {
		if errors.Is(err, processing.ErrInvalidImage) {
			respondError(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.logger.Error("inference failed", zap.Error(err))
		respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	respondJSON(w, result, http.StatusOK)
}

// parseTopK reads the optional topk form value. Missing or non-positive
// values select def; anything that is not an integer is rejected.
func parseTopK(raw string, def int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def, nil
	}
	k, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("topk must be an integer, got %q", raw)
	}
	if k <= 0 {
		return def, nil
	}
	return k, nil
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
