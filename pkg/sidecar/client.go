// Package sidecar is the HTTP client for the model server that hosts the
// captioning, panoptic segmentation and image-text similarity models.
//
// Every endpoint takes a JSON body carrying the image as base64, so a
// request can be replayed verbatim on retry:
//
//	POST /caption     {"image"}          -> {"caption"}
//	POST /segment     {"image"}          -> {"segments":[{"label","area","score"}]}
//	POST /similarity  {"image","text"}   -> {"score"}
//	GET  /health                         -> {"status"}
package sidecar

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/menta2k/panoptic-captioner/pkg/processing"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

const (
	defaultTimeout = 2 * time.Minute
	retryDelay     = 500 * time.Millisecond
	maxRetryDelay  = 5 * time.Second
)

// Config describes how to reach the model server.
type Config struct {
	URL     string
	Timeout time.Duration
	Retries int
	Encode  types.EncodeOptions
}

// Client implements the captioner, segmenter and similarity scorer on top
// of the model server.
type Client struct {
	*resty.Client
	encode types.EncodeOptions
}

type imageRequest struct {
	Image string `json:"image"`
	Text  string `json:"text,omitempty"`
}

type captionResponse struct {
	Caption string `json:"caption"`
}

type segmentResponse struct {
	Segments []types.Segment `json:"segments"`
}

type similarityResponse struct {
	Score *float64 `json:"score"`
}

type healthResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func (e *errorResponse) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Detail
}

// New returns a model server client.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return nil, fmt.Errorf("invalid sidecar URL: %q", cfg.URL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Encode.Format == "" {
		cfg.Encode = processing.DefaultEncodeOptions
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := resty.New().
		SetLogger(logger.Sugar()).
		SetBaseURL(strings.TrimSuffix(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.Retries).
		SetRetryWaitTime(retryDelay).
		SetRetryMaxWaitTime(maxRetryDelay).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// the model server answers 503 while weights are loading
			return resp != nil && resp.StatusCode() == http.StatusServiceUnavailable
		})

	return &Client{Client: r, encode: cfg.Encode}, nil
}

// Caption calls POST /caption.
func (c *Client) Caption(ctx context.Context, img image.Image) (string, error) {
	var out captionResponse
	if err := c.post(ctx, "/caption", img, "", &out); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Caption), nil
}

// Segment calls POST /segment.
func (c *Client) Segment(ctx context.Context, img image.Image) ([]types.Segment, error) {
	var out segmentResponse
	if err := c.post(ctx, "/segment", img, "", &out); err != nil {
		return nil, err
	}
	return out.Segments, nil
}

// Similarity calls POST /similarity and returns the cosine similarity of the
// image and text embeddings.
func (c *Client) Similarity(ctx context.Context, img image.Image, text string) (float64, error) {
	var out similarityResponse
	if err := c.post(ctx, "/similarity", img, text, &out); err != nil {
		return 0, err
	}
	if out.Score == nil {
		return 0, errors.New("sidecar /similarity: response has no score")
	}
	if math.IsNaN(*out.Score) || math.IsInf(*out.Score, 0) {
		return 0, fmt.Errorf("sidecar /similarity: score %v is not finite", *out.Score)
	}
	return *out.Score, nil
}

// Health calls GET /health.
func (c *Client) Health(ctx context.Context) error {
	var out healthResponse
	resp, err := c.R().SetContext(ctx).SetResult(&out).Get("/health")
	if err != nil {
		return fmt.Errorf("couldn't connect with sidecar: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sidecar /health: HTTP %d", resp.StatusCode())
	}
	if out.Status != "ok" {
		return fmt.Errorf("sidecar /health: status %q", out.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, img image.Image, text string, result any) error {
	data, _, err := processing.EncodeImage(img, c.encode)
	if err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	var apiErr errorResponse
	resp, err := c.R().
		SetContext(ctx).
		SetBody(imageRequest{Image: base64.StdEncoding.EncodeToString(data), Text: text}).
		SetResult(result).
		SetError(&apiErr).
		Post(path)
	if err != nil {
		return fmt.Errorf("couldn't connect with sidecar: %w", err)
	}
	if resp.IsError() {
		if msg := apiErr.message(); msg != "" {
			return fmt.Errorf("sidecar %s: HTTP %d: %s", path, resp.StatusCode(), msg)
		}
		return fmt.Errorf("sidecar %s: HTTP %d", path, resp.StatusCode())
	}
	return nil
}
