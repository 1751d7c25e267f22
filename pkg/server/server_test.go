package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/panoptic-captioner/pkg/processing"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

type stubCaptioner struct {
	result *types.InferenceResult
	err    error
	data   []byte
	topK   int
}

func (s *stubCaptioner) CaptionBytes(ctx context.Context, data []byte, topK int) (*types.InferenceResult, error) {
	s.data, s.topK = data, topK
	return s.result, s.err
}

func newUpload(t *testing.T, file []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	if file != nil {
		part, err := w.CreateFormFile("file", "image.jpg")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func postCaption(t *testing.T, s *Server, file []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := newUpload(t, file, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/caption", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func TestHealth(t *testing.T) {
	s := New(&stubCaptioner{})
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCaption(t *testing.T) {
	stub := &stubCaptioner{result: &types.InferenceResult{
		Labels:             []string{"grass", "dog", "frisbee"},
		BaselineCaption:    "a dog in a park",
		FusedCaption:       "a dog in a park, with frisbee nearby, under/around grass",
		RecallBaseline:     1.0 / 3.0,
		RecallFused:        1,
		SimilarityBaseline: 0.28,
		SimilarityFused:    0.31,
	}}
	s := New(stub)

	rec := postCaption(t, s, []byte("image-bytes"), map[string]string{"topk": "5"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte("image-bytes"), stub.data)
	assert.Equal(t, 5, stub.topK)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	for _, key := range []string{"labels_topk", "baseline_caption", "panoptic_caption", "recall_baseline", "recall_panoptic", "clipscore_baseline", "clipscore_panoptic"} {
		assert.Contains(t, got, key)
	}
	assert.Equal(t, "a dog in a park, with frisbee nearby, under/around grass", got["panoptic_caption"])
}

func TestCaptionTopKDefaults(t *testing.T) {
	tests := []struct {
		topk string
		want int
	}{
		{"", 8},
		{"0", 8},
		{"-3", 8},
		{" 12 ", 12},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("topk=%q", tt.topk), func(t *testing.T) {
			stub := &stubCaptioner{result: &types.InferenceResult{}}
			fields := map[string]string{}
			if tt.topk != "" {
				fields["topk"] = tt.topk
			}
			rec := postCaption(t, New(stub), []byte("x"), fields)
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, stub.topK)
		})
	}

	stub := &stubCaptioner{result: &types.InferenceResult{}}
	rec := postCaption(t, New(stub, WithDefaultTopK(3)), []byte("x"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, stub.topK)
}

func TestCaptionBadRequests(t *testing.T) {
	s := New(&stubCaptioner{result: &types.InferenceResult{}})

	rec := postCaption(t, s, nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file uploaded", decodeError(t, rec))

	rec = postCaption(t, s, []byte("x"), map[string]string{"topk": "eight"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "topk")

	req := httptest.NewRequest(http.MethodPost, "/api/caption", bytes.NewBufferString(`{"file":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCaptionErrors(t *testing.T) {
	invalid := New(&stubCaptioner{err: fmt.Errorf("%w: unsupported content type text/plain", processing.ErrInvalidImage)})
	rec := postCaption(t, invalid, []byte("not an image"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "invalid image")

	failing := New(&stubCaptioner{err: errors.New("captioning failed: sidecar /caption: HTTP 500")})
	rec = postCaption(t, failing, []byte("x"), nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "captioning failed: sidecar /caption: HTTP 500", decodeError(t, rec))
}

func TestCaptionTooLarge(t *testing.T) {
	s := New(&stubCaptioner{result: &types.InferenceResult{}}, WithMaxUploadBytes(1024))
	rec := postCaption(t, s, bytes.Repeat([]byte("x"), 4096), nil)
	assert.Contains(t, []int{http.StatusBadRequest, http.StatusRequestEntityTooLarge}, rec.Code)
}

func TestRouting(t *testing.T) {
	s := New(&stubCaptioner{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/caption", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/caption", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "POST, GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/predict", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParseTopK(t *testing.T) {
	k, err := parseTopK("4", 8)
	require.NoError(t, err)
	assert.Equal(t, 4, k)

	_, err = parseTopK("4.5", 8)
	assert.Error(t, err)
}

func TestListenAndServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(&stubCaptioner{}).ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/api/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
