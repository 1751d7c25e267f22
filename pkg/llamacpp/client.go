// Package llamacpp talks to an OpenAI-compatible chat completions server
// such as llama.cpp's llama-server.
package llamacpp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	defaultServerURL = "http://localhost:8080"
	reqTimeout       = 5 * time.Minute
	chatPath         = "/v1/chat/completions"
)

type Client struct {
	*resty.Client
}

// OpenAI-compatible message format
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // Can be string or []ContentPart
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

// OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

// OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage,omitempty"`
}

type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewClient(serverURL string, logger *zap.Logger) (*Client, error) {
	if serverURL == "" {
		serverURL = defaultServerURL
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid URL: %q", serverURL)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := resty.New().
		SetLogger(logger.Sugar()).
		SetBaseURL(strings.TrimSuffix(serverURL, "/")).
		SetTimeout(reqTimeout).
		SetHeader("Content-Type", "application/json")

	return &Client{Client: r}, nil
}

func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	content := []ContentPart{
		{
			Type: "text",
			Text: prompt,
		},
	}

	if imgB64 != "" {
		content = append(content, ContentPart{
			Type: "image_url",
			ImageURL: &ImageURL{
				URL: "data:image/jpeg;base64," + imgB64,
			},
		})
	}

	req := ChatCompletionRequest{
		Model: model,
		Messages: []Message{
			{
				Role:    "user",
				Content: content,
			},
		},
		Temperature: 0.7,
		MaxTokens:   2048,
		TopP:        0.9,
		Stream:      false,
	}

	var result ChatCompletionResponse
	var apiErr errorResponse
	resp, err := c.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&result).
		SetError(&apiErr).
		Post(chatPath)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	if resp.IsError() {
		if apiErr.Error.Message != "" {
			return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode(), apiErr.Error.Message)
		}
		return "", fmt.Errorf("server returned status %d: %s", resp.StatusCode(), resp.String())
	}

	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	if text := extractText(result.Choices[0].Message.Content); text != "" {
		return text, nil
	}
	return "", fmt.Errorf("no text content in response")
}

// extractText handles both the string and the content-part array forms.
func extractText(content interface{}) string {
	switch content := content.(type) {
	case string:
		return content
	case []interface{}:
		for _, item := range content {
			if partMap, ok := item.(map[string]interface{}); ok {
				if text, ok := partMap["text"].(string); ok && text != "" {
					return text
				}
			}
		}
	}
	return ""
}
