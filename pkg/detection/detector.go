// Package detection turns a general vision-language model into the caption
// and segmentation collaborators of the pipeline by prompting it.
package detection

import (
	"context"
	"encoding/json"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/menta2k/panoptic-captioner/pkg/client"
	"github.com/menta2k/panoptic-captioner/pkg/processing"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

// DefaultCaptionPrompt asks for a short, literal caption in the style of
// image captioning datasets.
const DefaultCaptionPrompt = `Write one short caption for this image.

RULES
- One sentence, lowercase, at most 15 words.
- Describe only what is visible. Do not guess identities.
- No quotes, no markdown, no preamble.`

// DefaultSegmentPrompt asks for panoptic-style regions with approximate
// areas so that larger regions dominate the label ranking.
const DefaultSegmentPrompt = `You are a panoptic segmentation model.

Return JSON only:
{
  "segments": [
    {"label": "person", "area": 0.0, "score": 0.0}
  ]
}

HARD RULES
- One entry per distinct object or stuff region (sky, road, grass, wall, water...).
- Use COCO panoptic category names, lowercase.
- "area" is the fraction of the image the region covers, in [0,1].
- "score" is your confidence in [0,1].
- At most 20 segments.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// maxSegments bounds how many regions a single reply may contribute.
const maxSegments = 64

// Option configures a Captioner or RegionLabeler.
type Option func(*settings)

type settings struct {
	prompt string
	encode types.EncodeOptions
}

// WithPrompt overrides the default prompt.
func WithPrompt(prompt string) Option {
	return func(s *settings) {
		if strings.TrimSpace(prompt) != "" {
			s.prompt = prompt
		}
	}
}

// WithEncodeOptions sets how images are encoded before they are sent.
func WithEncodeOptions(opts types.EncodeOptions) Option {
	return func(s *settings) { s.encode = opts }
}

func newSettings(prompt string, opts []Option) settings {
	s := settings{prompt: prompt, encode: processing.DefaultEncodeOptions}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

func encodeForModel(img image.Image, opts types.EncodeOptions) (string, error) {
	b64, err := processing.NewProcessor().PrepareImageForModel(img, opts)
	if err != nil {
		return "", fmt.Errorf("failed to prepare image: %w", err)
	}
	return b64, nil
}

// Captioner produces baseline captions with a vision-language model.
type Captioner struct {
	client client.VisionClient
	model  string
	settings
}

// NewCaptioner creates a captioner over client
func NewCaptioner(client client.VisionClient, model string, opts ...Option) *Captioner {
	return &Captioner{client: client, model: model, settings: newSettings(DefaultCaptionPrompt, opts)}
}

// Caption returns a one-line caption for img.
func (c *Captioner) Caption(ctx context.Context, img image.Image) (string, error) {
	b64, err := encodeForModel(img, c.encode)
	if err != nil {
		return "", err
	}
	raw, err := c.client.SimpleQuery(ctx, c.model, c.prompt, b64)
	if err != nil {
		return "", err
	}
	return cleanCaption(raw), nil
}

// RegionLabeler asks a vision-language model for labeled image regions.
type RegionLabeler struct {
	client client.VisionClient
	model  string
	settings
}

// NewRegionLabeler creates a region labeler over client
func NewRegionLabeler(client client.VisionClient, model string, opts ...Option) *RegionLabeler {
	return &RegionLabeler{client: client, model: model, settings: newSettings(DefaultSegmentPrompt, opts)}
}

// Segment returns the regions the model reports for img.
func (r *RegionLabeler) Segment(ctx context.Context, img image.Image) ([]types.Segment, error) {
	b64, err := encodeForModel(img, r.encode)
	if err != nil {
		return nil, err
	}
	raw, err := r.client.SimpleQuery(ctx, r.model, r.prompt, b64)
	if err != nil {
		return nil, err
	}
	segments, err := parseSegments(raw)
	if err != nil {
		return nil, err
	}
	return normalizeSegments(segments), nil
}

// parseSegments accepts {"segments":[...]} or a bare [...] array.
func parseSegments(raw string) ([]types.Segment, error) {
	raw = sanitizeModelJSON(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty segmentation response")
	}

	if strings.HasPrefix(raw, "[") {
		var segments []types.Segment
		if err := json.Unmarshal([]byte(raw), &segments); err != nil {
			return nil, fmt.Errorf("failed to parse segments: %w", err)
		}
		return segments, nil
	}

	var wrapped struct {
		Segments []types.Segment `json:"segments"`
	}
	if err := json.Unmarshal([]byte(raw), &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse segments: %w", err)
	}
	return wrapped.Segments, nil
}

// normalizeSegments trims and lower-cases labels, drops unlabeled regions,
// and caps the count. Repeated labels are kept since their weights add up.
func normalizeSegments(segments []types.Segment) []types.Segment {
	out := make([]types.Segment, 0, len(segments))
	for _, s := range segments {
		s.Label = strings.ToLower(strings.TrimSpace(s.Label))
		if s.Label == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxSegments {
			break
		}
	}
	return out
}

var (
	reCaptionPrefix = regexp.MustCompile(`(?i)^(caption|description)\s*:\s*`)
	reSpaces        = regexp.MustCompile(`\s+`)
)

// cleanCaption keeps the first non-empty line, drops a "Caption:" prefix and
// surrounding quotes, and collapses whitespace.
func cleanCaption(raw string) string {
	line := ""
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	line = reCaptionPrefix.ReplaceAllString(line, "")
	line = strings.Trim(line, "\"'`“”")
	return strings.TrimSpace(reSpaces.ReplaceAllString(line, " "))
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline   = regexp.MustCompile(`(?m)//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...} or [...], whichever opens first
	open := strings.IndexAny(raw, "{[")
	if open >= 0 {
		closer := "}"
		if raw[open] == '[' {
			closer = "]"
		}
		if end := strings.LastIndex(raw, closer); end > open {
			raw = raw[open : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
