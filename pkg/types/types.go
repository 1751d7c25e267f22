package types

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Segment is one region reported by a panoptic segmentation model.
//
// Area and Score are mutually optional. When both are present Area wins;
// when neither is present the segment weighs 1.0. A field that is present
// but malformed weighs 0.0 instead of failing the decode.
type Segment struct {
	Label string   `json:"label"`
	Area  *float64 `json:"area,omitempty"`
	Score *float64 `json:"score,omitempty"`
	Box   *Box     `json:"box,omitempty"`
}

// AreaSegment builds a segment weighted by its normalized area.
func AreaSegment(label string, area float64) Segment {
	return Segment{Label: label, Area: &area}
}

// ScoreSegment builds a segment weighted by its confidence score.
func ScoreSegment(label string, score float64) Segment {
	return Segment{Label: label, Score: &score}
}

// LabelSegment builds a segment that carries neither area nor score.
func LabelSegment(label string) Segment {
	return Segment{Label: label}
}

// Weight returns the contribution of the segment to its label's total.
func (s Segment) Weight() float64 {
	switch {
	case s.Area != nil:
		return sanitizeWeight(*s.Area)
	case s.Score != nil:
		return sanitizeWeight(*s.Score)
	default:
		return 1.0
	}
}

func sanitizeWeight(w float64) float64 {
	if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
		return 0
	}
	return w
}

// UnmarshalJSON accepts the loosely typed records segmentation servers emit:
// numbers may arrive as strings, and unknown keys are ignored.
func (s *Segment) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label json.RawMessage `json:"label"`
		Area  json.RawMessage `json:"area"`
		Score json.RawMessage `json:"score"`
		Box   *Box            `json:"box"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*s = Segment{Label: parseLabel(raw.Label), Box: raw.Box}
	if raw.Area != nil {
		v := parseWeight(raw.Area)
		s.Area = &v
	}
	if raw.Score != nil {
		v := parseWeight(raw.Score)
		s.Score = &v
	}
	return nil
}

func parseLabel(raw json.RawMessage) string {
	var label string
	if err := json.Unmarshal(raw, &label); err != nil {
		return ""
	}
	return label
}

func parseWeight(raw json.RawMessage) float64 {
	raw = bytes.TrimSpace(raw)
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return sanitizeWeight(f)
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		if f, err := strconv.ParseFloat(strings.TrimSpace(str), 64); err == nil {
			return sanitizeWeight(f)
		}
	}
	return 0
}

// InferenceResult is the outcome of one captioning request.
type InferenceResult struct {
	Labels             []string `json:"labels_topk"`
	BaselineCaption    string   `json:"baseline_caption"`
	FusedCaption       string   `json:"panoptic_caption"`
	RecallBaseline     float64  `json:"recall_baseline"`
	RecallFused        float64  `json:"recall_panoptic"`
	SimilarityBaseline float64  `json:"clipscore_baseline"`
	SimilarityFused    float64  `json:"clipscore_panoptic"`
}

// EncodeOptions controls how an image is serialized before it is sent to a model
type EncodeOptions struct {
	Format  string
	MaxDim  int
	Quality int
}
