// Package pipeline runs one caption fusion inference: caption and segment
// the image, rank and fuse the labels, then score both captions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/menta2k/panoptic-captioner/pkg/fusion"
	"github.com/menta2k/panoptic-captioner/pkg/labels"
	"github.com/menta2k/panoptic-captioner/pkg/metrics"
	"github.com/menta2k/panoptic-captioner/pkg/processing"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

// Captioner produces a baseline caption for an image.
type Captioner interface {
	Caption(ctx context.Context, img image.Image) (string, error)
}

// Segmenter produces panoptic segments for an image.
type Segmenter interface {
	Segment(ctx context.Context, img image.Image) ([]types.Segment, error)
}

// SimilarityScorer rates how well text describes an image, in [-1, 1].
type SimilarityScorer interface {
	Similarity(ctx context.Context, img image.Image, text string) (float64, error)
}

// Pipeline wires the three model collaborators to the fusion logic.
// It is safe for concurrent use when its collaborators are.
type Pipeline struct {
	captioner Captioner
	segmenter Segmenter
	scorer    SimilarityScorer
	filter    *fusion.Filter
	logger    *zap.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger used for per-stage timings.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New returns a pipeline. A nil filter checks redundancy by substring only.
func New(captioner Captioner, segmenter Segmenter, scorer SimilarityScorer, filter *fusion.Filter, opts ...Option) (*Pipeline, error) {
	if captioner == nil || segmenter == nil || scorer == nil {
		return nil, errors.New("pipeline: captioner, segmenter and scorer are required")
	}
	if filter == nil {
		filter = fusion.NewFilter(nil)
	}
	p := &Pipeline{
		captioner: captioner,
		segmenter: segmenter,
		scorer:    scorer,
		filter:    filter,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run performs one inference. topK <= 0 selects labels.DefaultTopK.
// Any collaborator failure aborts the call; no partial result is returned.
func (p *Pipeline) Run(ctx context.Context, img image.Image, topK int) (*types.InferenceResult, error) {
	if err := processing.ValidateImage(img); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = labels.DefaultTopK
	}
	start := time.Now()
	img = processing.ToNRGBA(img)

	var (
		baseline string
		segments []types.Segment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := p.captioner.Caption(gctx, img)
		if err != nil {
			return fmt.Errorf("captioning failed: %w", err)
		}
		baseline = c
		return nil
	})
	g.Go(func() error {
		s, err := p.segmenter.Segment(gctx, img)
		if err != nil {
			return fmt.Errorf("segmentation failed: %w", err)
		}
		segments = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	modelsDone := time.Now()

	topLabels := labels.Aggregate(segments, topK)
	fused := p.filter.Fuse(baseline, topLabels)

	var simBaseline, simFused float64
	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		s, err := p.scorer.Similarity(gctx, img, baseline)
		if err != nil {
			return fmt.Errorf("scoring baseline caption failed: %w", err)
		}
		simBaseline = s
		return nil
	})
	g.Go(func() error {
		s, err := p.scorer.Similarity(gctx, img, fused)
		if err != nil {
			return fmt.Errorf("scoring fused caption failed: %w", err)
		}
		simFused = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &types.InferenceResult{
		Labels:             topLabels,
		BaselineCaption:    baseline,
		FusedCaption:       fused,
		RecallBaseline:     metrics.Recall(topLabels, baseline),
		RecallFused:        metrics.Recall(topLabels, fused),
		SimilarityBaseline: simBaseline,
		SimilarityFused:    simFused,
	}

	p.logger.Debug("inference complete",
		zap.Int("segments", len(segments)),
		zap.Strings("labels", topLabels),
		zap.Duration("models", modelsDone.Sub(start)),
		zap.Duration("total", time.Since(start)),
	)
	return result, nil
}
