// Package panopticcaptioner produces richer image captions by fusing a
// baseline caption with labels from panoptic segmentation.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		panopticcaptioner "github.com/menta2k/panoptic-captioner"
//		"github.com/menta2k/panoptic-captioner/pkg/sidecar"
//	)
//
//	func main() {
//		models, err := sidecar.New(sidecar.Config{URL: "http://localhost:9000"}, nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		pc, err := panopticcaptioner.New(models, models, models)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		res, err := pc.CaptionFile(context.Background(), "photo.jpg", 8)
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(res.FusedCaption)
//	}
//
// The package consists of these components:
//
// 1. Labels (pkg/labels): canonicalizes segment labels and ranks them by weight
// 2. Fusion (pkg/fusion): drops labels the caption already names and merges the rest
// 3. Metrics (pkg/metrics): label recall of a caption
// 4. Pipeline (pkg/pipeline): runs the models and assembles the result
// 5. Lexicon (pkg/lexicon): WordNet synonyms used for redundancy checks
//
// The captioning, segmentation and similarity models are collaborators. The
// sidecar package reaches them on a Python model server; the ollama and
// llamacpp packages drive a local vision-language model through the
// detection package instead.
package panopticcaptioner

import (
	"context"
	"fmt"
	"image"

	"go.uber.org/zap"

	"github.com/menta2k/panoptic-captioner/pkg/fusion"
	"github.com/menta2k/panoptic-captioner/pkg/lexicon"
	"github.com/menta2k/panoptic-captioner/pkg/pipeline"
	"github.com/menta2k/panoptic-captioner/pkg/processing"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

// Version of the panoptic captioner library
const Version = "1.0.0"

// PanopticCaptioner provides a high-level interface for caption fusion
type PanopticCaptioner struct {
	pipeline  *pipeline.Pipeline
	processor *processing.Processor
	logger    *zap.Logger
}

// Option configures a PanopticCaptioner.
type Option func(*options)

type options struct {
	thesaurus fusion.Thesaurus
	logger    *zap.Logger
}

// WithThesaurus replaces the embedded WordNet snapshot used for redundancy
// checks, for example with a lexicon loaded from a full WordNet dict.
func WithThesaurus(t fusion.Thesaurus) Option {
	return func(o *options) { o.thesaurus = t }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// New creates a PanopticCaptioner over the three model collaborators.
func New(captioner pipeline.Captioner, segmenter pipeline.Segmenter, scorer pipeline.SimilarityScorer, opts ...Option) (*PanopticCaptioner, error) {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.thesaurus == nil {
		lex, err := lexicon.Default()
		if err != nil {
			return nil, fmt.Errorf("failed to load lexicon: %w", err)
		}
		o.thesaurus = lex
	}

	p, err := pipeline.New(captioner, segmenter, scorer, fusion.NewFilter(o.thesaurus), pipeline.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	return &PanopticCaptioner{
		pipeline:  p,
		processor: processing.NewProcessor(),
		logger:    o.logger,
	}, nil
}

// CaptionImage runs one inference on a decoded image
func (pc *PanopticCaptioner) CaptionImage(ctx context.Context, img image.Image, topK int) (*types.InferenceResult, error) {
	return pc.pipeline.Run(ctx, img, topK)
}

// CaptionBytes decodes an uploaded image and runs one inference. Undecodable
// input yields an error wrapping processing.ErrInvalidImage.
func (pc *PanopticCaptioner) CaptionBytes(ctx context.Context, data []byte, topK int) (*types.InferenceResult, error) {
	img, err := processing.DecodeUpload(data)
	if err != nil {
		return nil, err
	}
	return pc.CaptionImage(ctx, img, topK)
}

// CaptionFile loads an image from a file path or http(s) URL and runs one
// inference.
func (pc *PanopticCaptioner) CaptionFile(ctx context.Context, source string, topK int) (*types.InferenceResult, error) {
	img, err := pc.processor.LoadImageSmart(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return pc.CaptionImage(ctx, img, topK)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
