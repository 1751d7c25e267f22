package commands

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	panopticcaptioner "github.com/menta2k/panoptic-captioner"
	"github.com/menta2k/panoptic-captioner/internal/config"
	"github.com/menta2k/panoptic-captioner/pkg/client"
	"github.com/menta2k/panoptic-captioner/pkg/detection"
	"github.com/menta2k/panoptic-captioner/pkg/lexicon"
	"github.com/menta2k/panoptic-captioner/pkg/llamacpp"
	"github.com/menta2k/panoptic-captioner/pkg/ollama"
	"github.com/menta2k/panoptic-captioner/pkg/pipeline"
	"github.com/menta2k/panoptic-captioner/pkg/sidecar"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultLlamaCppURL = "http://localhost:8080"
	healthTimeout      = 5 * time.Second
)

// backends holds the model clients built from configuration.
type backends struct {
	cfg      *config.Config
	log      *zap.Logger
	encode   types.EncodeOptions
	sidecars map[string]*sidecar.Client
}

func newBackends(cfg *config.Config, log *zap.Logger) *backends {
	return &backends{
		cfg: cfg,
		log: log,
		encode: types.EncodeOptions{
			Format:  cfg.Image.SendFormat,
			MaxDim:  cfg.Image.SendSize,
			Quality: cfg.Image.SendQuality,
		},
		sidecars: map[string]*sidecar.Client{},
	}
}

// sidecarClient returns the model server client for url, or for sidecar.url when
// url is empty. Clients are shared per URL.
func (b *backends) sidecarClient(url string) (*sidecar.Client, error) {
	if url == "" {
		url = b.cfg.Sidecar.URL
	}
	if c, ok := b.sidecars[url]; ok {
		return c, nil
	}
	c, err := sidecar.New(sidecar.Config{
		URL:     url,
		Timeout: b.cfg.Sidecar.Timeout,
		Retries: b.cfg.Sidecar.Retries,
		Encode:  b.encode,
	}, b.log.Named("sidecar"))
	if err != nil {
		return nil, err
	}
	b.sidecars[url] = c
	return c, nil
}

func (b *backends) visionClient(m config.ModelConfig) (client.VisionClient, error) {
	switch m.Backend {
	case config.BackendOllama:
		url := m.URL
		if url == "" {
			url = defaultOllamaURL
		}
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case config.BackendLlamaCpp:
		url := m.URL
		if url == "" {
			url = defaultLlamaCppURL
		}
		c, err := llamacpp.NewClient(url, b.log.Named("llamacpp"))
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use 'sidecar', 'ollama' or 'llamacpp')", m.Backend)
	}
}

func (b *backends) captioner() (pipeline.Captioner, error) {
	m := b.cfg.Captioner
	if m.Backend == config.BackendSidecar {
		sc, err := b.sidecarClient(m.URL)
		if err != nil {
			return nil, err
		}
		return sc, nil
	}
	vc, err := b.visionClient(m)
	if err != nil {
		return nil, err
	}
	return detection.NewCaptioner(vc, m.Model, detection.WithPrompt(m.Prompt), detection.WithEncodeOptions(b.encode)), nil
}

func (b *backends) segmenter() (pipeline.Segmenter, error) {
	m := b.cfg.Segmenter
	if m.Backend == config.BackendSidecar {
		sc, err := b.sidecarClient(m.URL)
		if err != nil {
			return nil, err
		}
		return sc, nil
	}
	vc, err := b.visionClient(m)
	if err != nil {
		return nil, err
	}
	return detection.NewRegionLabeler(vc, m.Model, detection.WithPrompt(m.Prompt), detection.WithEncodeOptions(b.encode)), nil
}

func (b *backends) scorer() (pipeline.SimilarityScorer, error) {
	sc, err := b.sidecarClient(b.cfg.Scorer.URL)
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// probe checks every model server once and only warns on failure, so the
// service can start before the models finish loading.
func (b *backends) probe(ctx context.Context) {
	for url, c := range b.sidecars {
		pctx, cancel := context.WithTimeout(ctx, healthTimeout)
		err := c.Health(pctx)
		cancel()
		if err != nil {
			b.log.Warn("model server not available", zap.String("url", url), zap.Error(err))
			continue
		}
		b.log.Info("model server ready", zap.String("url", url))
	}
}

// buildCaptioner wires the configured backends and lexicon into a captioner.
func buildCaptioner(cfg *config.Config, log *zap.Logger) (*panopticcaptioner.PanopticCaptioner, *backends, error) {
	b := newBackends(cfg, log)

	captioner, err := b.captioner()
	if err != nil {
		return nil, nil, err
	}
	segmenter, err := b.segmenter()
	if err != nil {
		return nil, nil, err
	}
	scorer, err := b.scorer()
	if err != nil {
		return nil, nil, err
	}

	lex, err := lexicon.Load(cfg.Lexicon.Path)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("lexicon loaded", zap.String("path", cfg.Lexicon.Path), zap.Int("lemmas", lex.Size()))

	pc, err := panopticcaptioner.New(captioner, segmenter, scorer,
		panopticcaptioner.WithThesaurus(lex),
		panopticcaptioner.WithLogger(log),
	)
	if err != nil {
		return nil, nil, err
	}
	return pc, b, nil
}
