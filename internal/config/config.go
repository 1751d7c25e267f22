package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
)

// EnvPrefix marks environment overrides. Nested keys are separated by a
// double underscore: PANOPTIC_SERVER__MAX_UPLOAD_MB sets server.max_upload_mb.
const EnvPrefix = "PANOPTIC_"

// Backend names accepted by the model sections.
const (
	BackendSidecar  = "sidecar"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Server    ServerConfig  `koanf:"server"`
	Captioner ModelConfig   `koanf:"captioner"`
	Segmenter ModelConfig   `koanf:"segmenter"`
	Scorer    ScorerConfig  `koanf:"scorer"`
	Sidecar   SidecarConfig `koanf:"sidecar"`
	Image     ImageConfig   `koanf:"image"`
	Lexicon   LexiconConfig `koanf:"lexicon"`
}

// ServerConfig holds the HTTP service settings
type ServerConfig struct {
	Port        int  `koanf:"port"`
	Debug       bool `koanf:"debug"`
	MaxUploadMB int  `koanf:"max_upload_mb"`
	DefaultTopK int  `koanf:"default_topk"`
}

// ModelConfig selects and addresses a captioning or segmentation backend.
// An empty URL on the sidecar backend falls back to sidecar.url.
type ModelConfig struct {
	Backend string `koanf:"backend"`
	URL     string `koanf:"url"`
	Model   string `koanf:"model"`
	Prompt  string `koanf:"prompt"`
}

// ScorerConfig addresses the image-text similarity model
type ScorerConfig struct {
	Backend string `koanf:"backend"`
	URL     string `koanf:"url"`
}

// SidecarConfig holds settings for the Python model server
type SidecarConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
	Retries int           `koanf:"retries"`
}

// ImageConfig controls how images are encoded before they reach a model
type ImageConfig struct {
	SendFormat  string `koanf:"send_format"`
	SendSize    int    `koanf:"send_size"`
	SendQuality int    `koanf:"send_quality"`
}

// LexiconConfig points at a WordNet dict directory or a YAML snapshot.
// An empty path uses the embedded snapshot.
type LexiconConfig struct {
	Path string `koanf:"path"`
}

func defaults() map[string]any {
	return map[string]any{
		"server.port":          8000,
		"server.debug":         false,
		"server.max_upload_mb": 50,
		"server.default_topk":  8,
		"captioner.backend":    BackendSidecar,
		"segmenter.backend":    BackendSidecar,
		"scorer.backend":       BackendSidecar,
		"sidecar.url":          "http://localhost:9000",
		"sidecar.timeout":      "120s",
		"sidecar.retries":      2,
		"image.send_format":    "jpg",
		"image.send_size":      1024,
		"image.send_quality":   90,
	}
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        8000,
			MaxUploadMB: 50,
			DefaultTopK: 8,
		},
		Captioner: ModelConfig{Backend: BackendSidecar},
		Segmenter: ModelConfig{Backend: BackendSidecar},
		Scorer:    ScorerConfig{Backend: BackendSidecar},
		Sidecar: SidecarConfig{
			URL:     "http://localhost:9000",
			Timeout: 120 * time.Second,
			Retries: 2,
		},
		Image: ImageConfig{
			SendFormat:  "jpg",
			SendSize:    1024,
			SendQuality: 90,
		},
	}
}

// Load layers defaults, the YAML file at path (skipped when path is empty)
// and PANOPTIC_ environment variables, then validates the result.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
		return key, v
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Captioner.Backend = strings.ToLower(strings.TrimSpace(c.Captioner.Backend))
	c.Segmenter.Backend = strings.ToLower(strings.TrimSpace(c.Segmenter.Backend))
	c.Scorer.Backend = strings.ToLower(strings.TrimSpace(c.Scorer.Backend))
	c.Image.SendFormat = strings.ToLower(strings.TrimSpace(c.Image.SendFormat))
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	if c.Server.DefaultTopK < 1 {
		return fmt.Errorf("server.default_topk must be positive")
	}

	for name, m := range map[string]ModelConfig{"captioner": c.Captioner, "segmenter": c.Segmenter} {
		switch m.Backend {
		case BackendSidecar, BackendLlamaCpp:
		case BackendOllama:
			if m.Model == "" {
				return fmt.Errorf("%s.model is required for the ollama backend", name)
			}
		default:
			return fmt.Errorf("%s.backend must be one of sidecar, ollama, llamacpp (got %q)", name, m.Backend)
		}
	}

	if c.Scorer.Backend != BackendSidecar {
		return fmt.Errorf("scorer.backend must be sidecar (got %q)", c.Scorer.Backend)
	}

	if c.UsesSidecar() && c.Sidecar.URL == "" {
		return fmt.Errorf("sidecar.url is required")
	}

	if c.Sidecar.Retries < 0 {
		return fmt.Errorf("sidecar.retries cannot be negative")
	}

	switch c.Image.SendFormat {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("image.send_format must be jpg, png or webp")
	}

	if c.Image.SendQuality < 1 || c.Image.SendQuality > 100 {
		return fmt.Errorf("image.send_quality must be between 1 and 100")
	}

	if c.Image.SendSize < 0 {
		return fmt.Errorf("image.send_size cannot be negative")
	}

	return nil
}

// UsesSidecar reports whether any model is served by the sidecar without
// its own URL override.
func (c *Config) UsesSidecar() bool {
	return (c.Captioner.Backend == BackendSidecar && c.Captioner.URL == "") ||
		(c.Segmenter.Backend == BackendSidecar && c.Segmenter.URL == "") ||
		(c.Scorer.Backend == BackendSidecar && c.Scorer.URL == "")
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// MaxUploadBytes returns the upload cap in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Server.MaxUploadMB) << 20
}

// GetConfigPath returns the default configuration file path, or "" when it
// does not exist.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	path := filepath.Join(home, ".config", "panoptic-captioner", "config.yaml")
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}
