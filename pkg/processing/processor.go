// Package processing decodes uploaded images and prepares them for the
// caption, segmentation and similarity models.
package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/go-resty/resty/v2"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/panoptic-captioner/pkg/types"
)

// ErrInvalidImage is returned when input bytes are not a decodable image.
var ErrInvalidImage = errors.New("invalid image")

// DefaultEncodeOptions is what models receive unless configured otherwise.
var DefaultEncodeOptions = types.EncodeOptions{Format: "jpg", MaxDim: 1024, Quality: 90}

const userAgent = "Panoptic-Captioner/1.0"

// Processor handles image loading and encoding
type Processor struct {
	http *resty.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{
		http: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
	}
}

// LoadImageFromURL downloads and decodes an image from an http(s) URL.
func (p *Processor) LoadImageFromURL(ctx context.Context, imageURL string) (image.Image, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	resp, err := p.http.R().SetContext(ctx).Get(imageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %s", resp.Status())
	}
	return DecodeUpload(resp.Body())
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	if img, err := imaging.Open(path); err == nil {
		return img, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	img, err := DecodeUpload(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// LoadImageSmart loads an image from either a file path or URL
func (p *Processor) LoadImageSmart(ctx context.Context, source string) (image.Image, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadImageFromURL(ctx, source)
	}
	return p.LoadImage(source)
}

// DecodeUpload sniffs data and decodes it as an image. Anything that is not
// an image, or fails to decode, yields an error wrapping ErrInvalidImage.
func DecodeUpload(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrInvalidImage)
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, fmt.Errorf("%w: unsupported content type %s", ErrInvalidImage, mime.String())
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if img, err = webp.Decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("%w: cannot decode %s", ErrInvalidImage, mime.String())
		}
	}
	if err := ValidateImage(img); err != nil {
		return nil, err
	}
	return img, nil
}

// ValidateImage checks that img has at least one pixel.
func ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: no image", ErrInvalidImage)
	}
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return fmt.Errorf("%w: image too small: %dx%d", ErrInvalidImage, b.Dx(), b.Dy())
	}
	return nil
}

// ToNRGBA returns an opaque copy of img. The alpha channel is discarded:
// colour values are kept as stored rather than composited onto a background.
func ToNRGBA(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// EncodeImage downscales img to fit opts.MaxDim and encodes it as jpg, png
// or webp. It returns the encoded bytes and their MIME type.
func EncodeImage(img image.Image, opts types.EncodeOptions) ([]byte, string, error) {
	if img == nil {
		return nil, "", ErrInvalidImage
	}
	if opts.MaxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > opts.MaxDim || h > opts.MaxDim {
			if w >= h {
				img = imaging.Resize(img, opts.MaxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, opts.MaxDim, imaging.Lanczos)
			}
		}
	}
	quality := opts.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultEncodeOptions.Quality
	}

	var buf bytes.Buffer
	switch strings.ToLower(opts.Format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/png", nil
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/webp", nil
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "image/jpeg", nil
	}
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, opts types.EncodeOptions) (string, error) {
	data, _, err := EncodeImage(img, opts)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
