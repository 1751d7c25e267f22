package panopticcaptioner

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/panoptic-captioner/pkg/processing"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

type fakeModels struct {
	caption  string
	segments []types.Segment
}

func (f fakeModels) Caption(ctx context.Context, img image.Image) (string, error) {
	return f.caption, nil
}

func (f fakeModels) Segment(ctx context.Context, img image.Image) ([]types.Segment, error) {
	return f.segments, nil
}

func (f fakeModels) Similarity(ctx context.Context, img image.Image, text string) (float64, error) {
	return float64(len(text)) / 100, nil
}

type fakeThesaurus map[string][]string

func (f fakeThesaurus) Synonyms(word string) []string { return f[word] }

// createTestImage creates a simple test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > width/3 && x < 2*width/3 && y > height/3 && y < 2*height/3 {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func scenarioModels() fakeModels {
	return fakeModels{
		caption: "a man riding a bicycle",
		segments: []types.Segment{
			types.AreaSegment("person", 0.35),
			types.AreaSegment("bicycle", 0.20),
			types.AreaSegment("road", 0.10),
		},
	}
}

func TestCaptionImage(t *testing.T) {
	m := scenarioModels()
	pc, err := New(m, m, m)
	require.NoError(t, err)

	res, err := pc.CaptionImage(context.Background(), createTestImage(64, 64), 8)
	require.NoError(t, err)
	assert.Equal(t, []string{"person", "bicycle", "road"}, res.Labels)
	assert.Equal(t, "a man riding a bicycle, with person nearby, under/around road", res.FusedCaption)
	assert.InDelta(t, 1.0/3.0, res.RecallBaseline, 1e-9)
	assert.Equal(t, 1.0, res.RecallFused)
}

func TestWithThesaurus(t *testing.T) {
	m := scenarioModels()
	pc, err := New(m, m, m, WithThesaurus(fakeThesaurus{"person": {"man"}}))
	require.NoError(t, err)

	res, err := pc.CaptionImage(context.Background(), createTestImage(64, 64), 8)
	require.NoError(t, err)
	assert.Equal(t, "a man riding a bicycle, under/around road", res.FusedCaption)
}

func TestCaptionBytes(t *testing.T) {
	m := scenarioModels()
	pc, err := New(m, m, m)
	require.NoError(t, err)

	res, err := pc.CaptionBytes(context.Background(), encodePNG(t, createTestImage(32, 32)), 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"person"}, res.Labels)

	_, err = pc.CaptionBytes(context.Background(), []byte("plain text"), 8)
	assert.ErrorIs(t, err, processing.ErrInvalidImage)
}

func TestCaptionFile(t *testing.T) {
	m := scenarioModels()
	pc, err := New(m, m, m)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "photo.png")
	require.NoError(t, os.WriteFile(path, encodePNG(t, createTestImage(40, 20)), 0o644))

	res, err := pc.CaptionFile(context.Background(), path, 0)
	require.NoError(t, err)
	assert.Equal(t, "a man riding a bicycle", res.BaselineCaption)

	_, err = pc.CaptionFile(context.Background(), filepath.Join(t.TempDir(), "missing.png"), 8)
	assert.Error(t, err)
}

func TestNewRequiresModels(t *testing.T) {
	_, err := New(nil, nil, nil)
	assert.Error(t, err)
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
