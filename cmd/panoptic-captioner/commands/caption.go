package commands

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/panoptic-captioner/internal/utils"
	"github.com/menta2k/panoptic-captioner/pkg/types"
)

var captionTopK int

var captionCmd = &cobra.Command{
	Use:   "caption <image|directory|URL>",
	Short: "Caption one image, every image in a directory, or an image URL",
	Long: `Run one inference per image and print the result as JSON.

A single image prints one indented JSON object. A directory is walked
recursively and prints one JSON line per image:
  {"file": "...", "result": {...}}   or   {"file": "...", "error": "..."}`,
	Example: `  panoptic-captioner caption photo.jpg
  panoptic-captioner caption --topk 5 https://example.com/street.webp
  panoptic-captioner caption ./photos > captions.jsonl`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		source := args[0]
		topK := captionTopK
		if topK <= 0 {
			topK = cfg.Server.DefaultTopK
		}

		pc, _, err := buildCaptioner(cfg, log)
		if err != nil {
			return err
		}
		ctx := contextOrBackground(cmd)
		out := json.NewEncoder(cmd.OutOrStdout())

		isURL := strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
		if isURL || !utils.DirExists(source) {
			res, err := pc.CaptionFile(ctx, source, topK)
			if err != nil {
				return err
			}
			out.SetIndent("", "  ")
			return out.Encode(res)
		}

		files, err := utils.ListImageFiles(source)
		if err != nil {
			return fmt.Errorf("failed to list images: %w", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no images found in %s", source)
		}

		failed := 0
		for _, f := range files {
			line := batchLine{File: f}
			res, err := pc.CaptionFile(ctx, f, topK)
			if err != nil {
				failed++
				line.Error = err.Error()
				log.Warn("caption failed", zap.String("file", f), zap.Error(err))
			} else {
				line.Result = res
			}
			if err := out.Encode(line); err != nil {
				return err
			}
		}
		if failed > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "%d of %d images failed\n", failed, len(files))
		}
		return nil
	},
}

type batchLine struct {
	File   string                 `json:"file"`
	Result *types.InferenceResult `json:"result,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

func init() {
	captionCmd.Flags().IntVarP(&captionTopK, "topk", "k", 0, "number of segmentation labels to keep (default server.default_topk)")
}
