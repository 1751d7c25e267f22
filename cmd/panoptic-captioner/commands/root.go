package commands

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	panopticcaptioner "github.com/menta2k/panoptic-captioner"
	"github.com/menta2k/panoptic-captioner/internal/config"
	"github.com/menta2k/panoptic-captioner/internal/logger"
)

var (
	configPath string
	debugMode  bool

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "panoptic-captioner",
	Short:   "Image captions fused with panoptic segmentation labels",
	Version: panopticcaptioner.Version,
	Long: `Panoptic-aware image captioning.

A baseline caption is fused with the labels of a panoptic segmentation
of the same image. Labels the caption already names, directly or through
a WordNet synonym, are dropped; the rest are appended as
"with ... nearby" (objects) and "under/around ..." (scenery).
Both captions are scored for label recall and image-text similarity.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.GetConfigPath()
		}
		c, err := config.Load(path)
		if err != nil {
			return err
		}
		if debugMode {
			c.Server.Debug = true
		}
		cfg = c
		log = logger.New(cfg.Server.Debug)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "configuration file (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(captionCmd)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
