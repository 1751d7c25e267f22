// Package main provides the panoptic-captioner CLI.
//
// Usage:
//
//	panoptic-captioner [--config file] [--debug] <command> [args]
//
// Commands:
//
//	serve    - run the HTTP service (/api/health, /api/caption)
//	caption  - caption an image file, a directory of images, or a URL
//
// Configuration:
//
//	Settings are read from --config (or ~/.config/panoptic-captioner/config.yaml)
//	and may be overridden with PANOPTIC_ environment variables, for example
//	PANOPTIC_SIDECAR__URL=http://models:9000.
package main

import (
	"fmt"
	"os"

	"github.com/menta2k/panoptic-captioner/cmd/panoptic-captioner/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
