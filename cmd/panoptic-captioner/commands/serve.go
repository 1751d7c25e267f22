package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/menta2k/panoptic-captioner/pkg/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP captioning service",
	Long: `Run the HTTP captioning service.

Endpoints:
  GET  /api/health   liveness check, {"status":"ok"}
  POST /api/caption  multipart form: file=<image>, topk=<int, optional>`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if servePort > 0 {
			cfg.Server.Port = servePort
		}

		pc, b, err := buildCaptioner(cfg, log)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(contextOrBackground(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()

		b.probe(ctx)

		srv := server.New(pc,
			server.WithLogger(log.Named("http")),
			server.WithMaxUploadBytes(cfg.MaxUploadBytes()),
			server.WithDefaultTopK(cfg.Server.DefaultTopK),
		)
		log.Info("panoptic captioner ready",
			zap.String("addr", cfg.Addr()),
			zap.String("captioner", cfg.Captioner.Backend),
			zap.String("segmenter", cfg.Segmenter.Backend),
			zap.String("sidecar", cfg.Sidecar.URL),
		)
		return srv.ListenAndServe(ctx, cfg.Addr())
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port (overrides server.port)")
}

// contextOrBackground guards against commands executed without a context.
func contextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
