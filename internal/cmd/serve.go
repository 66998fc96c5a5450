package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/strrl/meetscope/internal/logging"
	"github.com/strrl/meetscope/internal/server"
)

var (
	serveAddr    string
	serveNoCache bool
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web interface",
	Long: `Start an HTTP server with an upload form for meeting recordings and voice
samples, report pages with a seekable audio player and a JSON API over the
analysis history.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().BoolVar(&serveNoCache, "no-cache", false, "Always upload recordings, even if uploaded recently")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, log, runtimeOptions{noCache: serveNoCache})
	if err != nil {
		return err
	}
	defer rt.close()

	srv, err := server.New(server.Config{
		Pipeline:   rt.pipeline,
		History:    rt.history,
		Metrics:    rt.metrics,
		Logger:     log,
		UploadDir:  filepath.Join(cfg.Storage.DataDir, "uploads"),
		BodyLimit:  cfg.BodyLimitBytes(),
		Defaults:   rt.client.Config().DefaultOptions(),
		Aggregator: rt.profiles,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logging.F("addr", cfg.Server.Addr))
		errCh <- srv.Listen(cfg.Server.Addr)
	}()

	fmt.Printf("meetscope is running at http://%s\n", cfg.Server.Addr)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
