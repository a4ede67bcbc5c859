package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/msg43/winnow/internal/feedback"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the feedback sync boundary and background processor",
	Long: `Serve exposes the feedback ingestion endpoint and keeps the
background processor draining the queue into the taste engine.

Endpoints:
  POST /feedback/submit   queue a batch of Accept/Reject judgments
  GET  /feedback/stats    engine and queue statistics`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8750", "listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{processor: true})
	if err != nil {
		return err
	}
	defer a.Close()

	mux := http.NewServeMux()
	handlers := feedback.NewHandlers(a.sync, a.queue, a.engine, a.logger)
	handlers.RegisterMux(mux, "/feedback")

	server := &http.Server{
		Addr:              serveAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("feedback boundary listening", zap.String("addr", serveAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
