package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adityatiwari12/chat-with-sql/internal/answer"
	"github.com/adityatiwari12/chat-with-sql/internal/api"
	apperrors "github.com/adityatiwari12/chat-with-sql/internal/errors"
	"github.com/adityatiwari12/chat-with-sql/internal/logging"
	"github.com/adityatiwari12/chat-with-sql/internal/pipeline"
	"github.com/adityatiwari12/chat-with-sql/internal/sqlgen"
	"github.com/adityatiwari12/chat-with-sql/internal/sqlval"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the question pipeline over HTTP",
	Long: `Serve starts an HTTP server with two endpoints: POST /ask answers a
question, GET /healthz reports whether the model, schema store, and
database are reachable.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (default :8080)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	client := newOllamaClient()

	st, err := openStore(client)
	if err != nil {
		return err
	}
	defer st.Close()

	exec, err := newExecutor()
	if err != nil {
		return err
	}
	defer exec.Close()

	p := pipeline.New(st, sqlgen.NewGenerator(client), sqlval.NewValidator(),
		exec, answer.NewAnswerer(client), cfg.Pipeline.TopK)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(p, client, st, exec).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)

	go func() {
		logging.WithField("addr", server.Addr).Info("http server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithErr("http server failed", err)

			return apperrors.Wrap(err, apperrors.ErrTypeNetwork, "http server failed")
		}
	case <-ctx.Done():
		logging.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return apperrors.Wrap(err, apperrors.ErrTypeNetwork, "shutdown failed")
		}
	}

	fmt.Println("server stopped")

	return nil
}
