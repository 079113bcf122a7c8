package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/keus-automation/deepstream.io"
	"github.com/keus-automation/deepstream.io/ws"
)

func serveCmd() *cobra.Command {
	var (
		addr           string
		urlPath        string
		heartbeat      time.Duration
		maxMessageSize int64
		noDelay        bool
		compression    bool
		logJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the connection endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			var handler slog.Handler = slog.NewTextHandler(os.Stdout, nil)
			if logJSON {
				handler = slog.NewJSONHandler(os.Stdout, nil)
			}
			logger := slog.New(handler)

			registry := prometheus.NewRegistry()

			endpoint := ws.New(&ws.Options{
				Compression:       compression,
				MaxMessageSize:    maxMessageSize,
				NoDelay:           noDelay,
				HeartbeatInterval: heartbeat,
				URLPath:           urlPath,
				Logger:            logger,
				Registry:          registry,
				OnConnection: func(socket deepstream.Socket) {
					socket.OnMessage(func(data []byte) {
						// No routing layer wired in the standalone binary;
						// echo keeps connections observable.
						socket.Send(data)
					})
				},
			})
			if err := endpoint.Start(); err != nil {
				return err
			}
			defer endpoint.Stop()

			router := chi.NewRouter()
			router.Use(chimiddleware.Recoverer)
			router.Handle(urlPath, endpoint)
			router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
			router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ok"))
			})

			server := &http.Server{
				Addr:    addr,
				Handler: router,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("listening", "addr", addr, "path", urlPath)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":6020", "address to listen on")
	cmd.Flags().StringVar(&urlPath, "path", "/deepstream", "exact websocket upgrade path")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 30*time.Second, "heartbeat broadcast interval")
	cmd.Flags().Int64Var(&maxMessageSize, "max-message-size", 1<<20, "maximum inbound message size in bytes")
	cmd.Flags().BoolVar(&noDelay, "no-delay", true, "disable Nagle's algorithm on accepted sockets")
	cmd.Flags().BoolVar(&compression, "compression", false, "request permessage-deflate")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "log in JSON format")

	return cmd
}
