package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"mediaserver/config"
	"mediaserver/logger"
	"mediaserver/store"
)

const shutdownTimeout = 5 * time.Second

func newServeCommand(opts *globalOptions) *cobra.Command {
	var port int
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the media server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("bind") {
				cfg.Bind = bind
			}

			log, err := logger.New(logger.Config{Level: cfg.LogLevel, Development: cfg.GinMode == gin.DebugMode})
			if err != nil {
				return fmt.Errorf("create logger: %w", err)
			}
			defer func() { _ = log.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, log)
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 5000, "Port to listen on")
	cmd.Flags().StringVar(&bind, "bind", "127.0.0.1", "Address to bind")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	gin.SetMode(cfg.GinMode)

	// one server per database
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	lock := flock.New(cfg.DBPath + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another mediaserver is already using %s", cfg.DBPath)
	}
	defer func() { _ = lock.Unlock() }()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open download database", logger.String("path", cfg.DBPath), logger.Error(err))
		return err
	}
	defer st.Close()

	app := NewApp(cfg, log, st, Deps{})
	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           NewRouter(app),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts end with ctx so event streams close on shutdown
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Media server starting",
			logger.String("address", cfg.Address()),
			logger.String("database", st.Path()),
			logger.String("download_dir", app.Settings.DownloadDir()),
			logger.Bool("auth", cfg.APIKey != ""),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down media server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("Graceful shutdown incomplete", logger.Error(err))
	}
	return nil
}
