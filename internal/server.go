package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/Chandra179/magic-auth-service/api"
	"github.com/Chandra179/magic-auth-service/configs"
	"github.com/Chandra179/magic-auth-service/pkg/magic"
	"github.com/Chandra179/magic-auth-service/pkg/serializer"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// MagicClientFactory builds Magic clients pointed at the configured API.
func MagicClientFactory(cfg *configs.Config) ClientFactory {
	return func(apiKey string) (magic.MetadataLookup, error) {
		client, err := magic.NewClient(apiKey,
			magic.WithBaseURL(cfg.MagicAPIBaseURL),
			magic.WithHTTPClient(&http.Client{Timeout: cfg.MagicHTTPTimeout}),
		)
		if err != nil {
			return nil, err
		}
		return client, nil
	}
}

func NewLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// NewHandler builds the credential facade, initializes Magic and returns the routed handler.
func NewHandler(config *configs.Config, logger *slog.Logger) (http.Handler, error) {
	facade := NewCredentialFacade(MagicClientFactory(config), logger)
	if res := facade.InitializeMagic(config.MagicSecretKey); !res.Success {
		return nil, fmt.Errorf("initialize magic: %s", res.Error)
	}

	handlers := NewMagicHandlers(facade, serializer.NewJSONSerialization(), logger)
	return api.SetupRoutes(http.NewServeMux(), handlers), nil
}

func StartServer(ctx context.Context) error {
	// -------------
	// Configs
	// -------------
	config, err := configs.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	// --------------
	// Logger
	// --------------
	logger := NewLogger(os.Stdout, config.LogLevel)
	// --------------
	// Magic + API setup
	// --------------
	handler, err := NewHandler(config, logger)
	if err != nil {
		return err
	}
	//---------------
	// Http Server
	// --------------
	srv := &http.Server{
		Addr:              config.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
