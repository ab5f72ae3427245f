package main

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
	"golang.org/x/sync/errgroup"

	"labelbot/internal/app/bot"
	"labelbot/internal/app/compose"
	"labelbot/internal/app/inquiry"
	"labelbot/internal/app/kv"
	"labelbot/internal/app/line"
	"labelbot/internal/app/mode"
	"labelbot/internal/app/publish"
	"labelbot/internal/app/storage"
	"labelbot/internal/handler"
	"labelbot/internal/pkg/limiter"
	"labelbot/internal/pkg/logx"
)

const (
	shutdownTimeout = 10 * time.Second

	// Admin API budget per client IP.
	apiRatePerMinute = 30
	apiBurst         = 10
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the LINE webhook (default)",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logx.Logger().Info().
		Str("environment", cfg.Environment).
		Int("port", cfg.Port).
		Str("storage_backend", cfg.StorageBackend).
		Bool("rich_menu_enabled", cfg.RichMenuEnabled).
		Dur("result_retention", cfg.ResultRetention).
		Msg("Configuration loaded successfully")

	// Create a context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := kv.Open(ctx, cfg.StoreURL)
	if err != nil {
		logx.Error(err, "Failed to open key-value store")
		return err
	}
	defer store.Close()

	catalog, err := loadCatalog(cfg)
	if err != nil {
		logx.Error(err, "Label catalog is not usable", "overlay_dir", cfg.OverlayDir)
		return err
	}

	results, err := storage.NewStorageService(ctx, storageConfig(cfg))
	if err != nil {
		logx.Error(err, "Failed to initialize result storage")
		return err
	}

	lineClient, err := line.NewClient(cfg.ChannelAccessToken)
	if err != nil {
		return err
	}

	imageLimiter := limiter.New(limiter.PerMinute(cfg.ImageRatePerMinute), cfg.ImageBurst, limiter.DefaultJanitorInterval)
	defer imageLimiter.Stop()
	apiLimiter := limiter.New(limiter.PerMinute(apiRatePerMinute), apiBurst, limiter.DefaultJanitorInterval)
	defer apiLimiter.Stop()

	inquiries := inquiry.NewLog(store)
	botDeps := bot.Deps{
		Modes:          mode.NewStore(store),
		Inquiries:      inquiries,
		Catalog:        catalog,
		Replier:        lineClient,
		Content:        lineClient,
		Compositor:     compose.New(),
		Publisher:      publish.NewPublisher(results),
		Limiter:        imageLimiter,
		PublicBaseURL:  cfg.PublicBaseURL,
		FeatureFormURI: cfg.FeatureFormURI,
	}
	if cfg.RichMenuEnabled {
		botDeps.RichMenus = lineClient
	}

	router := handler.Router(&handler.AppDeps{
		Config:     cfg,
		Bot:        bot.NewRouter(botDeps),
		Inquiries:  inquiries,
		Store:      store,
		APILimiter: apiLimiter,
	})

	serverAddr := fmt.Sprintf(":%d", cfg.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: handler.EventTimeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sweeper := publish.NewSweeper(results, cfg.ResultRetention)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logx.Info("Label bot starting", "addr", serverAddr, "public_base_url", cfg.PublicBaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error(err, "Server failed to start")
			return err
		}
		return nil
	})

	g.Go(func() error {
		sweeper.Run(gctx, cfg.SweepInterval)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logx.Info("Received shutdown signal. Starting graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logx.Error(err, "Server forced to shutdown")
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logx.Info("Server gracefully stopped.")
	return nil
}
