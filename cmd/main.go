/*
Package main is the entry point for the label bot.

The default command serves the webhook: it loads configuration, initializes the
global logger, wires the key-value store, label catalog, result storage and LINE
client, runs the HTTP server next to the result sweeper, and shuts both down
gracefully on SIGINT/SIGTERM. Maintenance commands share the same configuration.
*/
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"labelbot/internal/app/label"
	"labelbot/internal/app/storage"
	"labelbot/internal/configs"
	"labelbot/internal/pkg/logx"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "labelbot",
		Short: "LINE bot that stamps listing labels onto photos",
		Long: `labelbot answers LINE webhook deliveries. Users pick a label such as
「専用」 or 「SALE」 and send photos; the bot returns the photo with the label
stamped in the bottom-left corner.

Run without a subcommand to serve.`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	root.AddCommand(newServeCmd(), newSweepCmd(), newAdminTokenCmd())
	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration and initializes the global logger from it.
func loadConfig() (*configs.AppConfig, error) {
	cfg, err := configs.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		return nil, err
	}

	logx.InitGlobalLogger(cfg.IsDevelopment())
	return cfg, nil
}

func storageConfig(cfg *configs.AppConfig) storage.ServiceConfig {
	return storage.ServiceConfig{
		Backend:           cfg.StorageBackend,
		LocalDir:          cfg.LocalStorageDir,
		PublicBaseURL:     cfg.PublicBaseURL,
		S3BucketName:      cfg.S3BucketName,
		S3Endpoint:        cfg.S3Endpoint,
		S3AccessKeyID:     cfg.S3AccessKeyID,
		S3SecretAccessKey: cfg.S3SecretAccessKey,
		S3PublicBaseURL:   cfg.S3PublicBaseURL,
		PresignExpiry:     cfg.ResultRetention,
	}
}

// loadCatalog reads the label catalog and checks it against the deployment:
// every overlay must exist, and every label needs a rich menu when linking is on.
func loadCatalog(cfg *configs.AppConfig) (*label.Catalog, error) {
	var (
		catalog *label.Catalog
		err     error
	)
	if cfg.CatalogFile != "" {
		catalog, err = label.LoadFile(cfg.CatalogFile, cfg.OverlayDir)
	} else {
		catalog, err = label.Default(cfg.OverlayDir)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RichMenuEnabled {
		if err := catalog.RequireRichMenus(); err != nil {
			return nil, err
		}
	}
	if err := catalog.CheckOverlays(); err != nil {
		return nil, err
	}
	return catalog, nil
}
