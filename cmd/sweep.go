package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"labelbot/internal/app/publish"
	"labelbot/internal/app/storage"
	"labelbot/internal/pkg/logx"
)

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete composed images older than RESULT_RETENTION once and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			results, err := storage.NewStorageService(cmd.Context(), storageConfig(cfg))
			if err != nil {
				return err
			}

			removed, err := publish.NewSweeper(results, cfg.ResultRetention).SweepOnce(cmd.Context())
			if err != nil {
				logx.Error(err, "Sweep failed", "removed", removed)
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "removed %d result(s) older than %s\n", removed, cfg.ResultRetention)
			return nil
		},
	}
}
