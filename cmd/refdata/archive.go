package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/meridianpay/refdata/pkg/archive"
	"github.com/meridianpay/refdata/pkg/config"
)

func archiveCmd(cfg *config.Config) *cobra.Command {
	var rate float64

	cmd := &cobra.Command{
		Use:   "archive [date]",
		Short: "Copy a sealed manifest and its companions to retention storage",
		Long: `Upload the sealed manifest for a UTC date (YYYY-MM-DD), plus its
diagnostics and signature files when present, to the configured retention
backend (REFDATA_ARCHIVE_BACKEND: fs, s3, or gcs).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := archive.NewBackendFromEnv(cmd.Context())
			if err != nil {
				return err
			}

			manifestPath := filepath.Join(cfg.ManifestDir, fmt.Sprintf("manifest-%s.ndjson", args[0]))
			archiver := archive.NewArchiver(backend, rate)
			if err := archiver.ArchiveManifest(cmd.Context(), manifestPath); err != nil {
				return err
			}

			fmt.Printf("archived %s\n", manifestPath)
			return nil
		},
	}

	cmd.Flags().Float64Var(&rate, "rate", 0, "Max uploads per second (0 = unthrottled)")

	return cmd
}
