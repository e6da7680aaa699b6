package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridianpay/refdata/pkg/config"
	"github.com/meridianpay/refdata/pkg/crypto"
	"github.com/meridianpay/refdata/pkg/manifest"
	"github.com/meridianpay/refdata/pkg/observability"
)

func sealCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seal [date]",
		Short: "Generate and seal the daily manifest for a UTC date",
		Long: `Scan the mirror directory for the given UTC date (YYYY-MM-DD,
default: today), validate every record, and seal a signed manifest.
Exits non-zero if integrity violations exceed the configured threshold or
if a manifest for the date already exists.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			date := time.Now().UTC().Format("2006-01-02")
			if len(args) == 1 {
				date = args[0]
			}

			opts := []manifest.Option{
				manifest.WithErrorThreshold(cfg.ErrorThreshold),
			}

			if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
				obsCfg := observability.DefaultConfig()
				obsCfg.OTLPEndpoint = endpoint
				obsCfg.Insecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
				provider, err := observability.New(cmd.Context(), obsCfg)
				if err != nil {
					return fmt.Errorf("failed to initialize telemetry: %w", err)
				}
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					_ = provider.Shutdown(shutdownCtx)
				}()
				opts = append(opts, manifest.WithMetrics(provider.Metrics()))
			}

			if cfg.SigningKeyHex != "" {
				seed, err := hex.DecodeString(cfg.SigningKeyHex)
				if err != nil {
					return fmt.Errorf("invalid REFDATA_SIGNING_KEY: %w", err)
				}
				keyring, err := crypto.NewKeyring(seed)
				if err != nil {
					return err
				}
				signer, err := keyring.SignerForDate(date)
				if err != nil {
					return err
				}
				opts = append(opts, manifest.WithSigner(signer))
			}

			gen := manifest.NewGenerator(opts...)
			m, err := gen.Generate(cmd.Context(), cfg.MirrorDir, date, cfg.ManifestDir)
			if err != nil {
				if errors.Is(err, manifest.ErrAlreadyExists) {
					return fmt.Errorf("manifest for %s already sealed; sealed manifests are immutable", date)
				}
				return err
			}

			fmt.Printf("sealed %s\n", m.Path)
			fmt.Printf("  entries:       %d\n", len(m.Entries))
			fmt.Printf("  manifest_hash: %s\n", m.ManifestHash)
			if len(m.Diagnostics) > 0 {
				fmt.Printf("  diagnostics:   %d rejected record(s)\n", len(m.Diagnostics))
			}
			return nil
		},
	}
	return cmd
}
