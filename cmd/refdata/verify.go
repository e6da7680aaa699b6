package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridianpay/refdata/pkg/config"
	"github.com/meridianpay/refdata/pkg/manifest"
	"github.com/meridianpay/refdata/pkg/mirror"
)

func verifyCmd(cfg *config.Config) *cobra.Command {
	var pubKey string
	var logs bool

	cmd := &cobra.Command{
		Use:   "verify [manifest-path]",
		Short: "Re-attest a sealed manifest and, optionally, the series logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := manifest.Verify(args[0], pubKey)
			if err != nil {
				return err
			}

			fmt.Printf("%s\n", result.Path)
			fmt.Printf("  entries:       %d\n", result.Entries)
			fmt.Printf("  manifest_hash: %s\n", result.ManifestHash)
			if result.SignatureValid != nil {
				if !*result.SignatureValid {
					return fmt.Errorf("signature verification FAILED for %s", result.Path)
				}
				fmt.Println("  signature:     valid")
			} else {
				fmt.Println("  signature:     none")
			}

			if !logs {
				return nil
			}

			paths, err := filepath.Glob(filepath.Join(cfg.MirrorDir, "*.jsonl"))
			if err != nil {
				return err
			}
			corrupt := 0
			for _, path := range paths {
				if strings.HasSuffix(path, ".diagnostics.jsonl") {
					continue
				}
				report, err := mirror.VerifyLog(path)
				if err != nil {
					return err
				}
				fmt.Printf("%s: %d/%d verified", report.File, report.Verified, report.Lines)
				if len(report.Corrupt) > 0 {
					corrupt += len(report.Corrupt)
					fmt.Printf(" CORRUPT lines %v", report.Corrupt)
				}
				fmt.Println()
			}
			if corrupt > 0 {
				return fmt.Errorf("%d corrupt record(s) found in series logs", corrupt)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&pubKey, "pubkey", "", "Hex-encoded Ed25519 public key for signature verification")
	cmd.Flags().BoolVar(&logs, "logs", false, "Also re-attest every series log in the mirror directory")

	return cmd
}
