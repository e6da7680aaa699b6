package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meridianpay/refdata/pkg/config"
	"github.com/meridianpay/refdata/pkg/guardrail"
)

func readCmd(cfg *config.Config) *cobra.Command {
	var purpose string
	var caller string
	var token string

	cmd := &cobra.Command{
		Use:   "read [series-id]",
		Short: "Read the latest normalized record for a series through the access gate",
		Long: `Serve one purpose-gated read. Access is fail-closed: only the
reporting and analytics purposes are ever allowed, and every returned
record carries the advisory disclosure. Rates are decimal strings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if token != "" {
				key := os.Getenv("REFDATA_TOKEN_KEY")
				if key == "" {
					return fmt.Errorf("REFDATA_TOKEN_KEY is required when --token is set")
				}
				resolved, err := guardrail.CallerFromToken(token, []byte(key))
				if err != nil {
					return fmt.Errorf("caller token rejected: %w", err)
				}
				caller = resolved
			}

			gate := guardrail.New()
			series, err := gate.NormalizedForPurpose(cmd.Context(), guardrail.ReadRequest{
				SeriesID:  args[0],
				MirrorDir: cfg.MirrorDir,
				Purpose:   guardrail.Purpose(purpose),
				Caller:    caller,
			})
			if err != nil {
				return err
			}
			if series == nil {
				fmt.Fprintf(os.Stderr, "no data for series %s\n", args[0])
				os.Exit(2)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(series)
		},
	}

	cmd.Flags().StringVar(&purpose, "purpose", "", "Declared purpose for this read (reporting or analytics)")
	cmd.Flags().StringVar(&caller, "caller", "cli", "Caller identity for the denial audit trail")
	cmd.Flags().StringVar(&token, "token", "", "Signed caller token (overrides --caller)")
	_ = cmd.MarkFlagRequired("purpose")

	return cmd
}
