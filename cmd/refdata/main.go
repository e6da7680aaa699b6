// Command refdata operates the reference-data integrity pipeline: sealing
// daily manifests, verifying sealed artifacts, reporting staleness, and
// serving purpose-gated reads.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/meridianpay/refdata/pkg/config"
)

var Version = "dev"

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	rootCmd := &cobra.Command{
		Use:     "refdata",
		Short:   "Tamper-evident reference data pipeline",
		Version: Version,
	}

	rootCmd.AddCommand(sealCmd(cfg))
	rootCmd.AddCommand(verifyCmd(cfg))
	rootCmd.AddCommand(stalenessCmd(cfg))
	rootCmd.AddCommand(readCmd(cfg))
	rootCmd.AddCommand(archiveCmd(cfg))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}
