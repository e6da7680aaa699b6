package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/meridianpay/refdata/pkg/config"
	"github.com/meridianpay/refdata/pkg/observability"
	"github.com/meridianpay/refdata/pkg/staleness"
	"github.com/meridianpay/refdata/pkg/store"
)

func stalenessCmd(cfg *config.Config) *cobra.Command {
	var asJSON bool
	var gate bool

	cmd := &cobra.Command{
		Use:   "staleness",
		Short: "Report per-series freshness from the retrieval state store",
		Long: `Evaluate every tracked series against its freshness window and
print FRESH / STALE / UNAVAILABLE per series. With --gate, exit non-zero
unless automated policy changes would be allowed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, cleanup, err := openStateStore(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			last, err := st.LastRetrievals(cmd.Context())
			if err != nil {
				return err
			}

			configs := map[string]staleness.SeriesConfig{}
			var required []string
			if cfg.ProfilePath != "" {
				profile, err := config.LoadProfile(cfg.ProfilePath)
				if err != nil {
					return err
				}
				configs = profile.SeriesConfigs()
				required = profile.RequiredSeries
			}

			evals := staleness.EvaluateAll(last, configs, time.Now().UTC())

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
				for _, ev := range evals {
					provider.Metrics().StalenessState(cmd.Context(), string(ev.State))
				}
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(evals); err != nil {
					return err
				}
			} else {
				for _, ev := range evals {
					age := "-"
					if ev.AgeSeconds != nil {
						age = fmt.Sprintf("%ds", *ev.AgeSeconds)
					}
					fmt.Printf("%-30s %-12s age=%-10s %s\n", ev.SeriesID, ev.State, age, ev.Note)
				}
			}

			if gate {
				decision := staleness.AllowAutomatedPolicyChange(evals, required...)
				if !decision.Allowed {
					var ids []string
					for _, b := range decision.Blocking {
						ids = append(ids, b.SeriesID)
					}
					return fmt.Errorf("automated policy changes blocked by: %s", strings.Join(ids, ", "))
				}
				fmt.Println("automated policy changes: allowed")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output evaluations as JSON")
	cmd.Flags().BoolVar(&gate, "gate", false, "Exit non-zero unless automated policy changes are allowed")

	return cmd
}

// openStateStore opens the retrieval state store. A postgres:// URL selects
// the SQL store over lib/pq; any other path is treated as a SQLite file.
// A .json path falls back to the flat-file store.
func openStateStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	path := cfg.StateDBPath

	if strings.HasSuffix(path, ".json") {
		fs, err := store.NewFileStore(path)
		if err != nil {
			return nil, nil, err
		}
		return fs, func() {}, nil
	}

	driver, dsn := "sqlite", path
	if strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		driver, dsn = "postgres", path
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open state store: %w", err)
	}

	st := store.NewSQLStore(db)
	if err := st.Init(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return st, func() { _ = db.Close() }, nil
}
