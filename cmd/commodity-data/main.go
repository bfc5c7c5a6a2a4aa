package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/datasetkit/commodity-data/internal/config"
	"github.com/datasetkit/commodity-data/internal/kaggle"
	"github.com/datasetkit/commodity-data/internal/pipeline"
	"github.com/datasetkit/commodity-data/internal/platform/sqlite"
	"github.com/datasetkit/commodity-data/internal/provider"
	"github.com/datasetkit/commodity-data/internal/provider/eia"
	"github.com/datasetkit/commodity-data/internal/provider/fred"
	runlogrepo "github.com/datasetkit/commodity-data/internal/repository/runlog"
	"github.com/datasetkit/commodity-data/internal/runlog"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:          "commodity-data",
		Short:        "Fetch, track and publish commodity price datasets",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the config file")

	rootCmd.AddCommand(
		newRunCmd(&configPath),
		newUploadCmd(&configPath),
		newListCmd(&configPath),
		newHistoryCmd(&configPath),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRunCmd(configPath *string) *cobra.Command {
	var seriesName string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch, merge and export the configured series",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			seriesCfgs := cfg.Series
			if seriesName != "" {
				sc, err := cfg.SeriesByName(seriesName)
				if err != nil {
					return err
				}
				seriesCfgs = []config.Series{sc}
			}

			registry, err := buildRegistry(seriesCfgs)
			if err != nil {
				return err
			}

			var runs runlog.Repository
			db, err := sqlite.Open(cfg.Database.SQLitePath)
			if err != nil {
				slog.Warn("run log unavailable", "error", err)
			} else {
				defer func() { _ = db.Close() }()
				runs = runlogrepo.NewRepository(db.DB)
			}

			p := pipeline.New(registry, runs)
			return p.RunAll(cmd.Context(), seriesCfgs)
		},
	}
	cmd.Flags().StringVar(&seriesName, "series", "", "run a single series by name")
	return cmd
}

func newUploadCmd(configPath *string) *cobra.Command {
	var (
		datasetID string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Push exported datasets to Kaggle",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			targets, err := selectTargets(cfg, datasetID)
			if err != nil {
				return err
			}
			if len(targets) == 0 {
				return fmt.Errorf("no upload targets configured")
			}

			if !dryRun && (cfg.Kaggle.Username == "" || cfg.Kaggle.Key == "") {
				return fmt.Errorf("KAGGLE_USERNAME and KAGGLE_KEY must be set (see README)")
			}

			client := kaggle.NewClient(cfg.Kaggle.Username, cfg.Kaggle.Key)
			uploader := kaggle.NewUploader(client,
				kaggle.WithDryRun(dryRun),
				kaggle.WithRetryPolicy(kaggle.RetryPolicy{
					MaxAttempts:    cfg.Kaggle.MaxAttempts,
					InitialBackoff: time.Duration(cfg.Kaggle.InitialBackoff),
					MaxBackoff:     time.Duration(cfg.Kaggle.MaxBackoff),
				}),
			)

			reports := uploader.PushAll(cmd.Context(), targets)

			failed := 0
			for _, r := range reports {
				if r.Err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d targets failed", failed, len(reports))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&datasetID, "dataset", "", "upload a single dataset by id")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "validate and report without calling Kaggle")
	return cmd
}

func newListCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured series and dataset targets",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			fmt.Println("Series:")
			for _, s := range cfg.Series {
				fmt.Printf("  %-28s provider=%-6s tracker=%s\n", s.Name, s.Provider, s.TrackerFile)
			}

			fmt.Println("Datasets:")
			for _, d := range cfg.Kaggle.Datasets {
				state := "enabled"
				if !d.Enabled {
					state = "disabled"
				}
				fmt.Printf("  %-28s %s/%s (%s, %d files)\n", d.ID, d.Owner, d.Slug, state, len(d.Files))
			}
			return nil
		},
	}
}

func newHistoryCmd(configPath *string) *cobra.Command {
	var (
		seriesName string
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			db, err := sqlite.Open(cfg.Database.SQLitePath)
			if err != nil {
				return fmt.Errorf("open run log: %w", err)
			}
			defer func() { _ = db.Close() }()

			runs, err := runlogrepo.NewRepository(db.DB).List(cmd.Context(), seriesName, limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs recorded yet")
				return nil
			}

			for _, r := range runs {
				line := fmt.Sprintf("%s  %-28s %-9s fetched=%d added=%d total=%d",
					r.StartedAt.Format(time.RFC3339), r.Series, r.Status, r.Fetched, r.Added, r.Total)
				if r.Error != "" {
					line += "  error=" + r.Error
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&seriesName, "series", "", "filter by series name")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

// buildRegistry constructs one provider per configured series.
func buildRegistry(seriesCfgs []config.Series) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	for _, sc := range seriesCfgs {
		switch sc.Provider {
		case "fred":
			if sc.SeriesID == "" {
				return nil, fmt.Errorf("series %s: series_id is required for the fred provider", sc.Name)
			}
			registry.Register(fred.New(sc.SeriesID))
		case "eia":
			opts := []eia.Option{}
			if sc.SourceURL != "" {
				opts = append(opts, eia.WithEndpoint(sc.SourceURL))
			}
			registry.Register(eia.New(opts...))
		default:
			return nil, fmt.Errorf("series %s: unknown provider %q", sc.Name, sc.Provider)
		}
	}
	return registry, nil
}

// selectTargets maps configured datasets to upload targets. Explicitly
// selecting a disabled dataset overrides its enabled flag; that is the
// operator saying "push this one anyway".
func selectTargets(cfg *config.Config, datasetID string) ([]kaggle.Target, error) {
	datasets := cfg.Kaggle.Datasets
	if datasetID != "" {
		d, err := cfg.DatasetByID(datasetID)
		if err != nil {
			return nil, err
		}
		if !d.Enabled {
			slog.Warn("dataset is disabled, pushing anyway because it was selected explicitly", "dataset", d.ID)
			d.Enabled = true
		}
		datasets = []config.Dataset{d}
	}

	targets := make([]kaggle.Target, 0, len(datasets))
	for _, d := range datasets {
		targets = append(targets, kaggle.Target{
			ID:      d.ID,
			Owner:   d.Owner,
			Slug:    d.Slug,
			Title:   d.Title,
			License: d.License,
			Private: d.Private,
			Enabled: d.Enabled,
			Files:   d.Files,
		})
	}
	return targets, nil
}
