package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/biometric"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Retrain the face model from stored enrollment images",
	Long: `Retrain the subspace model from every stored enrollment image and
re-extract all signatures with it. With the embedding strategy only the
cross-user index is reloaded.

A running server keeps its own in-memory model; trigger a rebuild there
through POST /api/v1/admin/model/rebuild.`,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)

	rebuildCmd.Flags().Bool("quiet", false, "Hide the progress bar")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()
	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	parts, err := buildEngine(cfg, store, nil, log)
	if err != nil {
		return err
	}
	defer parts.Close()

	if !mustGetBool(cmd, "quiet") && parts.engine.Strategy() == biometric.StrategySubspace {
		var bar *progressbar.ProgressBar
		parts.engine.SetProgress(func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetDescription("Loading faces"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("images"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(done)
		})
	}

	stats, err := parts.engine.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild failed: %w", err)
	}

	fmt.Println()
	if !stats.Initialized {
		fmt.Printf("Model not initialized: %d usable images, at least %d required\n", stats.Samples, cfg.Biometric.MinSamples)
		return nil
	}
	fmt.Printf("Model version %d ready\n", stats.Version)
	fmt.Printf("  Records:    %d\n", stats.Records)
	fmt.Printf("  Samples:    %d (skipped %d)\n", stats.Samples, stats.Skipped)
	fmt.Printf("  Components: %d\n", stats.Components)
	fmt.Printf("  Duration:   %s\n", stats.Duration.Round(time.Millisecond))
	return nil
}
