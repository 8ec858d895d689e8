package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-attendance/internal/imagestore"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete image files no biometric record references",
	Long: `Run the orphaned image sweep once. Files younger than IMAGE_SWEEP_GRACE
are kept so in-flight enrollments are never touched.`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
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

	images, err := imagestore.New(cfg.Storage.UploadDir, cfg.Storage.CaptureDir)
	if err != nil {
		return err
	}
	sweeper := imagestore.NewSweeper(images, store, cfg.Storage.SweepInterval, cfg.Storage.SweepGrace, log.Named("sweeper"))
	removed, err := sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Removed %d orphaned images\n", removed)
	return nil
}
