package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nst-guide/fstopo/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "fstopo",
	Short: "Discover and download USFS FSTopo quad rasters",
	Long:  "Finds the 7.5-minute FSTopo quadrangles intersecting a bounding box or geometry file, probes the Forest Service raster gateway for the ones that exist, and downloads them into a raw-data directory.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
