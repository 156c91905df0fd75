package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/nst-guide/fstopo/internal/fstopo"
	"github.com/nst-guide/fstopo/internal/grid"
)

var downloadCmd = &cobra.Command{
	Use:   "download",
	Short: "Download FSTopo quads for the given geometry",
	Long: `Enumerates the 7.5-minute quad cells intersecting the area of interest,
probes the Forest Service raster gateway block by block, and downloads the
quads that exist into the raw-data directory. Cells whose file is already
on disk are skipped unless --overwrite is set. A manifest of all quad
paths for the area is written for downstream tooling (gdalbuildvrt etc.).`,
	RunE: runDownload,
}

func init() {
	addGeometryFlags(downloadCmd)
	downloadCmd.Flags().Bool("overwrite", false, "Re-download and overwrite existing files")
	downloadCmd.Flags().Int("jobs", 0, "Concurrent downloads (default from config)")
	downloadCmd.Flags().String("dir", "", "Raw-data directory (default from config)")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := resolveAOI(cmd)
	if err != nil {
		return err
	}

	cells, err := grid.Cells(a)
	if err != nil {
		return err
	}

	log := zap.L().With(zap.String("command", "download"))
	log.Info("enumerated candidate quads",
		zap.Int("cells", len(cells)),
		zap.Int("blocks", len(grid.ByBlock(cells))),
	)

	overwrite, _ := cmd.Flags().GetBool("overwrite")
	jobs, _ := cmd.Flags().GetInt("jobs")
	dir, _ := cmd.Flags().GetString("dir")
	if jobs == 0 {
		jobs = cfg.Fetch.Concurrency
	}
	if dir == "" {
		dir = cfg.Fetch.DataDir
	}

	client, err := fstopo.NewClient(fstopo.ClientOptions{
		BaseURL:    cfg.Fetch.BaseURL,
		UserAgent:  cfg.Fetch.UserAgent,
		Timeout:    time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
		MaxRetries: cfg.Fetch.MaxRetries,
		RatePerSec: cfg.Fetch.RatePerSec,
		Quiet:      quietProgress(jobs),
	})
	if err != nil {
		return err
	}

	results, err := fstopo.Fetch(ctx, client, cells, fstopo.FetchOptions{
		Dir:       dir,
		Overwrite: overwrite,
		Jobs:      jobs,
	})
	if err != nil {
		return err
	}

	if cfg.Fetch.PathsFile != "" {
		if err := writeManifest(cfg.Fetch.PathsFile, results); err != nil {
			return err
		}
	}

	counts := fstopo.Summarize(results)
	fmt.Printf("downloaded %d, skipped %d, not published %d, failed %d\n",
		counts[fstopo.StatusDownloaded],
		counts[fstopo.StatusSkipped],
		counts[fstopo.StatusNotFound],
		counts[fstopo.StatusFailed],
	)

	if n := counts[fstopo.StatusFailed]; n > 0 {
		var failed []string
		for _, r := range results {
			if r.Status == fstopo.StatusFailed {
				failed = append(failed, r.QuadID)
			}
		}
		return eris.Errorf("download: %d quads failed: %s", n, strings.Join(failed, ", "))
	}
	return nil
}

// quietProgress reports whether per-file progress bars should be
// suppressed: concurrent downloads would interleave their bars on
// stdout, and redirected output should stay clean.
func quietProgress(jobs int) bool {
	return jobs > 1 || !term.IsTerminal(int(os.Stdout.Fd()))
}

// writeManifest records the absolute path of every quad present for
// the area, downloaded this run or already on disk, one per line.
func writeManifest(path string, results []fstopo.Result) error {
	var paths []string
	for _, r := range results {
		if r.Path == "" {
			continue
		}
		abs, err := filepath.Abs(r.Path)
		if err != nil {
			return eris.Wrapf(err, "resolve %s", r.Path)
		}
		paths = append(paths, abs)
	}
	sort.Strings(paths)

	var b strings.Builder
	for _, p := range paths {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return eris.Wrapf(err, "write manifest %s", path)
	}
	return nil
}
