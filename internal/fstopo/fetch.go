package fstopo

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nst-guide/fstopo/internal/grid"
)

// Status classifies the outcome for one candidate quad.
type Status string

const (
	// StatusDownloaded means the quad's TIFF was fetched this run.
	StatusDownloaded Status = "downloaded"
	// StatusSkipped means the artifact was already on disk and
	// overwrite was not requested; no remote request was made.
	StatusSkipped Status = "skipped"
	// StatusNotFound means the block index has no published quad for
	// the cell. Normal outcome: quads only exist for National Forest
	// land.
	StatusNotFound Status = "not_found"
	// StatusFailed means the probe or download hit a remote failure.
	StatusFailed Status = "failed"
)

// Result is the outcome for one candidate quad.
type Result struct {
	QuadID string
	Path   string // set for downloaded and skipped quads
	Status Status
	Err    error // set for failed quads
}

// FetchOptions configure one fetch pass.
type FetchOptions struct {
	Dir       string // raw-data directory
	Overwrite bool   // re-download artifacts already on disk
	Jobs      int    // bounded download concurrency
}

// Fetch probes the remote index for every candidate cell and downloads
// the quads that exist into the raw-data directory. Cells whose
// artifact is already on disk are skipped without any remote request
// unless overwrite is set; blocks where every cell is skipped are not
// probed at all. Remote failures are reported per quad and do not
// abort the rest of the run. Results come back sorted by quad ID.
func Fetch(ctx context.Context, c *Client, cells []grid.Cell, opts FetchOptions) ([]Result, error) {
	if opts.Dir == "" {
		opts.Dir = filepath.Join("data", "raw")
	}
	if opts.Jobs <= 0 {
		opts.Jobs = 4
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "fstopo: create data dir")
	}

	log := zap.L().With(zap.String("component", "fstopo.fetch"))

	var results []Result
	pending := make(map[string][]grid.Cell)
	for _, cell := range cells {
		dest := filepath.Join(opts.Dir, ArtifactName(cell.ID()))
		if !opts.Overwrite {
			if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
				log.Debug("artifact exists, skipping", zap.String("quad", cell.ID()))
				results = append(results, Result{QuadID: cell.ID(), Path: dest, Status: StatusSkipped})
				continue
			}
		}
		pending[cell.BlockID()] = append(pending[cell.BlockID()], cell)
	}

	blocks := make([]string, 0, len(pending))
	for blockID := range pending {
		blocks = append(blocks, blockID)
	}
	sort.Strings(blocks)

	type task struct {
		quadID string
		url    string
	}
	var tasks []task
	for _, blockID := range blocks {
		index, err := c.BlockIndex(ctx, blockID)
		if err != nil {
			log.Warn("block probe failed", zap.String("block", blockID), zap.Error(err))
			for _, cell := range pending[blockID] {
				results = append(results, Result{QuadID: cell.ID(), Status: StatusFailed, Err: err})
			}
			continue
		}
		for _, cell := range pending[blockID] {
			u, ok := index[cell.ID()]
			if !ok {
				log.Debug("no published quad for cell", zap.String("quad", cell.ID()))
				results = append(results, Result{QuadID: cell.ID(), Status: StatusNotFound})
				continue
			}
			tasks = append(tasks, task{quadID: cell.ID(), url: u})
		}
	}

	taskResults := make([]Result, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Jobs)
	for i, tk := range tasks {
		g.Go(func() error {
			path, err := c.DownloadQuad(gctx, tk.quadID, tk.url, opts.Dir)
			if err != nil {
				log.Warn("download failed", zap.String("quad", tk.quadID), zap.Error(err))
				taskResults[i] = Result{QuadID: tk.quadID, Status: StatusFailed, Err: err}
				return nil
			}
			taskResults[i] = Result{QuadID: tk.quadID, Path: path, Status: StatusDownloaded}
			return nil
		})
	}
	_ = g.Wait()
	results = append(results, taskResults...)

	sort.Slice(results, func(i, j int) bool { return results[i].QuadID < results[j].QuadID })

	counts := Summarize(results)
	log.Info("fetch complete",
		zap.Int("candidates", len(cells)),
		zap.Int("downloaded", counts[StatusDownloaded]),
		zap.Int("skipped", counts[StatusSkipped]),
		zap.Int("not_found", counts[StatusNotFound]),
		zap.Int("failed", counts[StatusFailed]),
	)

	if err := ctx.Err(); err != nil {
		return results, eris.Wrap(err, "fstopo: fetch interrupted")
	}
	return results, nil
}

// Summarize counts results by status.
func Summarize(results []Result) map[Status]int {
	counts := make(map[Status]int)
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
