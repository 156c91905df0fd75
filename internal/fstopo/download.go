package fstopo

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/schollz/progressbar/v3"
)

// ArtifactName returns the raw-data filename for a quad.
func ArtifactName(quadID string) string {
	return quadID + ".tiff"
}

// DownloadQuad streams the quad's TIFF into dir under its artifact
// name, writing to a temporary file and renaming into place only on
// complete success, so an interrupted transfer never leaves a partial
// file under the final name.
func (c *Client) DownloadQuad(ctx context.Context, quadID, rawURL, dir string) (string, error) {
	dest := filepath.Join(dir, ArtifactName(quadID))
	tmp := dest + ".partial"

	resp, err := c.get(ctx, rawURL)
	if err != nil {
		return "", &RemoteError{QuadID: quadID, URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return "", &RemoteError{QuadID: quadID, URL: rawURL, Err: eris.Errorf("unexpected status %d", resp.StatusCode)}
	}

	f, err := os.Create(tmp)
	if err != nil {
		return "", eris.Wrapf(err, "fstopo: create %s", tmp)
	}

	var bar *progressbar.ProgressBar
	if c.opts.Quiet {
		bar = progressbar.DefaultBytesSilent(resp.ContentLength, quadID)
	} else {
		bar = progressbar.DefaultBytes(resp.ContentLength, quadID)
	}

	_, copyErr := io.Copy(io.MultiWriter(f, bar), resp.Body)
	closeErr := f.Close()
	_ = bar.Close()

	if copyErr != nil {
		_ = os.Remove(tmp)
		return "", &RemoteError{QuadID: quadID, URL: rawURL, Err: copyErr}
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return "", eris.Wrapf(closeErr, "fstopo: write %s", tmp)
	}

	if err := os.Rename(tmp, dest); err != nil {
		_ = os.Remove(tmp)
		return "", eris.Wrapf(err, "fstopo: move %s into place", dest)
	}

	return dest, nil
}
