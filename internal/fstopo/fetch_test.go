package fstopo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nst-guide/fstopo/internal/grid"
)

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(ClientOptions{
		BaseURL:    baseURL,
		Timeout:    5 * time.Second,
		MaxRetries: 1,
		RatePerSec: 1000,
		Quiet:      true,
	})
	require.NoError(t, err)
	return c
}

// indexHTML renders a quad index page in the gateway's markup, with
// one link per quad ID → href pair.
func indexHTML(links map[string]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div id="skipheader"><ul>`)
	for id, href := range links {
		fmt.Fprintf(&b, `<li><a href="%s">Quad_%s_FSTopo.tif</a></li>`, href, id)
	}
	b.WriteString(`</ul></div></body></html>`)
	return b.String()
}

func TestBlockIndex_ParsesPublishedQuads(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/quad-index.php", r.URL.Path)
		require.Equal(t, "46121", r.URL.Query().Get("blockID"))
		fmt.Fprint(w, `<html><body><div id="skipheader"><ul>
			<li><a href="quad-img/461512130_FSTopo.tiff">Mount_Adams_461512130_FSTopo.tif</a></li>
			<li><a href="/other/461512137_FSTopo.tif">Glaciate_Butte_461512137_FSTopo.tif</a></li>
			<li><a href="metadata/461512145_FSTopo.pdf">Metadata_461512145_FSTopo.pdf</a></li>
			<li><a href="somewhere.tiff">unrelated link</a></li>
		</ul></div></body></html>`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	index, err := c.BlockIndex(context.Background(), "46121")
	require.NoError(t, err)

	require.Len(t, index, 2)
	assert.Equal(t, srv.URL+"/quad-img/461512130_FSTopo.tiff", index["461512130"])
	assert.Equal(t, srv.URL+"/other/461512137_FSTopo.tif", index["461512137"])
}

func TestBlockIndex_ErrorPageMeansNoCoverage(t *testing.T) {
	// The gateway answers unknown blocks with a server error page.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	index, err := c.BlockIndex(context.Background(), "99999")
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestBlockIndex_MarkupDriftMeansNoCoverage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><p>new layout, no list</p></body></html>`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	index, err := c.BlockIndex(context.Background(), "46121")
	require.NoError(t, err)
	assert.Empty(t, index)
}

func TestBlockIndex_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	srv.Close() // connection refused from here on

	c := newTestClient(t, srv.URL)
	_, err := c.BlockIndex(context.Background(), "46121")
	require.Error(t, err)

	var re *RemoteError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "46121", re.BlockID)
}

// quadServer serves an index page for block 46121 listing the given
// quads, and their TIFF bodies under /img/. Every request increments
// requests.
func quadServer(t *testing.T, published []string, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/quad-index.php", func(w http.ResponseWriter, _ *http.Request) {
		links := make(map[string]string, len(published))
		for _, id := range published {
			links[id] = "/img/" + id + "_FSTopo.tiff"
		}
		fmt.Fprint(w, indexHTML(links))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/img/"), "_FSTopo.tiff")
		fmt.Fprintf(w, "tiff-bytes-%s", id)
	})

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		mux.ServeHTTP(w, r)
	}))
}

var testCells = []grid.Cell{
	{LatDeg: 46, LonDeg: -121, Row: 2, Col: 4}, // 461512130
	{LatDeg: 46, LonDeg: -121, Row: 2, Col: 5}, // 461512137
}

func TestFetch_DownloadsPublishedQuads(t *testing.T) {
	var requests atomic.Int32
	srv := quadServer(t, []string{"461512130"}, &requests)
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(t, srv.URL)
	results, err := Fetch(context.Background(), c, testCells, FetchOptions{Dir: dir})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, StatusDownloaded, results[0].Status)
	assert.Equal(t, "461512130", results[0].QuadID)
	data, err := os.ReadFile(filepath.Join(dir, "461512130.tiff"))
	require.NoError(t, err)
	assert.Equal(t, "tiff-bytes-461512130", string(data))

	// The second cell has no published quad: a normal, silent outcome.
	assert.Equal(t, StatusNotFound, results[1].Status)
	assert.NoFileExists(t, filepath.Join(dir, "461512137.tiff"))
}

func TestFetch_SkipsExistingWithoutRequests(t *testing.T) {
	var requests atomic.Int32
	srv := quadServer(t, []string{"461512130", "461512137"}, &requests)
	defer srv.Close()

	dir := t.TempDir()
	for _, cell := range testCells {
		require.NoError(t, os.WriteFile(filepath.Join(dir, cell.ID()+".tiff"), []byte("existing"), 0o644))
	}

	c := newTestClient(t, srv.URL)
	results, err := Fetch(context.Background(), c, testCells, FetchOptions{Dir: dir})
	require.NoError(t, err)

	assert.Equal(t, int32(0), requests.Load(), "skip must not touch the network")
	for _, r := range results {
		assert.Equal(t, StatusSkipped, r.Status)
		assert.NotEmpty(t, r.Path)
	}

	// Artifacts untouched.
	for _, cell := range testCells {
		data, err := os.ReadFile(filepath.Join(dir, cell.ID()+".tiff"))
		require.NoError(t, err)
		assert.Equal(t, "existing", string(data))
	}
}

func TestFetch_OverwriteReplacesArtifacts(t *testing.T) {
	var requests atomic.Int32
	srv := quadServer(t, []string{"461512130"}, &requests)
	defer srv.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "461512130.tiff")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))

	c := newTestClient(t, srv.URL)
	results, err := Fetch(context.Background(), c, testCells[:1], FetchOptions{Dir: dir, Overwrite: true})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, StatusDownloaded, results[0].Status)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "tiff-bytes-461512130", string(data))
}

func TestFetch_InterruptedDownloadLeavesNoArtifact(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quad-index.php", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexHTML(map[string]string{"461512130": "/img/461512130_FSTopo.tiff"}))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, _ *http.Request) {
		// Promise more bytes than are sent: the client sees the
		// transfer die partway through.
		w.Header().Set("Content-Length", "4096")
		_, _ = w.Write([]byte("partial"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(t, srv.URL)
	results, err := Fetch(context.Background(), c, testCells[:1], FetchOptions{Dir: dir})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.Equal(t, StatusFailed, results[0].Status)
	require.Error(t, results[0].Err)
	assert.NoFileExists(t, filepath.Join(dir, "461512130.tiff"))
	assert.NoFileExists(t, filepath.Join(dir, "461512130.tiff.partial"))
}

func TestFetch_RemoteFailureDoesNotAbortOthers(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/quad-index.php", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, indexHTML(map[string]string{
			"461512130": "/img/461512130_FSTopo.tiff",
			"461512137": "/broken/461512137_FSTopo.tiff",
		}))
	})
	mux.HandleFunc("/img/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "ok-bytes")
	})
	mux.HandleFunc("/broken/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(t, srv.URL)
	results, err := Fetch(context.Background(), c, testCells, FetchOptions{Dir: dir})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, StatusDownloaded, results[0].Status)
	assert.FileExists(t, filepath.Join(dir, "461512130.tiff"))

	assert.Equal(t, StatusFailed, results[1].Status)
	var re *RemoteError
	assert.True(t, errors.As(results[1].Err, &re))
	assert.Equal(t, "461512137", re.QuadID)
	assert.NoFileExists(t, filepath.Join(dir, "461512137.tiff"))
}

func TestDownloadQuad_Atomic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "tiff-bytes")
	}))
	defer srv.Close()

	dir := t.TempDir()
	c := newTestClient(t, srv.URL)
	path, err := c.DownloadQuad(context.Background(), "461512130", srv.URL+"/x.tiff", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "461512130.tiff"), path)
	assert.FileExists(t, path)
	assert.NoFileExists(t, path+".partial")
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Status: StatusDownloaded},
		{Status: StatusDownloaded},
		{Status: StatusSkipped},
		{Status: StatusNotFound},
	}

	counts := Summarize(results)
	assert.Equal(t, 2, counts[StatusDownloaded])
	assert.Equal(t, 1, counts[StatusSkipped])
	assert.Equal(t, 1, counts[StatusNotFound])
	assert.Equal(t, 0, counts[StatusFailed])
}
