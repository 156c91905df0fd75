package fstopo

import (
	"context"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// quadLinkRe extracts the 9-digit quad code from an index link's text,
// e.g. "Mount_Adams_East_461512115_FSTopo.tif".
var quadLinkRe = regexp.MustCompile(`_([0-9]{9})_FSTopo`)

// BlockIndex fetches the quad index page for a block and returns quad
// ID → TIFF URL for every quad published in it. Blocks without
// coverage yield an empty map, as do index pages whose markup has
// drifted; only transport failures are errors.
func (c *Client) BlockIndex(ctx context.Context, blockID string) (map[string]string, error) {
	u := c.indexURL(blockID)
	log := zap.L().With(zap.String("block", blockID))

	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, &RemoteError{BlockID: blockID, URL: u, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		// The gateway answers unknown blocks with an error page (500),
		// not an empty listing.
		log.Debug("no index page for block", zap.Int("status", resp.StatusCode))
		return map[string]string{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		log.Warn("unparsable block index page", zap.Error(err))
		return map[string]string{}, nil
	}

	pageURL := resp.Request.URL
	index := make(map[string]string)
	doc.Find("#skipheader li a").Each(func(_ int, sel *goquery.Selection) {
		m := quadLinkRe.FindStringSubmatch(sel.Text())
		if m == nil {
			return
		}
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := pageURL.ResolveReference(ref)
		if ext := strings.ToLower(path.Ext(abs.Path)); ext != ".tif" && ext != ".tiff" {
			return
		}
		index[m[1]] = abs.String()
	})

	log.Debug("probed block index", zap.Int("published", len(index)))
	return index, nil
}
