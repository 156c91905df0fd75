package fstopo

import "fmt"

// RemoteError reports a failure reaching the raster gateway for one
// block probe or quad download. It is collected per identifier; other
// identifiers keep processing.
type RemoteError struct {
	QuadID  string // empty for block index probes
	BlockID string
	URL     string
	Err     error
}

func (e *RemoteError) Error() string {
	if e.QuadID != "" {
		return fmt.Sprintf("fstopo: quad %s: %v", e.QuadID, e.Err)
	}
	return fmt.Sprintf("fstopo: block %s index: %v", e.BlockID, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}
