// Package relay copies a fragment source onto an HTTP response as a raw,
// incrementally flushed byte stream.
package relay

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ContentType is the media type of relayed responses.
const ContentType = "text/plain; charset=utf-8"

// ErrClientGone reports that the response could no longer be written.
var ErrClientGone = errors.New("client connection gone")

// Source yields text fragments until io.EOF.
type Source interface {
	Recv() (string, error)
}

// Result summarizes one relay.
type Result struct {
	Fragments int
	Bytes     int64
}

// SourceError wraps a source failure. Started is true once any byte reached
// the client, in which case the response status can no longer change.
type SourceError struct {
	Started bool
	Err     error
}

func (e *SourceError) Error() string {
	if e.Started {
		return fmt.Sprintf("source failed mid-stream: %v", e.Err)
	}
	return fmt.Sprintf("source failed before output: %v", e.Err)
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// Relay writes every fragment of src to w in order and flushes after each
// one. Headers are committed lazily with the first fragment, so a caller
// still owns the status code when Relay fails with an unstarted SourceError.
func Relay(w http.ResponseWriter, src Source) (Result, error) {
	var res Result
	flusher, _ := w.(http.Flusher)
	started := false
	start := func() {
		if started {
			return
		}
		started = true
		w.Header().Set("Content-Type", ContentType)
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)
	}

	for {
		frag, err := src.Recv()
		if errors.Is(err, io.EOF) {
			start()
			if flusher != nil {
				flusher.Flush()
			}
			return res, nil
		}
		if err != nil {
			return res, &SourceError{Started: started, Err: err}
		}
		if frag == "" {
			continue
		}
		start()
		n, err := io.WriteString(w, frag)
		res.Bytes += int64(n)
		if err != nil {
			return res, fmt.Errorf("%w: %v", ErrClientGone, err)
		}
		res.Fragments++
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// Abort tears down the current response without a clean terminator, so the
// peer observes a failed read. It must be called from the handler goroutine
// and does not return.
func Abort() {
	panic(http.ErrAbortHandler)
}
