package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

const defaultChunkSize = 4096

// ConsumeOption customizes Consume.
type ConsumeOption func(*consumeConfig)

type consumeConfig struct {
	chunkSize int
	onChunk   func(n int)
}

// WithChunkSize sets the read buffer size.
func WithChunkSize(n int) ConsumeOption {
	return func(c *consumeConfig) {
		if n > 0 {
			c.chunkSize = n
		}
	}
}

// WithChunkHook is called with the byte count of every read.
func WithChunkHook(fn func(n int)) ConsumeOption {
	return func(c *consumeConfig) { c.onChunk = fn }
}

// Consume reads body until EOF, decoding it incrementally and replacing the
// entry's content with everything received so far after each read. On any
// read or decode failure the entry is failed and the error returned.
func Consume(ctx context.Context, body io.Reader, tr *Transcript, entryID string, opts ...ConsumeOption) (err error) {
	cfg := consumeConfig{chunkSize: defaultChunkSize}
	for _, opt := range opts {
		opt(&cfg)
	}
	defer func() {
		if err != nil {
			_ = tr.Fail(entryID)
		}
	}()

	dec := NewDecoder()
	var acc strings.Builder
	buf := make([]byte, cfg.chunkSize)
	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if cfg.onChunk != nil {
				cfg.onChunk(n)
			}
			text, decErr := dec.Decode(buf[:n], false)
			acc.WriteString(text)
			if decErr != nil {
				return decErr
			}
			if err := tr.Replace(entryID, acc.String()); err != nil {
				return err
			}
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return fmt.Errorf("read response: %w", readErr)
		}
	}

	tail, err := dec.Decode(nil, true)
	if err != nil {
		return err
	}
	if tail != "" {
		acc.WriteString(tail)
		if err := tr.Replace(entryID, acc.String()); err != nil {
			return err
		}
	}
	return tr.Complete(entryID)
}
