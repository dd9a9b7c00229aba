package client

import (
	"errors"

	"golang.org/x/text/encoding"
	"golang.org/x/text/transform"
)

// ErrDecode reports bytes that are not valid UTF-8.
var ErrDecode = errors.New("invalid utf-8 in response stream")

// Decoder turns a chunked byte stream into text. A multi-byte sequence
// split across chunks is held back until the rest of it arrives.
type Decoder struct {
	t     transform.Transformer
	carry []byte
	buf   []byte
}

// NewDecoder returns a ready decoder.
func NewDecoder() *Decoder {
	return &Decoder{
		t:   encoding.UTF8Validator,
		buf: make([]byte, 4096),
	}
}

// Decode returns the text of every complete rune seen so far. final marks
// the end of the stream; an incomplete trailing sequence is then an error.
func (d *Decoder) Decode(chunk []byte, final bool) (string, error) {
	src := chunk
	if len(d.carry) > 0 {
		src = append(d.carry, chunk...)
		d.carry = nil
	}
	var out []byte
	for {
		nDst, nSrc, err := d.t.Transform(d.buf, src, final)
		out = append(out, d.buf[:nDst]...)
		src = src[nSrc:]
		switch {
		case err == nil:
			return string(out), nil
		case errors.Is(err, transform.ErrShortDst):
			continue
		case errors.Is(err, transform.ErrShortSrc):
			if final {
				return string(out), ErrDecode
			}
			d.carry = append([]byte(nil), src...)
			return string(out), nil
		default:
			return string(out), ErrDecode
		}
	}
}

// Reset drops any carried bytes.
func (d *Decoder) Reset() {
	d.carry = nil
	d.t.Reset()
}
