// Package credentials holds the static set of provider API keys and picks
// one per request.
package credentials

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
)

// Credential is an opaque provider API key.
type Credential string

// ErrNoCredentials is returned when the configured key set is empty.
var ErrNoCredentials = errors.New("no provider api keys configured")

// Pool is a fixed, read-only set of credentials.
type Pool struct {
	keys []Credential
	intn func(n int) int
}

// Option customizes a Pool.
type Option func(*poolOptions)

type poolOptions struct {
	cipherKey string
	intn      func(n int) int
}

// WithCipherKey sets the key used to open "enc:" entries. When unset the
// EDUVIA_APIKEY_KEY environment variable is consulted.
func WithCipherKey(raw string) Option {
	return func(o *poolOptions) { o.cipherKey = raw }
}

// WithIntn replaces the random source, mostly for tests.
func WithIntn(intn func(n int) int) Option {
	return func(o *poolOptions) { o.intn = intn }
}

// NewPool builds a pool from raw keys. Blank entries are dropped; an empty
// result is a configuration error.
func NewPool(raw []string, opts ...Option) (*Pool, error) {
	o := poolOptions{intn: rand.IntN}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		keys   []Credential
		cipher *tokenCipher
	)
	for i, k := range raw {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if sealed, ok := strings.CutPrefix(k, sealedPrefix); ok {
			if cipher == nil {
				c, err := newTokenCipher(o.cipherKey)
				if err != nil {
					return nil, fmt.Errorf("api key %d: %w", i, err)
				}
				cipher = c
			}
			plain, err := cipher.Decrypt(sealed)
			if err != nil {
				return nil, fmt.Errorf("api key %d: %w", i, err)
			}
			k = plain
		}
		keys = append(keys, Credential(k))
	}
	if len(keys) == 0 {
		return nil, ErrNoCredentials
	}
	return &Pool{keys: keys, intn: o.intn}, nil
}

// Pick returns one credential chosen uniformly at random.
func (p *Pool) Pick() Credential {
	return p.keys[p.intn(len(p.keys))]
}

// Index reports the position of c in the pool, or -1. Used for logging so
// that keys themselves never reach the logs.
func (p *Pool) Index(c Credential) int {
	for i, k := range p.keys {
		if k == c {
			return i
		}
	}
	return -1
}

// Len returns the number of credentials.
func (p *Pool) Len() int {
	return len(p.keys)
}
