// Package testutil holds fakes shared by package tests.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"eduvia/internal/credentials"
)

// FakeModel is a scripted chat model. It streams Fragments in order, then
// fails with MidErr when set. OpenErr makes Stream fail outright.
type FakeModel struct {
	Fragments []string
	OpenErr   error
	MidErr    error
	// Block, when non-nil, is waited on before the first fragment.
	Block chan struct{}

	mu       sync.Mutex
	calls    int
	lastSeen []*schema.Message
	ctxErr   chan error
}

var _ model.BaseChatModel = (*FakeModel)(nil)

// Generate returns the concatenated fragments.
func (f *FakeModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.record(input)
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	return &schema.Message{Role: schema.Assistant, Content: strings.Join(f.Fragments, "")}, nil
}

// Stream emits the scripted fragments through an eino pipe.
func (f *FakeModel) Stream(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.record(input)
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	sr, sw := schema.Pipe[*schema.Message](len(f.Fragments) + 1)
	go func() {
		defer sw.Close()
		if f.Block != nil {
			select {
			case <-f.Block:
			case <-ctx.Done():
				f.reportCtx(ctx.Err())
				sw.Send(nil, ctx.Err())
				return
			}
		}
		for _, frag := range f.Fragments {
			if closed := sw.Send(&schema.Message{Role: schema.Assistant, Content: frag}, nil); closed {
				return
			}
		}
		if f.MidErr != nil {
			sw.Send(nil, f.MidErr)
		}
	}()
	return sr, nil
}

// WatchCancel returns a channel receiving the context error observed while
// the stream is blocked.
func (f *FakeModel) WatchCancel() <-chan error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ctxErr == nil {
		f.ctxErr = make(chan error, 1)
	}
	return f.ctxErr
}

func (f *FakeModel) reportCtx(err error) {
	f.mu.Lock()
	ch := f.ctxErr
	f.mu.Unlock()
	if ch != nil {
		select {
		case ch <- err:
		default:
		}
	}
}

func (f *FakeModel) record(input []*schema.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastSeen = input
}

// Calls reports how many times the model was invoked.
func (f *FakeModel) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// LastInput returns the messages of the most recent call.
func (f *FakeModel) LastInput() []*schema.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSeen
}

// ErrUpstream is a canned provider failure.
var ErrUpstream = errors.New("upstream exploded")

// Factory returns a model factory that always yields m and records the
// credentials it was asked for.
func Factory(m model.BaseChatModel, seen *[]credentials.Credential) func(context.Context, credentials.Credential) (model.BaseChatModel, error) {
	var mu sync.Mutex
	return func(_ context.Context, cred credentials.Credential) (model.BaseChatModel, error) {
		if seen != nil {
			mu.Lock()
			*seen = append(*seen, cred)
			mu.Unlock()
		}
		return m, nil
	}
}
