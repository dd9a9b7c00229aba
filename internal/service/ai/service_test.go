package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eduvia/internal/credentials"
	"eduvia/internal/models"
	"eduvia/internal/testutil"
)

func drain(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		frag, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
		out = append(out, frag)
	}
}

func turns(n int) []models.Turn {
	out := make([]models.Turn, 0, n)
	for i := 0; i < n; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleAssistant
		}
		out = append(out, models.Turn{Role: role, Text: string(rune('a' + i))})
	}
	return out
}

func TestBuildContextKeepsMostRecentTurns(t *testing.T) {
	history := turns(15)
	msgs := BuildContext(history, "new", models.ModeNormal, 10)

	require.Len(t, msgs, 2+10+1)
	assert.Equal(t, schema.User, msgs[0].Role)
	assert.Equal(t, systemInstruction, msgs[0].Content)
	assert.Equal(t, schema.Assistant, msgs[1].Role)
	assert.Equal(t, systemAcknowledgment, msgs[1].Content)
	for i, m := range msgs[2:12] {
		want := history[5+i]
		assert.Equal(t, want.Text, m.Content)
		if want.Role == models.RoleAssistant {
			assert.Equal(t, schema.Assistant, m.Role)
		} else {
			assert.Equal(t, schema.User, m.Role)
		}
	}
	assert.Equal(t, "new", msgs[12].Content)
}

func TestBuildContextShortHistory(t *testing.T) {
	msgs := BuildContext(turns(3), "hi", models.ModeNormal, 10)
	require.Len(t, msgs, 6)
	assert.Equal(t, "a", msgs[2].Content)
	assert.Equal(t, "hi", msgs[5].Content)

	msgs = BuildContext(nil, "hi", models.ModeNormal, 10)
	require.Len(t, msgs, 3)
}

func TestBuildContextAcademicPrefix(t *testing.T) {
	msgs := BuildContext(nil, "Explain X", models.ModeAcademic, 10)
	last := msgs[len(msgs)-1]
	assert.Equal(t, AcademicPrefix+"Explain X", last.Content)
	assert.True(t, strings.HasSuffix(last.Content, "Explain X"))
}

func TestStreamCompletionConcatenatesFragments(t *testing.T) {
	fake := &testutil.FakeModel{Fragments: []string{"Hello", "", " there", "!"}}
	var seen []credentials.Credential
	client := NewClient(testutil.Factory(fake, &seen))

	stream, err := client.StreamCompletion(context.Background(), "key-1", Request{Message: "Hi", Mode: models.ModeNormal})
	require.NoError(t, err)
	defer stream.Close()

	frags, err := drain(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " there", "!"}, frags)
	assert.Equal(t, "Hello there!", strings.Join(frags, ""))
	assert.Equal(t, 3, stream.Fragments())
	assert.Equal(t, []credentials.Credential{"key-1"}, seen)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStreamCompletionUsesWindow(t *testing.T) {
	fake := &testutil.FakeModel{Fragments: []string{"ok"}}
	client := NewClient(testutil.Factory(fake, nil), WithHistoryWindow(2))

	stream, err := client.StreamCompletion(context.Background(), "k", Request{History: turns(6), Message: "q"})
	require.NoError(t, err)
	_, err = drain(t, stream)
	require.NoError(t, err)

	input := fake.LastInput()
	require.Len(t, input, 5)
	assert.Equal(t, "e", input[2].Content)
	assert.Equal(t, "f", input[3].Content)
}

func TestStreamCompletionOpenFailure(t *testing.T) {
	fake := &testutil.FakeModel{OpenErr: testutil.ErrUpstream}
	client := NewClient(testutil.Factory(fake, nil))

	_, err := client.StreamCompletion(context.Background(), "k", Request{Message: "Hi"})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "open", perr.Op)
	assert.ErrorIs(t, err, testutil.ErrUpstream)
}

func TestStreamCompletionFactoryFailure(t *testing.T) {
	boom := errors.New("bad key")
	client := NewClient(func(context.Context, credentials.Credential) (model.BaseChatModel, error) {
		return nil, boom
	})

	_, err := client.StreamCompletion(context.Background(), "k", Request{Message: "Hi"})
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "init", perr.Op)
	assert.ErrorIs(t, err, boom)
}

func TestStreamCompletionMidStreamFailure(t *testing.T) {
	fake := &testutil.FakeModel{Fragments: []string{"par", "tial"}, MidErr: testutil.ErrUpstream}
	client := NewClient(testutil.Factory(fake, nil))

	stream, err := client.StreamCompletion(context.Background(), "k", Request{Message: "Hi"})
	require.NoError(t, err)
	frags, err := drain(t, stream)
	assert.Equal(t, []string{"par", "tial"}, frags)
	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "recv", perr.Op)
}

func TestStreamCompletionHonoursCancel(t *testing.T) {
	fake := &testutil.FakeModel{Fragments: []string{"never"}, Block: make(chan struct{})}
	cancelled := fake.WatchCancel()
	client := NewClient(testutil.Factory(fake, nil))

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.StreamCompletion(ctx, "k", Request{Message: "Hi"})
	require.NoError(t, err)
	cancel()

	_, err = stream.Recv()
	require.Error(t, err)
	assert.ErrorIs(t, <-cancelled, context.Canceled)
}
