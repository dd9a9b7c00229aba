package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"eduvia/internal/models"
)

// FailureText replaces the content of an assistant entry whose request failed.
const FailureText = "Error: Could not connect to Eduvia Network."

var (
	// ErrEntryNotFound is returned for unknown entry ids.
	ErrEntryNotFound = errors.New("transcript entry not found")
	// ErrEntryResolved is returned when mutating a completed or failed entry.
	ErrEntryResolved = errors.New("transcript entry already resolved")
)

// Status tracks an entry through its lifetime.
type Status int

const (
	StatusPending Status = iota
	StatusDone
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusDone:
		return "done"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Entry is one line of the conversation.
type Entry struct {
	ID      string
	Role    models.Role
	Content string
	Status  Status
}

// Transcript is the ordered conversation shown to the user. In-flight
// assistant entries are keyed by request id, so several can be pending at
// once. Safe for concurrent use.
type Transcript struct {
	mu       sync.Mutex
	entries  []Entry
	index    map[string]int
	onChange func(Entry)
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{index: make(map[string]int)}
}

// OnChange installs fn to be called after every mutation. fn runs outside
// the transcript lock.
func (t *Transcript) OnChange(fn func(Entry)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// AppendUser records a settled user message.
func (t *Transcript) AppendUser(text string) Entry {
	return t.add(Entry{ID: uuid.NewString(), Role: models.RoleUser, Content: text, Status: StatusDone})
}

// Begin opens an empty assistant entry for requestID.
func (t *Transcript) Begin(requestID string) Entry {
	return t.add(Entry{ID: requestID, Role: models.RoleAssistant, Status: StatusPending})
}

func (t *Transcript) add(e Entry) Entry {
	t.mu.Lock()
	t.index[e.ID] = len(t.entries)
	t.entries = append(t.entries, e)
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn(e)
	}
	return e
}

// Replace sets the whole content of a pending entry.
func (t *Transcript) Replace(id, content string) error {
	return t.update(id, func(e *Entry) { e.Content = content })
}

// Complete marks a pending entry as done, keeping its content.
func (t *Transcript) Complete(id string) error {
	return t.update(id, func(e *Entry) { e.Status = StatusDone })
}

// Fail marks a pending entry as failed and replaces its content with
// FailureText.
func (t *Transcript) Fail(id string) error {
	return t.update(id, func(e *Entry) {
		e.Content = FailureText
		e.Status = StatusFailed
	})
}

func (t *Transcript) update(id string, mutate func(*Entry)) error {
	t.mu.Lock()
	i, ok := t.index[id]
	if !ok {
		t.mu.Unlock()
		return ErrEntryNotFound
	}
	e := &t.entries[i]
	if e.Status != StatusPending {
		t.mu.Unlock()
		return ErrEntryResolved
	}
	mutate(e)
	snapshot := *e
	fn := t.onChange
	t.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
	return nil
}

// Entry returns a copy of the entry with the given id.
func (t *Transcript) Entry(id string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	i, ok := t.index[id]
	if !ok {
		return Entry{}, false
	}
	return t.entries[i], true
}

// Pending returns the ids of entries still waiting for a response.
func (t *Transcript) Pending() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var ids []string
	for _, e := range t.entries {
		if e.Status == StatusPending {
			ids = append(ids, e.ID)
		}
	}
	return ids
}

// Entries returns a snapshot of the whole transcript.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// History returns the last k settled turns, oldest first. Pending and
// failed assistant entries are left out. k <= 0 means no limit.
func (t *Transcript) History(k int) []models.Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	turns := make([]models.Turn, 0, len(t.entries))
	for _, e := range t.entries {
		if e.Status != StatusDone {
			continue
		}
		turns = append(turns, models.Turn{Role: e.Role, Text: e.Content})
	}
	if k > 0 && len(turns) > k {
		turns = turns[len(turns)-k:]
	}
	return turns
}
