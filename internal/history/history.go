// Package history implements the bounded linear undo/redo ring kept per file.
package history

import (
	"github.com/jmgilman/go/errors"

	"github.com/fruitsalade/projectfs/pkg/models"
)

// DefaultMax is the default bound on the past stack.
const DefaultMax = 50

var (
	ErrNothingToUndo = errors.New(errors.CodeInvalidInput, "nothing to undo")
	ErrNothingToRedo = errors.New(errors.CodeInvalidInput, "nothing to redo")
)

// Ring holds one file's history. It is not safe for concurrent use; a file
// has a single writer.
type Ring struct {
	max     int
	past    []string // oldest first
	present string
	future  []string // most recent undo first
}

// New creates an empty ring. max <= 0 selects DefaultMax.
func New(max int) *Ring {
	if max <= 0 {
		max = DefaultMax
	}
	return &Ring{max: max}
}

// FromState restores a ring from its persisted form, trimming past to max.
func FromState(max int, st models.HistoryState) *Ring {
	r := New(max)
	r.present = st.Present
	r.past = append([]string(nil), st.Past...)
	if len(r.past) > r.max {
		r.past = r.past[len(r.past)-r.max:]
	}
	r.future = append([]string(nil), st.Future...)
	return r
}

// Present returns the current content.
func (r *Ring) Present() string { return r.present }

// Push records content as the new present. Pushing the current present is a no-op.
func (r *Ring) Push(content string) {
	if content == r.present {
		return
	}
	r.past = append(r.past, r.present)
	if len(r.past) > r.max {
		r.past = r.past[len(r.past)-r.max:]
	}
	r.present = content
	r.future = nil
}

// Undo steps back and returns the restored content.
func (r *Ring) Undo() (string, error) {
	if len(r.past) == 0 {
		return "", ErrNothingToUndo
	}
	last := len(r.past) - 1
	r.future = append([]string{r.present}, r.future...)
	r.present = r.past[last]
	r.past = r.past[:last]
	return r.present, nil
}

// Redo steps forward and returns the restored content.
func (r *Ring) Redo() (string, error) {
	if len(r.future) == 0 {
		return "", ErrNothingToRedo
	}
	r.past = append(r.past, r.present)
	if len(r.past) > r.max {
		r.past = r.past[len(r.past)-r.max:]
	}
	r.present = r.future[0]
	r.future = r.future[1:]
	return r.present, nil
}

// CanUndo reports whether Undo would succeed.
func (r *Ring) CanUndo() bool { return len(r.past) > 0 }

// CanRedo reports whether Redo would succeed.
func (r *Ring) CanRedo() bool { return len(r.future) > 0 }

// State returns a copy of the stacks for persistence.
func (r *Ring) State() models.HistoryState {
	return models.HistoryState{
		Past:    append([]string{}, r.past...),
		Present: r.present,
		Future:  append([]string{}, r.future...),
	}
}
