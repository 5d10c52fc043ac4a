package history

import (
	"fmt"
	"testing"

	"github.com/fruitsalade/projectfs/pkg/models"
)

func TestPushIsIdempotent(t *testing.T) {
	r := New(0)
	r.Push("a")
	before := r.State()
	r.Push("a")
	after := r.State()

	if len(before.Past) != len(after.Past) || len(before.Future) != len(after.Future) || before.Present != after.Present {
		t.Errorf("second push changed state: %+v -> %+v", before, after)
	}
}

func TestUndoRedoInverse(t *testing.T) {
	r := New(5)
	for _, c := range []string{"one", "two", "three"} {
		r.Push(c)
	}

	before := r.State()
	if _, err := r.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if r.Present() != "two" {
		t.Errorf("after undo present = %q, want two", r.Present())
	}
	if _, err := r.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	after := r.State()

	if fmt.Sprint(before) != fmt.Sprint(after) {
		t.Errorf("undo+redo: got %+v, want %+v", after, before)
	}
}

// The initial empty present is the first entry to enter past, so after
// max+k pushes the oldest survivor is v(k), the k-th pushed value, and not
// v(k+1) as counting pushed values alone would suggest.
func TestBoundedHistoryCountsInitialPresent(t *testing.T) {
	const max, k = 5, 3
	r := New(max)
	for i := 1; i <= max+k; i++ {
		r.Push(fmt.Sprintf("v%d", i))
	}

	st := r.State()
	if len(st.Past) != max {
		t.Fatalf("len(past) = %d, want %d", len(st.Past), max)
	}
	// past received "", v1, ..., v(max+k-1); the first k were dropped.
	if want := fmt.Sprintf("v%d", k); st.Past[0] != want {
		t.Errorf("oldest past = %q, want %q", st.Past[0], want)
	}
	if st.Present != fmt.Sprintf("v%d", max+k) {
		t.Errorf("present = %q", st.Present)
	}
}

func TestNothingToUndoRedo(t *testing.T) {
	r := New(3)
	if _, err := r.Undo(); err != ErrNothingToUndo {
		t.Errorf("Undo on empty = %v", err)
	}
	if _, err := r.Redo(); err != ErrNothingToRedo {
		t.Errorf("Redo on empty = %v", err)
	}
	if r.CanUndo() || r.CanRedo() {
		t.Error("empty history reports available steps")
	}
}

func TestPushClearsFuture(t *testing.T) {
	r := New(3)
	r.Push("a")
	r.Push("b")
	r.Undo()
	if !r.CanUndo() {
		t.Error("one more undo should be available")
	}
	if !r.CanRedo() {
		t.Fatal("expected redo to be available")
	}
	r.Push("c")
	if r.CanRedo() {
		t.Error("push must clear the redo stack")
	}
}

func TestFromState(t *testing.T) {
	st := models.HistoryState{Past: []string{"a", "b", "c", "d"}, Present: "e", Future: []string{"f"}}
	r := FromState(2, st)

	got := r.State()
	if len(got.Past) != 2 || got.Past[0] != "c" {
		t.Errorf("past = %v, want [c d]", got.Past)
	}
	if v, _ := r.Redo(); v != "f" {
		t.Errorf("Redo = %q, want f", v)
	}
}
