package signbroker

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name           string
		cursor, length int
		want           int
		wantOK         bool
	}{
		{"empty", 0, 0, -1, false},
		{"empty negative", -3, 0, -1, false},
		{"in range", 1, 3, 1, true},
		{"below zero reads first", -1, 3, 0, true},
		{"past end reads last", 5, 3, 2, true},
		{"exactly length", 3, 3, 2, true},
		{"single", 0, 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Clamp(tt.cursor, tt.length)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Clamp(%d, %d) = %d, %v, want %d, %v", tt.cursor, tt.length, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestStep(t *testing.T) {
	if got := Step(2, ActionNext); got != 3 {
		t.Errorf("Step(2, next) = %d, want 3", got)
	}
	if got := Step(0, ActionPrevious); got != -1 {
		t.Errorf("Step(0, previous) = %d, want -1 (unclamped)", got)
	}
}

func TestParseAction(t *testing.T) {
	for in, want := range map[string]Action{"next": ActionNext, "previous": ActionPrevious} {
		got, err := ParseAction(in)
		if err != nil || got != want {
			t.Errorf("ParseAction(%q) = %v, %v", in, got, err)
		}
		if got.String() != in {
			t.Errorf("String() = %q, want %q", got.String(), in)
		}
	}
	if _, err := ParseAction("sideways"); err == nil {
		t.Error("ParseAction(sideways) succeeded")
	}
}

func TestNavigator_Moves(t *testing.T) {
	n := NewNavigator()
	if _, ok := n.Next(); ok {
		t.Fatal("Next() on empty navigator reported ok")
	}

	if i, ok := n.Sync(3); !ok || i != 0 {
		t.Fatalf("Sync(3) = %d, %v, want 0, true", i, ok)
	}
	n.Next()
	n.Next()
	if i, _ := n.Next(); i != 2 {
		t.Errorf("Next() past the end = %d, want 2", i)
	}
	if i, _ := n.Previous(); i != 1 {
		t.Errorf("Previous() = %d, want 1", i)
	}
	n.Previous()
	if i, _ := n.Previous(); i != 0 {
		t.Errorf("Previous() past the start = %d, want 0", i)
	}
}

func TestNavigator_SyncShrinks(t *testing.T) {
	n := NewNavigator()
	n.Sync(3)
	n.Next()
	n.Next()

	if i, _ := n.Sync(2); i != 1 {
		t.Errorf("Sync(2) = %d, want 1", i)
	}
	if i, ok := n.Sync(0); ok || i != -1 {
		t.Errorf("Sync(0) = %d, %v, want parked", i, ok)
	}
	if i, ok := n.Sync(4); !ok || i != 0 {
		t.Errorf("Sync(4) after park = %d, %v, want 0, true", i, ok)
	}
}

func TestNavigator_PropertyCursorInvariant(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	// op codes: 0 enqueue, 1 remove at cursor, 2 remove first, 3 next, 4 previous
	properties.Property("cursor stays in range", prop.ForAll(
		func(ops []int) bool {
			n := NewNavigator()
			length := 0
			for _, op := range ops {
				switch op {
				case 0:
					length++
					n.Sync(length)
				case 1, 2:
					if length > 0 {
						length--
						n.Sync(length)
					}
				case 3:
					n.Next()
				case 4:
					n.Previous()
				}
				i, ok := n.Index(length)
				if length == 0 {
					if ok || i != -1 {
						return false
					}
				} else if !ok || i < 0 || i >= length {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 4)),
	))

	properties.TestingRun(t)
}

func TestReview_RemoveLastClampsToNewLast(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthority(t, &fakeVault{})
	r := NewReview(a)
	defer r.Close()

	for _, d := range []string{"0x01", "0x02", "0x03"} {
		submit(t, a, rawPayload(d))
	}
	r.Navigate(ActionNext)
	last, ok := r.Navigate(ActionNext)
	if !ok || last.ID != 3 {
		t.Fatalf("Navigate() = %d, %v, want request 3", last.ID, ok)
	}

	if err := r.Reject(ctx); err != nil {
		t.Fatalf("Reject() error = %v", err)
	}

	idx, total := r.Position()
	if idx != 1 || total != 2 {
		t.Errorf("Position() = %d/%d, want 1/2", idx, total)
	}
	cur, ok := r.Current()
	if !ok || cur.ID != 2 {
		t.Errorf("Current() = %d, %v, want request 2", cur.ID, ok)
	}
}

func TestReview_RemovedUnderCursorWhileNewArrives(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthority(t, &fakeVault{})
	r := NewReview(a)
	defer r.Close()

	submit(t, a, rawPayload("0x01"))
	submit(t, a, rawPayload("0x02"))
	r.Navigate(ActionNext) // cursor on request 2

	if _, err := r.Approve(ctx, testSecret); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	submit(t, a, rawPayload("0x03"))

	// the removal clamped the cursor to the new last index before 3 arrived
	cur, ok := r.Current()
	if !ok || cur.ID != 1 {
		t.Errorf("Current() = %d, %v, want request 1", cur.ID, ok)
	}
	if idx, total := r.Position(); idx != 0 || total != 2 {
		t.Errorf("Position() = %d/%d, want 0/2", idx, total)
	}
}

func TestReview_Empty(t *testing.T) {
	ctx := context.Background()
	a := newTestAuthority(t, &fakeVault{})
	r := NewReview(a)
	defer r.Close()

	if _, ok := r.Current(); ok {
		t.Error("Current() on empty queue reported ok")
	}
	if _, ok := r.Navigate(ActionNext); ok {
		t.Error("Navigate() on empty queue reported ok")
	}
	if idx, total := r.Position(); idx != -1 || total != 0 {
		t.Errorf("Position() = %d/%d, want -1/0", idx, total)
	}
	if _, err := r.Approve(ctx, testSecret); err == nil {
		t.Error("Approve() on empty queue succeeded")
	}
	if err := r.Reject(ctx); err == nil {
		t.Error("Reject() on empty queue succeeded")
	}
}

func TestReview_Snapshot(t *testing.T) {
	a := newTestAuthority(t, &fakeVault{})
	r := NewReview(a)
	defer r.Close()

	if list, i := r.Snapshot(); len(list) != 0 || i != -1 {
		t.Fatalf("Snapshot() on empty queue = %d items, index %d", len(list), i)
	}

	submit(t, a, rawPayload("0x01"))
	submit(t, a, rawPayload("0x02"))
	r.Navigate(ActionNext)

	list, i := r.Snapshot()
	if len(list) != 2 || i != 1 || list[i].ID != 2 {
		t.Errorf("Snapshot() = %d items, index %d, want request 2 at index 1", len(list), i)
	}
}
