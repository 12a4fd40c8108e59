package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"liveclass/pkg/interfaces"
	"liveclass/pkg/types"
)

func fixedClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	current := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		current = current.Add(time.Second)
		return current
	}
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.now = fixedClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	return r
}

// Functional Validation Tests - Idempotent start
func TestRegistry_StartIsIdempotent(t *testing.T) {
	r := newTestRegistry()

	first, created := r.Start("c1", "instructor-a", types.VisibilityPublic, "Course")
	if !created {
		t.Fatal("First start should create the session")
	}
	if _, err := r.AddAttendee("c1", "u1"); err != nil {
		t.Fatalf("AddAttendee failed: %v", err)
	}

	second, created := r.Start("c1", "someone-else", types.VisibilityPrivate, "")
	if created {
		t.Error("Second start should return the existing session")
	}
	if !second.StartTime.Equal(first.StartTime) {
		t.Errorf("Start time changed: %v != %v", second.StartTime, first.StartTime)
	}
	if second.InstructorID != "instructor-a" || !second.IsPublic() || second.Title != "Course" {
		t.Errorf("Existing entry should be unchanged, got %+v", second)
	}
	if second.AttendeeCount() != 1 {
		t.Errorf("Attendee set should be unaffected, got %d", second.AttendeeCount())
	}
	if r.Count() != 1 {
		t.Errorf("Expected one live session, got %d", r.Count())
	}
}

func TestRegistry_SnapshotsAreIsolated(t *testing.T) {
	r := newTestRegistry()
	r.Start("c1", "instructor-a", "", "")

	snapshot, _ := r.Get("c1")
	snapshot.Attendees["intruder"] = struct{}{}

	current, _ := r.Get("c1")
	if current.AttendeeCount() != 0 {
		t.Error("Mutating a snapshot must not change registry state")
	}
}

// Functional Validation Tests - Attendance
func TestRegistry_AttendeeCounting(t *testing.T) {
	r := newTestRegistry()

	if _, err := r.AddAttendee("missing", "u1"); !errors.Is(err, interfaces.ErrNotLive) {
		t.Fatalf("Expected ErrNotLive, got %v", err)
	}
	if count := r.RemoveAttendee("missing", "u1"); count != 0 {
		t.Errorf("RemoveAttendee on missing session should report 0, got %d", count)
	}

	r.Start("c1", "instructor-a", "", "")
	steps := []struct {
		join  bool
		user  string
		count int
	}{
		{true, "u1", 1},
		{true, "u1", 1},
		{true, "u2", 2},
		{false, "u3", 2},
		{false, "u1", 1},
		{false, "u1", 0},
		{false, "u2", 0},
	}

	for i, step := range steps {
		var count int
		if step.join {
			var err error
			count, err = r.AddAttendee("c1", step.user)
			if err != nil {
				t.Fatalf("step %d: AddAttendee failed: %v", i, err)
			}
		} else {
			count = r.RemoveAttendee("c1", step.user)
		}
		if count != step.count {
			t.Errorf("step %d: expected count %d, got %d", i, step.count, count)
		}
	}
}

// Functional Validation Tests - Removal
func TestRegistry_RemoveReturnsFinalState(t *testing.T) {
	r := newTestRegistry()
	r.Start("c1", "instructor-a", "", "")
	_, _ = r.AddAttendee("c1", "u1")

	state, ok := r.Remove("c1")
	if !ok || state.AttendeeCount() != 1 {
		t.Fatalf("Expected final state with one attendee, got %v %v", state, ok)
	}
	if r.Exists("c1") {
		t.Error("Session should be gone after Remove")
	}
	if _, ok := r.Remove("c1"); ok {
		t.Error("Second Remove should report absent")
	}
}

func TestRegistry_RemoveIf(t *testing.T) {
	r := newTestRegistry()
	r.Start("c1", "instructor-a", "", "")

	denied := errors.New("denied")
	if _, err := r.RemoveIf("c1", func(*types.SessionState) error { return denied }); !errors.Is(err, denied) {
		t.Fatalf("Expected check error, got %v", err)
	}
	if !r.Exists("c1") {
		t.Fatal("Rejected RemoveIf must leave the session live")
	}

	if _, err := r.RemoveIf("c1", nil); err != nil {
		t.Fatalf("RemoveIf failed: %v", err)
	}
	if _, err := r.RemoveIf("c1", nil); !errors.Is(err, interfaces.ErrNotLive) {
		t.Errorf("Expected ErrNotLive, got %v", err)
	}
}

func TestRegistry_ListAllOrderedByStartTime(t *testing.T) {
	r := newTestRegistry()
	for _, id := range []string{"c3", "c1", "c2"} {
		r.Start(id, "instructor-a", "", "")
	}

	list := r.ListAll()
	if len(list) != 3 {
		t.Fatalf("Expected 3 sessions, got %d", len(list))
	}
	for i, want := range []string{"c3", "c1", "c2"} {
		if list[i].SessionID != want {
			t.Errorf("position %d: expected %s, got %s", i, want, list[i].SessionID)
		}
	}
}

// Technical Validation Tests - Concurrency
func TestRegistry_ConcurrentStartCreatesOnce(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	created := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, ok := r.Start("c1", fmt.Sprintf("instructor-%d", i), "", "")
			if ok {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if created != 1 {
		t.Errorf("Expected exactly one creation, got %d", created)
	}
}

func TestRegistry_ConcurrentJoinLeaveNeverNegative(t *testing.T) {
	r := NewRegistry()
	r.Start("c1", "instructor-a", "", "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(user string) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_, _ = r.AddAttendee("c1", user)
				if count := r.RemoveAttendee("c1", user); count < 0 {
					t.Errorf("negative count %d", count)
				}
			}
		}(fmt.Sprintf("u%d", i))
	}
	wg.Wait()

	state, _ := r.Get("c1")
	if state.AttendeeCount() != 0 {
		t.Errorf("Expected empty attendee set, got %d", state.AttendeeCount())
	}
}

func TestNewAdHocID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := newAdHocID()
		if err != nil {
			t.Fatalf("newAdHocID failed: %v", err)
		}
		if len(id) != adHocIDLength || !types.IsValidSessionID(id) {
			t.Fatalf("Unexpected id %q", id)
		}
		seen[id] = true
	}
	if len(seen) < 99 {
		t.Errorf("Expected random ids, got %d distinct of 100", len(seen))
	}
}
