package scheduler

import (
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2024, time.April, 2, hour, 0, 0, 0, time.UTC)
}

func TestDetectConflicts(t *testing.T) {
	t.Run("owner overlap produces conflict", func(t *testing.T) {
		existing := []Slot{
			{EventID: "dentist", InstanceID: "dentist", OwnerID: "maria", Start: at(9), End: at(10)},
			{EventID: "yoga", InstanceID: "yoga_r_3", OwnerID: "maria", Start: at(9), End: at(11)},
		}
		candidate := []Slot{{EventID: "new", InstanceID: "new", OwnerID: "maria", Start: at(9).Add(30 * time.Minute), End: at(12)}}

		got := DetectConflicts(existing, candidate)
		if len(got) != 2 {
			t.Fatalf("expected 2 conflicts, got %#v", got)
		}
		if got[1].WithInstanceID != "yoga_r_3" || !got[1].Start.Equal(at(9).Add(30*time.Minute)) || !got[1].End.Equal(at(11)) {
			t.Fatalf("unexpected conflict: %#v", got[1])
		}
	})

	t.Run("other owners and the same event are ignored", func(t *testing.T) {
		existing := []Slot{
			{EventID: "football", OwnerID: "olle", Start: at(9), End: at(10)},
			{EventID: "new", OwnerID: "maria", Start: at(9), End: at(10)},
		}
		candidate := []Slot{{EventID: "new", OwnerID: "maria", Start: at(9), End: at(10)}}

		if got := DetectConflicts(existing, candidate); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %#v", got)
		}
	})

	t.Run("touching and all-day slots yield no conflicts", func(t *testing.T) {
		existing := []Slot{
			{EventID: "before", OwnerID: "maria", Start: at(8), End: at(9)},
			{EventID: "birthday", OwnerID: "maria", Start: at(0), End: at(0).Add(24 * time.Hour), AllDay: true},
		}
		candidate := []Slot{{EventID: "new", OwnerID: "maria", Start: at(9), End: at(10)}}

		if got := DetectConflicts(existing, candidate); len(got) != 0 {
			t.Fatalf("expected no conflicts, got %#v", got)
		}
	})

	t.Run("repeated overlaps with one event are reported once", func(t *testing.T) {
		existing := []Slot{
			{EventID: "standup", InstanceID: "standup_r_0", OwnerID: "albin", Start: at(9), End: at(10)},
			{EventID: "standup", InstanceID: "standup_r_1", OwnerID: "albin", Start: at(9).Add(24 * time.Hour), End: at(10).Add(24 * time.Hour)},
		}
		candidate := []Slot{
			{EventID: "new", InstanceID: "new_r_0", OwnerID: "albin", Start: at(9), End: at(10)},
			{EventID: "new", InstanceID: "new_r_1", OwnerID: "albin", Start: at(9).Add(24 * time.Hour), End: at(10).Add(24 * time.Hour)},
		}

		got := DetectConflicts(existing, candidate)
		if len(got) != 1 || got[0].WithInstanceID != "standup_r_0" {
			t.Fatalf("expected a single conflict, got %#v", got)
		}
	})
}
