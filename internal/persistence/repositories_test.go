package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/example/family-calendar/internal/persistence"
	"github.com/example/family-calendar/internal/testfixtures"
)

func newPersistenceUser(opts ...testfixtures.UserOption) persistence.User {
	return testfixtures.NewUserFixture(opts...).Persistence()
}

func newPersistenceEvent(opts ...testfixtures.EventOption) persistence.Event {
	return testfixtures.NewEventFixture(opts...).Persistence()
}

func seedUsers(t *testing.T, harness *testfixtures.SQLiteHarness, users ...persistence.User) {
	t.Helper()
	for _, user := range users {
		if err := harness.Users.CreateUser(context.Background(), user); err != nil {
			t.Fatalf("CreateUser(%s) failed: %v", user.ID, err)
		}
	}
}

func TestUserRepository(t *testing.T) {
	t.Parallel()

	t.Run("creates and reads users", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)

		seedUsers(t, harness,
			newPersistenceUser(testfixtures.WithUserID("user-2"), testfixtures.WithUserName("Bob")),
			newPersistenceUser(),
		)

		fetched, err := harness.Users.GetUser(ctx, "user-1")
		if err != nil {
			t.Fatalf("GetUser failed: %v", err)
		}
		if fetched.Name != "Alice" || fetched.Color != "#3b82f6" {
			t.Fatalf("unexpected user data: %#v", fetched)
		}
		if !fetched.CreatedAt.Equal(testfixtures.ReferenceTime()) {
			t.Fatalf("created_at not preserved: %v", fetched.CreatedAt)
		}

		byName, err := harness.Users.GetUserByName(ctx, "Bob")
		if err != nil {
			t.Fatalf("GetUserByName failed: %v", err)
		}
		if byName.ID != "user-2" {
			t.Fatalf("unexpected user: %#v", byName)
		}

		users, err := harness.Users.ListUsers(ctx)
		if err != nil {
			t.Fatalf("ListUsers failed: %v", err)
		}
		if len(users) != 2 || users[0].Name != "Alice" || users[1].Name != "Bob" {
			t.Fatalf("expected users ordered by name, got %#v", users)
		}
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewSQLiteHarness(t)
		seedUsers(t, harness, newPersistenceUser())

		err := harness.Users.CreateUser(context.Background(), newPersistenceUser(testfixtures.WithUserID("user-2")))
		if !errors.Is(err, persistence.ErrDuplicate) {
			t.Fatalf("expected persistence.ErrDuplicate, got %v", err)
		}
	})

	t.Run("reports missing users", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewSQLiteHarness(t)
		if _, err := harness.Users.GetUser(context.Background(), "ghost"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}
	})
}

func TestEventRepository(t *testing.T) {
	t.Parallel()

	t.Run("round-trips every column", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		seedUsers(t, harness, newPersistenceUser())

		event := newPersistenceEvent(
			testfixtures.WithEventDescription("Bring goggles"),
			testfixtures.WithEventReminder(true, 15),
			testfixtures.WithEventRecurrence("weekly", 2, "2024-06-01"),
		)
		if err := harness.Events.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}

		fetched, err := harness.Events.GetEvent(ctx, event.ID)
		if err != nil {
			t.Fatalf("GetEvent failed: %v", err)
		}
		if fetched.Description == nil || *fetched.Description != "Bring goggles" {
			t.Fatalf("description not preserved: %v", fetched.Description)
		}
		if !fetched.Start.Equal(event.Start) || !fetched.End.Equal(event.End) {
			t.Fatalf("span not preserved: %v - %v", fetched.Start, fetched.End)
		}
		if !fetched.ReminderEnabled || fetched.ReminderMinutes != 15 {
			t.Fatalf("reminder not preserved: %#v", fetched)
		}
		if fetched.RecurrenceType != "weekly" || fetched.RecurrenceInterval != 2 ||
			fetched.RecurrenceEndDate == nil || *fetched.RecurrenceEndDate != "2024-06-01" {
			t.Fatalf("recurrence not preserved: %#v", fetched)
		}
	})

	t.Run("replaces and deletes events", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		seedUsers(t, harness, newPersistenceUser())

		event := newPersistenceEvent(testfixtures.WithEventRecurrence("daily", 1, ""))
		if err := harness.Events.CreateEvent(ctx, event); err != nil {
			t.Fatalf("CreateEvent failed: %v", err)
		}

		event.Title = "Swimming (moved)"
		event.RecurrenceType = "none"
		event.UpdatedAt = event.UpdatedAt.Add(time.Hour)
		if err := harness.Events.ReplaceEvent(ctx, event); err != nil {
			t.Fatalf("ReplaceEvent failed: %v", err)
		}
		fetched, err := harness.Events.GetEvent(ctx, event.ID)
		if err != nil {
			t.Fatalf("GetEvent failed: %v", err)
		}
		if fetched.Title != "Swimming (moved)" || fetched.RecurrenceType != "none" {
			t.Fatalf("unexpected replaced event: %#v", fetched)
		}

		if err := harness.Events.DeleteEvent(ctx, event.ID); err != nil {
			t.Fatalf("DeleteEvent failed: %v", err)
		}
		if err := harness.Events.DeleteEvent(ctx, event.ID); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}
		if err := harness.Events.ReplaceEvent(ctx, event); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound on replace, got %v", err)
		}
	})

	t.Run("rejects unknown owners", func(t *testing.T) {
		t.Parallel()

		harness := testfixtures.NewSQLiteHarness(t)
		err := harness.Events.CreateEvent(context.Background(), newPersistenceEvent(testfixtures.WithEventOwner("ghost")))
		if !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected persistence.ErrForeignKeyViolation, got %v", err)
		}
	})

	t.Run("filters by window and owner", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		harness := testfixtures.NewSQLiteHarness(t)
		seedUsers(t, harness,
			newPersistenceUser(),
			newPersistenceUser(testfixtures.WithUserID("user-2"), testfixtures.WithUserName("Bob")),
		)

		base := testfixtures.ReferenceTime()
		events := []persistence.Event{
			newPersistenceEvent(testfixtures.WithEventID("evt-before"),
				testfixtures.WithEventTimes(base.Add(-48*time.Hour), base.Add(-47*time.Hour))),
			newPersistenceEvent(testfixtures.WithEventID("evt-series"),
				testfixtures.WithEventTimes(base.Add(-72*time.Hour), base.Add(-71*time.Hour)),
				testfixtures.WithEventRecurrence("daily", 1, "")),
			newPersistenceEvent(testfixtures.WithEventID("evt-inside"),
				testfixtures.WithEventTimes(base.Add(2*time.Hour), base.Add(3*time.Hour))),
			newPersistenceEvent(testfixtures.WithEventID("evt-bob"), testfixtures.WithEventOwner("user-2"),
				testfixtures.WithEventTimes(base.Add(time.Hour), base.Add(2*time.Hour))),
			newPersistenceEvent(testfixtures.WithEventID("evt-after"),
				testfixtures.WithEventTimes(base.Add(48*time.Hour), base.Add(49*time.Hour))),
		}
		for _, event := range events {
			if err := harness.Events.CreateEvent(ctx, event); err != nil {
				t.Fatalf("CreateEvent(%s) failed: %v", event.ID, err)
			}
		}

		from, to := base, base.Add(24*time.Hour)
		listed, err := harness.Events.ListEvents(ctx, persistence.EventFilter{StartsBefore: &to, EndsAfter: &from})
		if err != nil {
			t.Fatalf("ListEvents failed: %v", err)
		}
		want := []string{"evt-series", "evt-bob", "evt-inside"}
		if got := eventIDs(listed); !slices.Equal(got, want) {
			t.Fatalf("ListEvents = %v, want %v", got, want)
		}

		owned, err := harness.Events.ListEvents(ctx, persistence.EventFilter{OwnerIDs: []string{"user-2"}})
		if err != nil {
			t.Fatalf("ListEvents by owner failed: %v", err)
		}
		if got := eventIDs(owned); !slices.Equal(got, []string{"evt-bob"}) {
			t.Fatalf("ListEvents by owner = %v", got)
		}
	})
}

func eventIDs(events []persistence.Event) []string {
	ids := make([]string, len(events))
	for i, event := range events {
		ids[i] = event.ID
	}
	return ids
}
