package testfixtures

import (
	"testing"
	"time"
)

func TestEventFixtureOptions(t *testing.T) {
	start := time.Date(2024, time.April, 1, 7, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	fixture := NewEventFixture(
		WithEventID("evt-9"),
		WithEventTimes(start, start.Add(30*time.Minute)),
		WithEventRecurrence("weekly", 2, "2024-06-01"),
	)

	row := fixture.Persistence()
	if row.ID != "evt-9" || row.UserID != "user-1" {
		t.Fatalf("unexpected identity: %#v", row)
	}
	if row.Start.Location() != time.UTC || row.Start.Hour() != 5 {
		t.Fatalf("start not normalised to UTC: %v", row.Start)
	}
	if row.RecurrenceEndDate == nil || *row.RecurrenceEndDate != "2024-06-01" {
		t.Fatalf("unexpected end date: %v", row.RecurrenceEndDate)
	}

	open := NewEventFixture(WithEventRecurrence("daily", 1, "")).Persistence()
	if open.RecurrenceEndDate != nil {
		t.Fatalf("expected open-ended series, got %v", *open.RecurrenceEndDate)
	}
}

func TestSQLiteHarnessMigrates(t *testing.T) {
	harness := NewSQLiteHarness(t)

	status, err := harness.Pool.MigrationStatus(t.Context())
	if err != nil {
		t.Fatalf("MigrationStatus failed: %v", err)
	}
	if status.PendingCount != 0 || len(status.AppliedMigrations) != 2 {
		t.Fatalf("unexpected migration status: %+v", status)
	}
}
