package testfixtures

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/timecodec"
)

// FixtureTimezone is the deployment zone used by ServiceFactory.
const FixtureTimezone = "Europe/Stockholm"

// ServiceFactory wires application services over a fresh SQLite harness
// with a deterministic clock and id generators.
type ServiceFactory struct {
	Harness  *SQLiteHarness
	Store    *application.RepositoryStore
	Codec    *timecodec.Codec
	Clock    *Clock
	EventIDs *IDGenerator
	UserIDs  *IDGenerator
}

func NewServiceFactory(tb testing.TB) *ServiceFactory {
	tb.Helper()

	codec, err := timecodec.Load(FixtureTimezone)
	if err != nil {
		tb.Fatalf("failed to load %s: %v", FixtureTimezone, err)
	}
	harness := NewSQLiteHarness(tb)
	return &ServiceFactory{
		Harness:  harness,
		Store:    application.NewRepositoryStore(harness.Events, harness.Users),
		Codec:    codec,
		Clock:    NewClock(ReferenceTime()),
		EventIDs: NewIDGenerator("evt"),
		UserIDs:  NewIDGenerator("user"),
	}
}

// CalendarService builds a service; options may override any dependency.
func (f *ServiceFactory) CalendarService(opts ...func(*application.CalendarDeps)) *application.CalendarService {
	deps := application.CalendarDeps{
		Events:      f.Store,
		Users:       f.Store,
		Codec:       f.Codec,
		Logger:      zerolog.Nop(),
		IDGenerator: f.EventIDs.NextFunc(),
		Now:         f.Clock.NowFunc(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return application.NewCalendarService(deps)
}

func (f *ServiceFactory) UserService() *application.UserService {
	return application.NewUserService(f.Store, zerolog.Nop(), f.UserIDs.NextFunc(), f.Clock.NowFunc())
}

// SeedUser creates a user named name and returns it.
func (f *ServiceFactory) SeedUser(tb testing.TB, name string) calendar.User {
	tb.Helper()
	user, err := f.UserService().CreateUser(context.Background(), application.CreateUserParams{Name: name, Color: "#33B679"})
	if err != nil {
		tb.Fatalf("failed to seed user %q: %v", name, err)
	}
	return user
}
