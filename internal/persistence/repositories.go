package persistence

import (
	"context"
	"time"
)

// UserRepository stores family members.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByName(ctx context.Context, name string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// EventFilter narrows event queries. StartsBefore and EndsAfter describe a
// window: recurring events only need to start before its end, since their
// later instances may still reach it. EndsAfter is inclusive so that
// zero-length events at the window start are returned.
type EventFilter struct {
	OwnerIDs     []string
	StartsBefore *time.Time
	EndsAfter    *time.Time
}

// EventRepository stores base events as whole records.
type EventRepository interface {
	CreateEvent(ctx context.Context, event Event) error
	ReplaceEvent(ctx context.Context, event Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	DeleteEvent(ctx context.Context, id string) error
}
