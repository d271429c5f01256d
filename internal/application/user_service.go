package application

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/persistence"
)

const (
	userServiceName   = "UserService"
	maxUserNameLength = 64
	userFieldName     = "name"
	userFieldColor    = "color"
)

var hexColor = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// UserService manages family members.
type UserService struct {
	users       UserStore
	logger      zerolog.Logger
	idGenerator func() string
	now         func() time.Time
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserStore, logger zerolog.Logger, idGenerator func() string, now func() time.Time) *UserService {
	if idGenerator == nil {
		idGenerator = uuid.NewString
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, logger: logger, idGenerator: idGenerator, now: now}
}

// CreateUser validates input and persists a new family member.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (calendar.User, error) {
	if s == nil {
		return calendar.User{}, fmt.Errorf("UserService is nil")
	}
	logger := serviceLogger(ctx, s.logger, userServiceName, "CreateUser")

	normalized := normalizeUserInput(params)
	if vErr := validateUserInput(normalized); vErr.HasErrors() {
		return calendar.User{}, vErr
	}

	user := calendar.User{
		ID:        s.idGenerator(),
		Name:      normalized.Name,
		Color:     normalized.Color,
		CreatedAt: s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, persistence.ErrDuplicate) {
			return calendar.User{}, fieldError(userFieldName, "name is already taken")
		}
		logger.Error().Err(err).Msg("failed to store user")
		return calendar.User{}, err
	}
	logger.Info().Str("user_id", user.ID).Str("name", user.Name).Msg("user created")
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id string) (calendar.User, error) {
	if s == nil {
		return calendar.User{}, fmt.Errorf("UserService is nil")
	}
	return s.users.GetUser(ctx, id)
}

// ListUsers returns every family member ordered by name.
func (s *UserService) ListUsers(ctx context.Context) ([]calendar.User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	return s.users.ListUsers(ctx)
}

// SeedUsers creates the given users unless a user with the same name exists,
// and returns how many were created.
func (s *UserService) SeedUsers(ctx context.Context, seed []CreateUserParams) (int, error) {
	if s == nil {
		return 0, fmt.Errorf("UserService is nil")
	}
	logger := serviceLogger(ctx, s.logger, userServiceName, "SeedUsers")

	created := 0
	for _, params := range seed {
		name := strings.TrimSpace(params.Name)
		_, err := s.users.GetUserByName(ctx, name)
		if err == nil {
			continue
		}
		if !errors.Is(err, ErrNotFound) {
			return created, err
		}
		if _, err := s.CreateUser(ctx, params); err != nil {
			return created, fmt.Errorf("seed user %q: %w", name, err)
		}
		created++
	}
	logger.Info().Int("created", created).Int("requested", len(seed)).Msg("seeded users")
	return created, nil
}

func normalizeUserInput(input CreateUserParams) CreateUserParams {
	return CreateUserParams{
		Name:  strings.TrimSpace(input.Name),
		Color: strings.ToUpper(strings.TrimSpace(input.Color)),
	}
}

func validateUserInput(input CreateUserParams) *ValidationError {
	vErr := &ValidationError{}

	switch {
	case input.Name == "":
		vErr.add(userFieldName, "name is required")
	case utf8.RuneCountInString(input.Name) > maxUserNameLength:
		vErr.add(userFieldName, fmt.Sprintf("name must be at most %d characters", maxUserNameLength))
	}

	if !hexColor.MatchString(input.Color) {
		vErr.add(userFieldColor, "color must be a #RRGGBB value")
	}

	return vErr
}
