package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/application"
	"github.com/example/family-calendar/internal/calendar"
)

type userService interface {
	CreateUser(ctx context.Context, params application.CreateUserParams) (calendar.User, error)
	GetUser(ctx context.Context, id string) (calendar.User, error)
	ListUsers(ctx context.Context) ([]calendar.User, error)
}

type UserHandler struct {
	service   userService
	responder responder
	logger    zerolog.Logger
}

func NewUserHandler(service userService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{service: service, responder: newResponder(logger), logger: logger}
}

func (h *UserHandler) log(ctx context.Context, operation string) zerolog.Logger {
	return handlerLogger(ctx, h.logger, "UserHandler", operation)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := h.log(r.Context(), "Create")
	var req userRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn().Err(err).Str("error_kind", "bad_request").Msg("failed to decode user request")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	user, err := h.service.CreateUser(r.Context(), application.CreateUserParams{Name: req.Name, Color: req.Color})
	if err != nil {
		logger.Warn().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("user creation failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.Info().Str("user_id", user.ID).Msg("user created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidUserID)
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, userResponse{User: toUserDTO(user)})
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		logger := h.log(r.Context(), "List")
		logger.Error().Err(err).Str("error_kind", application.ErrorKind(err)).Msg("user list failed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, listUsersResponse{Users: toUserDTOs(users)})
}

type userRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

type userResponse struct {
	User userDTO `json:"user"`
}

type listUsersResponse struct {
	Users []userDTO `json:"users"`
}

type userDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	CreatedAt string `json:"created_at,omitempty"`
}

func toUserDTO(user calendar.User) userDTO {
	dto := userDTO{ID: user.ID, Name: user.Name, Color: user.Color}
	if !user.CreatedAt.IsZero() {
		dto.CreatedAt = user.CreatedAt.UTC().Format(calendar.TimestampLayout)
	}
	return dto
}

func toUserDTOs(users []calendar.User) []userDTO {
	out := make([]userDTO, 0, len(users))
	for _, user := range users {
		out = append(out, toUserDTO(user))
	}
	return out
}
