package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/ical"
)

type feedService interface {
	ListEvents(ctx context.Context, ownerIDs []string) ([]calendar.BaseEvent, error)
}

type userLister interface {
	ListUsers(ctx context.Context) ([]calendar.User, error)
}

// FeedHandler serves the iCalendar subscription feed.
type FeedHandler struct {
	events    feedService
	users     userLister
	exporter  *ical.Exporter
	now       func() time.Time
	responder responder
	logger    zerolog.Logger
}

func NewFeedHandler(events feedService, users userLister, exporter *ical.Exporter, now func() time.Time, logger zerolog.Logger) *FeedHandler {
	if now == nil {
		now = time.Now
	}
	return &FeedHandler{
		events:    events,
		users:     users,
		exporter:  exporter,
		now:       now,
		responder: newResponder(logger),
		logger:    logger,
	}
}

// Calendar handles GET /api/calendar.ics?user_id=. A matching If-None-Match
// gets 304 so polling calendar apps skip unchanged feeds.
func (h *FeedHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil || h.users == nil || h.exporter == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	logger := handlerLogger(r.Context(), h.logger, "FeedHandler", "Calendar")
	ownerIDs := ownerFilter(r)

	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	owners := make(map[string]string, len(users))
	for _, user := range users {
		owners[user.ID] = user.Name
	}

	events, err := h.events.ListEvents(r.Context(), ownerIDs)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	feed, err := h.exporter.Export(events, owners, h.now())
	if err != nil {
		logger.Error().Err(err).Msg("failed to render calendar feed")
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	if len(feed.Skipped) > 0 {
		logger.Warn().Strs("event_ids", feed.Skipped).Msg("events left out of feed")
	}

	w.Header().Set("ETag", feed.ETag)
	w.Header().Set("Cache-Control", "no-cache")
	if etagMatches(r.Header.Get("If-None-Match"), feed.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	fileName := ical.FileName("")
	if len(ownerIDs) == 1 {
		fileName = ical.FileName(owners[ownerIDs[0]])
	}
	w.Header().Set("Content-Type", ical.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", fileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(feed.Body); err != nil {
		logger.Warn().Err(err).Msg("failed to write calendar feed")
	}
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
