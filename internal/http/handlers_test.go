package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/family-calendar/internal/calendar"
	"github.com/example/family-calendar/internal/ical"
	"github.com/example/family-calendar/internal/testfixtures"
)

type routeSample struct {
	method string
	route  string
	status int
}

type recordingObserver struct {
	mu      sync.Mutex
	samples []routeSample
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.samples = append(o.samples, routeSample{method: method, route: route, status: status})
}

type apiFixture struct {
	factory  *testfixtures.ServiceFactory
	handler  http.Handler
	observer *recordingObserver
	userID   string
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	factory := testfixtures.NewServiceFactory(t)
	maria := factory.SeedUser(t, "maria")
	calendarService := factory.CalendarService()
	userService := factory.UserService()
	logger := zerolog.Nop()
	now := factory.Clock.NowFunc()
	observer := &recordingObserver{}

	handler := NewRouter(RouterConfig{
		Users:  NewUserHandler(userService, logger),
		Events: NewEventHandler(calendarService, logger),
		Occurrences: NewOccurrenceHandler(calendarService, OccurrenceWindow{
			Past:   24 * time.Hour,
			Future: 14 * 24 * time.Hour,
		}, now, logger),
		Feed:     NewFeedHandler(calendarService, userService, ical.NewExporter("Family", factory.Codec, 0), now, logger),
		Observer: observer,
		Logger:   logger,
	})
	return &apiFixture{factory: factory, handler: handler, observer: observer, userID: maria.ID}
}

func (f *apiFixture) do(t *testing.T, method, target string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) lesson() calendar.Record {
	interval := 1
	return calendar.Record{
		Title:              "Swimming lesson",
		StartTime:          "2024-03-30T10:00:00Z",
		EndTime:            "2024-03-30T11:00:00Z",
		UserID:             f.userID,
		RecurrenceType:     "weekly",
		RecurrenceInterval: &interval,
		RecurrenceEndDate:  "2024-04-20",
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	t.Parallel()
	api := newAPIFixture(t)

	rec := api.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy"}`, rec.Body.String())
}

func TestUserHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create normalizes and returns the user", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/api/users", map[string]string{"name": " olle ", "color": "#f6bf26"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		got := decode[userResponse](t, rec)
		assert.Equal(t, "user-002", got.User.ID)
		assert.Equal(t, "olle", got.User.Name)
		assert.Equal(t, "#F6BF26", got.User.Color)

		rec = api.do(t, http.MethodGet, "/api/users", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[listUsersResponse](t, rec).Users, 2)
	})

	t.Run("invalid fields map to 422", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/api/users", map[string]string{"name": "", "color": "red"}, nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		got := decode[errorResponse](t, rec)
		assert.Contains(t, got.Errors, "name")
		assert.Contains(t, got.Errors, "color")
	})

	t.Run("malformed body maps to 400", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		req := httptest.NewRequest(http.MethodPost, "/api/users", strings.NewReader("{"))
		rec := httptest.NewRecorder()
		api.handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown user maps to 404", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodGet, "/api/users/ghost", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = api.do(t, http.MethodGet, "/api/users/"+api.userID, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "maria", decode[userResponse](t, rec).User.Name)
	})
}

func TestEventHandlers(t *testing.T) {
	t.Parallel()

	t.Run("create, read, replace and delete", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		rec := api.do(t, http.MethodPost, "/api/events", api.lesson(), nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		created := decode[eventResponse](t, rec)
		assert.Equal(t, "evt-001", created.Event.ID)
		assert.Equal(t, "weekly", created.Event.RecurrenceType)
		assert.False(t, created.Coalesced)

		rec = api.do(t, http.MethodGet, "/api/events/evt-001", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Swimming lesson", decode[eventResponse](t, rec).Event.Title)

		moved := api.lesson()
		moved.Title = "Swimming lesson (pool B)"
		rec = api.do(t, http.MethodPut, "/api/events/evt-001", moved, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "Swimming lesson (pool B)", decode[eventResponse](t, rec).Event.Title)

		rec = api.do(t, http.MethodGet, "/api/events?user_id="+api.userID, nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[listEventsResponse](t, rec).Events, 1)

		rec = api.do(t, http.MethodDelete, "/api/events/evt-001", nil, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		rec = api.do(t, http.MethodGet, "/api/events/evt-001", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec = api.do(t, http.MethodDelete, "/api/events/evt-001", nil, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("fractional seconds are kept on the wire", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		input := api.lesson()
		input.StartTime = "2024-03-30T10:00:00.25Z"
		input.EndTime = "2024-03-30T11:00:00.125Z"
		rec := api.do(t, http.MethodPost, "/api/events", input, nil)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		rec = api.do(t, http.MethodGet, "/api/events/evt-001", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		event := decode[eventResponse](t, rec).Event
		assert.Equal(t, "2024-03-30T10:00:00.25Z", event.StartTime)
		assert.Equal(t, "2024-03-30T11:00:00.125Z", event.EndTime)

		rec = api.do(t, http.MethodGet, "/api/occurrences?start=2024-03-30T00:00:00Z&end=2024-03-31T00:00:00Z", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		occs := decode[occurrencesResponse](t, rec).Occurrences
		require.Len(t, occs, 1)
		assert.Equal(t, "2024-03-30T10:00:00.25Z", occs[0].Start)
		assert.Equal(t, "2024-03-30T11:00:00.125Z", occs[0].End)
	})

	t.Run("idempotency key coalesces retries", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)
		headers := map[string]string{IdempotencyKeyHeader: "session-42"}

		rec := api.do(t, http.MethodPost, "/api/events", api.lesson(), headers)
		require.Equal(t, http.StatusCreated, rec.Code)

		rec = api.do(t, http.MethodPost, "/api/events", api.lesson(), headers)
		require.Equal(t, http.StatusOK, rec.Code)
		repeat := decode[eventResponse](t, rec)
		assert.True(t, repeat.Coalesced)
		assert.Equal(t, "evt-001", repeat.Event.ID)

		changed := api.lesson()
		changed.Title = "Something else"
		rec = api.do(t, http.MethodPost, "/api/events", changed, headers)
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "idempotency_conflict", decode[errorResponse](t, rec).ErrorCode)
	})

	t.Run("validation errors list every field", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		input := api.lesson()
		input.Title = " "
		input.ReminderEnabled = true
		input.ReminderMinutes = 7
		rec := api.do(t, http.MethodPost, "/api/events", input, nil)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		got := decode[errorResponse](t, rec)
		assert.Contains(t, got.Errors, calendar.FieldTitle)
		assert.Contains(t, got.Errors, calendar.FieldReminderMinutes)
	})

	t.Run("conflicting events carry warnings", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		football := calendar.Record{Title: "Football", StartTime: "2024-04-02T15:00:00Z", EndTime: "2024-04-02T16:00:00Z", UserID: api.userID}
		rec := api.do(t, http.MethodPost, "/api/events", football, nil)
		require.Equal(t, http.StatusCreated, rec.Code)

		piano := calendar.Record{Title: "Piano", StartTime: "2024-04-02T15:30:00Z", EndTime: "2024-04-02T16:30:00Z", UserID: api.userID}
		rec = api.do(t, http.MethodPost, "/api/events", piano, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		warnings := decode[eventResponse](t, rec).Warnings
		require.Len(t, warnings, 1)
		assert.Equal(t, "evt-001", warnings[0].EventID)
		assert.Equal(t, "2024-04-02T15:30:00Z", warnings[0].Start)
		assert.Equal(t, "2024-04-02T16:00:00Z", warnings[0].End)
	})
}

func TestOccurrenceHandler(t *testing.T) {
	t.Parallel()

	query := func(values map[string]string) string {
		q := url.Values{}
		for k, v := range values {
			q.Set(k, v)
		}
		return "/api/occurrences?" + q.Encode()
	}

	t.Run("expands recurring events across DST", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)
		require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/events", api.lesson(), nil).Code)

		rec := api.do(t, http.MethodGet, query(map[string]string{
			"start": "2024-03-29T00:00:00Z",
			"end":   "2024-04-15T00:00:00Z",
			"tz":    "Europe/Stockholm",
		}), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[occurrencesResponse](t, rec)
		assert.Equal(t, "Europe/Stockholm", got.Timezone)
		require.Len(t, got.Occurrences, 3)

		first, second := got.Occurrences[0], got.Occurrences[1]
		assert.Equal(t, "evt-001", first.EventID)
		assert.Equal(t, "2024-03-30T10:00:00Z", first.Start)
		assert.Equal(t, "2024-03-30T11:00:00", first.LocalStart)
		assert.Equal(t, "2024-04-06T12:00:00", second.LocalStart)
		assert.Equal(t, "evt-001_r_1", second.InstanceID)
		assert.True(t, first.IsRecurringInstance)
	})

	t.Run("reads offset-less bounds in the requested zone", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)
		require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/events", api.lesson(), nil).Code)

		rec := api.do(t, http.MethodGet, query(map[string]string{
			"start": "2024-03-30T00:00",
			"end":   "2024-03-31T00:00",
			"tz":    "America/New_York",
		}), nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[occurrencesResponse](t, rec)
		assert.Equal(t, "2024-03-30T04:00:00Z", got.Window.Start)
		require.Len(t, got.Occurrences, 1)
		assert.Equal(t, "2024-03-30T06:00:00", got.Occurrences[0].LocalStart)
	})

	t.Run("defaults the window around now", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)
		require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/events", api.lesson(), nil).Code)

		rec := api.do(t, http.MethodGet, "/api/occurrences", nil, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		got := decode[occurrencesResponse](t, rec)
		assert.Equal(t, "2024-03-29T08:00:00Z", got.Window.Start)
		assert.Equal(t, "2024-04-13T08:00:00Z", got.Window.End)
		assert.Equal(t, testfixtures.FixtureTimezone, got.Timezone)
		assert.Len(t, got.Occurrences, 2)
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		t.Parallel()
		api := newAPIFixture(t)

		cases := []struct {
			name   string
			params map[string]string
			code   string
		}{
			{name: "only start", params: map[string]string{"start": "2024-03-29T00:00:00Z"}, code: "invalid_window"},
			{name: "inverted", params: map[string]string{"start": "2024-04-02T00:00:00Z", "end": "2024-04-01T00:00:00Z"}, code: "invalid_window"},
			{name: "unknown zone", params: map[string]string{"tz": "Mars/Olympus"}, code: "unknown_timezone"},
			{name: "bad timestamp", params: map[string]string{"start": "yesterday", "end": "today"}, code: "invalid_timestamp"},
		}
		for _, tc := range cases {
			rec := api.do(t, http.MethodGet, query(tc.params), nil, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, tc.name)
			assert.Equal(t, tc.code, decode[errorResponse](t, rec).ErrorCode, tc.name)
		}
	})
}

func TestFeedHandler(t *testing.T) {
	t.Parallel()
	api := newAPIFixture(t)
	require.Equal(t, http.StatusCreated, api.do(t, http.MethodPost, "/api/events", api.lesson(), nil).Code)

	rec := api.do(t, http.MethodGet, "/api/calendar.ics?user_id="+api.userID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ical.ContentType, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "famcal-maria.ics")
	body := rec.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "SUMMARY:Swimming lesson")
	assert.Contains(t, body, "RRULE:FREQ=WEEKLY")

	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)
	rec = api.do(t, http.MethodGet, "/api/calendar.ics?user_id="+api.userID, nil, map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Empty(t, rec.Body.String())
}
