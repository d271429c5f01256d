package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/family-calendar/internal/logging"
)

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("assigns an id and logs the outcome", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		base := logging.NewWithWriter(&buf, "famcal", "info")

		var seen string
		handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := RequestIDFromContext(r.Context())
			require.True(t, ok)
			seen = id
			logger := logging.FromContext(r.Context())
			logger.Info().Msg("inside handler")
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events", nil))

		assert.Equal(t, http.StatusTeapot, rec.Code)
		id := rec.Header().Get(RequestIDHeader)
		assert.Equal(t, seen, id)
		_, err := uuid.Parse(id)
		assert.NoError(t, err)

		out := buf.String()
		assert.Contains(t, out, `"message":"inside handler"`)
		assert.Contains(t, out, `"request_id":"`+id+`"`)
		assert.Contains(t, out, `"status":418`)
	})

	t.Run("keeps a client supplied id", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		handler := RequestLogger(logging.NewWithWriter(&buf, "famcal", "info"))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, "trace-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, "trace-123", rec.Header().Get(RequestIDHeader))
	})
}

func TestRecoverer(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	handler := Recoverer(logging.NewWithWriter(&buf, "famcal", "info"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error_code":"unexpected","message":"internal server error"}`, rec.Body.String())
	assert.Contains(t, buf.String(), "recovered from panic")
}

func TestInstrument(t *testing.T) {
	t.Parallel()
	observer := &recordingObserver{}
	router := mux.NewRouter()
	router.Use(Instrument(observer))
	router.HandleFunc("/api/events/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}).Methods(http.MethodGet)

	for _, id := range []string{"evt-001", "evt-002"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events/"+id, nil))
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	require.Len(t, observer.samples, 2)
	for _, sample := range observer.samples {
		assert.Equal(t, routeSample{method: http.MethodGet, route: "/api/events/{id}", status: http.StatusAccepted}, sample)
	}
}

func TestRouterCORS(t *testing.T) {
	t.Parallel()
	handler := NewRouter(RouterConfig{CORSOrigins: []string{"https://family.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/events", nil)
	req.Header.Set("Origin", "https://family.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://family.example", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://elsewhere.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
