package http

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

type RouterConfig struct {
	Users       *UserHandler
	Events      *EventHandler
	Occurrences *OccurrenceHandler
	Feed        *FeedHandler
	// Metrics is mounted on /metrics when set.
	Metrics  http.Handler
	Observer RequestObserver
	// CORSOrigins lists allowed browser origins; "*" allows any.
	CORSOrigins []string
	Logger      zerolog.Logger
}

// NewRouter wires the API routes. The middleware order, outermost first, is
// CORS, request logging, panic recovery, then per-route instrumentation.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.Use(Instrument(cfg.Observer))

	router.HandleFunc("/health", health).Methods(http.MethodGet)
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	if cfg.Users != nil {
		api.HandleFunc("/users", cfg.Users.List).Methods(http.MethodGet)
		api.HandleFunc("/users", cfg.Users.Create).Methods(http.MethodPost)
		api.HandleFunc("/users/{id}", cfg.Users.Get).Methods(http.MethodGet)
	}
	if cfg.Events != nil {
		api.HandleFunc("/events", cfg.Events.List).Methods(http.MethodGet)
		api.HandleFunc("/events", cfg.Events.Create).Methods(http.MethodPost)
		api.HandleFunc("/events/{id}", cfg.Events.Get).Methods(http.MethodGet)
		api.HandleFunc("/events/{id}", cfg.Events.Replace).Methods(http.MethodPut)
		api.HandleFunc("/events/{id}", cfg.Events.Delete).Methods(http.MethodDelete)
	}
	if cfg.Occurrences != nil {
		api.HandleFunc("/occurrences", cfg.Occurrences.List).Methods(http.MethodGet)
	}
	if cfg.Feed != nil {
		api.HandleFunc("/calendar.ics", cfg.Feed.Calendar).Methods(http.MethodGet)
	}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", IdempotencyKeyHeader, RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader, "ETag"},
		MaxAge:         300,
	})

	var handler http.Handler = router
	handler = Recoverer(cfg.Logger)(handler)
	handler = RequestLogger(cfg.Logger)(handler)
	return c.Handler(handler)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}` + "\n"))
}
