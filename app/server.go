package app

import (
	"context"
	"net/http"

	"github.com/romangluhoedov/GoogleDocsAPI/pkg/auth"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/config"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/db"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/events"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/gdocs"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/handlers"
	"github.com/romangluhoedov/GoogleDocsAPI/pkg/jobs"

	"github.com/gorilla/mux"
	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("docmerge.app")

// Server represents the application server
type Server struct {
	router   *mux.Router
	hub      *events.Hub
	handlers *handlers.Handlers
	store    *db.SQLStore
	config   *config.Config
}

// NewServer wires storage, credentials, the document client and the routes
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	store, err := db.NewStore(cfg.DatabaseDriver, cfg.GetDatabaseConnectionString())
	if err != nil {
		return nil, err
	}

	provider := auth.NewProvider(cfg.OAuth, store)
	client, err := gdocs.NewClient(ctx, provider.TokenSource(ctx), cfg.ApplicationName)
	if err != nil {
		store.Close()
		return nil, err
	}

	hub := events.NewHub()
	go hub.Run()

	manager := jobs.NewManager(client, store, hub, cfg.ShareCopies)
	h := handlers.NewHandlers(manager, provider, hub)

	r := mux.NewRouter()
	h.Routes(r)

	return &Server{
		router:   r,
		hub:      hub,
		handlers: h,
		store:    store,
		config:   cfg,
	}, nil
}

// Start starts the server
func (s *Server) Start(addr string) error {
	if addr == "" {
		addr = s.config.GetServerAddr()
	}
	log.Noticef("starting document merge server on %s", addr)
	// Preflight requests are answered before mux does method matching,
	// which would otherwise return 405.
	return http.ListenAndServe(addr, corsMiddleware(s.config.AllowedOrigins, s.router))
}

// corsMiddleware handles CORS headers and responds to preflight requests
// at the outer layer so they don't get rejected by method-restricted routes.
// With no allowed origins configured every origin is accepted.
func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	origins := make(map[string]bool, len(allowed))
	for _, origin := range allowed {
		origins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			log.Debugf("CORS preflight received: %s %s Origin=%s", r.Method, r.URL.Path, r.Header.Get("Origin"))
		}
		origin := r.Header.Get("Origin")
		switch {
		case origin == "" && len(origins) == 0:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && (len(origins) == 0 || origins[origin]):
			// Reflect the origin for stricter CORS (avoids some browser issues with credentials)
			w.Header().Set("Access-Control-Allow-Origin", origin)
		case origin != "":
			log.Infof("CORS origin %s not allowed", origin)
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")

		// If the browser asked for specific headers, echo them back; otherwise allow common headers
		if reqHeaders := r.Header.Get("Access-Control-Request-Headers"); reqHeaders != "" {
			w.Header().Set("Access-Control-Allow-Headers", reqHeaders)
		} else {
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}

		// Allow caching preflight for a short duration
		w.Header().Set("Access-Control-Max-Age", "600")
		w.Header().Add("Vary", "Origin")
		w.Header().Add("Vary", "Access-Control-Request-Headers")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Close stops event delivery and closes the database
func (s *Server) Close() error {
	s.hub.Stop()
	return s.store.Close()
}
