// Package web is the JSON HTTP adapter for the store service.
package web

import (
	"context"
	"net/http"
	"time"

	"storefinder/internal/adapters/http/middleware"
	"storefinder/internal/adapters/http/perf"
	outboxStore "storefinder/internal/adapters/storage/outbox"
	storeRepo "storefinder/internal/adapters/storage/store"
	"storefinder/internal/application/orchestrators"
	"storefinder/internal/observability"
)

// DefaultRateLimit is the per-client request budget per second.
const DefaultRateLimit = 10

// Deps holds everything the handlers need.
type Deps struct {
	Stores    storeRepo.Repository
	Events    orchestrators.EventSink
	Locker    orchestrators.Locker // optional
	Outbox    outboxStore.Store    // optional; admin outbox routes answer 503 without it
	Processor *orchestrators.OutboxProcessor
	Metrics   *observability.Metrics
	Collector *perf.Collector
	// Health reports backing-store reachability for /healthz. Optional.
	Health      func(ctx context.Context) error
	RateLimit   int
	SlowRequest time.Duration
	GenerateID  func() string
	Now         func() time.Time
}

// server carries Deps and the compiled request schemas into handlers.
type server struct {
	Deps
	schemas *schemas
}

// NewMux wires routes and middleware. The rate limiter's janitor runs until ctx is done.
// PRE: deps.Stores and deps.Events are set
// POST: Returns a handler; panics only if the embedded schemas fail to compile
func NewMux(ctx context.Context, deps Deps) http.Handler {
	s := &server{Deps: deps, schemas: mustCompileSchemas()}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	rate := deps.RateLimit
	if rate <= 0 {
		rate = DefaultRateLimit
	}
	limiter := middleware.NewRateLimiter(rate, time.Second)
	go limiter.Janitor(ctx)

	// Recover -> SecurityHeaders -> RateLimit -> Timing, innermost first.
	return middleware.Chain(mux,
		middleware.Recover,
		middleware.SecurityHeaders,
		middleware.RateLimit(limiter),
		middleware.Timing(middleware.TimingConfig{
			Collector:   deps.Collector,
			Metrics:     deps.Metrics,
			SlowRequest: deps.SlowRequest,
		}),
	)
}

func (s *server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stores", s.handleListStores)
	mux.HandleFunc("GET /api/stores/active", s.handleListActiveStores)
	mux.HandleFunc("GET /api/stores/{id}", s.handleGetStore)
	mux.HandleFunc("GET /api/stores/email/{email}", s.handleGetStoreByEmail)
	mux.HandleFunc("GET /api/stores/owner/{ownerId}", s.handleStoresByOwner)
	mux.HandleFunc("POST /api/stores", s.handleCreateStore)
	mux.HandleFunc("PUT /api/stores/{id}", s.handleUpdateStore)
	mux.HandleFunc("DELETE /api/stores/{id}", s.handleDeleteStore)
	mux.HandleFunc("PUT /api/stores/{storeId}/addOwner/{ownerId}", s.handleAddOwner)
	mux.HandleFunc("PUT /api/stores/{storeId}/removeOwner/{ownerId}", s.handleRemoveOwner)
	mux.HandleFunc("POST /api/stores/nearby", s.handleNearbyStores)

	mux.HandleFunc("GET /api/admin/outbox", s.handleListOutbox)
	mux.HandleFunc("POST /api/admin/outbox/{id}/retry", s.handleRetryOutbox)
	mux.HandleFunc("POST /api/admin/outbox/{id}/abandon", s.handleAbandonOutbox)
	mux.HandleFunc("GET /api/admin/perf", s.handlePerf)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics.Handler())
	}
}
