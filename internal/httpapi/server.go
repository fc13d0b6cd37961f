package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"lmdPortal/internal/auth"
	"lmdPortal/internal/config"
	"lmdPortal/internal/service"
)

// Options configures the REST server.
type Options struct {
	JWTSecret      string
	RequestTimeout time.Duration
	// TrustProxy honours X-Forwarded-For for the audit IP.
	TrustProxy bool
	Log        *zap.Logger
}

// Server exposes the portal operations over JSON/HTTP.
type Server struct {
	svc        *service.Services
	secret     string
	timeout    time.Duration
	trustProxy bool
	log        *zap.Logger

	// api is the authenticated router without the history recorder; the
	// retrigger handler replays requests through it.
	api     http.Handler
	handler http.Handler
}

// apiFunc is a handler that reports failures as errors.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

// New builds the server and its routes.
func New(svc *service.Services, opts Options) *Server {
	if svc == nil {
		panic("services are required")
	}
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	s := &Server{svc: svc, secret: opts.JWTSecret, timeout: opts.RequestTimeout, trustProxy: opts.TrustProxy, log: opts.Log}

	mux := http.NewServeMux()
	s.routes(mux)
	s.api = s.authenticate(mux)

	timed := http.TimeoutHandler(s.api, s.timeout, `{"error":"request timed out"}`)
	s.handler = s.recoverPanics(s.recordHistory(timed))
	return s
}

// Handler returns the root handler with every middleware applied.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) handle(h apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			s.writeError(w, r, err)
		}
	}
}

func (s *Server) routes(mux *http.ServeMux) {
	admin := func(h apiFunc) http.HandlerFunc { return s.handle(s.requireRole(h, auth.RoleAdmin)) }

	mux.HandleFunc("GET /api/health", s.handle(s.health))
	mux.HandleFunc("GET /api/dashboard/summary", s.handle(s.dashboardSummary))

	mux.HandleFunc("GET /api/shipments", s.handle(s.listShipments))
	mux.HandleFunc("POST /api/shipments", s.handle(s.createShipment))
	mux.HandleFunc("GET /api/shipments/{id}", s.handle(s.getShipment))
	mux.HandleFunc("PATCH /api/shipments/{id}", s.handle(s.patchShipment))
	mux.HandleFunc("POST /api/shipments/{id}/cancel", s.handle(s.cancelShipment))

	mux.HandleFunc("GET /api/pickups", s.handle(s.listPickups))
	mux.HandleFunc("POST /api/pickups", s.handle(s.schedulePickup))
	mux.HandleFunc("GET /api/pickups/{id}", s.handle(s.getPickup))
	mux.HandleFunc("PATCH /api/pickups/{id}", s.handle(s.patchPickup))
	mux.HandleFunc("GET /api/pickups/{id}/nearest-riders", s.handle(s.nearestRiders))

	mux.HandleFunc("GET /api/manifests", s.handle(s.listManifests))
	mux.HandleFunc("POST /api/manifests", s.handle(s.createManifest))
	mux.HandleFunc("GET /api/manifests/{id}", s.handle(s.getManifest))
	mux.HandleFunc("PATCH /api/manifests/{id}", s.handle(s.patchManifest))

	mux.HandleFunc("GET /api/riders", s.handle(s.listRiders))
	mux.HandleFunc("POST /api/riders", s.handle(s.createRider))
	mux.HandleFunc("PATCH /api/riders/{id}/location", s.handle(s.updateRiderLocation))

	mux.HandleFunc("GET /api/admin/audit", admin(s.listAuditLogs))
	mux.HandleFunc("POST /api/admin/audit", s.handle(s.recordClientAudit))
	mux.HandleFunc("GET /api/admin/api-history", admin(s.listAPIHistory))
	mux.HandleFunc("POST /api/admin/api-history/{id}/retrigger", admin(s.retrigger))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found"})
	})
}

// Start serves the REST API on cfg.HTTP.Address and returns a shutdown
// function.
func Start(cfg *config.Config, svc *service.Services, log *zap.Logger) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}
	addr := cfg.HTTP.Address
	if addr == "" {
		addr = ":8080"
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	s := New(svc, Options{
		JWTSecret:      cfg.Auth.JWTSecret,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		TrustProxy:     cfg.HTTP.TrustProxy,
		Log:            log,
	})
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          zap.NewStdLog(s.log),
	}
	go func() {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()

	return func(ctx context.Context) error {
		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
			return err
		}
		return nil
	}, nil
}
