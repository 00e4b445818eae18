// Package api serves the client's state and operations over HTTP.
//
// Reads answer from the app loop's current state. Writes are accepted
// with 202 and run in the background; their progress is visible through
// the transaction indicator in GET /api/state.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/bitfsorg/royalties-go/app"
	"github.com/bitfsorg/royalties-go/metrics"
	"github.com/bitfsorg/royalties-go/record"
	"github.com/bitfsorg/royalties-go/revshare"
	"github.com/bitfsorg/royalties-go/royalty"
	"github.com/bitfsorg/royalties-go/storage"
)

// Wallet connects and disconnects accounts; wallet.Session satisfies it.
type Wallet interface {
	Connect(index uint32) (common.Address, error)
	Disconnect()
	Account() string
}

// Tools are the service operations that answer synchronously.
type Tools interface {
	Estimate(pool uint64) ([]revshare.Distribution, error)
	Reconcile(ctx context.Context, repair bool) (*royalty.ReconcileReport, error)
}

var _ Tools = (*royalty.Service)(nil)

type Config struct {
	Logger *slog.Logger
	Loop   *app.Loop
	Wallet Wallet
	Tools  Tools

	// AllowedOrigins for CORS; defaults to localhost.
	AllowedOrigins []string

	// WriteRate and WriteBurst limit POST requests per client IP.
	WriteRate  rate.Limit
	WriteBurst int

	// TrustProxy takes the client IP from X-Forwarded-For or X-Real-IP.
	// Only set it behind a proxy that overwrites those headers; otherwise
	// the connection address is used.
	TrustProxy bool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Loop == nil {
		return errors.New("loop is required")
	}
	if cfg.Wallet == nil {
		return errors.New("wallet is required")
	}
	if cfg.Tools == nil {
		return errors.New("tools are required")
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	if cfg.WriteRate == 0 {
		cfg.WriteRate = rate.Every(time.Second)
	}
	if cfg.WriteBurst == 0 {
		cfg.WriteBurst = 5
	}
	return nil
}

type Server struct {
	log    *slog.Logger
	cfg    Config
	router *chi.Mux
}

func NewServer(cfg Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Server{log: cfg.Logger, cfg: cfg, router: chi.NewRouter()}
	s.routes()
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() {
	r := s.router
	if s.cfg.TrustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	limiter := NewRateLimiter(s.cfg.WriteRate, s.cfg.WriteBurst)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Get("/records", s.handleRecords)
		r.Get("/records/{id}", s.handleRecord)
		r.Get("/stats", s.handleStats)
		r.Get("/estimate", s.handleEstimate)
		r.Get("/reconcile", s.handleReconcile)
		r.Delete("/notice", s.handleClearNotice)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/refresh", s.handleRefresh)
			r.Post("/contributions", s.handleContribute)
			r.Post("/records/{id}/claim", s.handleClaim)
			r.Post("/reconcile", s.handleRepair)
			r.Post("/wallet/connect", s.handleConnect)
			r.Post("/wallet/disconnect", s.handleDisconnect)
		})
	})
	r.Handle("/metrics", promhttp.Handler())
}

// ListenAndServe serves on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api: listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.log.Info("api: shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

type errorBody struct {
	Error string `json:"error"`
}

type stateBody struct {
	app.State
	Visible []record.Record `json:"visible"`
	Stats   storage.Stats   `json:"stats"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	st := s.cfg.Loop.State()
	writeJSON(w, http.StatusOK, stateBody{State: st, Visible: st.Visible(), Stats: st.Stats()})
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	st := s.cfg.Loop.State()
	writeJSON(w, http.StatusOK, storage.Filter(st.Records, r.URL.Query().Get("q")))
}

func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	for _, rec := range s.cfg.Loop.State().Records {
		if rec.ID == id {
			writeJSON(w, http.StatusOK, rec)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, errorBody{Error: royalty.MsgRecordNotFound})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Loop.State().Stats())
}

func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	pool, err := strconv.ParseUint(r.URL.Query().Get("pool"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "pool must be a non-negative integer"})
		return
	}
	dist, err := s.cfg.Tools.Estimate(pool)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, dist)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	s.reconcile(w, r, false)
}

func (s *Server) handleRepair(w http.ResponseWriter, r *http.Request) {
	s.reconcile(w, r, true)
}

func (s *Server) reconcile(w http.ResponseWriter, r *http.Request, repair bool) {
	report, err := s.cfg.Tools.Reconcile(r.Context(), repair)
	switch {
	case errors.Is(err, royalty.ErrListingUnsupported):
		writeJSON(w, http.StatusNotImplemented, errorBody{Error: err.Error()})
	case errors.Is(err, royalty.ErrWalletNotConnected):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: royalty.MsgConnectWallet})
	case err != nil:
		writeJSON(w, http.StatusBadGateway, errorBody{Error: royalty.UserMessage(err)})
	default:
		if repair {
			s.cfg.Loop.Refresh()
		}
		writeJSON(w, http.StatusOK, report)
	}
}

func (s *Server) handleClearNotice(w http.ResponseWriter, r *http.Request) {
	s.cfg.Loop.Dispatch(app.NoticeCleared{})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.cfg.Loop.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "refreshing"})
}

type contributeRequest struct {
	Data string `json:"data"`
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := s.cfg.Loop.Contribute(req.Data); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitting"})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Loop.Claim(chi.URLParam(r, "id")); err != nil {
		writeOpError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "claiming"})
}

type connectRequest struct {
	Account uint32 `json:"account"`
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	addr, err := s.cfg.Wallet.Connect(req.Account)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	s.log.Info("api: wallet connected", "account", addr.Hex())
	writeJSON(w, http.StatusOK, map[string]string{"account": addr.Hex()})
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.cfg.Wallet.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

func writeOpError(w http.ResponseWriter, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, royalty.ErrWalletNotConnected) {
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, errorBody{Error: royalty.UserMessage(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
