// internal/handlers/server.go

// Package handlers is the transport edge: HTTP endpoints for sessions and
// room listings, and the WebSocket loop that feeds inbound frames to the
// router and drains each connection's outbound channel.
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/anayv/crease/internal/auction"
	"github.com/anayv/crease/internal/config"
	"github.com/anayv/crease/internal/match"
	"github.com/anayv/crease/internal/ratelimit"
	"github.com/anayv/crease/internal/room"
	"github.com/anayv/crease/internal/router"
)

// Server wires every component of the service together.
type Server struct {
	Cfg        config.Config
	Log        *logrus.Logger
	Rooms      *room.Registry
	Limiter    *ratelimit.Limiter
	Reconciler *match.Reconciler
	Auctions   *auction.Coordinator
	Router     *router.Router
}

// NewServer builds a fully wired server on the real clock.
func NewServer(cfg config.Config, log *logrus.Logger, lots auction.LotSource) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	clock := clockwork.NewRealClock()

	rooms := room.NewRegistry(room.RegistryConfig{
		SweepInterval:     cfg.SweepInterval,
		EmptyGracePeriod:  cfg.EmptyGracePeriod,
		InactivityTimeout: cfg.InactivityTimeout,
	}, clock, log)

	limiter := ratelimit.NewLimiter(ratelimit.DefaultLimits(), clock)
	reconciler := match.NewReconciler(rooms, clock, log)

	settings := auction.DefaultSettings()
	settings.AdvanceDelay = cfg.AdvanceDelay
	settings.BidTimer = cfg.BidTimer
	auctions := auction.NewCoordinator(rooms, lots, settings, clock, log)

	return &Server{
		Cfg:        cfg,
		Log:        log,
		Rooms:      rooms,
		Limiter:    limiter,
		Reconciler: reconciler,
		Auctions:   auctions,
		Router:     router.New(limiter, rooms, reconciler, auctions, log),
	}
}

// PingHandler answers health checks.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("pong"))
}

// ListRoomsHandler returns joinable rooms, optionally filtered by ?mode=.
func (s *Server) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"rooms": s.Rooms.ListAvailable(r.URL.Query().Get("mode")),
	})
}
