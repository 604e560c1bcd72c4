package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"decode-server/internal/config"
	"decode-server/internal/stats"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"
)

type Server struct {
	cfg               config.Config
	stats             stats.Store
	registry          *RoomRegistry
	coordinator       *Coordinator
	connectionManager *ConnectionManager
	rateLimiter       *RateLimiter
	connectionHealth  *ConnectionHealth
	startedAt         time.Time
	stopTasks         context.CancelFunc
}

// NewServer wires the coordinator to a stats store and starts the
// background maintenance tasks. Shutdown stops them.
func NewServer(cfg config.Config, store stats.Store) (*Server, *http.Server) {
	registry := NewRoomRegistry()
	connectionManager := NewConnectionManager()

	s := &Server{
		cfg:               cfg,
		stats:             store,
		registry:          registry,
		coordinator:       NewCoordinator(registry, store, connectionManager),
		connectionManager: connectionManager,
		rateLimiter:       NewRateLimiter(cfg.RateLimit, cfg.RateBurst),
		connectionHealth:  NewConnectionHealth(),
		startedAt:         time.Now(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopTasks = cancel

	go s.sweepTask(ctx)
	go s.idleReaperTask(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.RegisterRoutes(),
		IdleTimeout:       time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, httpServer
}

// OpenStatsStore opens the backend selected by cfg.StatsBackend.
func OpenStatsStore(ctx context.Context, cfg config.Config) (stats.Store, error) {
	switch cfg.StatsBackend {
	case config.BackendFile:
		return stats.NewFileStore(cfg.StatsFile)
	case config.BackendSQLite:
		return stats.NewSQLiteStore(cfg.SQLitePath)
	case config.BackendPostgres:
		return stats.NewPostgresStore(ctx, cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unknown stats backend %q", cfg.StatsBackend)
	}
}

// Shutdown stops background tasks, tells every client the server is going
// away and closes the stats store.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopTasks()

	if err := s.connectionManager.CloseAll(ctx, websocket.StatusGoingAway, "server shutting down"); err != nil {
		log.Warn().Err(err).Msg("Timed out closing client connections, dropped the rest")
	}

	if err := s.stats.Close(); err != nil {
		return fmt.Errorf("close stats store: %w", err)
	}
	return nil
}

// sweepTask deletes rooms that somehow ended up with nobody in them.
func (s *Server) sweepTask(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.registry.Sweep(); removed > 0 {
				log.Info().Int("removed", removed).Msg("Swept empty rooms")
			}
		}
	}
}

// idleReaperTask closes connections that have not been heard from within
// the idle timeout, including unanswered keepalive pings.
func (s *Server) idleReaperTask(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range s.connectionHealth.GetInactiveConnections(s.cfg.IdleTimeout) {
				log.Info().Str("conn", id).Msg("Closing idle connection")
				s.connectionManager.Close(id, websocket.StatusPolicyViolation, "idle timeout")
			}
		}
	}
}
