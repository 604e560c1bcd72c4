package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"decode-server/internal/stats"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxFrameSize = 8 << 10

func (s *Server) RegisterRoutes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(securityHeaders)
	r.Use(corsMiddleware(s.cfg.AllowedOrigins))

	r.Get("/health", s.healthHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second))
		r.Get("/stats/{name}", s.statsHandler)
		r.Get("/leaderboard", s.leaderboardHandler)
		r.Get("/online", s.onlineHandler)
	})

	r.Get("/ws", s.websocketHandler)
	r.Get("/websocket", s.websocketHandler)

	return r
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.startedAt).Seconds(),
		Rooms:   s.registry.RoomCount(),
		Players: s.connectionManager.Count(),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}

	record, err := s.stats.Get(r.Context(), name)
	if err != nil {
		log.Error().Err(err).Str("player", name).Msg("Failed to load stats")
		writeJSON(w, http.StatusInternalServerError, ErrorMessage{Message: "Failed to load stats"})
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) leaderboardHandler(w http.ResponseWriter, r *http.Request) {
	entries, err := s.stats.Leaderboard(r.Context(), stats.LeaderboardSize)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load leaderboard")
		writeJSON(w, http.StatusInternalServerError, ErrorMessage{Message: "Failed to load leaderboard"})
		return
	}
	if entries == nil {
		entries = []stats.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) onlineHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, OnlineResponse{
		Online: s.connectionManager.Count(),
		Rooms:  s.registry.RoomCount(),
	})
}

func (s *Server) websocketHandler(w http.ResponseWriter, r *http.Request) {
	socket, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.cfg.AllowedOrigins,
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to open websocket")
		return
	}
	socket.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	connectionID := uuid.New().String()
	logger := log.With().Str("conn", connectionID).Logger()
	logger.Info().Str("remote", r.RemoteAddr).Msg("New connection")

	s.connectionManager.AddConnection(connectionID, socket)
	s.connectionHealth.UpdateActivity(connectionID)
	defer func() {
		s.coordinator.Disconnect(connectionID)
		s.connectionManager.RemoveConnection(connectionID)
		s.rateLimiter.RemoveConnection(connectionID)
		s.connectionHealth.RemoveConnection(connectionID)
		socket.Close(websocket.StatusNormalClosure, "")
		logger.Info().Msg("Connection closed")
	}()

	go s.keepAlive(ctx, connectionID, socket)

	for {
		msgType, data, err := socket.Read(ctx)
		if err != nil {
			logger.Debug().Err(err).Msg("Read ended")
			return
		}
		s.connectionHealth.UpdateActivity(connectionID)

		if msgType != websocket.MessageText {
			logger.Debug().Msg("Ignoring non-text frame")
			continue
		}

		if !s.rateLimiter.Allow(connectionID) {
			s.sendError(connectionID, ErrRateLimited)
			continue
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			logger.Debug().Err(err).Msg("Invalid JSON")
			s.sendError(connectionID, ErrInvalidPayload)
			continue
		}

		logger.Debug().Str("type", msg.Type).Msg("Message received")
		s.coordinator.Handle(connectionID, msg.Type, msg.Payload)
	}
}

// keepAlive pings the client every ping interval. A pong counts as activity;
// a connection that stops answering is left for the idle reaper.
func (s *Server) keepAlive(ctx context.Context, connectionID string, socket *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PingInterval)
			err := socket.Ping(pingCtx)
			cancel()
			if err != nil {
				log.Debug().Err(err).Str("conn", connectionID).Msg("Ping failed")
				continue
			}
			s.connectionHealth.UpdateActivity(connectionID)
		}
	}
}

func (s *Server) sendError(connectionID string, err error) {
	s.connectionManager.Send(connectionID, ServerMessage{Type: EvtError, Payload: errorMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	resp, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(resp); err != nil {
		log.Error().Err(err).Msg("Failed to write response")
	}
}
