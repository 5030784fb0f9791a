// Package web serves the control dashboard: REST endpoints over the
// assistant's subsystems plus websocket streams for status and turns.
package web

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/majordomo-ai/majordomo/pkg/assistant"
	"github.com/majordomo-ai/majordomo/pkg/hub"
)

// TurnEntry is one dashboard conversation line.
type TurnEntry struct {
	Time     string  `json:"time"`
	Input    string  `json:"input"`
	Response string  `json:"response"`
	Source   string  `json:"source"`
	Cost     float64 `json:"cost"`
}

// maxTurnLog bounds the in-memory conversation buffer.
const maxTurnLog = 100

// Server is the dashboard server.
type Server struct {
	app       *fiber.App
	port      string
	assistant *assistant.Assistant
	logger    *slog.Logger

	turnsMu sync.RWMutex
	turns   []TurnEntry

	statusHub *hub.Hub
	turnHub   *hub.Hub
}

// NewServer wires routes over the assistant.
func NewServer(port string, a *assistant.Assistant, logger *slog.Logger) *Server {
	s := &Server{
		port:      port,
		assistant: a,
		logger:    logger.With("component", "web"),
		turns:     make([]TurnEntry, 0, maxTurnLog),
		statusHub: hub.New("status"),
		turnHub:   hub.New("turns"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Majordomo Dashboard",
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Post("/ask", s.handleAsk)
	api.Get("/budget", s.handleBudget)
	api.Post("/budget/limit", s.handleSetLimit)
	api.Get("/agents", s.handleAgents)
	api.Post("/agents", s.handleRegisterAgent)
	api.Delete("/agents/:name", s.handleUnregisterAgent)
	api.Get("/capabilities", s.handleCapabilities)
	api.Get("/usage", s.handleUsage)
	api.Get("/conversation", s.handleConversation)
	api.Post("/context/clear", s.handleClearContext)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))
	app.Get("/ws/turns", websocket.New(s.handleTurnsWS))

	s.app = app
	return s
}

// Start runs the hubs and blocks serving HTTP.
func (s *Server) Start() error {
	go s.statusHub.Run()
	go s.turnHub.Run()

	s.logger.Info("dashboard listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("dashboard server stopped", "error", err)
		}
	}()
}

// recordTurn appends to the conversation buffer and notifies streams.
func (s *Server) recordTurn(turn *assistant.Turn) {
	entry := TurnEntry{
		Time:     time.Now().Format("15:04:05"),
		Input:    turn.Input,
		Response: turn.Response,
		Source:   turn.Source,
		Cost:     turn.Cost,
	}

	s.turnsMu.Lock()
	s.turns = append(s.turns, entry)
	if len(s.turns) > maxTurnLog {
		s.turns = s.turns[1:]
	}
	s.turnsMu.Unlock()

	s.turnHub.BroadcastJSON(entry)
	s.statusHub.BroadcastJSON(s.assistant.Status())
}

// handleStatusWS streams status snapshots.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	c.WriteJSON(s.assistant.Status())
	hub.NewClient(s.statusHub, c).Run()
}

// handleTurnsWS streams finished turns, replaying the buffer first.
func (s *Server) handleTurnsWS(c *websocket.Conn) {
	s.turnsMu.RLock()
	for _, entry := range s.turns {
		c.WriteJSON(entry)
	}
	s.turnsMu.RUnlock()
	hub.NewClient(s.turnHub, c).Run()
}

// Shutdown stops the server and the hubs.
func (s *Server) Shutdown() error {
	err := s.app.Shutdown()
	s.statusHub.Stop()
	s.turnHub.Stop()
	return err
}
