package web

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/majordomo-ai/majordomo/pkg/budget"
)

// handleStatus returns the aggregate subsystem snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.assistant.Status())
}

// AskRequest is the body for POST /api/ask.
type AskRequest struct {
	Input string `json:"input"`
}

// handleAsk runs one assistant turn on the worker pool.
func (s *Server) handleAsk(c *fiber.Ctx) error {
	var req AskRequest
	if err := c.BodyParser(&req); err != nil || req.Input == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "input is required",
		})
	}

	out, err := s.assistant.HandleAsync(c.Context(), req.Input)
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	outcome := <-out
	if outcome.Err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": outcome.Err.Error(),
		})
	}

	s.recordTurn(outcome.Turn)
	return c.JSON(outcome.Turn)
}

// handleBudget returns per-service spend and limits.
func (s *Server) handleBudget(c *fiber.Ctx) error {
	return c.JSON(s.assistant.Ledger().Status())
}

// SetLimitRequest is the body for POST /api/budget/limit.
type SetLimitRequest struct {
	Service string  `json:"service"`
	Period  string  `json:"period"`
	Amount  float64 `json:"amount"`
}

// handleSetLimit adjusts one budget limit at runtime.
func (s *Server) handleSetLimit(c *fiber.Ctx) error {
	var req SetLimitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid body",
		})
	}

	period := budget.Period(req.Period)
	switch period {
	case budget.Daily, budget.Weekly, budget.Monthly:
	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "period must be daily, weekly or monthly",
		})
	}
	if req.Service == "" || req.Amount < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "service and a non-negative amount are required",
		})
	}

	s.assistant.Ledger().SetLimit(req.Service, period, req.Amount)
	s.statusHub.BroadcastJSON(s.assistant.Status())
	return c.JSON(s.assistant.Ledger().Status())
}

// handleAgents returns the router's agent snapshot.
func (s *Server) handleAgents(c *fiber.Ctx) error {
	return c.JSON(s.assistant.Router().Status())
}

// RegisterAgentRequest is the body for POST /api/agents.
type RegisterAgentRequest struct {
	Name         string   `json:"name"`
	Endpoint     string   `json:"endpoint"`
	Capabilities []string `json:"capabilities"`
	AuthToken    string   `json:"auth_token"`
	Priority     int      `json:"priority"`
}

// handleRegisterAgent adds an agent at runtime.
func (s *Server) handleRegisterAgent(c *fiber.Ctx) error {
	var req RegisterAgentRequest
	if err := c.BodyParser(&req); err != nil || req.Name == "" || req.Endpoint == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name and endpoint are required",
		})
	}
	if req.Priority <= 0 {
		req.Priority = 1
	}

	if err := s.assistant.Router().Register(req.Name, req.Endpoint, req.Capabilities, req.AuthToken, req.Priority); err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusCreated).JSON(s.assistant.Router().Status())
}

// handleUnregisterAgent removes an agent.
func (s *Server) handleUnregisterAgent(c *fiber.Ctx) error {
	if err := s.assistant.Router().Unregister(c.Params("name")); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(s.assistant.Router().Status())
}

// handleCapabilities lists every routable capability.
func (s *Server) handleCapabilities(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"capabilities": s.assistant.Router().Capabilities(),
	})
}

// handleUsage returns journal totals for the last 30 days plus the
// newest entries.
func (s *Server) handleUsage(c *fiber.Ctx) error {
	since := time.Now().AddDate(0, 0, -30)
	totals, err := s.assistant.Usage().Totals(c.Context(), since)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	recent, err := s.assistant.Usage().Recent(c.Context(), 20)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{
		"totals": totals,
		"recent": recent,
	})
}

// handleConversation returns the dashboard turn buffer.
func (s *Server) handleConversation(c *fiber.Ctx) error {
	s.turnsMu.RLock()
	defer s.turnsMu.RUnlock()
	return c.JSON(s.turns)
}

// handleClearContext wipes the conversation history.
func (s *Server) handleClearContext(c *fiber.Ctx) error {
	s.assistant.History().Clear()

	s.turnsMu.Lock()
	s.turns = s.turns[:0]
	s.turnsMu.Unlock()

	return c.JSON(fiber.Map{"cleared": true})
}
