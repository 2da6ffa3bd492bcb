package services

import (
	"errors"
	"log"

	"algofomo-backend/models"

	"github.com/gofiber/fiber/v2"
)

// HandleGetState serves GET /state.
func (s *RoundService) HandleGetState(c *fiber.Ctx) error {
	state, err := s.GetActiveState(c.Context())
	if errors.Is(err, ErrNoActiveRound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active game round found"})
	}
	if err != nil {
		log.Printf("❌ GET /state failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to retrieve game state"})
	}
	return c.JSON(state)
}

// HandlePlaceBet serves POST /bet.
func (s *RoundService) HandlePlaceBet(c *fiber.Ctx) error {
	var req BetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	bet, round, err := s.PlaceBet(c.Context(), req)
	switch {
	case err == nil:
	case errors.Is(err, ErrTxUnverified):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "deposit transaction could not be verified"})
	case errors.Is(err, ErrRoundMismatch), errors.Is(err, ErrRoundNotActive):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, ErrNoActiveRound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	default:
		log.Printf("❌ POST /bet failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to place bet"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"bet":     bet,
		"round":   round,
		"message": "Bet placed successfully!",
	})
}

// HandleGetPastRounds serves GET /history/rounds.
func (s *RoundService) HandleGetPastRounds(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 10)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 100 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	rounds, err := s.PastRounds(c.Context(), limit, offset)
	if err != nil {
		log.Printf("❌ GET /history/rounds failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to retrieve past rounds"})
	}
	return c.JSON(rounds)
}

// HandleGetRoundBets serves GET /history/bets/:round_id.
func (s *RoundService) HandleGetRoundBets(c *fiber.Ctx) error {
	roundID := c.Params("round_id")
	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	bets, err := s.BetsForRound(c.Context(), roundID, limit, offset)
	if err != nil {
		log.Printf("❌ GET /history/bets/%s failed: %v", roundID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to retrieve bets"})
	}
	return c.JSON(bets)
}

// AdminResetRequest starts a fresh round between two fighters.
type AdminResetRequest struct {
	Left            models.FighterProfile `json:"left"`
	Right           models.FighterProfile `json:"right"`
	InitialMomentum *int                  `json:"initial_momentum"`
}

// HandleAdminReset serves POST /admin/reset.
func (s *RoundService) HandleAdminReset(c *fiber.Ctx) error {
	var req AdminResetRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Left.Handle == "" || req.Right.Handle == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "left and right fighter handles are required"})
	}

	momentum := 50
	if req.InitialMomentum != nil {
		momentum = *req.InitialMomentum
	}

	round, err := s.CreateRound(c.Context(), req.Left, req.Right, momentum)
	if errors.Is(err, ErrInvalidMomentum) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err != nil {
		log.Printf("❌ POST /admin/reset failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to start new round"})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"round":   round,
		"message": "New round started successfully!",
	})
}

// HandleAdminEnd serves POST /admin/end: force-ends the active round with a
// winner by momentum proximity and settles it immediately.
func (s *RoundService) HandleAdminEnd(c *fiber.Ctx) error {
	round, err := s.ActiveRound(c.Context())
	if errors.Is(err, ErrNoActiveRound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active game round found"})
	}
	if err != nil {
		log.Printf("❌ POST /admin/end failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to fetch active round"})
	}

	winner := momentumProximityWinner(round.Momentum)
	ended, err := s.EndRound(c.Context(), round.ID, winner, models.EndReasonAdmin)
	if errors.Is(err, ErrRoundAlreadyEnded) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "round already ended"})
	}
	if err != nil {
		log.Printf("❌ POST /admin/end failed to end round %s: %v", round.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to end round"})
	}

	summary, err := s.Settlements.Settle(c.Context(), ended)
	if err != nil {
		// The round is ended; payouts will be retried by the sweep.
		log.Printf("⚠️ POST /admin/end: settlement for round %s incomplete, sweep will retry: %v", ended.ID, err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"round":      ended,
		"settlement": summary,
	})
}
