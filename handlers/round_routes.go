// handlers/round_routes.go
package handlers

import (
	"algofomo-backend/middleware"
	"algofomo-backend/services"

	"github.com/gofiber/fiber/v2"
)

func SetupGameRoutes(app *fiber.App, roundService *services.RoundService, adminToken string) {
	// 🔓 Public routes
	app.Get("/state", roundService.HandleGetState)
	app.Post("/bet", roundService.HandlePlaceBet)
	app.Get("/history/rounds", roundService.HandleGetPastRounds)
	app.Get("/history/bets/:round_id", roundService.HandleGetRoundBets)

	// 🔐 Admin routes — shared-token gated
	admin := app.Group("/admin", middleware.AdminAuthMiddleware(adminToken))
	admin.Post("/reset", roundService.HandleAdminReset)
	admin.Post("/end", roundService.HandleAdminEnd)
}
