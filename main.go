package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"algofomo-backend/config"
	"algofomo-backend/handlers"
	"algofomo-backend/models"
	"algofomo-backend/services"
	"algofomo-backend/utils"
	"algofomo-backend/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	app := fiber.New()

	// CORS for the game frontend
	allowedOriginsList := strings.Split(cfg.AllowedOrigins, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, X-Admin-Token",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Round{},
		&models.Bet{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Chain adapter: mock for local dev, HTTP signer service in production.
	var chain services.ChainClient
	switch cfg.ChainMode {
	case "http":
		chain = services.NewPayoutServiceClient(cfg.PayoutServiceURL, cfg.PayoutServiceToken)
	default:
		log.Println("⚠️  CHAIN_MODE=mock — transactions are not verified against the chain")
		chain = services.NewMockChainClient()
	}

	impact := services.NewImpactCalculator(services.DefaultRNG())
	settlementService := services.NewSettlementService(db, chain, cfg.HouseCutPercentage)
	roundService := services.NewRoundService(db, cfg, chain, impact, settlementService)

	services.StartGameScheduler(roundService, settlementService, cfg.PayoutBatchSize)

	// Battle image rendering (cosmetic, best-effort).
	var generator services.ImageGenerator
	if cfg.ImageProvider == "openai" && cfg.OpenAIAPIKey != "" {
		generator = services.NewOpenAIImageClient(cfg.OpenAIAPIKey)
	} else {
		generator = services.NewMockImageGenerator()
	}
	if cfg.R2Configured() {
		if err := utils.InitR2(cfg.CloudflareAccountID, cfg.R2AccessKeyID, cfg.R2AccessKeySecret, cfg.R2BucketName, cfg.CDNBaseURL); err != nil {
			log.Fatal("failed to initialize R2 client:", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	renderClient := workers.NewImageRenderClient(db, generator, cfg.R2Configured())
	go workers.PollBattleImages(ctx, renderClient, cfg.ImageRenderInterval())

	handlers.SetupGameRoutes(app, roundService, cfg.AdminToken)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%d", cfg.Port)
	log.Printf("✅ Round ender + payout sweep scheduled (batch %d)", cfg.PayoutBatchSize)
	log.Printf("✅ Battle image polling running (every %s)", cfg.ImageRenderInterval())
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
