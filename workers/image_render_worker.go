package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"algofomo-backend/models"
	"algofomo-backend/services"
	"algofomo-backend/utils"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// ImageRenderClient renders battle artwork for the active round and stores
// the URL on the round. Everything here is best-effort: a render failure
// never touches game state.
type ImageRenderClient struct {
	DB         *gorm.DB
	Generator  services.ImageGenerator
	UploadToR2 bool
}

func NewImageRenderClient(db *gorm.DB, generator services.ImageGenerator, uploadToR2 bool) *ImageRenderClient {
	return &ImageRenderClient{DB: db, Generator: generator, UploadToR2: uploadToR2}
}

// PollBattleImages re-renders the active round's image whenever its momentum
// has moved since the last render (or it has no image yet).
func PollBattleImages(ctx context.Context, client *ImageRenderClient, interval time.Duration) {
	log.Println("Starting battle image polling...")

	lastRoundID := ""
	lastMomentum := -1

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Battle image polling stopped.")
			return
		case <-ticker.C:
			var round models.Round
			err := client.DB.Where("active = ?", true).Order("start_time DESC").First(&round).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				log.Printf("❌ [Render] DB error fetching active round: %v", err)
				continue
			}

			if round.ID == lastRoundID && round.Momentum == lastMomentum && round.BattleImageURL != "" {
				continue // nothing changed since the last render
			}

			url, err := client.RenderRound(ctx, &round)
			if err != nil {
				log.Printf("❌ [Render] Round %s: %v", round.ID, err)
				continue
			}

			// Only the active round keeps its image fresh; an ended round's
			// last image is fine as-is.
			res := client.DB.Model(&models.Round{}).
				Where("id = ? AND active = ?", round.ID, true).
				Update("battle_image_url", url)
			if res.Error != nil {
				log.Printf("❌ [Render] Failed to save image URL for round %s: %v", round.ID, res.Error)
				continue
			}

			lastRoundID = round.ID
			lastMomentum = round.Momentum
			log.Printf("🖼️  Rendered battle image for round %s: %s", round.ID, url)
		}
	}
}

// RenderRound builds the prompt, generates the image and returns its URL,
// uploading to R2 when the provider hands back raw bytes.
func (c *ImageRenderClient) RenderRound(ctx context.Context, round *models.Round) (string, error) {
	prompt := c.buildPrompt(round)

	img, err := c.Generator.GenerateBattleImage(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("image generation failed: %w", err)
	}

	if len(img.Data) == 0 {
		return img.URL, nil
	}
	if !c.UploadToR2 {
		return "", fmt.Errorf("generator returned raw bytes but R2 is not configured")
	}

	key := fmt.Sprintf("battles/%s-%s.png",
		slug.Make(round.LeftHandle+"-vs-"+round.RightHandle),
		uuid.NewString()[:8])
	url, err := utils.UploadBytesToR2(img.Data, key, img.ContentType)
	if err != nil {
		return "", err
	}
	return url, nil
}

func (c *ImageRenderClient) buildPrompt(round *models.Round) string {
	latestSpell := "the arena is vibrant"
	var latest models.Bet
	err := c.DB.Where("round_id = ?", round.ID).Order("timestamp DESC").First(&latest).Error
	if err == nil && latest.Spell != "" {
		latestSpell = latest.Spell
	}

	left := round.LeftDisplayName
	if left == "" {
		left = round.LeftHandle
	}
	right := round.RightDisplayName
	if right == "" {
		right = round.RightHandle
	}

	return fmt.Sprintf("%s vs %s, epic battle in a mystical arena, momentum at %d%%, last spell: %s",
		left, right, round.Momentum, latestSpell)
}
