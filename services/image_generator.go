package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"

	"algofomo-backend/utils"
)

// GeneratedImage is either raw bytes to upload ourselves or a provider-hosted
// URL to store directly.
type GeneratedImage struct {
	URL         string
	Data        []byte
	ContentType string
}

// ImageGenerator produces battle artwork for the active round. Purely
// cosmetic; callers only log failures.
type ImageGenerator interface {
	GenerateBattleImage(ctx context.Context, prompt string) (*GeneratedImage, error)
}

// MockImageGenerator returns placeholder artwork. Used when
// IMAGE_PROVIDER=mock.
type MockImageGenerator struct{}

func NewMockImageGenerator() *MockImageGenerator { return &MockImageGenerator{} }

func (m *MockImageGenerator) GenerateBattleImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	seed := rand.Intn(100000)
	url := fmt.Sprintf("https://picsum.photos/seed/%d/600/338", seed)
	log.Printf("[MockImage] prompt %q -> %s", prompt, url)
	return &GeneratedImage{URL: url}, nil
}

// OpenAIImageClient calls the images API and returns decoded PNG bytes for
// upload to R2.
type OpenAIImageClient struct {
	APIKey string
	Client *http.Client
}

func NewOpenAIImageClient(apiKey string) *OpenAIImageClient {
	return &OpenAIImageClient{APIKey: apiKey, Client: utils.HTTPClient}
}

const openAIImagesURL = "https://api.openai.com/v1/images/generations"

func (c *OpenAIImageClient) GenerateBattleImage(ctx context.Context, prompt string) (*GeneratedImage, error) {
	reqBody := map[string]interface{}{
		"model":           "dall-e-3",
		"prompt":          prompt,
		"n":               1,
		"size":            "1024x1024",
		"response_format": "b64_json",
	}
	jsonData, _ := json.Marshal(reqBody)

	req, err := http.NewRequestWithContext(ctx, "POST", openAIImagesURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("image generation call failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 32*1024*1024))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image API returned status %d: %.256s", resp.StatusCode, string(body))
	}

	var out struct {
		Data []struct {
			B64JSON string `json:"b64_json"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode image API response: %w", err)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image API returned no image data")
	}

	raw, err := base64.StdEncoding.DecodeString(out.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image payload: %w", err)
	}
	return &GeneratedImage{Data: raw, ContentType: "image/png"}, nil
}
