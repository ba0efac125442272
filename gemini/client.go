// Package gemini wraps the Google GenAI client with the API-key selection and
// bounded retry behavior shared by every model-calling stage.
package gemini

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

const (
	maxAttempts = 5
	retryDelay  = 10 * time.Second
)

// Client wraps the Google GenAI client.
type Client struct {
	genai *genai.Client

	// Injectable for tests.
	call  generateFunc
	after func(time.Duration) <-chan time.Time
}

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// NewClient creates a Gemini client. GEMINI_API_KEY may hold a comma-separated
// list of keys; one is selected at random per client.
func NewClient(ctx context.Context) (*Client, error) {
	key, err := pickAPIKey()
	if err != nil {
		return nil, err
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	c := &Client{genai: gc, after: time.After}
	c.call = func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
		return gc.Models.GenerateContent(ctx, model, contents, config)
	}
	return c, nil
}

func pickAPIKey() (string, error) {
	raw := os.Getenv("GEMINI_API_KEY")
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return "", fmt.Errorf("GEMINI_API_KEY not set")
	}
	key := keys[rand.Intn(len(keys))]
	log.Debug().Int("available", len(keys)).Msg("Selected Gemini API key")
	return key, nil
}

// SafetySettings returns the permissive settings used for story content. The
// stories are wholesome by construction; the blanket thresholds keep the model
// from refusing scenes like a fox chased by a storm.
func SafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}
	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, cat := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  cat,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}

// Generate calls the model, retrying transient failures with a fixed delay
// that doubles when the API reports rate limiting.
func (c *Client) Generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.call(ctx, model, contents, config)
		if err == nil {
			if attempt > 1 {
				log.Info().Int("attempt", attempt).Str("model", model).Msg("Gemini call recovered")
			}
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			return nil, err
		}
		if attempt == maxAttempts {
			break
		}

		delay := retryDelay
		if isRateLimited(err) {
			delay *= 2
		}
		log.Warn().Err(err).
			Int("attempt", attempt).
			Str("model", model).
			Dur("delay", delay).
			Msg("Transient Gemini error, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.after(delay):
		}
	}
	return nil, fmt.Errorf("gemini call failed after %d attempts: %w", maxAttempts, lastErr)
}

// IsTransient reports whether an API error is worth retrying: server errors,
// rate limits, resource exhaustion, and transport-level failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"500", "503", "internal server error", "service unavailable",
		"429", "too many requests", "resource_exhausted", "resource exhausted",
		"deadline exceeded", "connection reset", "unavailable", "grpc",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func isRateLimited(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "resource_exhausted") ||
		strings.Contains(msg, "resource exhausted")
}

// UserText builds a single-turn user content from a text prompt.
func UserText(text string) []*genai.Content {
	return []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: text}},
		},
	}
}

// ResponseText concatenates all text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return strings.TrimSpace(sb.String())
}

// ResponseImages returns the inline image payloads of the first candidate in
// the order the model produced them.
func ResponseImages(resp *genai.GenerateContentResponse) [][]byte {
	var images [][]byte
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return images
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
			images = append(images, part.InlineData.Data)
		}
	}
	return images
}

// CleanJSON strips markdown fences the model sometimes wraps JSON in.
func CleanJSON(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// ExtractJSONObject returns the outermost {...} block in s, or "" when none
// is present. Models often surround JSON with prose.
func ExtractJSONObject(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

// Ptr is a small helper for the pointer-typed GenerateContentConfig fields.
func Ptr[T any](v T) *T {
	return &v
}
