// Package story generates the narrative and per-scene illustrations in one
// multimodal Gemini call, retrying until the response is complete.
package story

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"storytime-pipeline/config"
	"storytime-pipeline/gemini"
	"storytime-pipeline/types"
)

// textInsteadOfImageMarker appears when the model writes prose descriptions
// instead of emitting actual image parts. Such responses must be regenerated.
const textInsteadOfImageMarker = "Image Description:"

type modelCaller interface {
	Generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator produces a complete story with illustrations.
type Generator struct {
	cfg    *config.Config
	client modelCaller

	sleep func(time.Duration)
}

// New creates a story Generator.
func New(cfg *config.Config, client modelCaller) *Generator {
	return &Generator{cfg: cfg, client: client, sleep: time.Sleep}
}

// Run generates a story for the prompt, writing accepted images into imageDir.
// A response is accepted only when it carries at least MinSegments cleaned
// paragraphs and at least MinSegments decodable images; anything less is
// retried up to MaxAttempts times.
func (g *Generator) Run(ctx context.Context, promptText, imageDir string) (*types.Story, error) {
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}

	genCfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{"TEXT", "IMAGE"},
		SafetySettings:     gemini.SafetySettings(),
	}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.Story.MaxAttempts; attempt++ {
		log.Info().Int("attempt", attempt).Int("max", g.cfg.Story.MaxAttempts).Msg("Generating story with images")

		st, err := g.generateOnce(ctx, promptText, imageDir, genCfg)
		if err == nil {
			log.Info().
				Str("title", st.Title).
				Int("segments", len(st.Segments)).
				Int("images", len(st.ImageFiles)).
				Msg("Story accepted")
			return st, nil
		}
		lastErr = err
		log.Warn().Err(err).Int("attempt", attempt).Msg("Story attempt rejected")

		if attempt < g.cfg.Story.MaxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			g.sleep(time.Duration(g.cfg.Story.RetryDelaySec * float64(time.Second)))
		}
	}
	return nil, fmt.Errorf("story generation failed after %d attempts: %w", g.cfg.Story.MaxAttempts, lastErr)
}

func (g *Generator) generateOnce(ctx context.Context, promptText, imageDir string, genCfg *genai.GenerateContentConfig) (*types.Story, error) {
	resp, err := g.client.Generate(ctx, g.cfg.Story.Model, gemini.UserText(promptText), genCfg)
	if err != nil {
		return nil, err
	}

	text := gemini.ResponseText(resp)
	if text == "" {
		return nil, fmt.Errorf("response carried no story text")
	}
	if strings.Contains(text, textInsteadOfImageMarker) {
		return nil, fmt.Errorf("model returned image descriptions instead of images")
	}

	payloads := gemini.ResponseImages(resp)
	if len(payloads) == 0 {
		return nil, fmt.Errorf("response carried no images")
	}

	segments := Segments(text)
	if len(segments) < g.cfg.Story.MinSegments {
		return nil, fmt.Errorf("insufficient story segments: %d (need %d)", len(segments), g.cfg.Story.MinSegments)
	}

	imageFiles, err := saveImages(payloads, imageDir)
	if err != nil {
		return nil, err
	}
	if len(imageFiles) < g.cfg.Story.MinSegments {
		return nil, fmt.Errorf("insufficient valid images: %d (need %d)", len(imageFiles), g.cfg.Story.MinSegments)
	}

	return &types.Story{
		Title:      Title(text),
		RawText:    text,
		Segments:   segments,
		ImageFiles: imageFiles,
		PromptText: promptText,
	}, nil
}

// saveImages writes each decodable payload to disk. Payloads that fail to
// decode are skipped, not fatal; the caller enforces the minimum count.
func saveImages(payloads [][]byte, dir string) ([]string, error) {
	var files []string
	for i, data := range payloads {
		format, err := verifyImage(data)
		if err != nil {
			log.Warn().Err(err).Int("index", i).Msg("Skipping undecodable image payload")
			continue
		}
		ext := "jpg"
		if format == "png" {
			ext = "png"
		}
		path := filepath.Join(dir, fmt.Sprintf("image_%02d.%s", len(files), ext))
		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("save image %d: %w", i, err)
		}
		files = append(files, path)
	}
	return files, nil
}

func verifyImage(data []byte) (string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return "", fmt.Errorf("image has zero dimensions")
	}
	return format, nil
}
