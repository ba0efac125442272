// Package seo produces the video title, description, and tags, plus the
// thumbnail used for the upload.
package seo

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"storytime-pipeline/config"
	"storytime-pipeline/gemini"
	"storytime-pipeline/types"
)

const metadataSystemPrompt = `You are a YouTube SEO specialist for children's animated story channels.
Generate metadata that parents searching for bedtime stories and kids' animations will find.

You MUST respond with ONLY valid JSON. No markdown, no explanation.

The JSON must have exactly these fields:
- "title": string, a warm and curiosity-driven title for a children's animated story
- "description": string, 3-5 sentences describing the story, ending with a subscribe invitation
- "tags": array of strings, a mix of broad (kids stories, bedtime stories) and story-specific tags`

type metadataJSON struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// promptSubjectRe pulls the character and setting back out of the story
// prompt for the deterministic fallback path.
var promptSubjectRe = regexp.MustCompile(`(?i)about\s+(.+?)\s+going\s+on\s+an\s+adventure\s+in\s+(.+?)(?:\s+in\s+a\b|[.,]|$)`)

var defaultTags = []string{
	"kids stories", "bedtime stories", "children's animation", "story time",
	"animated story", "kids video", "3d animation", "adventure story",
	"stories for kids", "cartoon story",
}

type modelCaller interface {
	Generate(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator creates SEO metadata with the model, falling back to a
// deterministic template when the model output is unusable.
type Generator struct {
	cfg    *config.Config
	client modelCaller
}

// New creates a metadata Generator.
func New(cfg *config.Config, client modelCaller) *Generator {
	return &Generator{cfg: cfg, client: client}
}

// Run builds the metadata for a finished story. It never fails the pipeline:
// any model problem degrades to the fallback metadata.
func (g *Generator) Run(ctx context.Context, story *types.Story) *types.Metadata {
	log.Info().Str("model", g.cfg.Metadata.Model).Msg("Generating SEO metadata")

	meta, err := g.generate(ctx, story)
	if err != nil {
		log.Warn().Err(err).Msg("Model metadata failed, using fallback")
		meta = g.Fallback(story)
	}

	meta.Title = truncateTitle(meta.Title, g.cfg.Metadata.TitleMaxChars)
	meta.Tags = g.clampTags(meta.Tags)

	log.Info().Str("title", meta.Title).Int("tags", len(meta.Tags)).Msg("Metadata ready")
	return meta
}

func (g *Generator) generate(ctx context.Context, story *types.Story) (*types.Metadata, error) {
	prompt := buildMetadataPrompt(story)

	resp, err := g.client.Generate(ctx, g.cfg.Metadata.Model, gemini.UserText(prompt), &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: metadataSystemPrompt}}},
		Temperature:       gemini.Ptr(float32(0.8)),
		SafetySettings:    gemini.SafetySettings(),
	})
	if err != nil {
		return nil, err
	}

	content := gemini.ExtractJSONObject(gemini.CleanJSON(gemini.ResponseText(resp)))
	if content == "" {
		return nil, fmt.Errorf("no JSON object in model response")
	}

	var raw metadataJSON
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, fmt.Errorf("parse metadata JSON: %w", err)
	}
	if raw.Title == "" || raw.Description == "" || len(raw.Tags) == 0 {
		return nil, fmt.Errorf("metadata JSON missing required fields")
	}

	return &types.Metadata{
		Title:       raw.Title,
		Description: raw.Description,
		Tags:        raw.Tags,
	}, nil
}

func buildMetadataPrompt(story *types.Story) string {
	var sb strings.Builder
	sb.WriteString("Generate YouTube metadata for this children's animated story video.\n\n")
	sb.WriteString(fmt.Sprintf("WORKING TITLE: %s\n\n", story.Title))
	sb.WriteString("STORY:\n")
	for i, seg := range story.Segments {
		sb.WriteString(fmt.Sprintf("Scene %d: %s\n", i+1, truncate(seg, 200)))
	}
	sb.WriteString("\nRespond ONLY with valid JSON.")
	return sb.String()
}

// Fallback derives metadata from the story prompt without a model call.
func (g *Generator) Fallback(story *types.Story) *types.Metadata {
	character, setting := subjectFromPrompt(story.PromptText)

	title := story.Title
	if title == "" || title == "Generated Story" {
		title = fmt.Sprintf("The Adventures of %s", character)
	}

	desc := fmt.Sprintf(
		"Join %s on a magical adventure in %s! A heartwarming animated story for kids. "+
			"Subscribe for a new story every day!",
		character, setting,
	)

	tags := append([]string{}, defaultTags...)
	tags = append(tags, character+" story", setting+" adventure")

	return &types.Metadata{
		Title:       title,
		Description: desc,
		Tags:        tags,
		Fallback:    true,
	}
}

func subjectFromPrompt(prompt string) (character, setting string) {
	character, setting = "a brave little hero", "a magical land"
	if m := promptSubjectRe.FindStringSubmatch(prompt); m != nil {
		character = strings.TrimSpace(m[1])
		setting = strings.TrimSpace(m[2])
	}
	return character, setting
}

func (g *Generator) clampTags(tags []string) []string {
	var cleaned []string
	seen := make(map[string]bool)
	for _, t := range tags {
		t = strings.TrimSpace(t)
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, t)
	}
	for _, t := range defaultTags {
		if len(cleaned) >= g.cfg.Metadata.TagsMin {
			break
		}
		if !seen[strings.ToLower(t)] {
			seen[strings.ToLower(t)] = true
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) > g.cfg.Metadata.TagsMax {
		cleaned = cleaned[:g.cfg.Metadata.TagsMax]
	}
	return cleaned
}

func truncateTitle(title string, max int) string {
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
