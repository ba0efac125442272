// Package prompt builds the story prompt that seeds each pipeline run.
package prompt

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"storytime-pipeline/config"
	"storytime-pipeline/gemini"
)

// promptTemplate is the fixed shape every story prompt must follow. Only the
// character and setting vary between runs; the image directives are part of
// the template so the model returns widescreen scene illustrations.
const promptTemplate = "Generate a story about %s going on an adventure in %s in a highly detailed 3d cartoon animation style. For each scene, generate a high-quality, photorealistic image for each scene **in landscape orientation suitable for a widescreen (16:9 aspect ratio) YouTube video**. Ensure maximum detail, vibrant colors, and professional lighting."

const defaultGuidance = "Create a children's story with a different animal character and a unique adventure theme. Be creative with the setting and storyline."

var (
	fallbackAnimals = []string{
		"fox", "bear", "rabbit", "elephant", "tiger",
		"penguin", "koala", "turtle", "lion", "dolphin",
	}
	fallbackSettings = []string{
		"enchanted forest", "snowy mountain", "deep ocean", "outer space",
		"desert oasis", "ancient castle", "tropical island", "underwater cave",
		"cloud city", "magical garden",
	}
)

type modelCaller interface {
	Generate(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator produces story prompts via a Gemini reasoning model, falling back
// to a randomized template when generation fails or returns the wrong shape.
type Generator struct {
	cfg    *config.Config
	client modelCaller
}

// New creates a prompt Generator.
func New(cfg *config.Config, client modelCaller) *Generator {
	return &Generator{cfg: cfg, client: client}
}

// Run returns a prompt matching the fixed story template.
func (g *Generator) Run(ctx context.Context) (string, error) {
	guidance := g.cfg.Prompt.Guidance
	if guidance == "" {
		guidance = defaultGuidance
	}

	instruction := buildInstruction(guidance)
	contents := gemini.UserText(instruction)
	genCfg := &genai.GenerateContentConfig{
		Temperature: gemini.Ptr(float32(g.cfg.Prompt.Temperature)),
	}

	resp, err := g.client.Generate(ctx, g.cfg.Prompt.Model, contents, genCfg)
	if err != nil {
		log.Warn().Err(err).Msg("Prompt generation failed, using fallback prompt")
		return Fallback(), nil
	}

	generated := strings.TrimSpace(gemini.ResponseText(resp))
	cleaned, ok := validate(generated)
	if !ok {
		log.Warn().Str("raw", truncate(generated, 120)).Msg("Generated prompt has wrong shape, using fallback prompt")
		return Fallback(), nil
	}

	log.Info().Str("prompt", truncate(cleaned, 120)).Msg("Prompt ready")
	return cleaned, nil
}

func buildInstruction(guidance string) string {
	return fmt.Sprintf(`Create a children's story prompt using EXACTLY this format:
"%s"

Replace the character with any animal character and the setting with any interesting setting for the adventure.
Do NOT change any other parts of the structure. Keep the exact beginning and ending exactly as shown.
Your response should be ONLY the completed prompt with no additional text.

Original guidance: %s`,
		fmt.Sprintf(promptTemplate, "[animal character]", "[setting]"), guidance)
}

var quotedRe = regexp.MustCompile(`"(.+?)"`)

// validate checks that the model kept the template structure, extracting the
// prompt from surrounding quotes or prose when possible.
func validate(generated string) (string, bool) {
	if matchesTemplate(generated) {
		return generated, true
	}
	if m := quotedRe.FindStringSubmatch(generated); m != nil && matchesTemplate(m[1]) {
		return m[1], true
	}
	return "", false
}

func matchesTemplate(s string) bool {
	return strings.Contains(s, "Generate a story about") &&
		strings.Contains(s, "going on an adventure in")
}

// Fallback fills the template from the randomized animal and setting lists.
func Fallback() string {
	animal := fallbackAnimals[rand.Intn(len(fallbackAnimals))]
	setting := fallbackSettings[rand.Intn(len(fallbackSettings))]
	log.Info().Str("animal", animal).Str("setting", setting).Msg("Using fallback prompt")
	return fmt.Sprintf(promptTemplate, "a clever "+animal, "a "+setting)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
