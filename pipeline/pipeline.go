// Package pipeline runs one story end to end: prompt, story, narration,
// visuals, render, metadata, thumbnail, upload.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"storytime-pipeline/audio"
	"storytime-pipeline/config"
	"storytime-pipeline/gemini"
	"storytime-pipeline/prompt"
	"storytime-pipeline/render"
	"storytime-pipeline/seo"
	"storytime-pipeline/story"
	"storytime-pipeline/types"
	"storytime-pipeline/upload"
	"storytime-pipeline/visuals"
)

// Stage interfaces keep the orchestrator testable with fakes.
type (
	promptStage interface {
		Run(ctx context.Context) (string, error)
	}
	storyStage interface {
		Run(ctx context.Context, promptText, imageDir string) (*types.Story, error)
	}
	audioStage interface {
		Run(ctx context.Context, storyText, outputDir string) (string, float64, error)
	}
	visualsStage interface {
		Run(imageFiles []string, outputDir string) ([]string, error)
	}
	renderStage interface {
		Run(ctx context.Context, imageFiles []string, audioFile string, narrationSec float64, outputDir string) (string, error)
	}
	seoStage interface {
		Run(ctx context.Context, s *types.Story) *types.Metadata
	}
	thumbnailStage interface {
		Run(ctx context.Context, imageFiles []string, title, outFile string) (string, error)
	}
	uploadStage interface {
		Run(ctx context.Context, runID, videoFile, thumbnailFile string, metadata *types.Metadata) *types.UploadResult
	}
)

// Pipeline wires the stages together and owns the run directory layout.
type Pipeline struct {
	cfg *config.Config

	prompts   promptStage
	stories   storyStage
	narration audioStage
	frames    visualsStage
	renderer  renderStage
	metadata  seoStage
	thumbs    thumbnailStage
	uploader  uploadStage
}

// New builds a Pipeline with the production stages.
func New(cfg *config.Config, client *gemini.Client) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		prompts:   prompt.New(cfg, client),
		stories:   story.New(cfg, client),
		narration: audio.New(cfg),
		frames:    visuals.New(cfg),
		renderer:  render.New(cfg),
		metadata:  seo.New(cfg, client),
		thumbs:    seo.NewThumbnailer(cfg),
		uploader:  upload.New(cfg),
	}
}

// Run executes one full generation. The returned state is also persisted to
// the run directory, including on failure.
func (p *Pipeline) Run(ctx context.Context) (*types.RunState, error) {
	runID := uuid.NewString()[:8]
	runDir := filepath.Join(p.cfg.Paths.Output, runID)

	for _, dir := range []string{
		runDir,
		p.cfg.Paths.Stories,
		p.cfg.Paths.Videos,
		p.cfg.Paths.Thumbnails,
		p.cfg.Paths.Metadata,
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create dir %s: %w", dir, err)
		}
	}

	log.Info().Str("run_id", runID).Str("dir", runDir).Msg("Pipeline starting")

	state := &types.RunState{
		RunID:     runID,
		StartedAt: time.Now().UTC().Format(time.RFC3339),
	}
	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		saveJSON(filepath.Join(runDir, "run_state.json"), state)
	}()

	if err := p.run(ctx, runID, runDir, state); err != nil {
		state.Error = err.Error()
		log.Error().Err(err).Str("run_id", runID).Msg("Pipeline failed")
		return state, err
	}

	log.Info().Str("run_id", runID).Str("video", state.VideoFile).Msg("Pipeline complete")
	return state, nil
}

func (p *Pipeline) run(ctx context.Context, runID, runDir string, state *types.RunState) error {
	log.Info().Msg("Stage 1: story prompt")
	promptText, err := p.prompts.Run(ctx)
	if err != nil {
		return fmt.Errorf("prompt generation: %w", err)
	}
	state.PromptText = promptText

	log.Info().Msg("Stage 2: story and images")
	imageDir := filepath.Join(runDir, "images")
	s, err := p.stories.Run(ctx, promptText, imageDir)
	if err != nil {
		return fmt.Errorf("story generation: %w", err)
	}
	s.PromptText = promptText
	state.Story = s

	storyFile := filepath.Join(p.cfg.Paths.Stories, runID+"_story.txt")
	if err := os.WriteFile(storyFile, []byte(strings.Join(s.Segments, "\n\n")), 0644); err != nil {
		log.Warn().Err(err).Msg("Could not save story text")
	}

	log.Info().Msg("Stage 3: narration")
	audioFile, narrationSec, err := p.narration.Run(ctx, story.Clean(s.RawText), runDir)
	if err != nil {
		return fmt.Errorf("narration: %w", err)
	}
	state.AudioFile = audioFile

	log.Info().Msg("Stage 4: frame preparation")
	frames, err := p.frames.Run(s.ImageFiles, filepath.Join(runDir, "frames"))
	if err != nil {
		return fmt.Errorf("frame preparation: %w", err)
	}

	log.Info().Msg("Stage 5: video assembly")
	rendered, err := p.renderer.Run(ctx, frames, audioFile, narrationSec, runDir)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	videoFile := filepath.Join(p.cfg.Paths.Videos, runID+"_video.mp4")
	if err := os.Rename(rendered, videoFile); err != nil {
		log.Warn().Err(err).Msg("Could not move video to library, keeping run-dir copy")
		videoFile = rendered
	}
	state.VideoFile = videoFile

	log.Info().Msg("Stage 6: metadata")
	meta := p.metadata.Run(ctx, s)

	log.Info().Msg("Stage 7: thumbnail")
	thumbFile := filepath.Join(p.cfg.Paths.Thumbnails, runID+"_thumbnail.jpg")
	if _, err := p.thumbs.Run(ctx, s.ImageFiles, meta.Title, thumbFile); err != nil {
		log.Warn().Err(err).Msg("Thumbnail failed, continuing without one")
		thumbFile = ""
	}
	meta.Thumbnail = thumbFile
	state.Metadata = meta
	saveJSON(filepath.Join(p.cfg.Paths.Metadata, runID+"_metadata.json"), meta)

	log.Info().Msg("Stage 8: upload")
	state.Upload = p.uploader.Run(ctx, runID, videoFile, thumbFile, meta)
	if state.Upload.LocalOnly {
		log.Info().Str("video", videoFile).Msg("Artifacts kept locally")
	}

	return nil
}

func saveJSON(path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Could not marshal JSON")
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Could not save JSON")
	}
}
