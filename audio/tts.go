// Package audio converts the cleaned story text into a narration track.
package audio

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"storytime-pipeline/config"
)

// Generator handles TTS narration.
//
// The engine is an external command. Set TTS_COMMAND to a binary or script
// accepting --text "..." --output path; when unset, edge-tts is used if
// installed.
type Generator struct {
	cfg *config.Config

	runCmd func(*exec.Cmd) error
	sleep  func(time.Duration)
}

// New creates an audio Generator.
func New(cfg *config.Config) *Generator {
	return &Generator{
		cfg:    cfg,
		runCmd: func(cmd *exec.Cmd) error { return cmd.Run() },
		sleep:  time.Sleep,
	}
}

// Run synthesizes the full story narration into outputDir and returns the
// audio path with its measured duration in seconds.
func (g *Generator) Run(ctx context.Context, storyText, outputDir string) (string, float64, error) {
	if strings.TrimSpace(storyText) == "" {
		return "", 0, fmt.Errorf("story text is empty")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", 0, fmt.Errorf("create audio dir: %w", err)
	}

	engine, err := resolveEngine()
	if err != nil {
		return "", 0, err
	}

	outFile := filepath.Join(outputDir, "narration."+g.cfg.Audio.OutputFormat)
	log.Info().Str("engine", engine).Int("chars", len(storyText)).Msg("Synthesizing narration")

	if err := g.synthesize(ctx, engine, storyText, outFile); err != nil {
		return "", 0, fmt.Errorf("tts: %w", err)
	}

	dur, err := Duration(outFile)
	if err != nil {
		return "", 0, fmt.Errorf("measure narration duration: %w", err)
	}

	log.Info().Str("file", outFile).Float64("seconds", dur).Msg("Narration ready")
	return outFile, dur, nil
}

func resolveEngine() (string, error) {
	if cmd := strings.TrimSpace(os.Getenv("TTS_COMMAND")); cmd != "" {
		return cmd, nil
	}
	if _, err := exec.LookPath("edge-tts"); err == nil {
		return "edge-tts", nil
	}
	return "", fmt.Errorf("no TTS engine found: set TTS_COMMAND or install edge-tts (pip install edge-tts)")
}

func (g *Generator) synthesize(ctx context.Context, engine, text, outFile string) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		cmd := buildCommand(ctx, engine, g.cfg.Audio.Voice, text, outFile)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		if err = g.runCmd(cmd); err == nil {
			return nil
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("TTS attempt failed")
		if attempt < 3 {
			g.sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}
	return err
}

func buildCommand(ctx context.Context, engine, voice, text, outFile string) *exec.Cmd {
	switch {
	case engine == "edge-tts":
		return exec.CommandContext(ctx, "edge-tts",
			"--voice", voice,
			"--text", text,
			"--write-media", outFile,
		)
	case strings.HasSuffix(engine, ".py"):
		return exec.CommandContext(ctx, "python3", engine,
			"--text", text,
			"--output", outFile,
		)
	default:
		return exec.CommandContext(ctx, engine,
			"--text", text,
			"--output", outFile,
		)
	}
}

// Duration returns a media file's duration in seconds via ffprobe.
func Duration(file string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		file,
	).Output()
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
}
