// Package render assembles the narrated slideshow video with ffmpeg.
package render

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"storytime-pipeline/config"
)

// Assembler builds the final MP4 from the normalized images and the
// narration track.
type Assembler struct {
	cfg *config.Config

	// runCmd is swappable in tests.
	runCmd func(cmd *exec.Cmd) error
}

// New creates a render Assembler.
func New(cfg *config.Config) *Assembler {
	return &Assembler{
		cfg:    cfg,
		runCmd: func(cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// Run renders the slideshow video into outputDir and returns its path.
// Every image is held long enough to cover the narration, with crossfade
// transitions between consecutive scenes.
func (a *Assembler) Run(ctx context.Context, imageFiles []string, audioFile string, narrationSec float64, outputDir string) (string, error) {
	if len(imageFiles) == 0 {
		return "", fmt.Errorf("no images to render")
	}
	if audioFile == "" {
		return "", fmt.Errorf("no narration audio")
	}

	log.Info().Int("images", len(imageFiles)).Float64("narration_sec", narrationSec).Msg("Starting video assembly")

	perImage := a.imageDuration(len(imageFiles), narrationSec)
	outFile := filepath.Join(outputDir, "final_video.mp4")

	args := a.buildArgs(imageFiles, audioFile, perImage, outFile)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := a.runCmd(cmd); err != nil {
		return "", fmt.Errorf("ffmpeg render: %w", err)
	}

	log.Info().Str("file", outFile).Msg("Final video ready")
	return outFile, nil
}

// imageDuration returns how long each image is shown. Crossfades overlap
// adjacent scenes, so the per-image hold is stretched to keep the total
// runtime at least the narration length.
func (a *Assembler) imageDuration(count int, narrationSec float64) float64 {
	fade := a.cfg.Video.CrossfadeSec
	dur := (narrationSec + float64(count-1)*fade) / float64(count)
	if dur < a.cfg.Video.MinImageHoldSec {
		dur = a.cfg.Video.MinImageHoldSec
	}
	return dur
}

// buildArgs constructs the full ffmpeg argument list: one looped input per
// image, the narration track, a scale/pad/xfade filter graph, and the
// encoder settings.
func (a *Assembler) buildArgs(imageFiles []string, audioFile string, perImage float64, outFile string) []string {
	args := []string{"-y"}
	for _, file := range imageFiles {
		args = append(args,
			"-loop", "1",
			"-t", fmt.Sprintf("%.3f", perImage),
			"-i", file,
		)
	}
	args = append(args, "-i", audioFile)

	filter := a.buildFilter(len(imageFiles), perImage)
	args = append(args,
		"-filter_complex", filter,
		"-map", "[vout]",
		"-map", fmt.Sprintf("%d:a", len(imageFiles)),
		"-c:v", "libx264",
		"-preset", a.cfg.Video.Preset,
		"-crf", fmt.Sprintf("%d", a.cfg.Video.CRF),
		"-r", fmt.Sprintf("%d", a.cfg.Video.FPS),
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", a.cfg.Video.AudioBitrate,
		"-shortest",
		"-movflags", "+faststart",
		outFile,
	)
	return args
}

// buildFilter produces the filter_complex graph: normalize each input to the
// frame size, then chain xfade transitions between consecutive scenes.
func (a *Assembler) buildFilter(count int, perImage float64) string {
	w, h := a.cfg.Visuals.Width, a.cfg.Visuals.Height
	fade := a.cfg.Video.CrossfadeSec

	var parts []string
	for i := 0; i < count; i++ {
		parts = append(parts, fmt.Sprintf(
			"[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1[v%d]",
			i, w, h, w, h, i,
		))
	}

	if count == 1 {
		parts = append(parts, "[v0]copy[vout]")
		return strings.Join(parts, ";")
	}

	// Each xfade consumes fade seconds of overlap, so the offset of
	// transition k is k*(perImage-fade).
	prev := "[v0]"
	for i := 1; i < count; i++ {
		out := fmt.Sprintf("[x%d]", i)
		if i == count-1 {
			out = "[vout]"
		}
		offset := float64(i) * (perImage - fade)
		parts = append(parts, fmt.Sprintf(
			"%s[v%d]xfade=transition=fade:duration=%.3f:offset=%.3f%s",
			prev, i, fade, offset, out,
		))
		prev = out
	}
	return strings.Join(parts, ";")
}
