package seo

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog/log"

	"storytime-pipeline/config"
	"storytime-pipeline/visuals"
)

// Thumbnailer builds the upload thumbnail from one of the story images.
type Thumbnailer struct {
	cfg *config.Config

	runCmd func(cmd *exec.Cmd) error
}

// NewThumbnailer creates a Thumbnailer.
func NewThumbnailer(cfg *config.Config) *Thumbnailer {
	return &Thumbnailer{
		cfg:    cfg,
		runCmd: func(cmd *exec.Cmd) error { return cmd.Run() },
	}
}

// Run renders the thumbnail: the second story image resized to the thumbnail
// resolution with the channel banner drawn along the bottom. Returns the
// thumbnail path, or an error the caller may treat as non-fatal.
func (t *Thumbnailer) Run(ctx context.Context, imageFiles []string, title, outFile string) (string, error) {
	if len(imageFiles) == 0 {
		return "", fmt.Errorf("no images for thumbnail")
	}

	// The second image usually shows the character mid-adventure; the first
	// tends to be an establishing shot.
	src := imageFiles[pickIndex(len(imageFiles))]

	w := t.cfg.Metadata.ThumbnailWidth
	h := t.cfg.Metadata.ThumbnailHeight

	resized := outFile + ".base.jpg"
	if err := visuals.Resize(src, resized, w, h, t.cfg.Visuals.JPEGQuality); err != nil {
		return "", fmt.Errorf("resize thumbnail base: %w", err)
	}
	defer os.Remove(resized)

	banner := title
	if banner == "" {
		banner = t.cfg.Metadata.ThumbnailBanner
	}
	if err := t.drawBanner(ctx, resized, outFile, banner, h); err != nil {
		return "", fmt.Errorf("draw thumbnail banner: %w", err)
	}

	log.Info().Str("file", outFile).Str("source", src).Msg("Thumbnail created")
	return outFile, nil
}

func pickIndex(count int) int {
	if count > 1 {
		return 1
	}
	return 0
}

// drawBanner overlays the banner text on a dark strip at the bottom edge.
func (t *Thumbnailer) drawBanner(ctx context.Context, inFile, outFile, text string, height int) error {
	banner := escapeDrawtext(text)
	filter := fmt.Sprintf(
		"drawbox=x=0:y=ih-%d:w=iw:h=%d:color=black@0.6:t=fill,"+
			"drawtext=text='%s':fontcolor=white:fontsize=%d:x=(w-text_w)/2:y=h-%d",
		height/6, height/6,
		banner,
		height/10,
		height/8,
	)

	cmd := exec.CommandContext(ctx, "ffmpeg", "-y",
		"-i", inFile,
		"-vf", filter,
		"-q:v", "2",
		outFile,
	)
	cmd.Stderr = os.Stderr
	return t.runCmd(cmd)
}

// escapeDrawtext escapes the characters ffmpeg's drawtext treats specially.
func escapeDrawtext(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`:`, `\:`,
		`%`, `\%`,
	)
	return r.Replace(s)
}
