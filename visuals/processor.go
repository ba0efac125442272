// Package visuals normalizes the generated illustrations to the video frame
// size before assembly.
package visuals

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"

	"storytime-pipeline/config"
)

// Processor resizes story images to the target resolution with aspect-ratio
// preserving letterboxing.
type Processor struct {
	cfg *config.Config
}

// New creates a visuals Processor.
func New(cfg *config.Config) *Processor {
	return &Processor{cfg: cfg}
}

// Run processes every image into outputDir as frame_NN.jpg, returning the new
// paths in the original scene order.
func (p *Processor) Run(imageFiles []string, outputDir string) ([]string, error) {
	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no images to process")
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create visuals dir: %w", err)
	}

	w, h := p.cfg.Visuals.Width, p.cfg.Visuals.Height
	var processed []string
	for i, file := range imageFiles {
		outFile := filepath.Join(outputDir, fmt.Sprintf("frame_%02d.jpg", i))
		if err := p.normalize(file, outFile, w, h); err != nil {
			return nil, fmt.Errorf("normalize image %d (%s): %w", i, file, err)
		}
		processed = append(processed, outFile)
	}

	log.Info().Int("count", len(processed)).Int("width", w).Int("height", h).Msg("Images normalized")
	return processed, nil
}

func (p *Processor) normalize(inFile, outFile string, width, height int) error {
	src, err := decode(inFile)
	if err != nil {
		return err
	}

	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)

	target := fitRect(src.Bounds().Dx(), src.Bounds().Dy(), width, height)
	draw.CatmullRom.Scale(frame, target, src, src.Bounds(), draw.Over, nil)

	return encodeJPEG(frame, outFile, p.cfg.Visuals.JPEGQuality)
}

// fitRect scales src dimensions to fit inside dst, centered, preserving
// aspect ratio.
func fitRect(srcW, srcH, dstW, dstH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 {
		return image.Rect(0, 0, dstW, dstH)
	}
	scale := float64(dstW) / float64(srcW)
	if s := float64(dstH) / float64(srcH); s < scale {
		scale = s
	}
	w := int(float64(srcW)*scale + 0.5)
	h := int(float64(srcH)*scale + 0.5)
	x := (dstW - w) / 2
	y := (dstH - h) / 2
	return image.Rect(x, y, x+w, y+h)
}

func decode(file string) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return img, nil
}

func encodeJPEG(img image.Image, file string, quality int) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
}

// Resize scales a single image file to exactly width x height (letterboxed)
// and writes it as JPEG. Used for the thumbnail.
func Resize(inFile, outFile string, width, height, quality int) error {
	src, err := decode(inFile)
	if err != nil {
		return err
	}
	frame := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(frame, frame.Bounds(), &image.Uniform{C: color.Black}, image.Point{}, draw.Src)
	target := fitRect(src.Bounds().Dx(), src.Bounds().Dy(), width, height)
	draw.CatmullRom.Scale(frame, target, src, src.Bounds(), draw.Over, nil)
	return encodeJPEG(frame, outFile, quality)
}
