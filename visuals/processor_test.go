package visuals

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"storytime-pipeline/config"
)

func TestFitRect(t *testing.T) {
	tests := []struct {
		name                   string
		srcW, srcH, dstW, dstH int
		want                   image.Rectangle
	}{
		{"same aspect", 960, 540, 1920, 1080, image.Rect(0, 0, 1920, 1080)},
		{"wider than frame", 2000, 500, 1920, 1080, image.Rect(0, 300, 1920, 780)},
		{"taller than frame", 500, 2000, 1920, 1080, image.Rect(825, 0, 1095, 1080)},
		{"square into wide", 1000, 1000, 1920, 1080, image.Rect(420, 0, 1500, 1080)},
		{"degenerate source", 0, 0, 1920, 1080, image.Rect(0, 0, 1920, 1080)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := fitRect(tt.srcW, tt.srcH, tt.dstW, tt.dstH)
			if got != tt.want {
				t.Errorf("fitRect(%d,%d,%d,%d) = %v, want %v", tt.srcW, tt.srcH, tt.dstW, tt.dstH, got, tt.want)
			}
		})
	}
}

func writeTestPNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 120, B: 40, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create test image: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	return path
}

func TestRunNormalizesImages(t *testing.T) {
	dir := t.TempDir()
	in1 := writeTestPNG(t, dir, "a.png", 640, 480)
	in2 := writeTestPNG(t, dir, "b.png", 300, 900)

	cfg := config.Default()
	cfg.Visuals.Width = 320
	cfg.Visuals.Height = 180

	outDir := filepath.Join(dir, "out")
	p := New(cfg)
	files, err := p.Run([]string{in1, in2}, outDir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("got %d files, want 2", len(files))
	}
	for _, file := range files {
		img, err := decode(file)
		if err != nil {
			t.Fatalf("decode output %s: %v", file, err)
		}
		b := img.Bounds()
		if b.Dx() != 320 || b.Dy() != 180 {
			t.Errorf("%s is %dx%d, want 320x180", file, b.Dx(), b.Dy())
		}
	}
}

func TestRunEmptyInput(t *testing.T) {
	p := New(config.Default())
	if _, err := p.Run(nil, t.TempDir()); err == nil {
		t.Fatal("expected error for empty input")
	}
}
