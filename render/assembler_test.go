package render

import (
	"context"
	"math"
	"os/exec"
	"strings"
	"testing"

	"storytime-pipeline/config"
)

func testAssembler() *Assembler {
	cfg := config.Default()
	return New(cfg)
}

func TestImageDuration(t *testing.T) {
	a := testAssembler()
	a.cfg.Video.CrossfadeSec = 1.0
	a.cfg.Video.MinImageHoldSec = 3.0

	tests := []struct {
		name      string
		count     int
		narration float64
		want      float64
	}{
		{"even split with fade compensation", 6, 60, (60.0 + 5.0) / 6.0},
		{"clamped to minimum hold", 10, 5, 3.0},
		{"single image", 1, 30, 30.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := a.imageDuration(tt.count, tt.narration)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("imageDuration(%d, %v) = %v, want %v", tt.count, tt.narration, got, tt.want)
			}
		})
	}
}

func TestBuildFilterSingleImage(t *testing.T) {
	a := testAssembler()
	filter := a.buildFilter(1, 30)
	if !strings.Contains(filter, "[v0]copy[vout]") {
		t.Errorf("single-image filter missing passthrough: %s", filter)
	}
	if strings.Contains(filter, "xfade") {
		t.Errorf("single-image filter should not crossfade: %s", filter)
	}
}

func TestBuildFilterCrossfadeChain(t *testing.T) {
	a := testAssembler()
	a.cfg.Video.CrossfadeSec = 1.0
	filter := a.buildFilter(3, 10)

	if got := strings.Count(filter, "xfade"); got != 2 {
		t.Fatalf("got %d xfade stages, want 2: %s", got, filter)
	}
	if !strings.Contains(filter, "offset=9.000") {
		t.Errorf("first transition offset wrong: %s", filter)
	}
	if !strings.Contains(filter, "offset=18.000") {
		t.Errorf("second transition offset wrong: %s", filter)
	}
	if !strings.HasSuffix(filter, "[vout]") {
		t.Errorf("filter must end at [vout]: %s", filter)
	}
}

func TestBuildArgs(t *testing.T) {
	a := testAssembler()
	args := a.buildArgs([]string{"a.jpg", "b.jpg"}, "narration.mp3", 12.5, "out.mp4")
	joined := strings.Join(args, " ")

	for _, want := range []string{
		"-loop 1 -t 12.500 -i a.jpg",
		"-loop 1 -t 12.500 -i b.jpg",
		"-i narration.mp3",
		"-map [vout]",
		"-map 2:a",
		"-c:v libx264",
		"-pix_fmt yuv420p",
		"-movflags +faststart",
		"-shortest",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("args missing %q: %s", want, joined)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("last arg = %q, want out.mp4", args[len(args)-1])
	}
}

func TestRunValidation(t *testing.T) {
	a := testAssembler()
	if _, err := a.Run(context.Background(), nil, "a.mp3", 10, t.TempDir()); err == nil {
		t.Error("expected error for no images")
	}
	if _, err := a.Run(context.Background(), []string{"a.jpg"}, "", 10, t.TempDir()); err == nil {
		t.Error("expected error for missing audio")
	}
}

func TestRunInvokesFFmpeg(t *testing.T) {
	a := testAssembler()
	var captured []string
	a.runCmd = func(cmd *exec.Cmd) error {
		captured = cmd.Args
		return nil
	}

	out, err := a.Run(context.Background(), []string{"a.jpg", "b.jpg"}, "n.mp3", 20, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasSuffix(out, "final_video.mp4") {
		t.Errorf("output path = %q", out)
	}
	if len(captured) == 0 || captured[0] != "ffmpeg" {
		t.Errorf("expected ffmpeg invocation, got %v", captured)
	}
}
