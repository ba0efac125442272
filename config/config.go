package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Prompt   PromptConfig   `yaml:"prompt"`
	Story    StoryConfig    `yaml:"story"`
	Audio    AudioConfig    `yaml:"audio"`
	Visuals  VisualsConfig  `yaml:"visuals"`
	Video    VideoConfig    `yaml:"video"`
	Metadata MetadataConfig `yaml:"metadata"`
	Upload   UploadConfig   `yaml:"upload"`
	Runner   RunnerConfig   `yaml:"runner"`
	Paths    PathsConfig    `yaml:"paths"`
}

type PromptConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	Guidance    string  `yaml:"guidance"`
}

type StoryConfig struct {
	Model         string  `yaml:"model"`
	MinSegments   int     `yaml:"min_segments"`
	MaxAttempts   int     `yaml:"max_attempts"`
	RetryDelaySec float64 `yaml:"retry_delay_sec"`
}

type AudioConfig struct {
	Voice        string `yaml:"voice"`
	OutputFormat string `yaml:"output_format"`
}

type VisualsConfig struct {
	Width       int `yaml:"width"`
	Height      int `yaml:"height"`
	JPEGQuality int `yaml:"jpeg_quality"`
}

type VideoConfig struct {
	FPS             int     `yaml:"fps"`
	CRF             int     `yaml:"crf"`
	Preset          string  `yaml:"preset"`
	CrossfadeSec    float64 `yaml:"crossfade_sec"`
	MinImageHoldSec float64 `yaml:"min_image_hold_sec"`
	AudioBitrate    string  `yaml:"audio_bitrate"`
}

type MetadataConfig struct {
	Model           string `yaml:"model"`
	TitleMaxChars   int    `yaml:"title_max_chars"`
	TagsMin         int    `yaml:"tags_min"`
	TagsMax         int    `yaml:"tags_max"`
	ThumbnailWidth  int    `yaml:"thumbnail_width"`
	ThumbnailHeight int    `yaml:"thumbnail_height"`
	ThumbnailBanner string `yaml:"thumbnail_banner"`
}

type UploadConfig struct {
	Enabled        bool   `yaml:"enabled"`
	ParentFolderID string `yaml:"parent_folder_id"`
}

type RunnerConfig struct {
	DurationHours   float64 `yaml:"duration_hours"`
	StoryCount      int     `yaml:"story_count"`
	PauseBetweenSec int     `yaml:"pause_between_sec"`
}

type PathsConfig struct {
	Output     string `yaml:"output"`
	Stories    string `yaml:"stories"`
	Videos     string `yaml:"videos"`
	Thumbnails string `yaml:"thumbnails"`
	Metadata   string `yaml:"metadata"`
}

// Load reads a YAML config file and returns a Config with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a Config usable without a config file. The one-shot runner
// falls back to it when config.yaml is absent.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Prompt.Model == "" {
		c.Prompt.Model = "gemini-2.0-flash-thinking-exp-01-21"
	}
	if c.Prompt.Temperature == 0 {
		c.Prompt.Temperature = 0.9
	}
	if c.Story.Model == "" {
		c.Story.Model = "gemini-2.0-flash-exp-image-generation"
	}
	if c.Story.MinSegments == 0 {
		c.Story.MinSegments = 6
	}
	if c.Story.MaxAttempts == 0 {
		c.Story.MaxAttempts = 8
	}
	if c.Story.RetryDelaySec == 0 {
		c.Story.RetryDelaySec = 7
	}
	if c.Audio.Voice == "" {
		c.Audio.Voice = "en-US-AnaNeural"
	}
	if c.Audio.OutputFormat == "" {
		c.Audio.OutputFormat = "mp3"
	}
	if c.Visuals.Width == 0 {
		c.Visuals.Width = 1920
	}
	if c.Visuals.Height == 0 {
		c.Visuals.Height = 1080
	}
	if c.Visuals.JPEGQuality == 0 {
		c.Visuals.JPEGQuality = 90
	}
	if c.Video.FPS == 0 {
		c.Video.FPS = 30
	}
	if c.Video.CRF == 0 {
		c.Video.CRF = 22
	}
	if c.Video.Preset == "" {
		c.Video.Preset = "fast"
	}
	if c.Video.CrossfadeSec == 0 {
		c.Video.CrossfadeSec = 1.0
	}
	if c.Video.MinImageHoldSec == 0 {
		c.Video.MinImageHoldSec = 3.0
	}
	if c.Video.AudioBitrate == "" {
		c.Video.AudioBitrate = "192k"
	}
	if c.Metadata.Model == "" {
		c.Metadata.Model = "gemini-2.0-flash-thinking-exp-01-21"
	}
	if c.Metadata.TitleMaxChars == 0 {
		c.Metadata.TitleMaxChars = 60
	}
	if c.Metadata.TagsMin == 0 {
		c.Metadata.TagsMin = 10
	}
	if c.Metadata.TagsMax == 0 {
		c.Metadata.TagsMax = 15
	}
	if c.Metadata.ThumbnailWidth == 0 {
		c.Metadata.ThumbnailWidth = 1280
	}
	if c.Metadata.ThumbnailHeight == 0 {
		c.Metadata.ThumbnailHeight = 720
	}
	if c.Metadata.ThumbnailBanner == "" {
		c.Metadata.ThumbnailBanner = "Children's Story Animation"
	}
	if c.Runner.PauseBetweenSec == 0 {
		c.Runner.PauseBetweenSec = 30
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "output"
	}
	if c.Paths.Stories == "" {
		c.Paths.Stories = "stories"
	}
	if c.Paths.Videos == "" {
		c.Paths.Videos = "videos"
	}
	if c.Paths.Thumbnails == "" {
		c.Paths.Thumbnails = "thumbnails"
	}
	if c.Paths.Metadata == "" {
		c.Paths.Metadata = "metadata"
	}
}

func (c *Config) validate() error {
	if c.Story.MinSegments < 1 {
		return fmt.Errorf("story.min_segments must be >= 1, got %d", c.Story.MinSegments)
	}
	if c.Story.MaxAttempts < 1 {
		return fmt.Errorf("story.max_attempts must be >= 1, got %d", c.Story.MaxAttempts)
	}
	if c.Visuals.Width <= 0 || c.Visuals.Height <= 0 {
		return fmt.Errorf("visuals resolution must be positive, got %dx%d", c.Visuals.Width, c.Visuals.Height)
	}
	if c.Visuals.JPEGQuality < 1 || c.Visuals.JPEGQuality > 100 {
		return fmt.Errorf("visuals.jpeg_quality must be 1-100, got %d", c.Visuals.JPEGQuality)
	}
	if c.Video.CrossfadeSec < 0 {
		return fmt.Errorf("video.crossfade_sec must be >= 0, got %f", c.Video.CrossfadeSec)
	}
	// A crossfade at least as long as the per-image hold would produce
	// non-positive transition offsets in the render filter graph.
	if c.Video.CrossfadeSec >= c.Video.MinImageHoldSec {
		return fmt.Errorf("video.crossfade_sec (%f) must be shorter than video.min_image_hold_sec (%f)",
			c.Video.CrossfadeSec, c.Video.MinImageHoldSec)
	}
	if c.Metadata.TitleMaxChars < 10 {
		return fmt.Errorf("metadata.title_max_chars must be >= 10, got %d", c.Metadata.TitleMaxChars)
	}
	if c.Metadata.TagsMin > c.Metadata.TagsMax {
		return fmt.Errorf("metadata.tags_min (%d) exceeds tags_max (%d)", c.Metadata.TagsMin, c.Metadata.TagsMax)
	}
	if c.Runner.DurationHours < 0 {
		return fmt.Errorf("runner.duration_hours must be >= 0, got %f", c.Runner.DurationHours)
	}
	if c.Runner.StoryCount < 0 {
		return fmt.Errorf("runner.story_count must be >= 0, got %d", c.Runner.StoryCount)
	}
	return nil
}
