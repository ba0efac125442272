// Package runner drives repeated pipeline executions until a time or count
// limit is reached.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"storytime-pipeline/config"
	"storytime-pipeline/types"
)

const statsFile = "generation_stats.json"

// pipelineRunner is the single-run entry point the loop repeats.
type pipelineRunner interface {
	Run(ctx context.Context) (*types.RunState, error)
}

// StatsEntry is one line of the generation history.
type StatsEntry struct {
	RunID     string `json:"run_id"`
	Timestamp string `json:"timestamp"`
	Success   bool   `json:"success"`
	Title     string `json:"title,omitempty"`
	VideoFile string `json:"video_file,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Runner repeats pipeline runs within the configured limits. A zero duration
// or count means that limit is unbounded.
type Runner struct {
	cfg      *config.Config
	pipeline pipelineRunner

	sleep func(time.Duration)
	now   func() time.Time
}

// New creates a Runner.
func New(cfg *config.Config, p pipelineRunner) *Runner {
	return &Runner{
		cfg:      cfg,
		pipeline: p,
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Run loops until the duration or count limit is hit, or ctx is cancelled.
// A failed iteration is recorded and skipped; only successful stories count
// toward the story count. The duration limit and cancellation bound a
// persistently failing loop.
func (r *Runner) Run(ctx context.Context) error {
	start := r.now()
	deadline := time.Time{}
	if r.cfg.Runner.DurationHours > 0 {
		deadline = start.Add(time.Duration(r.cfg.Runner.DurationHours * float64(time.Hour)))
	}

	log.Info().
		Float64("duration_hours", r.cfg.Runner.DurationHours).
		Int("story_count", r.cfg.Runner.StoryCount).
		Msg("Continuous generation starting")

	successes := 0
	iterations := 0
	for {
		if done, reason := r.limitReached(successes, deadline); done {
			log.Info().Int("successes", successes).Int("iterations", iterations).Str("reason", reason).Msg("Continuous generation finished")
			return nil
		}
		if err := ctx.Err(); err != nil {
			log.Info().Int("successes", successes).Msg("Continuous generation cancelled")
			return err
		}

		log.Info().Int("iteration", iterations+1).Msg("Starting story generation")
		state, err := r.pipeline.Run(ctx)
		iterations++

		entry := StatsEntry{
			Timestamp: r.now().UTC().Format(time.RFC3339),
			Success:   err == nil,
		}
		if state != nil {
			entry.RunID = state.RunID
			entry.VideoFile = state.VideoFile
			if state.Metadata != nil {
				entry.Title = state.Metadata.Title
			}
		}
		if err != nil {
			entry.Error = err.Error()
			log.Error().Err(err).Int("iteration", iterations).Msg("Story generation failed, continuing")
		} else {
			successes++
		}
		if err := r.appendStats(entry); err != nil {
			log.Warn().Err(err).Msg("Could not record generation stats")
		}

		if done, reason := r.limitReached(successes, deadline); done {
			log.Info().Int("successes", successes).Int("iterations", iterations).Str("reason", reason).Msg("Continuous generation finished")
			return nil
		}

		pause := time.Duration(r.cfg.Runner.PauseBetweenSec) * time.Second
		log.Info().Dur("pause", pause).Msg("Pausing before next story")
		r.sleep(pause)
	}
}

func (r *Runner) limitReached(successes int, deadline time.Time) (bool, string) {
	if r.cfg.Runner.StoryCount > 0 && successes >= r.cfg.Runner.StoryCount {
		return true, "story count reached"
	}
	if !deadline.IsZero() && !r.now().Before(deadline) {
		return true, "duration reached"
	}
	return false, ""
}

// appendStats loads the existing history, appends the entry, and writes the
// file back whole.
func (r *Runner) appendStats(entry StatsEntry) error {
	path := filepath.Join(r.cfg.Paths.Output, statsFile)

	var entries []StatsEntry
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &entries); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Stats file unreadable, starting fresh")
			entries = nil
		}
	}
	entries = append(entries, entry)

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.cfg.Paths.Output, 0755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}
