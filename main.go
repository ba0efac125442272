package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"storytime-pipeline/config"
	"storytime-pipeline/gemini"
	"storytime-pipeline/logging"
	"storytime-pipeline/pipeline"
	"storytime-pipeline/runner"
)

func main() {
	// .env is for local dev; CI injects secrets directly.
	_ = godotenv.Load()
	logging.Init()

	root := &cobra.Command{
		Use:          "storypipe",
		Short:        "Generates narrated children's story videos end to end",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "config.yaml", "path to config file")

	root.AddCommand(runCmd(), loopCmd())

	if err := root.ExecuteContext(signalContext()); err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Command failed")
		}
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Generate a single story video",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			p, err := buildPipeline(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			_, err = p.Run(cmd.Context())
			return err
		},
	}
}

func loopCmd() *cobra.Command {
	var (
		durationHours float64
		storyCount    int
	)
	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Generate stories continuously until a time or count limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("duration") {
				cfg.Runner.DurationHours = durationHours
			}
			if cmd.Flags().Changed("count") {
				cfg.Runner.StoryCount = storyCount
			}

			p, err := buildPipeline(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return runner.New(cfg, p).Run(cmd.Context())
		},
	}
	cmd.Flags().Float64Var(&durationHours, "duration", 0, "stop after this many hours (0 = unlimited)")
	cmd.Flags().IntVar(&storyCount, "count", 0, "stop after this many stories (0 = unlimited)")
	return cmd
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info().Str("path", path).Msg("No config file, using defaults")
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func buildPipeline(ctx context.Context, cfg *config.Config) (*pipeline.Pipeline, error) {
	client, err := gemini.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, client), nil
}

// signalContext cancels on SIGINT or SIGTERM so a loop run can finish its
// state file before exiting.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		log.Warn().Msg("Shutdown signal received")
		cancel()
	}()
	return ctx
}
