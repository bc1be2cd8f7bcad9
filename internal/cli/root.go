// Package cli implements the aqi command line tool.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/app"
	"github.com/aqiexplorer/aqiexplorer/internal/config"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

// Env holds the process dependencies of the commands.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer

	// LoadConfig reads the runtime configuration.
	LoadConfig func() (*config.Config, error)

	// Fetcher replaces the AirNow client when set. The run log is then
	// kept in memory.
	Fetcher airquality.Fetcher

	Now func() time.Time
}

// DefaultEnv returns an Env bound to the process.
func DefaultEnv() Env {
	return Env{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		LoadConfig: func() (*config.Config, error) { return config.Load() },
		Now:        time.Now,
	}
}

type rootOptions struct {
	envFile string
	verbose bool
}

// NewRootCommand builds the aqi command tree.
func NewRootCommand(env Env) *cobra.Command {
	if env.Now == nil {
		env.Now = time.Now
	}
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "aqi",
		Short: "Fetch and aggregate AirNow air quality observations",
		Long: `aqi fetches daily AQI observations from AirNow for a selection of
US cities and renders the raw observations, the per-day maximum table or
the latest snapshot as CSV or JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)

	root.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "read configuration from this .env file")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log progress to stderr")

	root.AddCommand(
		newFetchCommand(env, opts),
		newCitiesCommand(env),
		newTokenCommand(env, opts),
		newProbeCommand(env, opts),
	)
	return root
}

func (o *rootOptions) loadConfig(env Env) (*config.Config, error) {
	if o.envFile != "" {
		return config.Load(o.envFile)
	}
	return env.LoadConfig()
}

func (o *rootOptions) logger(env Env) zerolog.Logger {
	level := zerolog.WarnLevel
	if o.verbose {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: env.Stderr, TimeFormat: time.Kitchen}).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// newService builds the aggregate service, using env.Fetcher when set.
func newService(ctx context.Context, env Env, cfg *config.Config, log zerolog.Logger) (*aggregate.Service, func(), error) {
	if env.Fetcher != nil {
		pipeline := aggregate.NewPipeline(aggregate.PipelineConfig{
			Fetcher:     env.Fetcher,
			Logger:      log,
			Concurrency: cfg.Aggregate.Concurrency,
		})
		return aggregate.NewService(aggregate.ServiceConfig{
			Pipeline: pipeline,
			Runs:     runlog.NewInMemoryRepository(),
			Logger:   log,
		}), func() {}, nil
	}

	components, err := app.Build(ctx, cfg, log, app.Options{})
	if err != nil {
		return nil, nil, fmt.Errorf("build services: %w", err)
	}
	return components.Service, components.Close, nil
}
