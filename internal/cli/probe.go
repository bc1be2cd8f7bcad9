package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality/airnow"
	"github.com/aqiexplorer/aqiexplorer/internal/export"
)

// DefaultProbeZip is fetched by the probe command when no --zip is given.
const DefaultProbeZip = "10001"

func newProbeCommand(env Env, root *rootOptions) *cobra.Command {
	var (
		zipCode string
		date    string
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the upstream credential with a single fetch",
		Long: `probe reports whether an AirNow API key is loaded and fetches one
location for one date without the cache, the run log or the request bounds.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(env)
			if err != nil {
				return err
			}

			day := airquality.Truncate(env.Now()).AddDate(0, 0, -1)
			if date != "" {
				if day, err = airquality.ParseDate(date); err != nil {
					return fmt.Errorf("--date: %w", err)
				}
			}

			fetcher := env.Fetcher
			if fetcher == nil {
				fetcher = airnow.NewClient(airnow.ClientConfig{
					BaseURL: cfg.AirNow.BaseURL,
					APIKey:  cfg.AirNow.APIKey,
					Timeout: cfg.AirNow.Timeout,
					Logger:  root.logger(env),
				})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "API key loaded: %t (length=%d)\n", cfg.HasAirNowCredential(), len(cfg.AirNow.APIKey))

			started := time.Now()
			observations, err := fetcher.FetchObservations(cmd.Context(), zipCode, day)
			if err != nil {
				return fmt.Errorf("fetch %s on %s (%s): %w",
					zipCode, airquality.FormatDate(day), airquality.Classify(err), err)
			}

			fmt.Fprintf(out, "Fetched %d observations for %s on %s in %s\n",
				len(observations), zipCode, airquality.FormatDate(day), time.Since(started).Round(time.Millisecond))
			if len(observations) == 0 {
				return nil
			}
			return export.WriteJSON(out, observations)
		},
	}

	cmd.Flags().StringVarP(&zipCode, "zip", "z", DefaultProbeZip, "ZIP code to fetch")
	cmd.Flags().StringVar(&date, "date", "", "date to fetch, YYYY-MM-DD (default: yesterday)")

	return cmd
}
