package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/aqiexplorer/aqiexplorer/internal/aggregate"
	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/export"
	"github.com/aqiexplorer/aqiexplorer/internal/runlog"
)

// Views rendered by fetch.
const (
	ViewObservations = "observations"
	ViewDailyMax     = "daily-max"
	ViewLatest       = "latest"
)

type fetchOptions struct {
	zipCodes []string
	start    string
	end      string
	view     string
	format   string
	output   string
	noLimits bool
}

func newFetchCommand(env Env, root *rootOptions) *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch observations and render a view",
		Example: `  aqi fetch --zip 10001,60601 --start 2025-07-20 --end 2025-07-26
  aqi fetch --zip 98101 --start 2025-07-20 --view latest --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, env, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&opts.zipCodes, "zip", "z", nil, "catalogue ZIP codes (default: every catalogue city)")
	f.StringVarP(&opts.start, "start", "s", "", "first date, YYYY-MM-DD")
	f.StringVarP(&opts.end, "end", "e", "", "last date, YYYY-MM-DD (default: start)")
	f.StringVar(&opts.view, "view", ViewDailyMax, "observations, daily-max or latest")
	f.StringVarP(&opts.format, "format", "f", string(export.FormatCSV), "csv or json")
	f.StringVarP(&opts.output, "output", "o", "-", "output file, - for stdout")
	f.BoolVar(&opts.noLimits, "no-limits", false, "lift the location and day bounds")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func (o *fetchOptions) request(limits aggregate.Limits) (aggregate.Request, error) {
	var req aggregate.Request

	if len(o.zipCodes) == 0 {
		req.Locations = airquality.DefaultCities()
	} else {
		locations, err := airquality.ResolveCities(o.zipCodes)
		if err != nil {
			return req, err
		}
		req.Locations = locations
	}

	start, err := airquality.ParseDate(o.start)
	if err != nil {
		return req, fmt.Errorf("--start: %w", err)
	}
	req.Start, req.End = start, start
	if o.end != "" {
		if req.End, err = airquality.ParseDate(o.end); err != nil {
			return req, fmt.Errorf("--end: %w", err)
		}
	}

	if o.noLimits {
		limits = aggregate.Limits{}
	}
	if err := aggregate.ValidateRequest(req, limits); err != nil {
		if errors.Is(err, aggregate.ErrTooManyLocations) || errors.Is(err, aggregate.ErrRangeTooLong) {
			return req, fmt.Errorf("%w (use --no-limits to override)", err)
		}
		return req, err
	}
	return req, nil
}

func runFetch(cmd *cobra.Command, env Env, root *rootOptions, opts *fetchOptions) error {
	switch opts.view {
	case ViewObservations, ViewDailyMax, ViewLatest:
	default:
		return fmt.Errorf("unknown --view %q: want %s, %s or %s", opts.view, ViewObservations, ViewDailyMax, ViewLatest)
	}
	format, err := export.ParseFormat(opts.format)
	if err != nil {
		return err
	}

	cfg, err := root.loadConfig(env)
	if err != nil {
		return err
	}
	log := root.logger(env)

	req, err := opts.request(cfg.Aggregate.Limits())
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	service, closeFn, err := newService(ctx, env, cfg, log)
	if err != nil {
		return err
	}
	defer closeFn()

	result := service.Aggregate(ctx, req, aggregate.Options{Trigger: runlog.TriggerCLI})

	for _, w := range result.Warnings {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w.Message)
	}
	if result.Empty() {
		fmt.Fprintln(cmd.ErrOrStderr(), "no data to display; try adjusting the date range or cities")
	}

	if opts.output == "" || opts.output == "-" {
		return render(cmd.OutOrStdout(), opts.view, format, result)
	}
	f, err := os.Create(opts.output)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	if err := render(f, opts.view, format, result); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func render(w io.Writer, view string, format export.Format, result *aggregate.Result) error {
	switch view {
	case ViewObservations:
		if format == export.FormatJSON {
			return export.WriteJSON(w, result.Observations)
		}
		return export.WriteObservationsCSV(w, result.Observations)
	case ViewLatest:
		if format == export.FormatJSON {
			return export.WriteJSON(w, result.Latest)
		}
		return export.WriteSnapshotCSV(w, result.Latest)
	default:
		if format == export.FormatJSON {
			return export.WriteJSON(w, struct {
				Rows   []airquality.DailyMaxRow `json:"rows"`
				Series airquality.Series        `json:"series"`
			}{result.DailyMax, result.Series})
		}
		return export.WriteDailyMaxCSV(w, result.DailyMax)
	}
}
