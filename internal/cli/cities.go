package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aqiexplorer/aqiexplorer/internal/airquality"
	"github.com/aqiexplorer/aqiexplorer/internal/export"
)

func newCitiesCommand(env Env) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "cities",
		Short: "List the selectable cities",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cities := airquality.DefaultCities()

			switch format {
			case "table":
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ZIP\tCITY")
				for _, c := range cities {
					fmt.Fprintf(tw, "%s\t%s\n", c.ZipCode, c.Label)
				}
				return tw.Flush()
			case string(export.FormatJSON):
				return export.WriteJSON(cmd.OutOrStdout(), cities)
			default:
				return fmt.Errorf("unknown --format %q: want table or json", format)
			}
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "table or json")

	return cmd
}
