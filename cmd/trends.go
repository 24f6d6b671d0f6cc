package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grainstats/basis-tracker/internal/model"
)

var trendsCmd = &cobra.Command{
	Use:   "trends <facility-id> <commodity> <month>",
	Short: "Show current basis, daily trend, and recent activity for a facility",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		c := model.Commodity(args[1])
		m := model.FuturesMonth(args[2])

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		svc, err := initService(st)
		if err != nil {
			return err
		}

		summary, err := svc.Summarize(ctx, args[0], c, m)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(summary)
		}
		if yamlOutput {
			return printYAML(summary)
		}

		fmt.Printf("%s: %s %s\n\n", summary.Facility.Name, c.Label(), m.Label())

		if summary.Current == nil {
			fmt.Println("No basis reports in the current window.")
		} else {
			staleNote := ""
			if summary.Current.IsStale {
				staleNote = "  (stale)"
			}
			fmt.Printf("Current basis: %s cents%s\n", formatBasis(summary.Current.MedianBasis), staleNote)
			fmt.Printf("Reports in window: %d, last updated %s\n",
				summary.Current.ReportCount, formatDay(summary.Current.LastUpdated))
		}

		fmt.Printf("Reports in last 7 days: %d\n", summary.Stats.Reports7d)
		if summary.Stats.LastReportAt != nil {
			fmt.Printf("Last report: %s\n", formatDay(*summary.Stats.LastReportAt))
		}

		if len(summary.Trend) > 0 {
			fmt.Println()
			w := newTable()
			fmt.Fprintln(w, "DAY\tMEDIAN\tREPORTS")
			for _, p := range summary.Trend {
				fmt.Fprintf(w, "%s\t%s\t%d\n", p.Day, formatBasis(p.MedianBasis), p.ReportCount)
			}
			return w.Flush()
		}

		return nil
	},
}

func init() {
	trendsCmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	trendsCmd.Flags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	rootCmd.AddCommand(trendsCmd)
}
