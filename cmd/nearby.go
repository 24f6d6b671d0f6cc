package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grainstats/basis-tracker/internal/api"
	"github.com/grainstats/basis-tracker/internal/model"
)

var (
	nearbyRadius float64
	nearbyName   string
)

var nearbyCmd = &cobra.Command{
	Use:   "nearby [zip]",
	Short: "List grain facilities near a ZIP code",
	Long:  "Searches facilities within a radius of the ZIP centroid, nearest first. With no argument, uses the ZIP remembered from your last search.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ident, err := initIdentity()
		if err != nil {
			return err
		}

		var zip string
		if len(args) == 1 {
			zip = args[0]
		} else {
			zip, err = ident.SavedZip()
			if err != nil {
				return err
			}
			if zip == "" {
				return eris.New("no ZIP given and none remembered; run `basis-tracker nearby <zip>` once")
			}
		}
		if !model.ValidZip(zip) {
			return eris.Errorf("invalid ZIP code %q", zip)
		}

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

		facilities, err := svc.NearbyByZip(ctx, zip, nearbyRadius)
		if err != nil {
			return err
		}
		if nearbyName != "" {
			facilities = api.FilterByName(facilities, nearbyName)
		}

		// Remember the ZIP for the next bare `nearby` call. Best effort.
		if err := ident.SetSavedZip(zip); err != nil {
			zap.L().Warn("could not remember zip", zap.Error(err))
		}

		if jsonOutput {
			return printJSON(facilities)
		}

		if len(facilities) == 0 {
			fmt.Printf("No facilities within %.0f miles of %s.\n", nearbyRadius, zip)
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, "DISTANCE\tNAME\tCOMPANY\tCITY\tSTATE\tID")
		for _, f := range facilities {
			fmt.Fprintf(w, "%.1f mi\t%s\t%s\t%s\t%s\t%s\n",
				f.DistanceMiles, f.Name, f.Company, f.City, f.State, f.ID)
		}
		return w.Flush()
	},
}

func init() {
	nearbyCmd.Flags().Float64Var(&nearbyRadius, "radius", 30, "search radius in miles")
	nearbyCmd.Flags().StringVar(&nearbyName, "name", "", "filter by facility or company name")
	nearbyCmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON instead of a table")
	rootCmd.AddCommand(nearbyCmd)
}
