package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grainstats/basis-tracker/internal/geo"
)

var zipCmd = &cobra.Command{
	Use:   "zip",
	Short: "Manage the ZIP centroid reference table",
	Long:  "Commands for loading and preparing the ZIP-to-coordinate lookup data that anchors facility search.",
}

// -- zip convert --

var zipConvertCmd = &cobra.Command{
	Use:   "convert <raw-csv> <out-csv>",
	Short: "Reformat a raw ZIP database CSV into the zip,lat,lng shape",
	Long:  "Extracts the zip, lat, and lng columns from a full ZIP database export and writes a minimal CSV suitable for `zip load`.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open raw csv")
		}
		defer in.Close() //nolint:errcheck

		out, err := os.Create(args[1])
		if err != nil {
			return eris.Wrap(err, "create output csv")
		}
		defer out.Close() //nolint:errcheck

		n, err := geo.ReformatCentroidCSV(in, out)
		if err != nil {
			return err
		}

		fmt.Printf("Wrote %d rows to %s\n", n, args[1])
		return nil
	},
}

// -- zip load --

var zipLoadCmd = &cobra.Command{
	Use:   "load <csv>",
	Short: "Load ZIP centroids from a prepared zip,lat,lng CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return eris.Wrap(err, "open centroid csv")
		}
		defer f.Close() //nolint:errcheck

		n, err := geo.LoadCentroidCSV(ctx, st, f)
		if err != nil {
			return err
		}

		fmt.Printf("Loaded %d ZIP centroids.\n", n)
		return nil
	},
}

// -- zip load-zcta --

var zctaURL string

var zipLoadZCTACmd = &cobra.Command{
	Use:   "load-zcta",
	Short: "Load ZIP centroids from the Census TIGER ZCTA shapefile",
	Long:  "Downloads the national ZCTA shapefile, derives a centroid per ZCTA, and upserts the rows. Slower than `zip load` but needs no prepared CSV.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		tempDir, err := os.MkdirTemp("", "zcta-*")
		if err != nil {
			return eris.Wrap(err, "create temp dir")
		}
		defer os.RemoveAll(tempDir) //nolint:errcheck

		n, err := geo.ImportZCTACentroids(ctx, st, nil, tempDir, zctaURL)
		if err != nil {
			return err
		}

		fmt.Printf("Loaded %d ZCTA centroids.\n", n)
		return nil
	},
}

func init() {
	zipLoadZCTACmd.Flags().StringVar(&zctaURL, "url", "", "override the ZCTA shapefile URL")

	zipCmd.AddCommand(zipConvertCmd)
	zipCmd.AddCommand(zipLoadCmd)
	zipCmd.AddCommand(zipLoadZCTACmd)
	rootCmd.AddCommand(zipCmd)
}
