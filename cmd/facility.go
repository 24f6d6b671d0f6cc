package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/grainstats/basis-tracker/internal/model"
)

var facilityCmd = &cobra.Command{
	Use:   "facility",
	Short: "Add, inspect, and bookmark grain facilities",
}

// -- facility add --

var addFacility model.NewFacility

var facilityAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a grain facility",
	Long:  "Adds an unverified facility. When --lat/--lng are omitted the address (or city and state) is geocoded.",
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

		if addFacility.Lat == 0 && addFacility.Lng == 0 {
			query := addFacility.Address
			if query == "" {
				query = fmt.Sprintf("%s, %s", addFacility.City, addFacility.State)
			}
			res, err := initGeocoder().Search(ctx, query)
			if err != nil {
				return eris.Wrap(err, "geocode facility")
			}
			if !res.Matched {
				return eris.Errorf("no geocoding match for %q; pass --lat and --lng", query)
			}
			addFacility.Lat = res.Lat
			addFacility.Lng = res.Lng
			fmt.Printf("Geocoded %q to %.6f, %.6f\n", query, res.Lat, res.Lng)
		}

		svc, err := initService(st)
		if err != nil {
			return err
		}
		f, err := svc.AddFacility(ctx, addFacility)
		if err != nil {
			return err
		}

		fmt.Printf("Added facility %s\n", f.ID)
		return nil
	},
}

// -- facility show --

var facilityShowCmd = &cobra.Command{
	Use:   "show <facility-id>",
	Short: "Show one facility",
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

		svc, err := initService(st)
		if err != nil {
			return err
		}
		f, err := svc.Facility(ctx, args[0])
		if err != nil {
			return err
		}
		if f == nil {
			return eris.Errorf("facility %s not found", args[0])
		}

		if jsonOutput {
			return printJSON(f)
		}
		if yamlOutput {
			return printYAML(f)
		}
		printFacility(f)
		return nil
	},
}

// -- facility save --

var facilitySaveCmd = &cobra.Command{
	Use:   "save <facility-id>",
	Short: "Bookmark a facility",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		ident, err := initIdentity()
		if err != nil {
			return err
		}
		userID, err := ident.UserID()
		if err != nil {
			return err
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
		f, err := svc.Facility(ctx, args[0])
		if err != nil {
			return err
		}
		if f == nil {
			return eris.Errorf("facility %s not found", args[0])
		}
		if err := svc.SaveFacility(ctx, userID, f.ID); err != nil {
			return err
		}

		fmt.Printf("Saved %s.\n", f.Name)
		return nil
	},
}

// -- facility saved --

var facilitySavedCmd = &cobra.Command{
	Use:   "saved",
	Short: "List your bookmarked facilities",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		ident, err := initIdentity()
		if err != nil {
			return err
		}
		userID, err := ident.UserID()
		if err != nil {
			return err
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
		facilities, err := svc.SavedFacilities(ctx, userID)
		if err != nil {
			return err
		}

		if jsonOutput {
			return printJSON(facilities)
		}

		if len(facilities) == 0 {
			fmt.Println("No saved facilities. Use `basis-tracker facility save <id>`.")
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, "NAME\tCOMPANY\tCITY\tSTATE\tID")
		for _, f := range facilities {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", f.Name, f.Company, f.City, f.State, f.ID)
		}
		return w.Flush()
	},
}

// -- facility import --

// facilityImportFile is the YAML shape accepted by `facility import`.
type facilityImportFile struct {
	Facilities []model.NewFacility `yaml:"facilities"`
}

var facilityImportCmd = &cobra.Command{
	Use:   "import <yaml>",
	Short: "Bulk-add facilities from a YAML file",
	Long:  "Reads a YAML file with a top-level `facilities:` list and adds each entry. Entries without coordinates are geocoded one at a time.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		raw, err := os.ReadFile(args[0])
		if err != nil {
			return eris.Wrap(err, "read import file")
		}
		var file facilityImportFile
		if err := yaml.Unmarshal(raw, &file); err != nil {
			return eris.Wrap(err, "parse import file")
		}
		if len(file.Facilities) == 0 {
			return eris.New("import file has no facilities")
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
		geocoder := initGeocoder()

		added := 0
		for i, nf := range file.Facilities {
			if nf.Lat == 0 && nf.Lng == 0 {
				query := nf.Address
				if query == "" {
					query = fmt.Sprintf("%s, %s", nf.City, nf.State)
				}
				res, err := geocoder.Search(ctx, query)
				if err != nil {
					return eris.Wrapf(err, "geocode entry %d (%s)", i+1, nf.Name)
				}
				if !res.Matched {
					return eris.Errorf("entry %d (%s): no geocoding match for %q", i+1, nf.Name, query)
				}
				nf.Lat = res.Lat
				nf.Lng = res.Lng
			}

			f, err := svc.AddFacility(ctx, nf)
			if err != nil {
				return eris.Wrapf(err, "entry %d (%s)", i+1, nf.Name)
			}
			fmt.Printf("Added %s (%s)\n", f.Name, f.ID)
			added++
		}

		fmt.Printf("Imported %d facilities.\n", added)
		return nil
	},
}

func init() {
	facilityAddCmd.Flags().StringVar(&addFacility.Name, "name", "", "facility name (required)")
	facilityAddCmd.Flags().StringVar(&addFacility.Company, "company", "", "operating company")
	facilityAddCmd.Flags().StringVar(&addFacility.City, "city", "", "city (required)")
	facilityAddCmd.Flags().StringVar(&addFacility.State, "state", "", "two-letter state code (required)")
	facilityAddCmd.Flags().StringVar(&addFacility.Address, "address", "", "street address, used for geocoding")
	facilityAddCmd.Flags().Float64Var(&addFacility.Lat, "lat", 0, "latitude")
	facilityAddCmd.Flags().Float64Var(&addFacility.Lng, "lng", 0, "longitude")
	_ = facilityAddCmd.MarkFlagRequired("name")
	_ = facilityAddCmd.MarkFlagRequired("city")
	_ = facilityAddCmd.MarkFlagRequired("state")

	facilityShowCmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON")
	facilityShowCmd.Flags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	facilitySavedCmd.Flags().BoolVar(&jsonOutput, "json", false, "output JSON instead of a table")

	facilityCmd.AddCommand(facilityAddCmd)
	facilityCmd.AddCommand(facilityShowCmd)
	facilityCmd.AddCommand(facilitySaveCmd)
	facilityCmd.AddCommand(facilitySavedCmd)
	facilityCmd.AddCommand(facilityImportCmd)
	rootCmd.AddCommand(facilityCmd)
}
