package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/grainstats/basis-tracker/internal/basis"
	"github.com/grainstats/basis-tracker/internal/model"
)

var (
	submitConfirmed bool
	submitSave      bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <facility-id> <commodity> <month> <basis>",
	Short: "Submit an observed basis price",
	Long: `Submits a basis observation in cents relative to the futures price,
e.g. "-35" for 35 under or "+12" for 12 over. Commodity is corn or
soybeans; month is a futures month code (H, K, N, U, Z). Values more
than $2.00 from futures need --yes to confirm.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cents, err := model.ParseBasisCents(args[3])
		if err != nil {
			return err
		}

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

		nr := model.NewBasisReport{
			FacilityID:   args[0],
			Commodity:    model.Commodity(args[1]),
			FuturesMonth: model.FuturesMonth(args[2]),
			BasisCents:   cents,
			UserID:       userID,
		}

		report, err := svc.Submit(ctx, nr, submitConfirmed)
		if eris.Is(err, basis.ErrOutlierUnconfirmed) {
			return eris.Errorf("%s cents is more than $2.00 from futures; re-run with --yes if it is correct", formatBasis(cents))
		}
		if err != nil {
			return err
		}

		fmt.Printf("Recorded %s %s %s basis for facility %s.\n",
			formatBasis(report.BasisCents), report.Commodity.Label(), report.FuturesMonth.Label(), report.FacilityID)

		if submitSave {
			if err := svc.SaveFacility(ctx, userID, report.FacilityID); err != nil {
				return err
			}
			fmt.Println("Facility saved.")
		}
		return nil
	},
}

func init() {
	submitCmd.Flags().BoolVar(&submitConfirmed, "yes", false, "confirm a basis far from futures")
	submitCmd.Flags().BoolVar(&submitSave, "save", false, "bookmark the facility after submitting")
	rootCmd.AddCommand(submitCmd)
}
