package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"mileage/auth"
)

func settleCommand() *cobra.Command {
	var year, month int
	var closeOnly bool
	cmd := &cobra.Command{
		Use:   "settle",
		Short: "settle every pending submission of a month",
		Long: `settle computes the amount of every pending submission of the month.
With --close the month is closed instead: submissions become completed
without an amount.`,
		Example: `mileage settle --year 2025 --month 6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), true)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if closeOnly {
				n, err := a.svc.CloseMonth(ctx, auth.System(), year, month)
				fmt.Fprintf(out, "closed %d submissions\n", n)
				return err
			}

			res, err := a.svc.BulkSettle(ctx, auth.System(), year, month)
			if err != nil {
				return err
			}
			for _, it := range res.Items {
				if it.OK() {
					fmt.Fprintf(out, "%s\t%d\n", it.DriverID, it.Amount)
					continue
				}
				fmt.Fprintf(out, "%s\tfailed: %v\n", it.DriverID, it.Err)
			}
			fmt.Fprintf(out, "success %d, fail %d\n", res.SuccessCount, res.FailCount)
			return nil
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "settlement year (required)")
	cmd.Flags().IntVarP(&month, "month", "m", 0, "settlement month 1-12 (required)")
	cmd.Flags().BoolVar(&closeOnly, "close", false, "close the month without computing amounts")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
