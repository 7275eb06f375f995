package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mileage/auth"
	"mileage/report"
)

func exportCommand() *cobra.Command {
	var year, month int
	var outputPath string
	cmd := &cobra.Command{
		Use:     "export",
		Short:   "write the monthly settlement workbook",
		Example: `mileage export --year 2025 --month 6 --output june.xlsx`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			m, err := a.svc.MonthlyReport(cmd.Context(), auth.System(), year, month)
			if err != nil {
				return err
			}
			if outputPath == "" {
				outputPath = report.Filename("mileage", year, month, "xlsx")
			}
			f, err := os.Create(outputPath)
			if err != nil {
				return err
			}
			if err := report.WriteMonthlyWorkbook(f, m); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d drivers)\n", outputPath, len(m.Drivers))
			return nil
		},
	}
	cmd.Flags().IntVarP(&year, "year", "y", 0, "report year (required)")
	cmd.Flags().IntVarP(&month, "month", "m", 0, "report month 1-12 (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "xlsx output path")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("month")
	return cmd
}
