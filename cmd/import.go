package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"mileage/auth"
	"mileage/service"
	"mileage/trip"
)

var csvHeader = []string{"drive_date", "departure", "destination", "waypoints", "client", "distance_km"}

func importCommand() *cobra.Command {
	var inputPath, driverName string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "import drive records from a CSV file",
		Long: `import reads drive records for one employee from a CSV file with the
columns ` + strings.Join(csvHeader, ", ") + `. Waypoints are comma separated
inside their column. Rows are validated before anything is written.`,
		Example: `mileage import --driver Kim --input june.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputFile, err := os.Open(inputPath)
			if err != nil {
				return err
			}
			defer inputFile.Close()

			csvContent, err := csv.NewReader(inputFile).ReadAll()
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context(), false)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			driver, err := a.store.FindDriverByName(ctx, driverName)
			if err != nil {
				return fmt.Errorf("driver %q: %w", driverName, err)
			}

			inputs, err := ParseCSVToRecordInputs(csvContent, driver.ID)
			if err != nil {
				return fmt.Errorf("failed to parse CSV: %w", err)
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no records found in the CSV")
			}

			for i, in := range inputs {
				if _, err := a.svc.CreateRecord(ctx, auth.System(), in); err != nil {
					return fmt.Errorf("row %d: %w (%d rows imported before it)", i+2, err, i)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records for %s\n", len(inputs), driver.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "csv input file path (required)")
	cmd.Flags().StringVarP(&driverName, "driver", "d", "", "employee name the records belong to (required)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("driver")

	return cmd
}

// ParseCSVToRecordInputs turns CSV rows into record inputs for driverID. The
// first row is a header. Distances are taken as manually entered.
func ParseCSVToRecordInputs(csvContent [][]string, driverID uuid.UUID) ([]service.RecordInput, error) {
	if len(csvContent) == 0 {
		return nil, fmt.Errorf("CSV is empty")
	}

	// skip the header row
	dataRows := csvContent[1:]

	inputs := make([]service.RecordInput, 0, len(dataRows))
	for i, row := range dataRows {
		line := i + 2 // header row plus one-based
		if len(row) != len(csvHeader) {
			return nil, fmt.Errorf("row %d: expected %d columns, but got %d", line, len(csvHeader), len(row))
		}

		date, err := trip.ParseDate(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", line, err)
		}

		distance := strings.TrimSpace(row[5])
		if _, err := strconv.ParseFloat(distance, 64); err != nil {
			return nil, fmt.Errorf("row %d: failed to convert distance '%s' to float: %w", line, row[5], err)
		}

		var waypoints []string
		for _, w := range strings.Split(row[3], ",") {
			if w = strings.TrimSpace(w); w != "" {
				waypoints = append(waypoints, w)
			}
		}

		inputs = append(inputs, service.RecordInput{
			DriverID:       driverID,
			DriveDate:      date,
			Departure:      row[1],
			Destination:    row[2],
			Waypoints:      waypoints,
			ClientName:     row[4],
			ManualDistance: distance,
		})
	}

	return inputs, nil
}
