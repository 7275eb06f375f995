package report

import (
	"fmt"
	"io"

	"github.com/phpdave11/gofpdf"

	"mileage/trip"
)

// WriteStatement renders a one driver, one month settlement statement.
func WriteStatement(w io.Writer, s Statement) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Mileage statement", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "MILEAGE STATEMENT")
	pdf.Ln(12)

	sub := s.Submission
	pdf.SetFont("Helvetica", "", 12)
	lines := []string{
		fmt.Sprintf("Driver       : %s", safe(s.Driver.Name, "-")),
		fmt.Sprintf("Vehicle      : %s, %.1f km per unit", safe(string(s.Driver.VehicleType), "-"), s.Driver.FuelEfficiency),
		fmt.Sprintf("Period       : %04d-%02d", sub.Year, sub.Month),
		fmt.Sprintf("Status       : %s", sub.Status),
		fmt.Sprintf("Submitted    : %s", sub.SubmittedAt.Format("2006-01-02 15:04")),
	}
	if sub.CompletedAt != nil {
		lines = append(lines, fmt.Sprintf("Completed    : %s", sub.CompletedAt.Format("2006-01-02 15:04")))
	}
	for _, l := range lines {
		pdf.Cell(0, 7, tr(l))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	widths := []float64{25, 95, 40, 30}
	for i, h := range []string{"Date", "Route", "Client", "Distance"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, r := range s.Records {
		dist := formatKm(r.Distance)
		if r.IsManualDistance {
			dist += "*"
		}
		pdf.CellFormat(widths[0], 6, r.DriveDate.Format(trip.DateLayout), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(route(r)), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[2], 6, tr(r.ClientName), "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[3], 6, dist, "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 12)
	total := trip.SumDistance(s.Records)
	if sub.TotalDistance != nil {
		total = *sub.TotalDistance
	}
	pdf.Cell(0, 7, "Total distance : "+formatKm(total))
	pdf.Ln(7)
	if s.Rates != nil {
		pdf.Cell(0, 7, fmt.Sprintf("Rates          : %04d-%02d table", s.Rates.Year, s.Rates.Month))
		pdf.Ln(7)
	}
	pdf.Cell(0, 7, "Fuel cost      : "+formatAmount(sub.FuelCost))
	pdf.Ln(7)
	pdf.Cell(0, 7, "Depreciation   : "+formatAmount(sub.DepreciationCost))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Amount : "+formatAmount(sub.SettlementAmount))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, fmt.Sprintf("* manually entered distance. Generated %s.", s.GeneratedAt.Format("2006-01-02 15:04")), "", "", false)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to render statement: %w", err)
	}
	return nil
}
