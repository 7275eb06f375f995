package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"mileage/trip"
)

const (
	SummarySheet = "Summary"
	RecordsSheet = "Records"
)

var (
	summaryHeaders = []string{"Driver", "Vehicle", "Efficiency", "Status", "Records", "Distance (km)", "Fuel cost", "Depreciation", "Amount"}
	recordHeaders  = []string{"Driver", "Date", "Route", "Client", "Distance (km)", "Manual"}
)

type sheetStyles struct {
	title  int
	header int
	data   int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var st sheetStyles
	var err error
	st.title, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 16,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "left",
			Vertical:   "center",
		},
	})
	if err != nil {
		return st, err
	}
	st.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold:  true,
			Color: "#FFFFFF",
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#4472C4"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return st, err
	}
	st.data, err = f.NewStyle(&excelize.Style{
		Border: []excelize.Border{
			{Type: "left", Color: "CCCCCC", Style: 1},
			{Type: "right", Color: "CCCCCC", Style: 1},
			{Type: "top", Color: "CCCCCC", Style: 1},
			{Type: "bottom", Color: "CCCCCC", Style: 1},
		},
	})
	return st, err
}

// writeTable puts headers on row 4 and rows below them.
func writeTable(f *excelize.File, sheet string, st sheetStyles, headers []string, rows [][]interface{}) error {
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 4)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, st.header); err != nil {
			return err
		}
	}
	last, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return err
	}

	for r, row := range rows {
		for col, v := range row {
			cell, err := excelize.CoordinatesToCellName(col+1, r+5)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
			if err := f.SetCellStyle(sheet, cell, cell, st.data); err != nil {
				return err
			}
		}
	}
	return nil
}

func optionalInt(v *int64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

// WriteMonthlyWorkbook writes the month overview: one summary row per driver
// and one row per trip record.
func WriteMonthlyWorkbook(w io.Writer, m Monthly) error {
	f := excelize.NewFile()
	defer f.Close()

	st, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(RecordsSheet); err != nil {
		return err
	}

	title := fmt.Sprintf("Mileage settlement %04d-%02d", m.Year, m.Month)
	f.SetCellValue(SummarySheet, "A1", title)
	f.SetCellStyle(SummarySheet, "A1", "A1", st.title)
	f.SetRowHeight(SummarySheet, 1, 30)
	f.SetCellValue(SummarySheet, "A2", fmt.Sprintf("Generated: %s", m.GeneratedAt.Format("2006-01-02 15:04:05")))

	summary := make([][]interface{}, 0, len(m.Drivers))
	records := [][]interface{}{}
	var total int64
	for _, d := range m.Drivers {
		row := []interface{}{
			d.Driver.Name,
			string(d.Driver.VehicleType),
			d.Driver.FuelEfficiency,
			d.Status(),
			len(d.Records),
			trip.RoundTenth(trip.SumDistance(d.Records)),
			"", "", "",
		}
		if s := d.Submission; s != nil {
			row[6], row[7], row[8] = optionalInt(s.FuelCost), optionalInt(s.DepreciationCost), optionalInt(s.SettlementAmount)
			if s.SettlementAmount != nil {
				total += *s.SettlementAmount
			}
		}
		summary = append(summary, row)

		for _, r := range d.Records {
			manual := ""
			if r.IsManualDistance {
				manual = "yes"
			}
			records = append(records, []interface{}{
				d.Driver.Name,
				r.DriveDate.Format(trip.DateLayout),
				route(r),
				r.ClientName,
				r.Distance,
				manual,
			})
		}
	}
	if err := writeTable(f, SummarySheet, st, summaryHeaders, summary); err != nil {
		return fmt.Errorf("failed to write summary sheet: %w", err)
	}
	totalRow := len(summary) + 6
	totalLabel, _ := excelize.CoordinatesToCellName(len(summaryHeaders)-1, totalRow)
	totalCell, _ := excelize.CoordinatesToCellName(len(summaryHeaders), totalRow)
	f.SetCellValue(SummarySheet, totalLabel, "Total")
	f.SetCellValue(SummarySheet, totalCell, total)

	f.SetCellValue(RecordsSheet, "A1", title)
	f.SetCellStyle(RecordsSheet, "A1", "A1", st.title)
	if err := writeTable(f, RecordsSheet, st, recordHeaders, records); err != nil {
		return fmt.Errorf("failed to write records sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
