// Package report renders settlement data as an Excel workbook for the
// accounting team and as a PDF statement for a single driver.
package report

import (
	"fmt"
	"strings"
	"time"

	dbt "mileage/db/db"
	"mileage/trip"
)

// DriverMonth is one driver's slice of a settlement month.
type DriverMonth struct {
	Driver     dbt.Driver
	Submission *dbt.Submission // nil when the month was never submitted
	Records    []dbt.Record
}

func (d DriverMonth) Status() string {
	if d.Submission == nil {
		return "not submitted"
	}
	return string(d.Submission.Status)
}

type Monthly struct {
	Year        int
	Month       int
	Rates       *dbt.RateEntry
	Drivers     []DriverMonth
	GeneratedAt time.Time
}

type Statement struct {
	Driver      dbt.Driver
	Submission  dbt.Submission
	Records     []dbt.Record
	Rates       *dbt.RateEntry
	GeneratedAt time.Time
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func formatWon(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	s := fmt.Sprintf("%d", v)
	var out []byte
	n := len(s)
	for i := 0; i < n; i++ {
		out = append(out, s[i])
		pos := n - i - 1
		if pos > 0 && pos%3 == 0 {
			out = append(out, ',')
		}
	}
	return sign + string(out) + " KRW"
}

func formatAmount(v *int64) string {
	if v == nil {
		return "-"
	}
	return formatWon(*v)
}

func formatKm(v float64) string {
	return fmt.Sprintf("%.1f km", trip.RoundTenth(v))
}

func route(r dbt.Record) string {
	stops := append([]string{r.Departure}, r.Waypoints...)
	stops = append(stops, r.Destination)
	return strings.Join(stops, " -> ")
}

// Filename builds a download name like mileage_2025-06.xlsx.
func Filename(prefix string, year, month int, ext string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	return fmt.Sprintf("%s_%04d-%02d.%s", replacer.Replace(safe(prefix, "mileage")), year, month, ext)
}
