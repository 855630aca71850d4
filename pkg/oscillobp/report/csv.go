package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/himanishpuri/OscilloBP/pkg/models"
)

var csvHeader = []string{"Date", "Time", "Patient", "SBP", "DBP", "Pulse"}

// WriteCSV writes ms in the measurements.csv layout of the bedside app:
// Date,Time,Patient,SBP,DBP,Pulse. Absent pressures are empty cells.
func WriteCSV(w io.Writer, ms []models.Measurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, m := range ms {
		record := []string{
			m.TakenAt.Format(dateLayout),
			m.TakenAt.Format(timeLayout),
			m.Patient,
			formatPressure(m.SBP, ""),
			formatPressure(m.DBP, ""),
			strconv.Itoa(m.Pulse),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv row %s: %w", m.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
