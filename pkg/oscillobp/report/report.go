// Package report aggregates stored measurements into the summaries served
// by the API and the CLI. Only complete measurements (both SBP and DBP
// present) contribute to averages. Dates are taken in the location of each
// measurement's TakenAt, so callers convert times before aggregating.
package report

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/himanishpuri/OscilloBP/pkg/models"
	"gonum.org/v1/gonum/stat"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	calendarLayout = "2006-01-02T15:04:05"
)

type Period string

const (
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

// ParsePeriod returns the named period, defaulting to PeriodMonth.
func ParsePeriod(s string) Period {
	if strings.EqualFold(strings.TrimSpace(s), string(PeriodWeek)) {
		return PeriodWeek
	}
	return PeriodMonth
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// sums collects the values of one group of complete measurements.
type sums struct {
	sbp, dbp, pulse []float64
}

func (s *sums) add(m models.Measurement) {
	s.sbp = append(s.sbp, *m.SBP)
	s.dbp = append(s.dbp, *m.DBP)
	s.pulse = append(s.pulse, float64(m.Pulse))
}

func (s *sums) count() int { return len(s.sbp) }

func (s *sums) means() (sbp, dbp, pulse float64) {
	return round1(stat.Mean(s.sbp, nil)), round1(stat.Mean(s.dbp, nil)), round1(stat.Mean(s.pulse, nil))
}

// MonthlyAverages groups complete measurements by calendar month, oldest
// month first.
func MonthlyAverages(ms []models.Measurement) []models.MonthlyAverage {
	groups := make(map[string]*sums)
	names := make(map[string]string)
	for _, m := range ms {
		if !m.Complete() {
			continue
		}
		key := m.TakenAt.Format("2006-01")
		g, ok := groups[key]
		if !ok {
			g = &sums{}
			groups[key] = g
			names[key] = m.TakenAt.Format("January 2006")
		}
		g.add(m)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]models.MonthlyAverage, 0, len(keys))
	for _, k := range keys {
		g := groups[k]
		sbp, dbp, pulse := g.means()
		out = append(out, models.MonthlyAverage{
			Month:     k,
			MonthName: names[k],
			AvgSBP:    sbp,
			AvgDBP:    dbp,
			AvgPulse:  pulse,
			Count:     g.count(),
		})
	}
	return out
}

// PeriodBounds returns the first and last day of the period containing
// base: Monday to Sunday for a week, the calendar month otherwise.
func PeriodBounds(period Period, base time.Time) (start, end time.Time) {
	y, mo, d := base.Date()
	day := time.Date(y, mo, d, 0, 0, 0, 0, base.Location())
	if period == PeriodWeek {
		offset := (int(day.Weekday()) + 6) % 7
		start = day.AddDate(0, 0, -offset)
		return start, start.AddDate(0, 0, 6)
	}
	start = time.Date(y, mo, 1, 0, 0, 0, 0, base.Location())
	return start, start.AddDate(0, 1, -1)
}

// DailyAverages reports one row per day of the period containing base.
// Days without complete measurements have nil averages and a zero count.
func DailyAverages(ms []models.Measurement, period Period, base time.Time) models.DailyReport {
	if period != PeriodWeek {
		period = PeriodMonth
	}
	start, end := PeriodBounds(period, base)

	groups := make(map[string]*sums)
	for _, m := range ms {
		if !m.Complete() {
			continue
		}
		key := m.TakenAt.Format(dateLayout)
		g, ok := groups[key]
		if !ok {
			g = &sums{}
			groups[key] = g
		}
		g.add(m)
	}

	rep := models.DailyReport{
		Period:     string(period),
		PeriodName: "This Month",
		StartDate:  start.Format(dateLayout),
		EndDate:    end.Format(dateLayout),
	}
	if period == PeriodWeek {
		rep.PeriodName = "This Week"
	}

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(dateLayout)
		row := models.DailyAverage{
			Date:        key,
			DisplayDate: day.Format("02/01"),
			DayName:     day.Weekday().String(),
		}
		if g, ok := groups[key]; ok {
			sbp, dbp, pulse := g.means()
			row.AvgSBP, row.AvgDBP, row.AvgPulse = &sbp, &dbp, &pulse
			row.Count = g.count()
		}
		rep.Days = append(rep.Days, row)
	}
	return rep
}

// CalendarEvents shapes every measurement, failed ones included, as a
// calendar event.
func CalendarEvents(ms []models.Measurement) []models.CalendarEvent {
	out := make([]models.CalendarEvent, 0, len(ms))
	for _, m := range ms {
		out = append(out, models.CalendarEvent{
			ID:    m.ID,
			Title: fmt.Sprintf("SBP: %s | DBP: %s | Pulse: %d", formatPressure(m.SBP, "-"), formatPressure(m.DBP, "-"), m.Pulse),
			Start: m.TakenAt.Format(calendarLayout),
			ExtendedProps: models.CalendarDetail{
				Patient: m.Patient,
				SBP:     m.SBP,
				DBP:     m.DBP,
				Pulse:   m.Pulse,
			},
		})
	}
	return out
}

func formatPressure(v *float64, absent string) string {
	if v == nil {
		return absent
	}
	return fmt.Sprintf("%.1f", *v)
}
