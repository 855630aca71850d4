package models

import "time"

// MeasurementFilter narrows a measurement query. Zero fields do not filter.
type MeasurementFilter struct {
	Patient string
	From    time.Time // inclusive
	To      time.Time // exclusive
	Limit   int
}
