package tasks

import (
	"math"
	"strings"
	"time"

	apperr "projecthub/internal/pkg/errors"
	"projecthub/internal/platform/models"
)

const day = 24 * time.Hour

// NextOccurrence advances from by one step of freq. Month and year steps use
// AddDate, so Jan 31 + 1 month lands on Mar 3 (or Mar 2 in a leap year).
func NextOccurrence(from time.Time, freq models.Frequency, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch freq {
	case models.FrequencyWeekly:
		return from.AddDate(0, 0, 7*interval)
	case models.FrequencyMonthly:
		return from.AddDate(0, interval, 0)
	case models.FrequencyYearly:
		return from.AddDate(interval, 0, 0)
	default:
		return from.AddDate(0, 0, interval)
	}
}

// dueOffsetDays is the template's due date distance from its next
// occurrence, rounded to whole days.
func dueOffsetDays(template *models.Task) int {
	if template.DueDate == nil || template.Recurrence == nil {
		return 0
	}
	delta := time.Duration(*template.DueDate-template.Recurrence.NextOccurrence) * time.Second
	return int(math.Round(float64(delta) / float64(day)))
}

// startOfTomorrow is midnight UTC after now.
func startOfTomorrow(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}

type RecurrenceInput struct {
	Frequency string `json:"frequency"`
	Interval  int    `json:"interval"`
	// StartDate is the first occurrence (unix seconds). Defaults to the due
	// date, then to now.
	StartDate *int64 `json:"start_date,omitempty"`
}

func parseFrequency(s string) (models.Frequency, bool) {
	f := models.Frequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case models.FrequencyDaily, models.FrequencyWeekly, models.FrequencyMonthly, models.FrequencyYearly:
		return f, true
	}
	return "", false
}

func buildRecurrence(in *RecurrenceInput, dueDate *int64, now time.Time) (*models.Recurrence, error) {
	freq, ok := parseFrequency(in.Frequency)
	if !ok {
		return nil, apperr.Validation("recurrence frequency must be one of DAILY, WEEKLY, MONTHLY, YEARLY")
	}
	interval := in.Interval
	if interval == 0 {
		interval = 1
	}
	if interval < 1 {
		return nil, apperr.Validation("recurrence interval must be at least 1")
	}

	next := now.Unix()
	switch {
	case in.StartDate != nil:
		next = *in.StartDate
	case dueDate != nil:
		next = *dueDate
	}
	return &models.Recurrence{Frequency: freq, Interval: interval, NextOccurrence: next}, nil
}
