package tasks

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"projecthub/internal/platform/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 9, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		freq     models.Frequency
		interval int
		want     time.Time
	}{
		{"daily", date(2026, 3, 1), models.FrequencyDaily, 1, date(2026, 3, 2)},
		{"every 3 days", date(2026, 3, 30), models.FrequencyDaily, 3, date(2026, 4, 2)},
		{"weekly", date(2026, 3, 1), models.FrequencyWeekly, 1, date(2026, 3, 8)},
		{"biweekly", date(2026, 3, 1), models.FrequencyWeekly, 2, date(2026, 3, 15)},
		{"monthly", date(2026, 1, 15), models.FrequencyMonthly, 1, date(2026, 2, 15)},
		{"monthly overflow normalizes", date(2026, 1, 31), models.FrequencyMonthly, 1, date(2026, 3, 3)},
		{"quarterly", date(2026, 11, 30), models.FrequencyMonthly, 3, date(2027, 3, 2)},
		{"yearly", date(2026, 6, 1), models.FrequencyYearly, 1, date(2027, 6, 1)},
		{"yearly from leap day", date(2028, 2, 29), models.FrequencyYearly, 1, date(2029, 3, 1)},
		{"zero interval treated as one", date(2026, 3, 1), models.FrequencyDaily, 0, date(2026, 3, 2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextOccurrence(tt.from, tt.freq, tt.interval))
		})
	}
}

func TestDueOffsetDays(t *testing.T) {
	next := date(2026, 3, 1).Unix()
	tests := []struct {
		name string
		due  *int64
		want int
	}{
		{"no due date", nil, 0},
		{"same instant", ptr(next), 0},
		{"two days later", ptr(next + 2*86400), 2},
		{"rounds up from 1.6 days", ptr(next + 86400 + 14*3600), 2},
		{"rounds down from 1.4 days", ptr(next + 86400 + 10*3600), 1},
		{"before occurrence", ptr(next - 86400), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := &models.Task{DueDate: tt.due, Recurrence: &models.Recurrence{NextOccurrence: next}}
			assert.Equal(t, tt.want, dueOffsetDays(task))
		})
	}
}

func TestStartOfTomorrow(t *testing.T) {
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), startOfTomorrow(time.Date(2026, 3, 1, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC), startOfTomorrow(time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)))
}

func TestBuildRecurrence(t *testing.T) {
	now := date(2026, 3, 1)
	due := date(2026, 3, 5).Unix()
	start := date(2026, 4, 1).Unix()

	rec, err := buildRecurrence(&RecurrenceInput{Frequency: "weekly"}, nil, now)
	require.NoError(t, err)
	assert.Equal(t, &models.Recurrence{Frequency: models.FrequencyWeekly, Interval: 1, NextOccurrence: now.Unix()}, rec)

	rec, err = buildRecurrence(&RecurrenceInput{Frequency: "DAILY", Interval: 2}, &due, now)
	require.NoError(t, err)
	assert.Equal(t, due, rec.NextOccurrence)

	rec, err = buildRecurrence(&RecurrenceInput{Frequency: "MONTHLY", StartDate: &start}, &due, now)
	require.NoError(t, err)
	assert.Equal(t, start, rec.NextOccurrence)

	_, err = buildRecurrence(&RecurrenceInput{Frequency: "HOURLY"}, nil, now)
	assert.Error(t, err)
	_, err = buildRecurrence(&RecurrenceInput{Frequency: "DAILY", Interval: -1}, nil, now)
	assert.Error(t, err)
}

func ptr(v int64) *int64 { return &v }
