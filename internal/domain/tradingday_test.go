package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCalendar_TradingDay(t *testing.T) {
	tests := []struct {
		name     string
		calendar Calendar
		instant  time.Time
		want     TradingDay
	}{
		{
			name:     "plain calendar day",
			calendar: Calendar{Location: time.UTC},
			instant:  time.Date(2024, 3, 10, 0, 30, 0, 0, time.UTC),
			want:     "2024-03-10",
		},
		{
			name:     "before reset hour belongs to previous day",
			calendar: Calendar{ResetHour: 6, Location: time.UTC},
			instant:  time.Date(2024, 3, 10, 5, 59, 0, 0, time.UTC),
			want:     "2024-03-09",
		},
		{
			name:     "at reset hour starts new day",
			calendar: Calendar{ResetHour: 6, Location: time.UTC},
			instant:  time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC),
			want:     "2024-03-10",
		},
		{
			name:     "offset shifts across midnight",
			calendar: Calendar{Offset: 7 * time.Hour, Location: time.UTC},
			instant:  time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC),
			want:     "2024-03-11",
		},
		{
			name:     "month boundary with reset hour",
			calendar: Calendar{ResetHour: 6, Location: time.UTC},
			instant:  time.Date(2024, 3, 1, 1, 0, 0, 0, time.UTC),
			want:     "2024-02-29",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.calendar.TradingDay(tt.instant))
		})
	}
}

func TestCalendar_DayStart(t *testing.T) {
	cal := Calendar{ResetHour: 6, Offset: 7 * time.Hour, Location: time.UTC}
	instant := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	start := cal.DayStart(instant)

	assert.Equal(t, time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), start)
	assert.Equal(t, cal.TradingDay(instant), cal.TradingDay(start))
	assert.NotEqual(t, cal.TradingDay(instant), cal.TradingDay(start.Add(-time.Second)))
}

func TestCalendar_Start(t *testing.T) {
	cal := Calendar{ResetHour: 6, Offset: 7 * time.Hour, Location: time.UTC}

	assert.Equal(t, time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), cal.Start("2024-03-10"))
	assert.Equal(t, TradingDay("2024-03-10"), cal.TradingDay(cal.Start("2024-03-10")))
}

func TestParseTradingDay(t *testing.T) {
	d, err := ParseTradingDay("2024-01-05")
	assert.NoError(t, err)
	assert.Equal(t, TradingDay("2024-01-05"), d)

	_, err = ParseTradingDay("05/01/2024")
	assert.Error(t, err)
}
