package domain

import "time"

const tradingDayLayout = "2006-01-02"

// TradingDay is the date bucket used for counters and realized PnL, formatted YYYY-MM-DD.
type TradingDay string

// ParseTradingDay validates s as a YYYY-MM-DD date.
func ParseTradingDay(s string) (TradingDay, error) {
	t, err := time.Parse(tradingDayLayout, s)
	if err != nil {
		return "", err
	}
	return TradingDay(t.Format(tradingDayLayout)), nil
}

// Time returns midnight UTC of the trading day.
func (d TradingDay) Time() time.Time {
	t, _ := time.Parse(tradingDayLayout, string(d))
	return t
}

func (d TradingDay) String() string { return string(d) }

// Calendar maps instants onto trading days.
// Instants are converted to Location (time.Local when nil) and shifted by Offset;
// hours before ResetHour still belong to the previous date.
type Calendar struct {
	ResetHour int
	Offset    time.Duration
	Location  *time.Location
}

// TradingDay returns the trading day containing t.
func (c Calendar) TradingDay(t time.Time) TradingDay {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc).Add(c.Offset)
	if local.Hour() < c.ResetHour {
		local = local.AddDate(0, 0, -1)
	}
	return TradingDay(local.Format(tradingDayLayout))
}

// DayStart returns the instant at which the trading day containing t began.
func (c Calendar) DayStart(t time.Time) time.Time {
	return c.Start(c.TradingDay(t))
}

// Start returns the instant at which day began.
func (c Calendar) Start(day TradingDay) time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	d := day.Time()
	start := time.Date(d.Year(), d.Month(), d.Day(), c.ResetHour, 0, 0, 0, loc)
	return start.Add(-c.Offset)
}
