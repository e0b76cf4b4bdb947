package domain

// DailyCounter is the number of completed batches recorded for a trading day.
type DailyCounter struct {
	Date  TradingDay `db:"date" json:"date"`
	Count int        `db:"count" json:"count"`
}
