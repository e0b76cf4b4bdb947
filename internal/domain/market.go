package domain

import "github.com/shopspring/decimal"

// SymbolInfo carries the instrument properties needed to price orders.
type SymbolInfo struct {
	Symbol  string
	Point   decimal.Decimal // smallest price increment
	Digits  int32
	Bid     decimal.Decimal
	Ask     decimal.Decimal
	Visible bool
}

// Spread returns ask minus bid.
func (s SymbolInfo) Spread() decimal.Decimal {
	return s.Ask.Sub(s.Bid)
}

// AccountInfo mirrors the terminal's account summary.
type AccountInfo struct {
	Login       string
	Currency    string
	Balance     decimal.Decimal
	Equity      decimal.Decimal
	Margin      decimal.Decimal
	FreeMargin  decimal.Decimal
	MarginLevel decimal.Decimal
}

// TerminalInfo reports terminal-wide flags.
type TerminalInfo struct {
	Connected    bool
	TradeAllowed bool // automated trading enabled in the terminal
}
