// Package paper is an in-memory trading terminal used for dry runs and tests.
package paper

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"

	"github.com/shopspring/decimal"
)

const maxTicks = 20000

// SymbolSpec describes a simulated instrument.
type SymbolSpec struct {
	Name         string
	Point        decimal.Decimal
	Digits       int32
	ContractSize decimal.Decimal // units per lot; zero means 1
}

// Config holds the simulated account.
type Config struct {
	Login    string
	Currency string
	Balance  decimal.Decimal
	Leverage int64 // zero means 100
	Symbols  []SymbolSpec
	Logger   ports.Logger
}

type quote struct {
	bid, ask decimal.Decimal
	at       time.Time
}

// Terminal implements ports.TradingAPI against simulated quotes.
type Terminal struct {
	mu           sync.Mutex
	logger       ports.Logger
	login        string
	currency     string
	leverage     decimal.Decimal
	balance      decimal.Decimal
	connected    bool
	tradeAllowed bool
	symbols      map[string]SymbolSpec
	quotes       map[string]quote
	ticks        map[string][]quote
	seeded       map[string][]domain.Candle // key symbol|tf, newest first
	positions    map[domain.Ticket]*domain.Position
	pending      map[domain.Ticket]*domain.PendingOrder
	closed       []domain.ClosedTrade
	nextTicket   int64
	rejectNext   error
	now          func() time.Time
}

// NewTerminal creates a disconnected terminal with automated trading allowed.
func NewTerminal(cfg Config) (*Terminal, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for paper terminal")
	}
	lev := cfg.Leverage
	if lev <= 0 {
		lev = 100
	}
	t := &Terminal{
		logger:       cfg.Logger,
		login:        cfg.Login,
		currency:     cfg.Currency,
		leverage:     decimal.NewFromInt(lev),
		balance:      cfg.Balance,
		tradeAllowed: true,
		symbols:      make(map[string]SymbolSpec),
		quotes:       make(map[string]quote),
		ticks:        make(map[string][]quote),
		seeded:       make(map[string][]domain.Candle),
		positions:    make(map[domain.Ticket]*domain.Position),
		pending:      make(map[domain.Ticket]*domain.PendingOrder),
		nextTicket:   100000,
		now:          time.Now,
	}
	if t.login == "" {
		t.login = "paper"
	}
	if t.currency == "" {
		t.currency = "USD"
	}
	for _, s := range cfg.Symbols {
		if !s.ContractSize.IsPositive() {
			s.ContractSize = decimal.NewFromInt(1)
		}
		t.symbols[s.Name] = s
	}
	return t, nil
}

// SetConnected toggles the simulated connection.
func (t *Terminal) SetConnected(v bool) {
	t.mu.Lock()
	t.connected = v
	t.mu.Unlock()
}

// SetTradeAllowed toggles the terminal's automated-trading flag.
func (t *Terminal) SetTradeAllowed(v bool) {
	t.mu.Lock()
	t.tradeAllowed = v
	t.mu.Unlock()
}

// RejectNext makes the next SubmitOrder fail with err.
func (t *Terminal) RejectNext(err error) {
	t.mu.Lock()
	t.rejectNext = err
	t.mu.Unlock()
}

// SeedCandles installs candles returned by Candles for symbol and tf. Input is oldest first.
func (t *Terminal) SeedCandles(symbol string, tf domain.Timeframe, candles []domain.Candle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]domain.Candle, len(candles))
	for i, c := range candles {
		out[len(candles)-1-i] = c
	}
	t.seeded[symbol+"|"+string(tf)] = out
}

// SetQuote publishes a new bid/ask, then fills triggered stops and SL/TP hits.
func (t *Terminal) SetQuote(symbol string, bid, ask decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.symbols[symbol]; !ok {
		return fmt.Errorf("set quote %s: %w", symbol, ports.ErrSymbolNotFound)
	}
	if bid.GreaterThan(ask) {
		return fmt.Errorf("set quote %s: %w: bid %s above ask %s", symbol, ports.ErrInvalidArgument, bid, ask)
	}
	q := quote{bid: bid, ask: ask, at: t.now()}
	t.quotes[symbol] = q
	ticks := append(t.ticks[symbol], q)
	if len(ticks) > maxTicks {
		ticks = ticks[len(ticks)-maxTicks:]
	}
	t.ticks[symbol] = ticks

	t.triggerPendingLocked(symbol, q)
	t.checkStopsLocked(symbol, q)
	return nil
}

func (t *Terminal) triggerPendingLocked(symbol string, q quote) {
	for ticket, o := range t.pending {
		if o.Symbol != symbol {
			continue
		}
		hit := (o.Side == domain.Buy && q.ask.GreaterThanOrEqual(o.Price)) ||
			(o.Side == domain.Sell && q.bid.LessThanOrEqual(o.Price))
		if !hit {
			continue
		}
		delete(t.pending, ticket)
		fill := q.ask
		if o.Side == domain.Sell {
			fill = q.bid
		}
		t.positions[ticket] = &domain.Position{
			Ticket: ticket, Symbol: o.Symbol, Side: o.Side, Volume: o.Volume, OpenPrice: fill,
			StopLoss: o.StopLoss, TakeProfit: o.TakeProfit, OpenTime: q.at, Comment: o.Comment,
		}
		t.logger.Debug(context.Background(), "paper: stop order triggered", map[string]interface{}{"ticket": ticket, "fill": fill.String()})
	}
}

func (t *Terminal) checkStopsLocked(symbol string, q quote) {
	for _, p := range t.positions {
		if p.Symbol != symbol {
			continue
		}
		mark := q.bid
		if p.Side == domain.Sell {
			mark = q.ask
		}
		var reason domain.CloseReason
		switch {
		case !p.StopLoss.IsZero() && ((p.Side == domain.Buy && mark.LessThanOrEqual(p.StopLoss)) || (p.Side == domain.Sell && mark.GreaterThanOrEqual(p.StopLoss))):
			reason = domain.CloseReasonStopLoss
		case !p.TakeProfit.IsZero() && ((p.Side == domain.Buy && mark.GreaterThanOrEqual(p.TakeProfit)) || (p.Side == domain.Sell && mark.LessThanOrEqual(p.TakeProfit))):
			reason = domain.CloseReasonTakeProfit
		}
		if reason != "" {
			t.closeLocked(p, mark, q.at, reason)
		}
	}
}

func (t *Terminal) profitLocked(p *domain.Position, mark decimal.Decimal) decimal.Decimal {
	diff := mark.Sub(p.OpenPrice)
	if p.Side == domain.Sell {
		diff = diff.Neg()
	}
	return diff.Mul(p.Volume).Mul(t.symbols[p.Symbol].ContractSize)
}

func (t *Terminal) markLocked(p *domain.Position) decimal.Decimal {
	q := t.quotes[p.Symbol]
	if p.Side == domain.Sell {
		return q.ask
	}
	return q.bid
}

func (t *Terminal) closeLocked(p *domain.Position, mark decimal.Decimal, at time.Time, reason domain.CloseReason) {
	profit := t.profitLocked(p, mark)
	t.balance = t.balance.Add(profit)
	delete(t.positions, p.Ticket)
	t.closed = append(t.closed, domain.ClosedTrade{
		PositionID: strconv.FormatInt(int64(p.Ticket), 10),
		Account:    t.login,
		Symbol:     p.Symbol,
		Side:       p.Side,
		Volume:     p.Volume,
		OpenPrice:  p.OpenPrice,
		ClosePrice: mark,
		OpenTime:   p.OpenTime,
		CloseTime:  at,
		Profit:     profit,
		Comment:    string(reason),
	})
	t.logger.Debug(context.Background(), "paper: position closed", map[string]interface{}{"ticket": p.Ticket, "reason": reason, "profit": profit.String()})
}

func (t *Terminal) requireConnectedLocked() error {
	if !t.connected {
		return ports.ErrNotConnected
	}
	return nil
}

// --- ports.TradingAPI ---

// Connect marks the terminal connected.
func (t *Terminal) Connect(ctx context.Context) error {
	t.SetConnected(true)
	t.logger.Info(ctx, "paper: terminal connected", map[string]interface{}{"login": t.login})
	return nil
}

func (t *Terminal) IsConnected(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected
}

func (t *Terminal) TerminalInfo(ctx context.Context) (domain.TerminalInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.TerminalInfo{Connected: t.connected, TradeAllowed: t.tradeAllowed}, nil
}

func (t *Terminal) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return domain.SymbolInfo{}, err
	}
	spec, ok := t.symbols[symbol]
	if !ok {
		return domain.SymbolInfo{}, fmt.Errorf("symbol info %s: %w", symbol, ports.ErrSymbolNotFound)
	}
	q := t.quotes[symbol]
	return domain.SymbolInfo{Symbol: symbol, Point: spec.Point, Digits: spec.Digits, Bid: q.bid, Ask: q.ask, Visible: true}, nil
}

func (t *Terminal) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Ticket, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return 0, err
	}
	if err := t.rejectNext; err != nil {
		t.rejectNext = nil
		return 0, err
	}
	spec, ok := t.symbols[req.Symbol]
	if !ok {
		return 0, fmt.Errorf("order %s: %w", req.Symbol, ports.ErrSymbolNotFound)
	}
	q, ok := t.quotes[req.Symbol]
	if !ok {
		return 0, fmt.Errorf("order %s: %w: no quote", req.Symbol, ports.ErrOrderRejected)
	}
	if !req.Volume.IsPositive() {
		return 0, fmt.Errorf("order %s: %w: volume %s", req.Symbol, ports.ErrOrderRejected, req.Volume)
	}

	fill := q.ask
	if req.Side == domain.Sell {
		fill = q.bid
	}
	if req.Kind == domain.KindStop {
		fill = req.Price
	}
	required := fill.Mul(req.Volume).Mul(spec.ContractSize).Div(t.leverage)
	if required.GreaterThan(t.freeMarginLocked()) {
		return 0, fmt.Errorf("order %s: %w", req.Symbol, ports.ErrInsufficientFunds)
	}

	t.nextTicket++
	ticket := domain.Ticket(t.nextTicket)

	if req.Kind == domain.KindStop {
		valid := (req.Side == domain.Buy && req.Price.GreaterThan(q.ask)) || (req.Side == domain.Sell && req.Price.LessThan(q.bid))
		if !valid {
			return 0, fmt.Errorf("order %s: %w: invalid stop price %s", req.Symbol, ports.ErrOrderRejected, req.Price)
		}
		t.pending[ticket] = &domain.PendingOrder{
			Ticket: ticket, Symbol: req.Symbol, Side: req.Side, Kind: req.Kind, Volume: req.Volume,
			Price: req.Price, StopLoss: req.StopLoss, TakeProfit: req.TakeProfit, Comment: req.Comment,
		}
		return ticket, nil
	}

	t.positions[ticket] = &domain.Position{
		Ticket: ticket, Symbol: req.Symbol, Side: req.Side, Volume: req.Volume, OpenPrice: fill,
		StopLoss: req.StopLoss, TakeProfit: req.TakeProfit, OpenTime: t.now(), Comment: req.Comment,
	}
	return ticket, nil
}

func (t *Terminal) CancelOrder(ctx context.Context, order domain.PendingOrder) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return err
	}
	if _, ok := t.pending[order.Ticket]; !ok {
		return fmt.Errorf("cancel %d: %w", order.Ticket, ports.ErrOrderNotFound)
	}
	delete(t.pending, order.Ticket)
	return nil
}

func (t *Terminal) ClosePosition(ctx context.Context, pos domain.Position) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return err
	}
	p, ok := t.positions[pos.Ticket]
	if !ok {
		return fmt.Errorf("close %d: %w", pos.Ticket, ports.ErrPositionNotFound)
	}
	t.closeLocked(p, t.markLocked(p), t.now(), domain.CloseReasonManual)
	return nil
}

// ModifyPosition replaces the stop loss and take profit of an open position. A level on the
// wrong side of the current mark is rejected the way the terminal rejects invalid stops.
func (t *Terminal) ModifyPosition(ctx context.Context, pos domain.Position, stopLoss, takeProfit decimal.Decimal) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return err
	}
	p, ok := t.positions[pos.Ticket]
	if !ok {
		return fmt.Errorf("modify %d: %w", pos.Ticket, ports.ErrPositionNotFound)
	}
	mark := t.markLocked(p)
	var bad bool
	if p.Side == domain.Buy {
		bad = (!stopLoss.IsZero() && stopLoss.GreaterThanOrEqual(mark)) || (!takeProfit.IsZero() && takeProfit.LessThanOrEqual(mark))
	} else {
		bad = (!stopLoss.IsZero() && stopLoss.LessThanOrEqual(mark)) || (!takeProfit.IsZero() && takeProfit.GreaterThanOrEqual(mark))
	}
	if bad {
		return fmt.Errorf("modify %d: %w: invalid stops sl=%s tp=%s at %s", pos.Ticket, ports.ErrInvalidArgument, stopLoss, takeProfit, mark)
	}
	p.StopLoss = stopLoss
	p.TakeProfit = takeProfit
	return nil
}

func (t *Terminal) Positions(ctx context.Context) ([]domain.Position, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(t.positions))
	for _, p := range t.positions {
		cp := *p
		cp.Profit = t.profitLocked(p, t.markLocked(p))
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (t *Terminal) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.PendingOrder, 0, len(t.pending))
	for _, o := range t.pending {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticket < out[j].Ticket })
	return out, nil
}

func (t *Terminal) floatingLocked() decimal.Decimal {
	total := decimal.Zero
	for _, p := range t.positions {
		total = total.Add(t.profitLocked(p, t.markLocked(p)))
	}
	return total
}

func (t *Terminal) marginLocked() decimal.Decimal {
	total := decimal.Zero
	for _, p := range t.positions {
		total = total.Add(p.OpenPrice.Mul(p.Volume).Mul(t.symbols[p.Symbol].ContractSize).Div(t.leverage))
	}
	return total
}

func (t *Terminal) freeMarginLocked() decimal.Decimal {
	return t.balance.Add(t.floatingLocked()).Sub(t.marginLocked())
}

func (t *Terminal) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return domain.AccountInfo{}, err
	}
	equity := t.balance.Add(t.floatingLocked())
	margin := t.marginLocked()
	info := domain.AccountInfo{
		Login:      t.login,
		Currency:   t.currency,
		Balance:    t.balance,
		Equity:     equity,
		Margin:     margin,
		FreeMargin: equity.Sub(margin),
	}
	if margin.IsPositive() {
		info.MarginLevel = equity.Div(margin).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return info, nil
}

// Candles returns seeded candles if present, otherwise candles built from the bid ticks.
func (t *Terminal) Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return nil, err
	}
	if _, ok := t.symbols[symbol]; !ok {
		return nil, fmt.Errorf("candles %s: %w", symbol, ports.ErrSymbolNotFound)
	}
	if seeded, ok := t.seeded[symbol+"|"+string(tf)]; ok {
		if count < len(seeded) {
			seeded = seeded[:count]
		}
		return append([]domain.Candle(nil), seeded...), nil
	}
	return aggregate(symbol, tf, t.ticks[symbol], count), nil
}

func aggregate(symbol string, tf domain.Timeframe, ticks []quote, count int) []domain.Candle {
	width := tf.Duration()
	if width == 0 || count <= 0 {
		return nil
	}
	var out []domain.Candle // newest first
	for i := len(ticks) - 1; i >= 0; i-- {
		q := ticks[i]
		open := q.at.Truncate(width)
		if len(out) == 0 || !out[len(out)-1].OpenTime.Equal(open) {
			if len(out) == count {
				break
			}
			out = append(out, domain.Candle{OpenTime: open, Symbol: symbol, Timeframe: tf, Open: q.bid, High: q.bid, Low: q.bid, Close: q.bid})
		}
		c := &out[len(out)-1]
		c.Open = q.bid // walking backwards, the earliest tick wins
		c.High = decimal.Max(c.High, q.bid)
		c.Low = decimal.Min(c.Low, q.bid)
		c.Volume = c.Volume.Add(decimal.NewFromInt(1))
	}
	return out
}

func (t *Terminal) ClosedTrades(ctx context.Context, since time.Time) ([]domain.ClosedTrade, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.requireConnectedLocked(); err != nil {
		return nil, err
	}
	out := make([]domain.ClosedTrade, 0)
	for _, c := range t.closed {
		if !c.CloseTime.Before(since) {
			out = append(out, c)
		}
	}
	return out, nil
}
