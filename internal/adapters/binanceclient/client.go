package binanceclient

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	defaultAccount = "binance-futures"
	quoteAsset     = "USDT"
)

// Client implements ports.TradingAPI on Binance USD-M futures.
// Futures have no terminal tickets for positions, so a position ticket is derived from its symbol.
type Client struct {
	futuresClient        *futures.Client
	logger               ports.Logger
	account              string
	symbols              []string
	reconnectDelay       time.Duration
	maxReconnectAttempts int

	connected atomic.Bool

	mu    sync.Mutex
	specs map[string]symbolSpec
}

type symbolSpec struct {
	tickSize decimal.Decimal
	digits   int32
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey               string
	SecretKey            string
	UseTestnet           bool
	BaseURL              string // overrides the production/testnet URL when set
	Account              string // label stamped on the trade log, default "binance-futures"
	Symbols              []string
	Logger               ports.Logger
	ReconnectDelay       time.Duration // Reconnect delay (e.g., 1 * time.Second)
	MaxReconnectAttempts int           // Max attempts before giving up
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	switch {
	case cfg.BaseURL != "":
		client.BaseURL = cfg.BaseURL
	case cfg.UseTestnet:
		client.BaseURL = baseURLTestnet
		cfg.Logger.Info(context.Background(), "Binance client configured for Testnet", map[string]interface{}{"baseURL": client.BaseURL})
	default:
		client.BaseURL = baseURLProduction
		cfg.Logger.Info(context.Background(), "Binance client configured for Production", map[string]interface{}{"baseURL": client.BaseURL})
	}

	reconnectDelay := cfg.ReconnectDelay
	if reconnectDelay <= 0 {
		reconnectDelay = 1 * time.Second
	}
	maxAttempts := cfg.MaxReconnectAttempts
	if maxAttempts <= 0 {
		maxAttempts = 10
	}
	account := cfg.Account
	if account == "" {
		account = defaultAccount
	}

	return &Client{
		futuresClient:        client,
		logger:               cfg.Logger,
		account:              account,
		symbols:              cfg.Symbols,
		reconnectDelay:       reconnectDelay,
		maxReconnectAttempts: maxAttempts,
		specs:                make(map[string]symbolSpec),
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		fields["apiErrorMessage"] = apiErr.Message

		var mappedErr error
		switch apiErr.Code {
		case -1003: // Too many requests
			mappedErr = ports.ErrRateLimited
		case -1021: // Timestamp for this request is outside of the recvWindow
			mappedErr = ports.ErrTimeout
		case -1022, -2014, -2015: // Bad signature, API-key format, key/IP/permissions
			mappedErr = ports.ErrAuthenticationFailed
		case -1121: // Invalid symbol
			mappedErr = ports.ErrSymbolNotFound
		case -1101, -1102, -1103, -1104, -1105, -1106, -1111, -1115, -1116, -1117, -1120, -1125, -1127, -1128, -1130,
			-4003, -4014, -4015: // Parameter, quantity, price and leverage range errors
			mappedErr = ports.ErrInvalidArgument
		case -2010, -2011, -2021, -2022: // New/cancel rejected, would trigger immediately, reduce-only rejected
			mappedErr = ports.ErrOrderRejected
		case -2013: // Order does not exist
			mappedErr = ports.ErrOrderNotFound
		case -2019, -3005, -3041, -4047: // Margin or balance insufficient
			mappedErr = ports.ErrInsufficientFunds
		case -4044: // Position not found
			mappedErr = ports.ErrPositionNotFound
		default:
			mappedErr = ports.ErrExternalAPIFailure
		}
		finalErr := fmt.Errorf("%s failed: %w: %w", operation, mappedErr, err)
		c.logger.Error(ctx, err, fmt.Sprintf("%s failed with API error", operation), fields)
		return finalErr
	}

	// Non-API errors (network, context cancellation, parsing)
	var finalErr error
	if errors.Is(err, context.DeadlineExceeded) {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrTimeout, err)
	} else if errors.Is(err, context.Canceled) {
		finalErr = fmt.Errorf("%s operation canceled: %w: %w", operation, ports.ErrContextCanceled, err)
	} else if strings.Contains(err.Error(), "use of closed network connection") ||
		strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "connection reset by peer") {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrConnectionFailed, err)
	} else {
		finalErr = fmt.Errorf("%s failed: %w: %w", operation, ports.ErrExternalAPIFailure, err)
	}

	c.logger.Error(ctx, err, fmt.Sprintf("%s failed", operation), fields)
	return finalErr
}

// Connect pings the API with backoff and synchronizes the request clock with the server.
func (c *Client) Connect(ctx context.Context) error {
	op := "Connect"
	b := &backoff.Backoff{Min: c.reconnectDelay, Max: 30 * c.reconnectDelay, Factor: 2, Jitter: true}
	for attempt := 1; ; attempt++ {
		err := c.futuresClient.NewPingService().Do(ctx)
		if err == nil {
			break
		}
		if attempt >= c.maxReconnectAttempts {
			c.connected.Store(false)
			c.logger.Error(ctx, err, op+": Max connection attempts exceeded, giving up.", map[string]interface{}{"maxAttempts": c.maxReconnectAttempts})
			return fmt.Errorf("%s: %w: %w", op, ports.ErrConnectionFailed, err)
		}
		delay := b.Duration()
		c.logger.Info(ctx, op+": Connection failed, retrying...", map[string]interface{}{"attempt": attempt + 1, "delay": delay.String()})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return c.handleError(ctx, ctx.Err(), op)
		}
	}

	if _, err := c.futuresClient.NewSetServerTimeService().Do(ctx); err != nil {
		return c.handleError(ctx, err, op+" time sync")
	}
	c.connected.Store(true)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"baseURL": c.futuresClient.BaseURL})
	return nil
}

// IsConnected reports the outcome of the last Connect or API round trip.
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.connected.Load()
}

// call runs fn and tracks connectivity from its outcome.
func (c *Client) call(ctx context.Context, op string, fn func() error) error {
	if err := fn(); err != nil {
		mapped := c.handleError(ctx, err, op)
		if errors.Is(mapped, ports.ErrConnectionFailed) {
			c.connected.Store(false)
		}
		return mapped
	}
	return nil
}

func (c *Client) TerminalInfo(ctx context.Context) (domain.TerminalInfo, error) {
	op := "TerminalInfo"
	var account *futures.Account
	err := c.call(ctx, op, func() error {
		var err error
		account, err = c.futuresClient.NewGetAccountService().Do(ctx)
		return err
	})
	if err != nil {
		return domain.TerminalInfo{Connected: c.IsConnected(ctx)}, err
	}
	return domain.TerminalInfo{Connected: c.IsConnected(ctx), TradeAllowed: account.CanTrade}, nil
}

// spec returns the cached tick size and precision for symbol, loading exchange info on a miss.
func (c *Client) spec(ctx context.Context, symbol string) (symbolSpec, error) {
	op := "ExchangeInfo"
	c.mu.Lock()
	s, ok := c.specs[symbol]
	c.mu.Unlock()
	if ok {
		return s, nil
	}

	var info *futures.ExchangeInfo
	if err := c.call(ctx, op, func() error {
		var err error
		info, err = c.futuresClient.NewExchangeInfoService().Do(ctx)
		return err
	}); err != nil {
		return symbolSpec{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range info.Symbols {
		sym := info.Symbols[i]
		filter := sym.PriceFilter()
		if filter == nil {
			continue
		}
		tick, err := decimal.NewFromString(filter.TickSize)
		if err != nil {
			continue
		}
		c.specs[sym.Symbol] = symbolSpec{tickSize: tick, digits: int32(sym.PricePrecision)}
	}
	s, ok = c.specs[symbol]
	if !ok {
		return symbolSpec{}, fmt.Errorf("%s: %w: %s", op, ports.ErrSymbolNotFound, symbol)
	}
	return s, nil
}

func (c *Client) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	op := "SymbolInfo"
	spec, err := c.spec(ctx, symbol)
	if err != nil {
		return domain.SymbolInfo{}, err
	}

	var tickers []*futures.BookTicker
	if err := c.call(ctx, op, func() error {
		var err error
		tickers, err = c.futuresClient.NewListBookTickersService().Symbol(symbol).Do(ctx)
		return err
	}); err != nil {
		return domain.SymbolInfo{}, err
	}
	if len(tickers) == 0 {
		return domain.SymbolInfo{}, fmt.Errorf("%s: %w: no book ticker for %s", op, ports.ErrExternalAPIFailure, symbol)
	}
	bid, err := parseDecimal(tickers[0].BidPrice, "bid price")
	if err != nil {
		return domain.SymbolInfo{}, c.handleError(ctx, err, op)
	}
	ask, err := parseDecimal(tickers[0].AskPrice, "ask price")
	if err != nil {
		return domain.SymbolInfo{}, c.handleError(ctx, err, op)
	}
	return domain.SymbolInfo{
		Symbol:  symbol,
		Point:   spec.tickSize,
		Digits:  spec.digits,
		Bid:     bid,
		Ask:     ask,
		Visible: true,
	}, nil
}

// SubmitOrder places the entry order and then close-position stop-loss and take-profit orders
// for the levels that are set. A failed protective order returns the entry ticket with the error.
func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Ticket, error) {
	op := "SubmitOrder"
	side, err := translateSide(req.Side)
	if err != nil {
		return 0, fmt.Errorf("%s: %w: %v", op, ports.ErrInvalidArgument, err)
	}

	svc := c.futuresClient.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Quantity(req.Volume.String()).
		NewClientOrderID(uuid.NewString())
	switch req.Kind {
	case domain.KindMarket:
		svc = svc.Type(futures.OrderTypeMarket)
	case domain.KindStop:
		svc = svc.Type(futures.OrderTypeStopMarket).StopPrice(req.Price.String())
	default:
		return 0, fmt.Errorf("%s: %w: unknown order kind %q", op, ports.ErrInvalidArgument, req.Kind)
	}

	var order *futures.CreateOrderResponse
	if err := c.call(ctx, op, func() error {
		var err error
		order, err = svc.Do(ctx)
		return err
	}); err != nil {
		return 0, err
	}
	ticket := domain.Ticket(order.OrderID)
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": req.Symbol, "side": req.Side, "kind": req.Kind, "quantity": req.Volume.String(), "orderID": order.OrderID})

	closeSide, _ := translateSide(req.Side.Opposite())
	if req.StopLoss.IsPositive() {
		if err := c.placeProtective(ctx, req.Symbol, closeSide, futures.OrderTypeStopMarket, req.StopLoss); err != nil {
			return ticket, err
		}
	}
	if req.TakeProfit.IsPositive() {
		if err := c.placeProtective(ctx, req.Symbol, closeSide, futures.OrderTypeTakeProfitMarket, req.TakeProfit); err != nil {
			return ticket, err
		}
	}
	return ticket, nil
}

func (c *Client) placeProtective(ctx context.Context, symbol string, side futures.SideType, kind futures.OrderType, level decimal.Decimal) error {
	op := "PlaceProtectiveOrder"
	return c.call(ctx, op, func() error {
		order, err := c.futuresClient.NewCreateOrderService().
			Symbol(symbol).
			Side(side).
			Type(kind).
			StopPrice(level.String()).
			ClosePosition(true).
			NewClientOrderID(uuid.NewString()).
			Do(ctx)
		if err != nil {
			return err
		}
		c.logger.Debug(ctx, op+" successful", map[string]interface{}{"symbol": symbol, "type": kind, "stopPrice": level.String(), "orderID": order.OrderID})
		return nil
	})
}

func (c *Client) CancelOrder(ctx context.Context, order domain.PendingOrder) error {
	op := "CancelOrder"
	c.logger.Debug(ctx, "Attempting to cancel order", map[string]interface{}{"symbol": order.Symbol, "orderID": int64(order.Ticket)})
	return c.call(ctx, op, func() error {
		res, err := c.futuresClient.NewCancelOrderService().
			Symbol(order.Symbol).
			OrderID(int64(order.Ticket)).
			Do(ctx)
		if err != nil {
			return err
		}
		c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": order.Symbol, "orderID": res.OrderID, "status": res.Status})
		return nil
	})
}

// ClosePosition sends a reduce-only market order for the full position size.
func (c *Client) ClosePosition(ctx context.Context, pos domain.Position) error {
	op := "ClosePosition"
	side, err := translateSide(pos.Side.Opposite())
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ports.ErrInvalidArgument, err)
	}
	return c.call(ctx, op, func() error {
		order, err := c.futuresClient.NewCreateOrderService().
			Symbol(pos.Symbol).
			Side(side).
			Type(futures.OrderTypeMarket).
			Quantity(pos.Volume.String()).
			ReduceOnly(true).
			NewClientOrderID(uuid.NewString()).
			Do(ctx)
		if err != nil {
			return err
		}
		c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": pos.Symbol, "quantity": pos.Volume.String(), "orderID": order.OrderID})
		return nil
	})
}

// ModifyPosition replaces the close-position protective order of each kind whose new level is
// positive. A zero level leaves that kind untouched, since futures positions do not report
// their protective levels back.
func (c *Client) ModifyPosition(ctx context.Context, pos domain.Position, stopLoss, takeProfit decimal.Decimal) error {
	op := "ModifyPosition"
	side, err := translateSide(pos.Side.Opposite())
	if err != nil {
		return fmt.Errorf("%s: %w: %v", op, ports.ErrInvalidArgument, err)
	}
	var orders []*futures.Order
	if err := c.call(ctx, op, func() error {
		var err error
		orders, err = c.futuresClient.NewListOpenOrdersService().Symbol(pos.Symbol).Do(ctx)
		return err
	}); err != nil {
		return err
	}

	levels := map[futures.OrderType]decimal.Decimal{
		futures.OrderTypeStopMarket:       stopLoss,
		futures.OrderTypeTakeProfitMarket: takeProfit,
	}
	for _, o := range orders {
		level, ok := levels[o.Type]
		if !ok || !o.ClosePosition || !level.IsPositive() {
			continue
		}
		if err := c.CancelOrder(ctx, domain.PendingOrder{Ticket: domain.Ticket(o.OrderID), Symbol: o.Symbol}); err != nil {
			return err
		}
	}
	if stopLoss.IsPositive() {
		if err := c.placeProtective(ctx, pos.Symbol, side, futures.OrderTypeStopMarket, stopLoss); err != nil {
			return err
		}
	}
	if takeProfit.IsPositive() {
		if err := c.placeProtective(ctx, pos.Symbol, side, futures.OrderTypeTakeProfitMarket, takeProfit); err != nil {
			return err
		}
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": pos.Symbol, "stopLoss": stopLoss.String(), "takeProfit": takeProfit.String()})
	return nil
}

func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	op := "Positions"
	var risks []*futures.PositionRisk
	if err := c.call(ctx, op, func() error {
		var err error
		risks, err = c.futuresClient.NewGetPositionRiskService().Do(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(risks))
	for _, r := range risks {
		pos, ok, err := translatePositionRisk(r)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if ok {
			out = append(out, pos)
		}
	}
	return out, nil
}

// PendingOrders lists resting entry orders. Close-position protective orders are skipped.
func (c *Client) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	op := "PendingOrders"
	var orders []*futures.Order
	if err := c.call(ctx, op, func() error {
		var err error
		orders, err = c.futuresClient.NewListOpenOrdersService().Do(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	out := make([]domain.PendingOrder, 0, len(orders))
	for _, o := range orders {
		if o.ClosePosition || o.ReduceOnly {
			continue
		}
		po, err := translateOrder(o)
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		out = append(out, po)
	}
	return out, nil
}

func (c *Client) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	op := "AccountInfo"
	var account *futures.Account
	if err := c.call(ctx, op, func() error {
		var err error
		account, err = c.futuresClient.NewGetAccountService().Do(ctx)
		return err
	}); err != nil {
		return domain.AccountInfo{}, err
	}
	info, err := translateAccount(c.account, account)
	if err != nil {
		return domain.AccountInfo{}, c.handleError(ctx, err, op)
	}
	return info, nil
}

// Candles returns the latest count klines, newest first.
func (c *Client) Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error) {
	op := "Candles"
	interval, err := translateInterval(tf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ports.ErrInvalidArgument, err)
	}
	var klines []*futures.Kline
	if err := c.call(ctx, op, func() error {
		var err error
		klines, err = c.futuresClient.NewKlinesService().Symbol(symbol).Interval(interval).Limit(count).Do(ctx)
		return err
	}); err != nil {
		return nil, err
	}
	out := make([]domain.Candle, len(klines))
	for i, k := range klines {
		candle, err := translateKline(k, symbol, tf)
		if err != nil {
			return nil, c.handleError(ctx, fmt.Errorf("failed to translate historical kline: %w", err), op)
		}
		out[len(klines)-1-i] = candle
	}
	return out, nil
}

// ClosedTrades returns closing fills (non-zero realized PnL) of the configured symbols since since.
func (c *Client) ClosedTrades(ctx context.Context, since time.Time) ([]domain.ClosedTrade, error) {
	op := "ClosedTrades"
	var out []domain.ClosedTrade
	for _, symbol := range c.symbols {
		var fills []*futures.AccountTrade
		if err := c.call(ctx, op, func() error {
			var err error
			fills, err = c.futuresClient.NewListAccountTradeService().Symbol(symbol).StartTime(since.UnixMilli()).Do(ctx)
			return err
		}); err != nil {
			return nil, err
		}
		for _, f := range fills {
			trade, ok, err := translateFill(f)
			if err != nil {
				return nil, c.handleError(ctx, err, op)
			}
			if ok {
				out = append(out, trade)
			}
		}
	}
	return out, nil
}

// --- Translation Helpers ---

func parseDecimal(s, field string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	v, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s '%s': %w", field, s, err)
	}
	return v, nil
}

func translateSide(side domain.OrderSide) (futures.SideType, error) {
	switch side {
	case domain.Buy:
		return futures.SideTypeBuy, nil
	case domain.Sell:
		return futures.SideTypeSell, nil
	default:
		return "", fmt.Errorf("unknown order side %q", side)
	}
}

func fromSide(side futures.SideType) (domain.OrderSide, error) {
	return domain.ParseOrderSide(string(side))
}

func translateInterval(tf domain.Timeframe) (string, error) {
	switch tf {
	case domain.M1:
		return "1m", nil
	case domain.M5:
		return "5m", nil
	case domain.M15:
		return "15m", nil
	case domain.M30:
		return "30m", nil
	case domain.H1:
		return "1h", nil
	case domain.H4:
		return "4h", nil
	default:
		return "", fmt.Errorf("unsupported timeframe %q", tf)
	}
}

// positionTicket derives a stable ticket for a one-way-mode futures position.
func positionTicket(symbol string) domain.Ticket {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return domain.Ticket(h.Sum32()) + 1
}

func translatePositionRisk(pos *futures.PositionRisk) (domain.Position, bool, error) {
	if pos == nil {
		return domain.Position{}, false, nil
	}
	amt, err := parseDecimal(pos.PositionAmt, "position amount")
	if err != nil {
		return domain.Position{}, false, err
	}
	if amt.IsZero() {
		return domain.Position{}, false, nil
	}
	entry, err := parseDecimal(pos.EntryPrice, "entry price")
	if err != nil {
		return domain.Position{}, false, err
	}
	profit, err := parseDecimal(pos.UnRealizedProfit, "unrealized profit")
	if err != nil {
		return domain.Position{}, false, err
	}
	side := domain.Buy
	if amt.IsNegative() {
		side = domain.Sell
	}
	return domain.Position{
		Ticket:    positionTicket(pos.Symbol),
		Symbol:    pos.Symbol,
		Side:      side,
		Volume:    amt.Abs(),
		OpenPrice: entry,
		Profit:    profit,
	}, true, nil
}

func translateOrder(o *futures.Order) (domain.PendingOrder, error) {
	side, err := fromSide(o.Side)
	if err != nil {
		return domain.PendingOrder{}, err
	}
	qty, err := parseDecimal(o.OrigQuantity, "quantity")
	if err != nil {
		return domain.PendingOrder{}, err
	}
	price, err := parseDecimal(o.StopPrice, "stop price")
	if err != nil {
		return domain.PendingOrder{}, err
	}
	kind := domain.OrderKind(strings.ToLower(string(o.Type)))
	if o.Type == futures.OrderTypeStopMarket {
		kind = domain.KindStop
	}
	return domain.PendingOrder{
		Ticket:  domain.Ticket(o.OrderID),
		Symbol:  o.Symbol,
		Side:    side,
		Kind:    kind,
		Volume:  qty,
		Price:   price,
		Comment: o.ClientOrderID,
	}, nil
}

func translateAccount(login string, a *futures.Account) (domain.AccountInfo, error) {
	balance, err := parseDecimal(a.TotalWalletBalance, "wallet balance")
	if err != nil {
		return domain.AccountInfo{}, err
	}
	equity, err := parseDecimal(a.TotalMarginBalance, "margin balance")
	if err != nil {
		return domain.AccountInfo{}, err
	}
	margin, err := parseDecimal(a.TotalInitialMargin, "initial margin")
	if err != nil {
		return domain.AccountInfo{}, err
	}
	free, err := parseDecimal(a.AvailableBalance, "available balance")
	if err != nil {
		return domain.AccountInfo{}, err
	}
	level := decimal.Zero
	if margin.IsPositive() {
		level = equity.Div(margin).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return domain.AccountInfo{
		Login:       login,
		Currency:    quoteAsset,
		Balance:     balance,
		Equity:      equity,
		Margin:      margin,
		FreeMargin:  free,
		MarginLevel: level,
	}, nil
}

func translateKline(k *futures.Kline, symbol string, tf domain.Timeframe) (domain.Candle, error) {
	if k == nil {
		return domain.Candle{}, errors.New("received nil historical kline")
	}
	open, err := parseDecimal(k.Open, "open price")
	if err != nil {
		return domain.Candle{}, err
	}
	high, err := parseDecimal(k.High, "high price")
	if err != nil {
		return domain.Candle{}, err
	}
	low, err := parseDecimal(k.Low, "low price")
	if err != nil {
		return domain.Candle{}, err
	}
	cls, err := parseDecimal(k.Close, "close price")
	if err != nil {
		return domain.Candle{}, err
	}
	vol, err := parseDecimal(k.Volume, "volume")
	if err != nil {
		return domain.Candle{}, err
	}
	return domain.Candle{
		OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
		Symbol:    symbol,
		Timeframe: tf,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}

// translateFill turns a closing fill into a trade log row. Opening fills carry zero realized PnL.
// The fill side is the closing side, so the position side is its opposite.
func translateFill(f *futures.AccountTrade) (domain.ClosedTrade, bool, error) {
	if f == nil {
		return domain.ClosedTrade{}, false, nil
	}
	pnl, err := parseDecimal(f.RealizedPnl, "realized pnl")
	if err != nil {
		return domain.ClosedTrade{}, false, err
	}
	if pnl.IsZero() {
		return domain.ClosedTrade{}, false, nil
	}
	fillSide, err := fromSide(f.Side)
	if err != nil {
		return domain.ClosedTrade{}, false, err
	}
	qty, err := parseDecimal(f.Quantity, "quantity")
	if err != nil {
		return domain.ClosedTrade{}, false, err
	}
	price, err := parseDecimal(f.Price, "price")
	if err != nil {
		return domain.ClosedTrade{}, false, err
	}
	closed := time.UnixMilli(f.Time).UTC()
	return domain.ClosedTrade{
		PositionID: f.Symbol + "-" + strconv.FormatInt(f.ID, 10),
		Symbol:     f.Symbol,
		Side:       fillSide.Opposite(),
		Volume:     qty,
		ClosePrice: price,
		OpenTime:   closed,
		CloseTime:  closed,
		Profit:     pnl,
		Comment:    "order " + strconv.FormatInt(f.OrderID, 10),
	}, true, nil
}
