// Package mt5bridge talks to a MetaTrader 5 terminal through a websocket bridge process
// running next to the terminal. Requests and responses are JSON text frames correlated by id.
package mt5bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/shopspring/decimal"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"
)

// Trade server return codes that mean success.
const (
	retcodePlaced = 10008
	retcodeDone   = 10009
)

// Config holds configuration specific to the bridge client adapter.
type Config struct {
	URL                  string
	Login                string
	Password             string
	Server               string
	Logger               ports.Logger
	RequestTimeout       time.Duration // per request, default 10s
	ReconnectDelay       time.Duration // first backoff step, default 1s
	MaxReconnectAttempts int           // dial attempts per Connect, default 5
	Dialer               *websocket.Dialer
}

// Client implements ports.TradingAPI over the bridge.
type Client struct {
	url         string
	login       string
	password    string
	server      string
	logger      ports.Logger
	dialer      *websocket.Dialer
	timeout     time.Duration
	minDelay    time.Duration
	maxAttempts int

	connectMu sync.Mutex // serializes Connect
	writeMu   sync.Mutex // one writer per connection

	mu        sync.Mutex // guards fields below
	conn      *websocket.Conn
	connected bool
	pending   map[string]chan response
}

// New creates a disconnected bridge client.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for MT5 bridge client")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: bridge URL is required", ports.ErrConfiguration)
	}
	c := &Client{
		url:         cfg.URL,
		login:       cfg.Login,
		password:    cfg.Password,
		server:      cfg.Server,
		logger:      cfg.Logger,
		dialer:      cfg.Dialer,
		timeout:     cfg.RequestTimeout,
		minDelay:    cfg.ReconnectDelay,
		maxAttempts: cfg.MaxReconnectAttempts,
		pending:     make(map[string]chan response),
	}
	if c.dialer == nil {
		c.dialer = websocket.DefaultDialer
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if c.minDelay <= 0 {
		c.minDelay = time.Second
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = 5
	}
	return c, nil
}

// Connect dials the bridge, retrying with jittered exponential backoff, then logs in to
// the terminal. It is a no-op while a session is up.
func (c *Client) Connect(ctx context.Context) error {
	const op = "Connect"
	c.connectMu.Lock()
	defer c.connectMu.Unlock()
	if c.IsConnected(ctx) {
		return nil
	}

	b := &backoff.Backoff{Min: c.minDelay, Max: 30 * c.minDelay, Factor: 2, Jitter: true}
	for attempt := 1; ; attempt++ {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.attach(conn)
			break
		}
		if attempt >= c.maxAttempts {
			c.logger.Error(ctx, err, op+": max connection attempts exceeded, giving up", map[string]interface{}{"url": c.url, "attempts": attempt})
			return fmt.Errorf("%s: %w: %w", op, ports.ErrConnectionFailed, err)
		}
		delay := b.Duration()
		c.logger.Warn(ctx, op+": connection failed, retrying", map[string]interface{}{"url": c.url, "attempt": attempt, "delay": delay.String(), "error": err.Error()})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return translateCtxErr(op, ctx.Err())
		}
	}

	var info terminalInfoResult
	if err := c.call(ctx, methodConnect, connectParams{Login: c.login, Password: c.password, Server: c.server}, &info); err != nil {
		c.Close()
		return fmt.Errorf("%s: terminal login: %w", op, err)
	}
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()
	c.logger.Info(ctx, op+": bridge session established", map[string]interface{}{"url": c.url, "login": c.login, "tradeAllowed": info.TradeAllowed})
	return nil
}

// IsConnected reports whether a logged-in session is up.
func (c *Client) IsConnected(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.connected
}

// Close drops the connection and fails every in-flight request.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.drop(conn, errors.New("closed by client"))
	return nil
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.connected = false
	c.mu.Unlock()
	go c.readLoop(conn)
}

func (c *Client) readLoop(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.drop(conn, err)
			return
		}
		var resp response
		if err := json.Unmarshal(data, &resp); err != nil {
			c.logger.Warn(ctx, "readLoop: undecodable frame from bridge", map[string]interface{}{"error": err.Error()})
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()
		if !ok {
			c.logger.Debug(ctx, "readLoop: response for unknown request", map[string]interface{}{"id": resp.ID})
			continue
		}
		ch <- resp
	}
}

// drop tears down conn if it is still current and fails its pending requests.
func (c *Client) drop(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	pending := c.pending
	c.pending = make(map[string]chan response)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
	conn.Close()
	c.logger.Warn(context.Background(), "bridge connection dropped", map[string]interface{}{"error": cause.Error(), "failedRequests": len(pending)})
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// call sends one request and decodes the result into out (which may be nil).
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil {
		c.mu.Unlock()
		return fmt.Errorf("%s: %w", method, ports.ErrNotConnected)
	}
	id := uuid.NewString()
	ch := make(chan response, 1)
	c.pending[id] = ch
	c.mu.Unlock()

	payload, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		c.forget(id)
		return fmt.Errorf("%s: encode request: %w", method, err)
	}

	c.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
	err = conn.WriteMessage(websocket.TextMessage, payload)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		c.drop(conn, err)
		return fmt.Errorf("%s: %w: %w", method, ports.ErrConnectionFailed, err)
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()
	select {
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("%s: %w: connection lost before response", method, ports.ErrConnectionFailed)
		}
		if !resp.OK {
			if resp.Error == nil {
				return fmt.Errorf("%s: %w: bridge reported failure without details", method, ports.ErrExternalAPIFailure)
			}
			return fmt.Errorf("%s: %w: %w", method, mapCode(resp.Error.Code), resp.Error)
		}
		if out != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("%s: %w: decode result: %v", method, ports.ErrExternalAPIFailure, err)
			}
		}
		return nil
	case <-timer.C:
		c.forget(id)
		return fmt.Errorf("%s: %w: no response within %s", method, ports.ErrTimeout, c.timeout)
	case <-ctx.Done():
		c.forget(id)
		return translateCtxErr(method, ctx.Err())
	}
}

func translateCtxErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ports.ErrTimeout, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ports.ErrContextCanceled, err)
}

// --- ports.TradingAPI ---

func (c *Client) TerminalInfo(ctx context.Context) (domain.TerminalInfo, error) {
	var res terminalInfoResult
	if err := c.call(ctx, methodTerminalInfo, nil, &res); err != nil {
		return domain.TerminalInfo{}, err
	}
	return domain.TerminalInfo{Connected: res.Connected, TradeAllowed: res.TradeAllowed}, nil
}

func (c *Client) SymbolInfo(ctx context.Context, symbol string) (domain.SymbolInfo, error) {
	var res symbolInfoResult
	if err := c.call(ctx, methodSymbolInfo, symbolParams{Symbol: symbol}, &res); err != nil {
		return domain.SymbolInfo{}, err
	}
	return domain.SymbolInfo{
		Symbol:  symbol,
		Point:   res.Point,
		Digits:  res.Digits,
		Bid:     res.Bid,
		Ask:     res.Ask,
		Visible: res.Visible,
	}, nil
}

func (c *Client) SubmitOrder(ctx context.Context, req domain.OrderRequest) (domain.Ticket, error) {
	const op = "SubmitOrder"
	params := orderSendParams{
		Symbol:  req.Symbol,
		Side:    string(req.Side),
		Type:    string(req.Kind),
		Volume:  req.Volume,
		Price:   req.Price,
		SL:      req.StopLoss,
		TP:      req.TakeProfit,
		Comment: req.Comment,
	}
	var res orderSendResult
	if err := c.call(ctx, methodOrderSend, params, &res); err != nil {
		c.logger.Error(ctx, err, op+" failed", map[string]interface{}{"symbol": req.Symbol, "side": req.Side, "kind": req.Kind})
		return 0, err
	}
	if res.Retcode != 0 && res.Retcode != retcodeDone && res.Retcode != retcodePlaced {
		err := fmt.Errorf("%s: %w: retcode %d %s", op, mapCode(res.Retcode), res.Retcode, res.Comment)
		c.logger.Error(ctx, err, op+" rejected by trade server", map[string]interface{}{"symbol": req.Symbol, "retcode": res.Retcode})
		return 0, err
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"symbol": req.Symbol, "side": req.Side, "kind": req.Kind, "ticket": res.Ticket})
	return domain.Ticket(res.Ticket), nil
}

func (c *Client) CancelOrder(ctx context.Context, order domain.PendingOrder) error {
	return c.call(ctx, methodOrderCancel, ticketParams{Ticket: int64(order.Ticket), Symbol: order.Symbol}, nil)
}

func (c *Client) ClosePosition(ctx context.Context, pos domain.Position) error {
	return c.call(ctx, methodPositionClose, ticketParams{
		Ticket: int64(pos.Ticket),
		Symbol: pos.Symbol,
		Side:   string(pos.Side),
		Volume: pos.Volume.String(),
	}, nil)
}

// ModifyPosition sends a TRADE_ACTION_SLTP request. Zero levels remove the stop or target.
func (c *Client) ModifyPosition(ctx context.Context, pos domain.Position, stopLoss, takeProfit decimal.Decimal) error {
	const op = "ModifyPosition"
	var res orderSendResult
	params := modifyParams{Ticket: int64(pos.Ticket), Symbol: pos.Symbol, SL: stopLoss, TP: takeProfit}
	if err := c.call(ctx, methodPositionSLTP, params, &res); err != nil {
		c.logger.Error(ctx, err, op+" failed", map[string]interface{}{"ticket": pos.Ticket, "symbol": pos.Symbol})
		return err
	}
	if res.Retcode != 0 && res.Retcode != retcodeDone {
		err := fmt.Errorf("%s: %w: retcode %d %s", op, mapCode(res.Retcode), res.Retcode, res.Comment)
		c.logger.Error(ctx, err, op+" rejected by trade server", map[string]interface{}{"ticket": pos.Ticket, "retcode": res.Retcode})
		return err
	}
	c.logger.Info(ctx, op+" successful", map[string]interface{}{"ticket": pos.Ticket, "sl": stopLoss.String(), "tp": takeProfit.String()})
	return nil
}

func (c *Client) Positions(ctx context.Context) ([]domain.Position, error) {
	var res []positionResult
	if err := c.call(ctx, methodPositionsGet, nil, &res); err != nil {
		return nil, err
	}
	out := make([]domain.Position, 0, len(res))
	for _, p := range res {
		side, err := domain.ParseOrderSide(p.Side)
		if err != nil {
			return nil, fmt.Errorf("positions: %w: %v", ports.ErrExternalAPIFailure, err)
		}
		out = append(out, domain.Position{
			Ticket:     domain.Ticket(p.Ticket),
			Symbol:     p.Symbol,
			Side:       side,
			Volume:     p.Volume,
			OpenPrice:  p.PriceOpen,
			StopLoss:   p.SL,
			TakeProfit: p.TP,
			Profit:     p.Profit,
			OpenTime:   time.Unix(p.Time, 0).UTC(),
			Comment:    p.Comment,
		})
	}
	return out, nil
}

func (c *Client) PendingOrders(ctx context.Context) ([]domain.PendingOrder, error) {
	var res []orderResult
	if err := c.call(ctx, methodOrdersGet, nil, &res); err != nil {
		return nil, err
	}
	out := make([]domain.PendingOrder, 0, len(res))
	for _, o := range res {
		side, err := domain.ParseOrderSide(o.Side)
		if err != nil {
			return nil, fmt.Errorf("orders: %w: %v", ports.ErrExternalAPIFailure, err)
		}
		out = append(out, domain.PendingOrder{
			Ticket:     domain.Ticket(o.Ticket),
			Symbol:     o.Symbol,
			Side:       side,
			Kind:       domain.OrderKind(o.Type),
			Volume:     o.Volume,
			Price:      o.PriceOpen,
			StopLoss:   o.SL,
			TakeProfit: o.TP,
			Comment:    o.Comment,
		})
	}
	return out, nil
}

func (c *Client) AccountInfo(ctx context.Context) (domain.AccountInfo, error) {
	var res accountResult
	if err := c.call(ctx, methodAccountInfo, nil, &res); err != nil {
		return domain.AccountInfo{}, err
	}
	return domain.AccountInfo{
		Login:       strconv.FormatInt(res.Login, 10),
		Currency:    res.Currency,
		Balance:     res.Balance,
		Equity:      res.Equity,
		Margin:      res.Margin,
		FreeMargin:  res.MarginFree,
		MarginLevel: res.MarginLevel,
	}, nil
}

// Candles returns the latest count bars, newest first. The bridge sends them oldest first.
func (c *Client) Candles(ctx context.Context, symbol string, tf domain.Timeframe, count int) ([]domain.Candle, error) {
	var res []rateResult
	if err := c.call(ctx, methodCopyRates, copyRatesParams{Symbol: symbol, Timeframe: string(tf), Count: count}, &res); err != nil {
		return nil, err
	}
	out := make([]domain.Candle, len(res))
	for i, r := range res {
		out[len(res)-1-i] = domain.Candle{
			OpenTime:  time.Unix(r.Time, 0).UTC(),
			Symbol:    symbol,
			Timeframe: tf,
			Open:      r.Open,
			High:      r.High,
			Low:       r.Low,
			Close:     r.Close,
			Volume:    r.TickVolume,
		}
	}
	return out, nil
}

func (c *Client) ClosedTrades(ctx context.Context, since time.Time) ([]domain.ClosedTrade, error) {
	var res []dealResult
	if err := c.call(ctx, methodHistoryDeals, historyParams{From: since.Unix()}, &res); err != nil {
		return nil, err
	}
	out := make([]domain.ClosedTrade, 0, len(res))
	for _, d := range res {
		side, err := domain.ParseOrderSide(d.Side)
		if err != nil {
			return nil, fmt.Errorf("history deals: %w: %v", ports.ErrExternalAPIFailure, err)
		}
		out = append(out, domain.ClosedTrade{
			PositionID: strconv.FormatInt(d.PositionID, 10),
			Symbol:     d.Symbol,
			Side:       side,
			Volume:     d.Volume,
			OpenPrice:  d.PriceOpen,
			ClosePrice: d.PriceClose,
			OpenTime:   time.Unix(d.TimeOpen, 0).UTC(),
			CloseTime:  time.Unix(d.TimeClose, 0).UTC(),
			Profit:     d.Profit,
			Comment:    d.Comment,
		})
	}
	return out, nil
}
