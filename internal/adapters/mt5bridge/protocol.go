package mt5bridge

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"mt5Assistant/internal/ports"
)

// Bridge methods. Each maps onto one MetaTrader5 terminal call on the bridge side.
const (
	methodConnect       = "connect"
	methodTerminalInfo  = "terminal_info"
	methodSymbolInfo    = "symbol_info"
	methodOrderSend     = "order_send"
	methodOrderCancel   = "order_cancel"
	methodPositionClose = "position_close"
	methodPositionSLTP  = "position_modify"
	methodPositionsGet  = "positions_get"
	methodOrdersGet     = "orders_get"
	methodAccountInfo   = "account_info"
	methodCopyRates     = "copy_rates"
	methodHistoryDeals  = "history_deals"
)

type request struct {
	ID     string      `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

type response struct {
	ID     string          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *bridgeError    `json:"error,omitempty"`
}

type bridgeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *bridgeError) Error() string {
	return fmt.Sprintf("bridge error %d: %s", e.Code, e.Message)
}

// Terminal result codes and MetaTrader5 package error codes the bridge forwards.
const (
	codeFail               = -1
	codeInvalidParams      = -2
	codeNotFound           = -4
	codeAuthFailed         = -6
	codeAutoTradingOff     = -8
	codeInternalConnect    = -10004
	codeInternalTimeout    = -10005
	retcodeRequote         = 10004
	retcodeRejected        = 10006
	retcodeInvalid         = 10013
	retcodeInvalidVolume   = 10014
	retcodeInvalidPrice    = 10015
	retcodeInvalidStops    = 10016
	retcodeTradeDisabled   = 10017
	retcodeMarketClosed    = 10018
	retcodeNoMoney         = 10019
	retcodeTooManyRequests = 10024
	retcodeClientAutoOff   = 10027
	retcodeNoConnection    = 10031
	errUnknownSymbol       = 4301
	errPositionNotFound    = 4753
	errOrderNotFound       = 4754
)

// mapCode translates a bridge error code into the ports error taxonomy.
func mapCode(code int) error {
	switch code {
	case codeAuthFailed:
		return ports.ErrAuthenticationFailed
	case codeInternalConnect, retcodeNoConnection:
		return ports.ErrNotConnected
	case codeInternalTimeout:
		return ports.ErrTimeout
	case codeInvalidParams, retcodeInvalid, retcodeInvalidVolume, retcodeInvalidPrice, retcodeInvalidStops:
		return ports.ErrInvalidArgument
	case codeAutoTradingOff, retcodeClientAutoOff, retcodeTradeDisabled, retcodeMarketClosed:
		return ports.ErrPreconditionFailed
	case retcodeNoMoney:
		return ports.ErrInsufficientFunds
	case retcodeTooManyRequests:
		return ports.ErrRateLimited
	case retcodeRequote, retcodeRejected:
		return ports.ErrOrderRejected
	case errUnknownSymbol:
		return ports.ErrSymbolNotFound
	case errPositionNotFound:
		return ports.ErrPositionNotFound
	case errOrderNotFound:
		return ports.ErrOrderNotFound
	case codeNotFound:
		return ports.ErrNotFound
	default:
		return ports.ErrExternalAPIFailure
	}
}

// --- params ---

type connectParams struct {
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
	Server   string `json:"server,omitempty"`
}

type symbolParams struct {
	Symbol string `json:"symbol"`
}

type orderSendParams struct {
	Symbol  string          `json:"symbol"`
	Side    string          `json:"side"`
	Type    string          `json:"type"`
	Volume  decimal.Decimal `json:"volume"`
	Price   decimal.Decimal `json:"price"`
	SL      decimal.Decimal `json:"sl"`
	TP      decimal.Decimal `json:"tp"`
	Comment string          `json:"comment,omitempty"`
}

type ticketParams struct {
	Ticket int64  `json:"ticket"`
	Symbol string `json:"symbol,omitempty"`
	Side   string `json:"side,omitempty"`
	Volume string `json:"volume,omitempty"`
}

type modifyParams struct {
	Ticket int64           `json:"ticket"`
	Symbol string          `json:"symbol"`
	SL     decimal.Decimal `json:"sl"`
	TP     decimal.Decimal `json:"tp"`
}

type copyRatesParams struct {
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Count     int    `json:"count"`
}

type historyParams struct {
	From int64 `json:"from"`
}

// --- results ---

type terminalInfoResult struct {
	Connected    bool `json:"connected"`
	TradeAllowed bool `json:"trade_allowed"`
}

type symbolInfoResult struct {
	Name    string          `json:"name"`
	Point   decimal.Decimal `json:"point"`
	Digits  int32           `json:"digits"`
	Bid     decimal.Decimal `json:"bid"`
	Ask     decimal.Decimal `json:"ask"`
	Visible bool            `json:"visible"`
}

type orderSendResult struct {
	Ticket  int64  `json:"ticket"`
	Retcode int    `json:"retcode"`
	Comment string `json:"comment"`
}

type positionResult struct {
	Ticket    int64           `json:"ticket"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Volume    decimal.Decimal `json:"volume"`
	PriceOpen decimal.Decimal `json:"price_open"`
	SL        decimal.Decimal `json:"sl"`
	TP        decimal.Decimal `json:"tp"`
	Profit    decimal.Decimal `json:"profit"`
	Time      int64           `json:"time"`
	Comment   string          `json:"comment"`
}

type orderResult struct {
	Ticket    int64           `json:"ticket"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Type      string          `json:"type"`
	Volume    decimal.Decimal `json:"volume"`
	PriceOpen decimal.Decimal `json:"price_open"`
	SL        decimal.Decimal `json:"sl"`
	TP        decimal.Decimal `json:"tp"`
	Comment   string          `json:"comment"`
}

type accountResult struct {
	Login       int64           `json:"login"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Equity      decimal.Decimal `json:"equity"`
	Margin      decimal.Decimal `json:"margin"`
	MarginFree  decimal.Decimal `json:"margin_free"`
	MarginLevel decimal.Decimal `json:"margin_level"`
}

type rateResult struct {
	Time       int64           `json:"time"`
	Open       decimal.Decimal `json:"open"`
	High       decimal.Decimal `json:"high"`
	Low        decimal.Decimal `json:"low"`
	Close      decimal.Decimal `json:"close"`
	TickVolume decimal.Decimal `json:"tick_volume"`
}

type dealResult struct {
	PositionID int64           `json:"position_id"`
	Symbol     string          `json:"symbol"`
	Side       string          `json:"side"`
	Volume     decimal.Decimal `json:"volume"`
	PriceOpen  decimal.Decimal `json:"price_open"`
	PriceClose decimal.Decimal `json:"price_close"`
	TimeOpen   int64           `json:"time_open"`
	TimeClose  int64           `json:"time_close"`
	Profit     decimal.Decimal `json:"profit"`
	Comment    string          `json:"comment"`
}
