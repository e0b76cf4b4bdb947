package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Stop-loss modes.
const (
	SLModeFixedPoints    = "FIXED_POINTS"
	SLModeCandleKeyLevel = "CANDLE_KEY_LEVEL"
)

// Duration is a time.Duration written as "2s" in YAML and JSON.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Settings is the trading settings document loaded once at startup.
type Settings struct {
	Symbols                  []string                `json:"symbols" yaml:"symbols"`
	DefaultTimeframe         string                  `json:"default_timeframe" yaml:"default_timeframe"`
	TimezoneOffsetHours      int                     `json:"timezone_offset_hours" yaml:"timezone_offset_hours"`
	TradingDayResetHour      int                     `json:"trading_day_reset_hour" yaml:"trading_day_reset_hour"`
	DailyLossLimit           float64                 `json:"daily_loss_limit" yaml:"daily_loss_limit"`
	DailyTradeLimit          int                     `json:"daily_trade_limit" yaml:"daily_trade_limit"`
	SymbolLimits             map[string]SymbolLimits `json:"symbol_limits,omitempty" yaml:"symbol_limits,omitempty"`
	BatchOrderDefaults       []BatchSlot             `json:"batch_order_defaults" yaml:"batch_order_defaults"`
	Breakout                 BreakoutSettings        `json:"breakout" yaml:"breakout"`
	SLMode                   SLModeSettings          `json:"sl_mode" yaml:"sl_mode"`
	Polling                  PollingSettings         `json:"polling" yaml:"polling"`
	CompensatePartialBatches bool                    `json:"compensate_partial_batches" yaml:"compensate_partial_batches"`
	// BreakevenOffsetPoints is how far behind entry a breakeven stop sits. Negative locks in profit.
	BreakevenOffsetPoints int `json:"breakeven_offset_points" yaml:"breakeven_offset_points"`
}

// SymbolLimits bounds user input per instrument. Zero values disable a bound.
type SymbolLimits struct {
	MinVolume   float64 `json:"min_volume" yaml:"min_volume"`
	MaxVolume   float64 `json:"max_volume" yaml:"max_volume"`
	MaxSLPoints int     `json:"max_sl_points" yaml:"max_sl_points"`
	MaxTPPoints int     `json:"max_tp_points" yaml:"max_tp_points"`
}

// BatchSlot is the default volume and offsets of one batch member.
type BatchSlot struct {
	Volume   float64 `json:"volume" yaml:"volume"`
	SLPoints int     `json:"sl_points" yaml:"sl_points"`
	TPPoints int     `json:"tp_points" yaml:"tp_points"`
}

// BreakoutSettings configures breakout trigger and stop offsets, in points.
type BreakoutSettings struct {
	HighOffsetPoints int `json:"high_offset_points" yaml:"high_offset_points"`
	LowOffsetPoints  int `json:"low_offset_points" yaml:"low_offset_points"`
	SLOffsetPoints   int `json:"sl_offset_points" yaml:"sl_offset_points"`
}

// SLModeSettings selects how batch stop losses are placed.
type SLModeSettings struct {
	DefaultMode    string `json:"default_mode" yaml:"default_mode"`
	CandleLookback int    `json:"candle_lookback" yaml:"candle_lookback"`
}

// PollingSettings holds the scheduler intervals.
type PollingSettings struct {
	RiskInterval      Duration `json:"risk_interval" yaml:"risk_interval"`
	PositionsInterval Duration `json:"positions_interval" yaml:"positions_interval"`
	TradeSyncInterval Duration `json:"trade_sync_interval" yaml:"trade_sync_interval"`
	TradeSyncLookback Duration `json:"trade_sync_lookback" yaml:"trade_sync_lookback"`
}

// LoadSettings reads the settings document at path, YAML first with a JSON fallback.
// A missing file or field yields an error matching ports.ErrConfiguration.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ports.ConfigurationError{Field: "settings", Reason: fmt.Sprintf("read %s: %v", path, err)}
	}

	s := &Settings{}
	if err := yaml.Unmarshal(data, s); err != nil {
		s = &Settings{}
		if jerr := json.Unmarshal(data, s); jerr != nil {
			return nil, &ports.ConfigurationError{Field: "settings", Reason: fmt.Sprintf("parse %s (tried YAML and JSON): %v", path, err)}
		}
	}

	s.applyDefaults()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// SaveToFile writes the settings as YAML for .yaml/.yml paths and JSON otherwise.
func (s *Settings) SaveToFile(path string) error {
	var data []byte
	var err error
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write settings file: %w", err)
	}
	return nil
}

func (s *Settings) applyDefaults() {
	if s.SLMode.DefaultMode == "" {
		s.SLMode.DefaultMode = SLModeFixedPoints
	}
	if s.SLMode.CandleLookback == 0 {
		s.SLMode.CandleLookback = 3
	}
	if s.Polling.RiskInterval == 0 {
		s.Polling.RiskInterval = Duration(2 * time.Second)
	}
	if s.Polling.PositionsInterval == 0 {
		s.Polling.PositionsInterval = Duration(time.Second)
	}
	if s.Polling.TradeSyncInterval == 0 {
		s.Polling.TradeSyncInterval = Duration(5 * time.Second)
	}
	if s.Polling.TradeSyncLookback == 0 {
		s.Polling.TradeSyncLookback = Duration(72 * time.Hour)
	}
}

// Validate reports every missing or invalid field, each as a *ports.ConfigurationError.
func (s *Settings) Validate() error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, &ports.ConfigurationError{Field: field, Reason: reason})
	}

	if len(s.Symbols) == 0 {
		add("symbols", "is required")
	}
	for i, sym := range s.Symbols {
		if strings.TrimSpace(sym) == "" {
			add(fmt.Sprintf("symbols[%d]", i), "must not be empty")
		}
	}
	if s.DefaultTimeframe == "" {
		add("default_timeframe", "is required")
	} else if _, err := domain.ParseTimeframe(s.DefaultTimeframe); err != nil {
		add("default_timeframe", err.Error())
	}
	if s.DailyLossLimit <= 0 {
		add("daily_loss_limit", "is required and must be positive")
	}
	if s.DailyTradeLimit <= 0 {
		add("daily_trade_limit", "is required and must be positive")
	}
	if len(s.BatchOrderDefaults) == 0 {
		add("batch_order_defaults", "is required")
	}
	for i, slot := range s.BatchOrderDefaults {
		if slot.Volume < 0 || slot.SLPoints < 0 || slot.TPPoints < 0 {
			add(fmt.Sprintf("batch_order_defaults[%d]", i), "volume and points must be non-negative")
		}
	}
	if s.TradingDayResetHour < 0 || s.TradingDayResetHour > 23 {
		add("trading_day_reset_hour", "must be between 0 and 23")
	}
	if s.TimezoneOffsetHours < -23 || s.TimezoneOffsetHours > 23 {
		add("timezone_offset_hours", "must be between -23 and 23")
	}
	for sym, l := range s.SymbolLimits {
		if l.MinVolume < 0 || l.MaxVolume < 0 || l.MaxSLPoints < 0 || l.MaxTPPoints < 0 {
			add("symbol_limits."+sym, "bounds must be non-negative")
		}
		if l.MaxVolume > 0 && l.MinVolume > l.MaxVolume {
			add("symbol_limits."+sym, "min_volume exceeds max_volume")
		}
	}
	if s.Breakout.HighOffsetPoints < 0 || s.Breakout.LowOffsetPoints < 0 || s.Breakout.SLOffsetPoints < 0 {
		add("breakout", "offsets must be non-negative")
	}
	if s.SLMode.DefaultMode != SLModeFixedPoints && s.SLMode.DefaultMode != SLModeCandleKeyLevel {
		add("sl_mode.default_mode", fmt.Sprintf("must be %s or %s", SLModeFixedPoints, SLModeCandleKeyLevel))
	}
	if s.SLMode.CandleLookback < 1 {
		add("sl_mode.candle_lookback", "must be at least 1")
	}
	return errors.Join(errs...)
}

// Calendar returns the trading-day calendar described by the settings.
func (s *Settings) Calendar() domain.Calendar {
	return domain.Calendar{
		ResetHour: s.TradingDayResetHour,
		Offset:    time.Duration(s.TimezoneOffsetHours) * time.Hour,
	}
}

// Timeframe returns the parsed default timeframe, M1 when unset.
func (s *Settings) Timeframe() domain.Timeframe {
	tf, err := domain.ParseTimeframe(s.DefaultTimeframe)
	if err != nil {
		return domain.M1
	}
	return tf
}

// LossLimit returns the daily loss limit as a decimal.
func (s *Settings) LossLimit() decimal.Decimal {
	return decimal.NewFromFloat(s.DailyLossLimit)
}

// AllowsSymbol reports whether symbol is in the configured list.
func (s *Settings) AllowsSymbol(symbol string) bool {
	for _, sym := range s.Symbols {
		if sym == symbol {
			return true
		}
	}
	return false
}

// Limits returns the bounds for symbol; the zero value disables every bound.
func (s *Settings) Limits(symbol string) SymbolLimits {
	return s.SymbolLimits[symbol]
}

// Default returns the stock settings document.
func Default() *Settings {
	s := &Settings{
		Symbols:             []string{"BTCUSD", "ETHUSD", "EURUSD", "GBPUSD", "XAUUSD", "XAGUSD"},
		DefaultTimeframe:    string(domain.M1),
		TimezoneOffsetHours: 7,
		TradingDayResetHour: 6,
		DailyLossLimit:      50,
		DailyTradeLimit:     20,
		SymbolLimits: map[string]SymbolLimits{
			"EURUSD": {MinVolume: 0.01, MaxVolume: 5, MaxSLPoints: 5000, MaxTPPoints: 10000},
			"GBPUSD": {MinVolume: 0.01, MaxVolume: 5, MaxSLPoints: 5000, MaxTPPoints: 10000},
			"XAUUSD": {MinVolume: 0.01, MaxVolume: 2, MaxSLPoints: 10000, MaxTPPoints: 20000},
		},
		BatchOrderDefaults: []BatchSlot{
			{Volume: 0.10, SLPoints: 500, TPPoints: 1000},
			{Volume: 0.10, SLPoints: 500, TPPoints: 1500},
			{Volume: 0.10, SLPoints: 500, TPPoints: 2000},
			{Volume: 0.10, SLPoints: 500, TPPoints: 2500},
		},
		Breakout: BreakoutSettings{HighOffsetPoints: 10, LowOffsetPoints: 10, SLOffsetPoints: 100},
		SLMode:   SLModeSettings{DefaultMode: SLModeFixedPoints, CandleLookback: 3},
	}
	s.applyDefaults()
	return s
}
