package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"mt5Assistant/config"
	"mt5Assistant/internal/adapters/binanceclient"
	"mt5Assistant/internal/adapters/logger"
	"mt5Assistant/internal/adapters/mt5bridge"
	"mt5Assistant/internal/adapters/paper"
	"mt5Assistant/internal/adapters/sqlite"
	"mt5Assistant/internal/adapters/telegram"
	"mt5Assistant/internal/app"
	"mt5Assistant/internal/batch"
	"mt5Assistant/internal/counter"
	"mt5Assistant/internal/metrics"
	"mt5Assistant/internal/ports"
	"mt5Assistant/internal/risk"
	"mt5Assistant/internal/scheduler"
)

// runtime is the wired object graph shared by the commands.
type runtime struct {
	cfg      *config.Config
	settings *config.Settings
	logger   *logger.LogrusLogger
	repo     *sqlite.Repository
	trading  ports.TradingAPI
	counter  *counter.Store
	sched    *scheduler.Scheduler
	service  *app.TradingService
	closers  []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.logger.Error(context.Background(), err, "Error releasing resource")
		}
	}
}

// loadConfig reads the environment and the settings document. settingsPath overrides SETTINGS_PATH.
func loadConfig(settingsPath string) (*config.Config, *config.Settings, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	if settingsPath != "" {
		cfg.SettingsPath = settingsPath
	}
	settings, err := config.LoadSettings(cfg.SettingsPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, settings, nil
}

// openStore opens the database and the counter store only, for read-only commands.
func openStore(cfg *config.Config, settings *config.Settings) (*runtime, error) {
	appLogger := logger.New(cfg.LogLevel)
	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		return nil, fmt.Errorf("initialize database repository: %w", err)
	}
	return &runtime{
		cfg:      cfg,
		settings: settings,
		logger:   appLogger,
		repo:     repo,
		counter:  counter.NewStore(repo, settings.Calendar(), appLogger),
		closers:  []func() error{repo.Close},
	}, nil
}

// bootstrap wires the full trading service. Metrics are registered with reg.
func bootstrap(cfg *config.Config, settings *config.Settings, reg prometheus.Registerer) (*runtime, error) {
	rt, err := openStore(cfg, settings)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	appLogger := rt.logger
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel})

	m := metrics.New(reg)

	trading, err := newTradingAPI(cfg, settings, appLogger)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.trading = trading
	if c, ok := trading.(io.Closer); ok {
		rt.closers = append(rt.closers, c.Close)
	}
	appLogger.Info(ctx, "Trading terminal adapter initialized", map[string]interface{}{"broker": cfg.Broker})

	var notifier ports.Notifier = telegram.Nop{}
	if cfg.TelegramToken != "" {
		tg, err := telegram.New(telegram.Config{Token: cfg.TelegramToken, ChatID: cfg.TelegramChatID, Logger: appLogger})
		if err != nil {
			appLogger.Error(ctx, err, "Telegram notifier unavailable, alerts disabled")
		} else {
			notifier = tg
		}
	}

	calendar := settings.Calendar()
	guard, err := risk.NewGuard(risk.Config{
		Trading:  trading,
		TradeLog: rt.repo,
		Events:   rt.repo,
		Counter:  rt.counter,
		Session:  risk.NewSession(calendar),
		Calendar: calendar,
		Logger:   appLogger,
		Notifier: notifier,
		Metrics:  m,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initialize risk guard: %w", err)
	}
	sequencer, err := batch.NewSequencer(batch.Config{
		Trading:    trading,
		Counter:    rt.counter,
		Logger:     appLogger,
		Metrics:    m,
		Compensate: settings.CompensatePartialBatches,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initialize batch sequencer: %w", err)
	}

	rt.sched = scheduler.New(appLogger, m)
	svc, err := app.NewTradingService(app.Config{
		Settings:  settings,
		Trading:   trading,
		Counter:   rt.counter,
		Guard:     guard,
		Sequencer: sequencer,
		TradeLog:  rt.repo,
		Events:    rt.repo,
		Scheduler: rt.sched,
		Logger:    appLogger,
		Metrics:   m,
	})
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("initialize trading service: %w", err)
	}
	rt.service = svc
	appLogger.Info(ctx, "Trading service initialized")
	return rt, nil
}

// newTradingAPI builds the terminal adapter selected by BROKER.
func newTradingAPI(cfg *config.Config, settings *config.Settings, log ports.Logger) (ports.TradingAPI, error) {
	switch cfg.Broker {
	case config.BrokerMT5Bridge:
		client, err := mt5bridge.New(mt5bridge.Config{
			URL:                  cfg.MT5BridgeURL,
			Login:                cfg.MT5Login,
			Password:             cfg.MT5Password,
			Server:               cfg.MT5Server,
			Logger:               log,
			RequestTimeout:       cfg.RequestTimeout,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize MT5 bridge client: %w", err)
		}
		return client, nil
	case config.BrokerBinance:
		client, err := binanceclient.New(binanceclient.Config{
			APIKey:               cfg.APIKey,
			SecretKey:            cfg.SecretKey,
			UseTestnet:           cfg.IsTestnet,
			Symbols:              settings.Symbols,
			Logger:               log,
			ReconnectDelay:       cfg.ReconnectDelay,
			MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		})
		if err != nil {
			return nil, fmt.Errorf("initialize Binance client: %w", err)
		}
		return client, nil
	default:
		log.Warn(context.Background(), "Using the paper terminal: orders are simulated and need quotes before they can fill")
		specs := make([]paper.SymbolSpec, 0, len(settings.Symbols))
		for _, s := range settings.Symbols {
			specs = append(specs, paperSpec(s))
		}
		return paper.NewTerminal(paper.Config{
			Login:    "paper",
			Currency: "USD",
			Balance:  decimal.NewFromInt(10000),
			Symbols:  specs,
			Logger:   log,
		})
	}
}

// paperSpec guesses point size and contract size from the symbol name.
func paperSpec(symbol string) paper.SymbolSpec {
	upper := strings.ToUpper(symbol)
	switch {
	case strings.HasPrefix(upper, "XAU"):
		return paper.SymbolSpec{Name: symbol, Point: decimal.RequireFromString("0.01"), Digits: 2, ContractSize: decimal.NewFromInt(100)}
	case strings.HasPrefix(upper, "XAG"):
		return paper.SymbolSpec{Name: symbol, Point: decimal.RequireFromString("0.001"), Digits: 3, ContractSize: decimal.NewFromInt(5000)}
	case strings.HasPrefix(upper, "BTC"), strings.HasPrefix(upper, "ETH"):
		return paper.SymbolSpec{Name: symbol, Point: decimal.RequireFromString("0.01"), Digits: 2, ContractSize: decimal.NewFromInt(1)}
	case strings.HasSuffix(upper, "JPY"):
		return paper.SymbolSpec{Name: symbol, Point: decimal.RequireFromString("0.001"), Digits: 3, ContractSize: decimal.NewFromInt(100000)}
	default:
		return paper.SymbolSpec{Name: symbol, Point: decimal.RequireFromString("0.00001"), Digits: 5, ContractSize: decimal.NewFromInt(100000)}
	}
}
