// Package httpapi exposes the trading service over a JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mt5Assistant/internal/app"
	"mt5Assistant/internal/domain"
	"mt5Assistant/internal/ports"
	"mt5Assistant/internal/risk"
	"mt5Assistant/internal/statistics"
)

const serviceName = "mt5_assistant"

// Service is the part of app.TradingService the API serves.
type Service interface {
	Status(ctx context.Context) app.Status
	Account(ctx context.Context) (domain.AccountInfo, error)
	Positions(ctx context.Context) ([]domain.Position, error)
	PnL(ctx context.Context) domain.PnLSnapshot
	PlaceBatch(ctx context.Context, req app.BatchRequest) (*domain.BatchResult, error)
	PlaceBreakout(ctx context.Context, req app.BreakoutRequest) (*domain.BatchResult, error)
	CloseAllPositions(ctx context.Context) (risk.CloseResult, error)
	CancelPendingOrders(ctx context.Context, symbol string) (app.CancelResult, error)
	CounterHistory(ctx context.Context, days int) []domain.DailyCounter
	RiskEvents(ctx context.Context, limit int) ([]domain.RiskEvent, error)
	Statistics(ctx context.Context, req app.StatisticsRequest) (statistics.Report, error)
	BreakevenAll(ctx context.Context) (app.ModifyResult, error)
	MoveStopsToCandle(ctx context.Context, req app.MoveStopsRequest) (app.ModifyResult, error)
}

// Config holds the server's collaborators.
type Config struct {
	Service        Service
	Logger         ports.Logger
	RequestTimeout time.Duration // per request, default 30s
	// Registerer receives the HTTP request metrics, Gatherer backs GET /metrics.
	// Both are optional; without a Gatherer /metrics is not mounted.
	Registerer prometheus.Registerer
	Gatherer   prometheus.Gatherer
}

// Server is the fiber application with the API routes mounted.
type Server struct {
	app     *fiber.App
	svc     Service
	logger  ports.Logger
	timeout time.Duration
}

// New builds the fiber app and registers the routes.
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil || cfg.Logger == nil {
		return nil, errors.New("service and logger are required for the HTTP API")
	}
	s := &Server{
		svc:     cfg.Service,
		logger:  cfg.Logger,
		timeout: cfg.RequestTimeout,
	}
	if s.timeout <= 0 {
		s.timeout = 30 * time.Second
	}

	s.app = fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ErrorHandler:          s.errorHandler,
	})
	if cfg.Registerer != nil {
		prom := fiberprometheus.NewWithRegistry(cfg.Registerer, serviceName, "", "http", nil)
		s.app.Use(prom.Middleware)
	}
	if cfg.Gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Get("/healthcheck", s.healthCheck)
	api.Get("/status", s.status)
	api.Get("/account", s.account)
	api.Get("/positions", s.positions)
	api.Get("/pnl", s.pnl)
	api.Post("/batch", s.placeBatch)
	api.Post("/breakout", s.placeBreakout)
	api.Post("/positions/close-all", s.closeAll)
	api.Post("/positions/breakeven", s.breakeven)
	api.Post("/positions/stops-to-candle", s.stopsToCandle)
	api.Post("/orders/cancel-pending", s.cancelPending)
	api.Get("/counter/history", s.counterHistory)
	api.Get("/risk/events", s.riskEvents)
	api.Get("/statistics", s.statistics)
}

// App exposes the fiber app, e.g. for App.Test.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info(context.Background(), "HTTP API listening", map[string]interface{}{"addr": addr})
	return s.app.Listen(addr)
}

// Shutdown stops the listener and waits for in-flight requests.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// requestContext bounds a handler's work by the configured timeout.
func (s *Server) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), s.timeout)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrInvalidArgument):
		return fiber.StatusBadRequest
	case errors.Is(err, ports.ErrPreconditionFailed):
		return fiber.StatusConflict
	case errors.Is(err, ports.ErrExternalAPIFailure):
		return fiber.StatusBadGateway
	case errors.Is(err, ports.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

// fail logs err and writes the JSON error body. batch is attached when a batch was partly placed.
func (s *Server) fail(c *fiber.Ctx, op string, err error, batch *domain.BatchResult) error {
	code := statusFor(err)
	s.logger.Error(c.UserContext(), err, op+" request failed", map[string]interface{}{"path": c.Path(), "status": code})
	body := errorResponse{Error: err.Error()}
	var pe *ports.PreconditionError
	if errors.As(err, &pe) {
		body.Condition = pe.Condition
	}
	if batch != nil {
		br := toBatchResponse(batch)
		body.Batch = &br
	}
	return c.Status(code).JSON(body)
}

func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	return c.Status(code).JSON(errorResponse{Error: err.Error()})
}
