package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"fxSignalBot/internal/app"
	"fxSignalBot/internal/ledger"
	"fxSignalBot/internal/ports"
	"fxSignalBot/internal/risk"
)

// Server exposes the operator surface over HTTP: status and history reads,
// monitor start/stop, risk reset and forced per-symbol analysis.
type Server struct {
	echo     *echo.Echo
	logger   ports.Logger
	monitor  *app.Monitor
	ledger   *ledger.Ledger
	governor *risk.Governor
	startAt  time.Time
}

// NewServer builds the echo server and registers all routes.
func NewServer(logger ports.Logger, monitor *app.Monitor, ldg *ledger.Ledger, governor *risk.Governor) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for api server")
	}
	if monitor == nil || ldg == nil || governor == nil {
		return nil, fmt.Errorf("%w: monitor, ledger and governor are all required", ports.ErrConfigurationError)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		logger:   logger,
		monitor:  monitor,
		ledger:   ldg,
		governor: governor,
		startAt:  time.Now(),
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.handleRoot)
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/status", s.handleStatus)
	s.echo.GET("/positions", s.handlePositions)
	s.echo.GET("/history", s.handleHistory)
	s.echo.GET("/risk", s.handleRisk)
	s.echo.POST("/monitor/start", s.handleMonitorStart)
	s.echo.POST("/monitor/stop", s.handleMonitorStop)
	s.echo.POST("/risk/reset", s.handleRiskReset)
	s.echo.POST("/analyze/:symbol", s.handleAnalyze)
}

// Start begins serving on the given port. Blocks until shutdown.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.logger.Info(context.Background(), "http server listening", map[string]interface{}{"addr": addr})
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleRoot(c echo.Context) error {
	return SuccessResponse(c, "fx signal bot", map[string]interface{}{
		"monitorRunning": s.monitor.IsRunning(),
		"uptime":         time.Since(s.startAt).Round(time.Second).String(),
	})
}

func (s *Server) handleHealth(c echo.Context) error {
	return SuccessResponse(c, "ok", nil)
}

func (s *Server) handleStatus(c echo.Context) error {
	return SuccessResponse(c, "", map[string]interface{}{
		"monitorRunning": s.monitor.IsRunning(),
		"openPositions":  s.ledger.OpenCount(),
		"closedTotal":    len(s.ledger.History()),
		"risk":           s.governor.Snapshot(),
		"uptime":         time.Since(s.startAt).Round(time.Second).String(),
	})
}

func (s *Server) handlePositions(c echo.Context) error {
	return SuccessResponse(c, "", s.ledger.OpenPositions())
}

func (s *Server) handleHistory(c echo.Context) error {
	return SuccessResponse(c, "", s.ledger.History())
}

func (s *Server) handleRisk(c echo.Context) error {
	return SuccessResponse(c, "", s.governor.Snapshot())
}

func (s *Server) handleMonitorStart(c echo.Context) error {
	if err := s.monitor.Start(c.Request().Context()); err != nil {
		return ErrorResponse(c, http.StatusConflict, err.Error())
	}
	return SuccessResponse(c, "monitor started", nil)
}

func (s *Server) handleMonitorStop(c echo.Context) error {
	if !s.monitor.IsRunning() {
		return ErrorResponse(c, http.StatusConflict, "monitor is not running")
	}
	s.monitor.Stop()
	return SuccessResponse(c, "monitor stopped", nil)
}

func (s *Server) handleRiskReset(c echo.Context) error {
	s.governor.Reset(c.Request().Context())
	return SuccessResponse(c, "risk counters reset", s.governor.Snapshot())
}

func (s *Server) handleAnalyze(c echo.Context) error {
	symbol := strings.ToUpper(c.Param("symbol"))
	if symbol == "" {
		return ErrorResponse(c, http.StatusBadRequest, "symbol is required")
	}
	if err := s.monitor.ScanSymbol(c.Request().Context(), symbol); err != nil {
		if errors.Is(err, ports.ErrInvalidRequest) {
			return ErrorResponse(c, http.StatusBadRequest, err.Error())
		}
		return ErrorResponse(c, http.StatusBadGateway, err.Error())
	}
	return SuccessResponse(c, fmt.Sprintf("analysis completed for %s", symbol), map[string]interface{}{
		"openPositions": s.ledger.OpenCount(),
	})
}
