package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/admission"
	"github.com/shuleapp/shule/core/finance"
	"github.com/shuleapp/shule/core/learner"
	"github.com/shuleapp/shule/core/performance"
	"github.com/shuleapp/shule/core/report"
	"github.com/shuleapp/shule/core/school"
	"github.com/shuleapp/shule/core/user"
	eventsvc "github.com/shuleapp/shule/services/events"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		Validate       *validator.Validate
		Translator     ut.Translator
		Registerer     prometheus.Registerer // defaults to prometheus.DefaultRegisterer
		DisableReqLogs bool

		UserSvc      user.Service
		SchoolSvc    *school.Service
		LearnerSvc   *learner.Service
		PerfSvc      *performance.Service
		ReportSvc    *report.Service
		FinanceSvc   *finance.Service
		AdmissionSvc *admission.Service
		EventHub     *eventsvc.Hub

		// HealthCheck reports whether the backing stores are reachable. Optional.
		HealthCheck func(ctx context.Context) error
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	if deps.Registerer == nil {
		deps.Registerer = prometheus.DefaultRegisterer
	}
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(newMetrics(s.deps.Registerer).middleware)

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)

	g := s.app.Group("/api")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	g.GET("/health", s.health)

	registerUserAPI(g, jwt, s.deps)
	registerSchoolAPI(g, jwt, s.deps)
	registerLearnerAPI(g, jwt, s.deps)
	registerPerformanceAPI(g, jwt, s.deps)
	registerReportAPI(g, jwt, s.deps)
	registerFinanceAPI(g, jwt, s.deps)
	registerAdmissionAPI(g, jwt, s.deps)
	registerPublicAPI(g, s.deps)
	registerDashboardAPI(g, jwt, s.deps)
	// browsers cannot set headers on websocket requests
	registerEventsAPI(g, middleware.JWTWithConfig(newJWTConfig(conf, "query:token")), s.deps)
}

// Start listens on the configured address. Errors end up on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.app.ServeHTTP(w, r)
}

func (s *Server) home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to "+s.deps.Conf.AppName+" API!")
}

func (s *Server) health(ctx echo.Context) error {
	if s.deps.HealthCheck != nil {
		if err := s.deps.HealthCheck(ctx.Request().Context()); err != nil {
			s.deps.Logger.Error("health check failed", err)
			return ctx.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable"})
		}
	}
	return ctx.JSON(http.StatusOK, echo.Map{"status": "ok", "build": s.deps.Conf.Build})
}
