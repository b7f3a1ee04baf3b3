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
	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/membership"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
)

type ServerDeps struct {
	Conf           *core.Config
	Logger         core.Logger
	Validate       *validator.Validate
	Translator     ut.Translator
	DisableReqLogs bool

	UserSvc       *user.Service
	MembershipSvc *membership.Service
	ReviewerSvc   *reviewer.Service
	CompanySvc    *company.Service
	FinanceSvc    *finance.Service
}

type Server struct {
	ServerDeps
	app      *echo.Echo
	jwt      middleware.JWTConfig
	errors   chan error
	shutdown chan os.Signal
}

// NewServer sets up the routes. It fails when the page templates cannot be parsed.
func NewServer(deps ServerDeps) (*Server, error) {
	renderer, err := newPageRenderer(deps.Conf)
	if err != nil {
		return nil, errors.Wrap(err, "setting up page renderer")
	}
	s := &Server{
		ServerDeps: deps,
		app:        echo.New(),
		jwt:        newJWTConfig(deps.Conf),
		errors:     make(chan error, 1),
		shutdown:   make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup(renderer)
	return s, nil
}

func (s *Server) setup(renderer echo.Renderer) {
	debug := s.Conf.Debug

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(debug || s.Conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(cookieTokenMiddleware(s.Conf.Server.CookieName))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.Conf, s.Logger, s.Translator, s.SignalShutdown)
	s.app.Renderer = renderer
	s.app.Debug = debug

	jwt := middleware.JWTWithConfig(s.jwt)
	admin := adminMiddleware()

	registerPages(s.app, s.ReviewerSvc, s.CompanySvc)

	api := s.app.Group("/api")
	registerPublicAPI(api.Group("/public"), s.MembershipSvc, s.ReviewerSvc, s.CompanySvc, s.Validate)
	api.GET("/health", s.health)

	registerUserAPI(api, jwt, s.Conf, s.UserSvc, s.Validate)
	registerMemberAPI(api.Group("/me", jwt), s.UserSvc, s.ReviewerSvc, s.CompanySvc, s.FinanceSvc)

	ag := api.Group("/admin", jwt, admin)
	registerApplicationAPI(ag, s.UserSvc, s.MembershipSvc, s.Validate)
	registerReviewerAPI(ag, s.ReviewerSvc, s.Validate)
	registerCompanyAPI(ag, s.CompanySvc, s.Validate)
	registerFinanceAPI(ag.Group("/finance"), s.UserSvc, s.FinanceSvc, s.Validate)
}

// Start listens on the configured host. Listen errors are reported on Errors().
func (s *Server) Start() {
	if err := s.app.Start(s.Conf.Server.Host); err != nil && err != http.ErrServerClosed {
		s.errors <- errors.Wrap(err, "starting server")
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

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *Server) health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{
		"status": "ok",
		"build":  s.Conf.Build,
		"env":    s.Conf.Env,
	})
}
