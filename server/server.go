package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/hrygo/agenda/internal/profile"
	"github.com/hrygo/agenda/server/internal/observability"
	"github.com/hrygo/agenda/server/middleware"
	apiv1 "github.com/hrygo/agenda/server/router/api/v1"
	"github.com/hrygo/agenda/server/service/schedule"
	"github.com/hrygo/agenda/store"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer *echo.Echo
	metrics    *observability.Metrics
	logger     *slog.Logger
}

func NewServer(profile *profile.Profile, st *store.Store, svc schedule.Service, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		Profile: profile,
		Store:   st,
		metrics: observability.NewMetrics(),
		logger:  logger,
	}

	echoServer := echo.New()
	echoServer.Debug = profile.IsDev()
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(echomw.Recover())
	echoServer.Use(echomw.CORS())
	echoServer.Use(middleware.RequestLogger(logger, s.metrics))
	echoServer.Use(middleware.NewRateLimiter(profile.RateLimit, profile.RateBurst).Middleware())
	s.echoServer = echoServer

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	apiv1.NewAPIV1Service(profile, svc, s.metrics).RegisterRoutes(echoServer)
	return s
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

func (s *Server) address() string {
	return net.JoinHostPort(s.Profile.Addr, fmt.Sprint(s.Profile.Port))
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("http server starting",
			slog.String("addr", s.address()),
			slog.String("mode", s.Profile.Mode),
			slog.String("driver", s.Profile.Driver),
			slog.String("timezone", s.Profile.Timezone),
		)
		if err := s.echoServer.Start(s.address()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func (s *Server) Shutdown(ctx context.Context) error {
	var result error
	if err := s.echoServer.Shutdown(ctx); err != nil {
		s.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
		result = err
	}
	if err := s.Store.Close(); err != nil {
		s.logger.Error("failed to close store", slog.String("error", err.Error()))
		if result == nil {
			result = err
		}
	}
	s.logger.Info("agenda stopped properly")
	return result
}
