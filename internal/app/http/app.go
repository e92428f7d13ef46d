package httpapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/validate"
	media "illust_nest/internal/services/media_service"
	"illust_nest/internal/storage"
	rest "illust_nest/internal/transport/http"
	"illust_nest/internal/transport/http/dto/response"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

type CustomValidator struct {
	validator *validator.Validate
}

func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}

// Server is the local preview server. It hands out image handles minted by
// the loader and can load a gallery image on demand.
type Server struct {
	log   *slog.Logger
	e     *echo.Echo
	media *media.MediaService
	host  string
	port  string

	// publicOnly is set when the server listens beyond loopback: /view then
	// refuses to proxy private images with the stored token.
	publicOnly bool
}

type viewRequest struct {
	Variant string `param:"variant" validate:"required,oneof=thumbnail original transcoded"`
	Path    string `validate:"required"`
	Public  bool   `query:"public"`
}

func New(log *slog.Logger, host, port string, loader *media.MediaService) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Validator = &CustomValidator{validator: validate.Validator()}

	reg := prometheus.NewRegistry()

	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:  "illust_nest",
		Subsystem:  "preview",
		Registerer: reg,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics"
		},
	}))

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogRemoteIP: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("request",
				slog.String("URI", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote ip", v.RemoteIP),
			)

			return nil
		},
	}))

	s := &Server{
		log:   log,
		e:     e,
		media: loader,
		host:  host,
		port:  port,

		publicOnly: !isLoopback(host),
	}
	if s.publicOnly {
		log.Warn("preview server is reachable beyond loopback, private images are not served",
			slog.String("host", host))
	}

	e.GET("/health", s.health)
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{reg, prometheus.DefaultGatherer},
	}))
	e.GET("/blobs/:id", s.blob)
	e.GET("/view/:variant/*", s.view)

	return s
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.host, s.port)
}

// URL is where a handle can be fetched from.
func (s *Server) URL(handle string) string {
	return fmt.Sprintf("http://%s/blobs/%s", s.Addr(), handle)
}

func (s *Server) MustRun() {
	const op = "httpapp.Server.MustRun"

	s.log.Info(op, slog.String("addr", net.JoinHostPort(s.host, s.port)))

	if err := s.Start(); err != nil {
		panic(err)
	}
}

func (s *Server) Start() error {
	const op = "httpapp.Server.Start"

	if err := s.e.Start(net.JoinHostPort(s.host, s.port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server stopped: %w", op, err)
	}

	return nil
}

func (s *Server) Stop() error {
	const op = "httpapp.Server.Stop"

	optCtx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	s.log.Info("stopping", slog.String("op", op))

	if err := s.e.Shutdown(optCtx); err != nil {
		return fmt.Errorf("%s could not shutdown server gracefuly: %w", op, err)
	}

	return nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":  "ok",
		"handles": s.media.Registry().Live(),
	})
}

func (s *Server) blob(c echo.Context) error {
	b, err := s.media.Registry().Get(c.Param("id"))
	if errors.Is(err, storage.ErrHandleNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "handle not found"})
	}
	if err != nil {
		return err
	}

	c.Response().Header().Set("Cache-Control", "no-store")

	return c.Blob(http.StatusOK, b.ContentType, b.Data)
}

// view loads one gallery image through the authenticated loader and streams it.
// The handle lives only for the duration of the request.
func (s *Server) view(c echo.Context) error {
	var req viewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	req.Path = strings.TrimPrefix(c.Param("*"), "/")

	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if s.publicOnly && !req.Public {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "private images are only served on loopback"})
	}

	img := s.media.Mount(media.Source{
		Path:    req.Path,
		Variant: models.ImageVariant(req.Variant),
		Public:  req.Public,
	})
	defer img.Unmount()

	if err := img.Wait(c.Request().Context()); err != nil {
		return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": err.Error()})
	}

	if img.State() != media.StateLoaded {
		err := img.Err()
		if err == nil {
			err = errors.New("image not loaded")
		}
		return c.JSON(statusFor(err), map[string]string{"error": response.Message(err)})
	}

	b, err := s.media.Registry().Get(img.Handle())
	if err != nil {
		return err
	}

	return c.Blob(http.StatusOK, b.ContentType, b.Data)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, rest.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, response.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
