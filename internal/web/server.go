package web

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/resolve"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// maxBody bounds request bodies; a support request is a few paragraphs.
const maxBody = "64K"

// Deps are the collaborators the routes operate on.
type Deps struct {
	DB         *sql.DB
	Config     *config.Config
	Pipeline   *ops.Pipeline
	Vocabulary resolve.Provider
	Cache      ops.Invalidator // nil when vocabulary is not cached
	Logger     logrus.FieldLogger
}

// NewServer creates the echo instance serving the JSON API and the intake form.
func NewServer(deps Deps, version string) (*echo.Echo, error) {
	templateSub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		return nil, fmt.Errorf("template sub-FS: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("static sub-FS: %w", err)
	}

	h := newHandlers(deps, version)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = NewRenderer(templateSub)
	e.HTTPErrorHandler = h.handleHTTPError

	e.Use(middleware.Recover())
	e.Use(requestLogger(h.log))
	e.Use(middleware.BodyLimit(maxBody))
	e.Use(securityHeaders)

	// JSON API
	e.POST("/api/tickets", h.CreateTicket)
	e.GET("/api/vocabulary/:category", h.GetVocabulary)
	e.GET("/api/resolve", h.ResolveField)
	e.POST("/api/vocabulary/invalidate", h.InvalidateVocabulary)
	e.GET("/api/attachments", h.ListAttachments)
	e.GET("/api/attachments/:id", h.GetAttachment)
	e.GET("/healthz", h.Healthz)

	// HTML intake form
	e.GET("/", h.Form)
	e.POST("/tickets", h.SubmitForm)
	e.GET("/attachments", h.AttachmentsPage)
	e.StaticFS("/static", staticSub)

	return e, nil
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		hdr := c.Response().Header()
		hdr.Set("Content-Security-Policy", "default-src 'self'; img-src 'self' https:; style-src 'self'")
		hdr.Set("X-Content-Type-Options", "nosniff")
		hdr.Set("X-Frame-Options", "DENY")
		return next(c)
	}
}

// requestLogger logs one line per request through logrus.
func requestLogger(log logrus.FieldLogger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURIPath:  true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			entry := log.WithFields(logrus.Fields{
				"method":     v.Method,
				"path":       v.URIPath,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
			})
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			if v.Status >= http.StatusInternalServerError {
				entry.Warn("request failed")
				return nil
			}
			entry.Debug("request")
			return nil
		},
	})
}

// Run serves e on addr until SIGINT/SIGTERM, then shuts down gracefully.
func Run(e *echo.Echo, addr string, log logrus.FieldLogger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- e.Start(addr)
	}()

	log.WithField("addr", addr).Info("cardbot listening")
	if strings.HasPrefix(addr, "0.0.0.0") || strings.HasPrefix(addr, ":") || strings.Contains(addr, "[::]") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	}
}
