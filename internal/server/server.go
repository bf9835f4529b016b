package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"ragserver/internal/models"
	"ragserver/internal/rag"
	"ragserver/internal/vectorstore"
)

// Service is the workflow surface the handlers need. *rag.RAG satisfies it.
type Service interface {
	Ingest(ctx context.Context, files []models.UploadedFile, contextTag string) (models.IngestResult, error)
	Retrieve(ctx context.Context, query string, k int, contextFilter string) (models.RetrieveResult, error)
	Rechunk(ctx context.Context, chunkWords int, contextFilter string) (models.RechunkResult, error)
}

// Server owns the echo instance and its route handlers.
type Server struct {
	echo      *echo.Echo
	svc       Service
	store     vectorstore.Store
	uploadDir string
	backend   string
}

// New builds the HTTP server with all routes registered.
func New(svc Service, store vectorstore.Store, uploadDir, backend string) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogMethod:  true,
		LogURI:     true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			log.Info().
				Int("status", v.Status).
				Str("method", v.Method).
				Str("uri", v.URI).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}))
	e.HTTPErrorHandler = errorHandler

	s := &Server{
		echo:      e,
		svc:       svc,
		store:     store,
		uploadDir: uploadDir,
		backend:   backend,
	}

	e.POST("/upload", s.handleUpload)
	e.POST("/prompt", s.handlePrompt)
	e.POST("/chat", s.handlePrompt)
	e.POST("/rechunk", s.handleRechunk)
	e.GET("/health", s.handleHealth)
	return s
}

// Start blocks serving on addr until the server is shut down.
func (s *Server) Start(addr string) error {
	log.Info().Str("addr", addr).Msg("http server listening")
	return s.echo.Start(addr)
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Echo exposes the router for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// errorHandler maps the workflow error taxonomy onto status codes and a
// uniform JSON body. Validation and empty-content failures are client errors;
// provider and store failures are server errors.
func errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	msg := err.Error()

	var (
		ve      *rag.ValidationError
		nce     *rag.NoContentError
		pe      *rag.ProviderError
		se      *rag.StoreError
		httpErr *echo.HTTPError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &nce):
		code = http.StatusBadRequest
	case errors.As(err, &pe), errors.As(err, &se):
		code = http.StatusInternalServerError
	case errors.As(err, &httpErr):
		code = httpErr.Code
		if httpErr.Message != nil {
			msg = fmt.Sprint(httpErr.Message)
		}
	}

	req := c.Request()
	evt := log.Error()
	if code < http.StatusInternalServerError {
		evt = log.Warn()
	}
	evt.Err(err).Int("status", code).Str("method", req.Method).Str("path", req.URL.Path).Msg("request failed")

	if !c.Response().Committed {
		_ = c.JSON(code, map[string]any{"error": msg})
	}
}
