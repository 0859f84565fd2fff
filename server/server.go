package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/surgewhisper/api/pkg/ingest"
	"github.com/surgewhisper/api/pkg/qa"
	"github.com/surgewhisper/api/pkg/store"
)

type Config struct {
	Port       string
	AdminToken string
}

// Server is the HTTP surface over the QA and ingestion orchestrators.
type Server struct {
	config   Config
	qa       *qa.Service
	ingestor *ingest.Ingestor
	logger   *slog.Logger
	echo     *echo.Echo
}

type askRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"topK"`
}

func New(config Config, qaService *qa.Service, ingestor *ingest.Ingestor) *Server {
	s := &Server{
		config:   config,
		qa:       qaService,
		ingestor: ingestor,
		logger:   slog.Default().With("component", "server"),
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	e.GET("/", func(c echo.Context) error {
		return c.String(http.StatusOK, "SurgeryWhisper API OK")
	})
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})

	e.POST("/qa/ask", s.handleAsk)
	e.GET("/qa/answers/:id", s.handleGetAnswer)
	e.POST("/ingest", s.handleIngest, s.adminOnly)

	s.echo = e
	return s
}

// Handler exposes the route tree for embedding or testing.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start blocks serving HTTP until the listener fails or Shutdown is
// called.
func (s *Server) Start() error {
	s.logger.Info("starting server", "port", s.config.Port)
	return s.echo.Start(":" + s.config.Port)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// adminOnly guards ingestion behind the configured admin token.
func (s *Server) adminOnly(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.AdminToken == "" {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "ADMIN_TOKEN not configured"})
		}
		provided := c.Request().Header.Get("x-admin-token")
		if provided == "" {
			provided = c.QueryParam("admin_token")
		}
		if provided != s.config.AdminToken {
			return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized"})
		}
		return next(c)
	}
}

func (s *Server) handleAsk(c echo.Context) error {
	var req askRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body."})
	}

	res, err := s.qa.Ask(c.Request().Context(), req.Question, req.TopK)
	if errors.Is(err, qa.ErrEmptyQuestion) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": `Missing "question" in body.`})
	}
	if err != nil {
		s.logger.Error("ask failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server error"})
	}

	return c.JSON(http.StatusOK, res)
}

func (s *Server) handleGetAnswer(c echo.Context) error {
	full, err := s.qa.GetAnswer(c.Request().Context(), c.Param("id"))
	if errors.Is(err, qa.ErrEmptyAnswerID) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Missing answer id."})
	}
	if errors.Is(err, store.ErrAnswerNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Answer expired or not found."})
	}
	if err != nil {
		s.logger.Error("get answer failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server error"})
	}

	return c.String(http.StatusOK, full)
}

func (s *Server) handleIngest(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Provide a ZIP of PDFs as multipart field \"file\"."})
	}

	src, err := file.Open()
	if err != nil {
		s.logger.Error("opening upload failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Ingest failed"})
	}
	defer src.Close()

	raw, err := io.ReadAll(src)
	if err != nil {
		s.logger.Error("reading upload failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Ingest failed"})
	}

	results, err := s.ingestor.IngestZip(c.Request().Context(), raw)
	if errors.Is(err, ingest.ErrEmptyArchive) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Archive contains no PDF entries."})
	}
	if err != nil {
		s.logger.Error("ingest failed", "err", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Ingest failed"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"documents": len(results),
		"details":   results,
	})
}
