// Package server exposes the reconciliation pipeline over HTTP.
package server

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"marketplace-sync/models"
	"marketplace-sync/services"
	"marketplace-sync/utils"
)

// Importer is the part of services.Pipeline the handlers drive.
type Importer interface {
	ImportPreviews(ctx context.Context, scrape bool) services.Result
	ImportDetails(ctx context.Context) services.Result
	Status(ctx context.Context) (models.PreviewStatus, error)
}

// Options tunes the HTTP boundary.
type Options struct {
	// ScrapeByDefault decides whether POST /api/scrape-previews runs the
	// scraper when the request has no scrape parameter.
	ScrapeByDefault bool
	// AccessLog enables the per-request log line.
	AccessLog bool
}

type Server struct {
	app      *fiber.App
	importer Importer
	opts     Options
	logger   *utils.Logger
}

func New(importer Importer, opts Options, log *utils.Logger) *Server {
	s := &Server{importer: importer, opts: opts, logger: log}

	s.app = fiber.New(fiber.Config{
		AppName:               "Marketplace Sync",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	if opts.AccessLog {
		s.app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} - ${method} ${path} - ${ip} - ${latency}\n",
			TimeFormat: "2006-01-02 15:04:05",
			TimeZone:   "Local",
		}))
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "success",
			"message": "API is healthy",
		})
	})

	api := s.app.Group("/api")
	api.Post("/scrape-previews", s.importPreviews)
	api.Get("/scrape-previews", s.previewStatus)
	api.Post("/import-details", s.importDetails)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Listen blocks serving addr until Shutdown is called.
func (s *Server) Listen(addr string) error {
	s.logger.Info("[server] Listening on %s", addr)
	return s.app.Listen(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("[server] Shutting down")
	return s.app.ShutdownWithContext(ctx)
}

// importPreviews - POST /api/scrape-previews
func (s *Server) importPreviews(c *fiber.Ctx) error {
	scrape := c.QueryBool("scrape", s.opts.ScrapeByDefault)
	return sendResult(c, s.importer.ImportPreviews(c.UserContext(), scrape))
}

// previewStatus - GET /api/scrape-previews
func (s *Server) previewStatus(c *fiber.Ctx) error {
	st, err := s.importer.Status(c.UserContext())
	if err != nil {
		s.logger.Error("[server] Preview status: %v", err)
		return fiber.NewError(fiber.StatusInternalServerError, "Could not fetch preview status")
	}
	return c.JSON(st)
}

// importDetails - POST /api/import-details
func (s *Server) importDetails(c *fiber.Ctx) error {
	return sendResult(c, s.importer.ImportDetails(c.UserContext()))
}

func sendResult(c *fiber.Ctx, res services.Result) error {
	status := fiber.StatusOK
	if !res.Success {
		status = fiber.StatusInternalServerError
	}
	return c.Status(status).JSON(res)
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		msg = e.Message
	} else {
		s.logger.Error("[server] %s %s: %v", c.Method(), c.Path(), err)
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": msg,
	})
}
