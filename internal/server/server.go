// Package server exposes the dashboard view model over HTTP for a browser
// front end. The server owns one Composer; every request reads or drives it.
package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/derickschaefer/emdash/internal/dashboard"
	"github.com/derickschaefer/emdash/internal/model"
)

var validate = validator.New()

// PresetSource resolves saved presets; nil disables the preset routes.
type PresetSource interface {
	ListPresets() ([]model.Preset, error)
	GetPreset(ref string) (model.Preset, error)
}

// Options configures a Server.
type Options struct {
	Logger  *slog.Logger
	Presets PresetSource
	// OnSelect is called with every accepted selection change.
	OnSelect func(model.Selection)
	// CORSOrigins is a comma-separated allow list for browser front ends
	// served from another origin. Empty disables CORS headers.
	CORSOrigins string
}

// Server serves one dashboard.
type Server struct {
	app      *fiber.App
	composer *dashboard.Composer
	presets  PresetSource
	onSelect func(model.Selection)
	logger   *slog.Logger
}

// New builds a Server over an already-constructed composer. The caller
// mounts the composer; the server never does.
func New(composer *dashboard.Composer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		composer: composer,
		presets:  opts.Presets,
		onSelect: opts.OnSelect,
		logger:   logger,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "emdash",
		DisableStartupMessage: true,
		ErrorHandler:          s.handleError,
	})
	s.app.Use(recover.New())
	if origins := strings.TrimSpace(opts.CORSOrigins); origins != "" {
		s.app.Use(cors.New(cors.Config{
			AllowOrigins: origins,
			AllowMethods: "GET,POST,PUT,OPTIONS",
			AllowHeaders: "Origin,Content-Type,Accept",
		}))
	}
	s.routes()
	return s
}

// App exposes the underlying fiber app, mainly for app.Test in tests.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves on addr until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() { errc <- s.app.Listen(addr) }()
	s.logger.Info("serving dashboard", "addr", addr)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return s.app.ShutdownWithTimeout(5 * time.Second)
	}
}

func (s *Server) routes() {
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := s.app.Group("/api")
	api.Get("/view", s.getView)
	api.Put("/selection", s.putSelection)
	api.Post("/refresh", s.postRefresh)
	api.Get("/presets", s.listPresets)
	api.Post("/presets/:ref/apply", s.applyPreset)
}

func (s *Server) getView(c *fiber.Ctx) error {
	return c.JSON(s.composer.View())
}

// selectionRequest is a partial selection; empty fields keep their value.
type selectionRequest struct {
	StationID string `json:"station_id" validate:"omitempty,max=128"`
	Parameter string `json:"parameter" validate:"omitempty,oneof=pm25 pm10 no2 o3"`
}

func (s *Server) putSelection(c *fiber.Ctx) error {
	var req selectionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid JSON body")
	}
	req.StationID = strings.TrimSpace(req.StationID)
	req.Parameter = strings.ToLower(strings.TrimSpace(req.Parameter))
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	return s.selectAndRespond(c, func(sel model.Selection) model.Selection {
		if req.StationID != "" {
			sel.StationID = req.StationID
		}
		if req.Parameter != "" {
			sel.Parameter = model.Parameter(req.Parameter)
		}
		return sel
	})
}

func (s *Server) selectAndRespond(c *fiber.Ctx, fn func(model.Selection) model.Selection) error {
	// The fetch outlives the request, so it must not inherit its context.
	sel, token := s.composer.Series().Update(context.Background(), fn)
	if s.onSelect != nil {
		s.onSelect(sel)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"selection": sel,
		"token":     token,
	})
}

func (s *Server) postRefresh(c *fiber.Ctx) error {
	if err := s.composer.Refresh(c.UserContext()); err != nil {
		s.logger.Debug("refresh incomplete", "err", err)
	}
	return c.JSON(s.composer.View())
}

func (s *Server) listPresets(c *fiber.Ctx) error {
	if s.presets == nil {
		return fiber.NewError(fiber.StatusNotFound, "presets are not enabled")
	}
	presets, err := s.presets.ListPresets()
	if err != nil {
		return err
	}
	return c.JSON(presets)
}

func (s *Server) applyPreset(c *fiber.Ctx) error {
	if s.presets == nil {
		return fiber.NewError(fiber.StatusNotFound, "presets are not enabled")
	}
	p, err := s.presets.GetPreset(c.Params("ref"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return s.selectAndRespond(c, func(model.Selection) model.Selection { return p.Selection })
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code = fe.Code
	}
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.Path(), "err", err)
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}
