// Package http exposes a read-only view of the engine: book depth per
// instrument and a health endpoint. Order entry stays on Kafka; this
// surface never mutates a book.
package http

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"exmatch/domain/orderbook"
	"exmatch/service"
)

const defaultDepth = 20

type Server struct {
	app *fiber.App
	svc *service.MatchService
	log zerolog.Logger
}

type levelJSON struct {
	Price  string `json:"price"`
	Volume string `json:"volume"`
}

type depthJSON struct {
	Instrument string      `json:"instrument"`
	Bids       []levelJSON `json:"bids"`
	Asks       []levelJSON `json:"asks"`
}

func NewServer(svc *service.MatchService, log zerolog.Logger) *Server {
	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
			ReadTimeout:           5 * time.Second,
			WriteTimeout:          5 * time.Second,
		}),
		svc: svc,
		log: log,
	}

	s.app.Use(s.requestLogger())
	s.app.Get("/healthz", s.health)
	s.app.Get("/v1/depth/:instrument", s.depth)
	return s
}

func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":      "ok",
		"instruments": s.svc.Instruments(),
	})
}

func (s *Server) depth(c *fiber.Ctx) error {
	symbol := c.Params("instrument")

	n := defaultDepth
	if raw := c.Query("levels"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "levels must be a positive integer",
			})
		}
		n = parsed
	}

	bids, asks, err := s.svc.Depth(c.Context(), symbol, n)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(depthJSON{
		Instrument: symbol,
		Bids:       toJSON(bids),
		Asks:       toJSON(asks),
	})
}

func toJSON(levels []orderbook.Level) []levelJSON {
	out := make([]levelJSON, len(levels))
	for i, lv := range levels {
		out[i] = levelJSON{Price: lv.Price.String(), Volume: lv.Volume.String()}
	}
	return out
}

func (s *Server) requestLogger() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		s.log.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Int64("latency_ms", time.Since(start).Milliseconds()).
			Msg("http request")
		return err
	}
}
