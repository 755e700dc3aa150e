// Package httpapi serves the store inspection API over fiber.
package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shelfcore/internal/core"
	"shelfcore/internal/savegame"
	"shelfcore/pkg/domain"
)

// maxTicksPerRequest bounds POST /api/v1/tick.
const maxTicksPerRequest = 600

// Options configures the app.
type Options struct {
	// Gatherer backs GET /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	Logger   domain.Logger
	// AccessLog enables fiber's request logger.
	AccessLog bool
	Timeout   time.Duration
}

// Handler exposes a session over HTTP.
type Handler struct {
	svc     *core.Service
	logger  domain.Logger
	timeout time.Duration
}

// New builds the fiber app serving svc.
func New(svc *core.Service, opts Options) *fiber.App {
	h := &Handler{svc: svc, logger: domain.LoggerOrNoop(opts.Logger), timeout: opts.Timeout}
	if h.timeout <= 0 {
		h.timeout = 5 * time.Second
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          h.errorHandler,
	})
	app.Use(recover.New())
	app.Use(h.requestID)
	if opts.AccessLog {
		app.Use(logger.New())
	}

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := app.Group("/api/v1")
	v1.Get("/inventory", h.inventory)
	v1.Get("/saves", h.saveStatus)
	v1.Post("/save", h.save)
	v1.Post("/load", h.load)
	v1.Post("/tick", h.tick)
	v1.Post("/days", h.advanceDay)
	v1.Post("/orders", h.order)
	v1.Post("/crates/:id/open", h.openCrate)
	v1.Post("/books/:id/sell", h.sell)
	return app
}

func (h *Handler) requestID(c *fiber.Ctx) error {
	id := c.Get(fiber.HeaderXRequestID)
	if id == "" {
		id = uuid.NewString()
	}
	c.Set(fiber.HeaderXRequestID, id)
	c.Locals("reqid", id)
	return c.Next()
}

func (h *Handler) context(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), h.timeout)
}

type errorBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func jsonOK(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(fiber.Map{"success": true, "data": data})
}

// errorHandler maps domain errors onto status codes.
func (h *Handler) errorHandler(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	var fe *fiber.Error
	var incompatible savegame.IncompatibleVersionError
	switch {
	case errors.As(err, &fe):
		status = fe.Code
	case errors.Is(err, savegame.ErrNoSave), domain.IsNotFound(err):
		status = fiber.StatusNotFound
	case errors.Is(err, savegame.ErrCorruptSave), errors.As(err, &incompatible):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrInsufficient), errors.Is(err, domain.ErrCrateOpened):
		status = fiber.StatusUnprocessableEntity
	}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("request failed", "path", c.Path(), "request_id", c.Locals("reqid"), "error", err)
	}
	return c.Status(status).JSON(errorBody{Success: false, Message: err.Error()})
}

func (h *Handler) inventory(c *fiber.Ctx) error {
	return jsonOK(c, fiber.StatusOK, h.svc.Inventory())
}

func (h *Handler) saveStatus(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()
	st, err := h.svc.SaveStatus(ctx)
	if err != nil {
		return err
	}
	return jsonOK(c, fiber.StatusOK, st)
}

func (h *Handler) save(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()
	rec, err := h.svc.Save(ctx)
	if err != nil {
		return err
	}
	return jsonOK(c, fiber.StatusCreated, fiber.Map{
		"saveVersion": rec.SaveVersion,
		"savedAt":     rec.SavedAt,
		"books":       len(rec.Books),
		"shelves":     len(rec.Shelves),
		"currentDay":  rec.CurrentDay,
	})
}

func (h *Handler) load(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()
	report, err := h.svc.Load(ctx)
	if err != nil {
		return err
	}
	if c.QueryBool("settle", true) {
		if err := h.svc.Settle(ctx); err != nil {
			return err
		}
	}
	return jsonOK(c, fiber.StatusOK, *report)
}

func (h *Handler) tick(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()
	n := c.QueryInt("n", 1)
	if n < 1 || n > maxTicksPerRequest {
		return fiber.NewError(fiber.StatusBadRequest, "n must be between 1 and "+strconv.Itoa(maxTicksPerRequest))
	}
	ran := 0
	for i := 0; i < n; i++ {
		k, err := h.svc.Tick(ctx)
		if err != nil {
			return err
		}
		ran += k
	}
	return jsonOK(c, fiber.StatusOK, fiber.Map{"ticks": n, "tasks": ran})
}

func (h *Handler) advanceDay(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()
	day, err := h.svc.AdvanceDay(ctx)
	if err != nil {
		return err
	}
	return jsonOK(c, fiber.StatusOK, fiber.Map{"day": day})
}

type orderRequest struct {
	Books    []string    `json:"books"`
	Position domain.Vec3 `json:"position"`
}

func (h *Handler) order(c *fiber.Ctx) error {
	var req orderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order body")
	}
	if len(req.Books) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "order needs at least one book")
	}
	ctx, cancel := h.context(c)
	defer cancel()
	crate, err := h.svc.BuyBooks(ctx, req.Books, domain.At(req.Position))
	if err != nil {
		return err
	}
	return jsonOK(c, fiber.StatusCreated, fiber.Map{"crate": crate})
}

func (h *Handler) openCrate(c *fiber.Ctx) error {
	ctx, cancel := h.context(c)
	defer cancel()
	books, err := h.svc.OpenCrate(ctx, c.Params("id"))
	if err != nil {
		return err
	}
	return jsonOK(c, fiber.StatusOK, fiber.Map{"books": books})
}

func (h *Handler) sell(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "book id must be a node number")
	}
	ctx, cancel := h.context(c)
	defer cancel()
	price, err := h.svc.SellBook(ctx, domain.NodeID(id))
	if err != nil {
		return err
	}
	return jsonOK(c, fiber.StatusOK, fiber.Map{"price": price})
}
