package sync

import (
	"errors"
	"strconv"
	"strings"

	"infoblox-sync/core/logger"
	"infoblox-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for synchronization runs.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the sync routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/sync")
	group.Post("/", h.HandleRun)
	group.Get("/plan", h.HandlePlan)
	group.Get("/reports", h.HandleListReports)
	group.Get("/reports/*", h.HandleGetReport)
	group.Delete("/reports/*", h.HandleDeleteReport)
}

// HandleRun performs a synchronization run and returns its plan and report.
func (h *Handler) HandleRun(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req Request
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}

	result, err := h.service.Run(c.UserContext(), req)
	if err != nil {
		var fetchErr *reconcile.FetchError
		switch {
		case errors.Is(err, ErrInvalidRequest):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		case errors.As(err, &fetchErr):
			l.Error("Sync snapshot load failed", zap.String("adapter", fetchErr.Adapter), zap.Error(err))
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
		case errors.Is(err, reconcile.ErrAborted) && result != nil:
			l.Warn("Sync run aborted", zap.Error(err))
			return c.Status(fiber.StatusGatewayTimeout).JSON(result)
		default:
			l.Error("Sync run failed", zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
	}

	return c.JSON(result)
}

// HandlePlan returns the plan of a run without applying it.
// Query parameters: direction, networks (comma separated).
func (h *Handler) HandlePlan(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	req := Request{Direction: Direction(c.Query("direction")), DryRun: true}
	if networks := c.Query("networks"); networks != "" {
		for _, n := range strings.Split(networks, ",") {
			if n = strings.TrimSpace(n); n != "" {
				req.Networks = append(req.Networks, n)
			}
		}
	}
	if w := c.Query("workers"); w != "" {
		if n, err := strconv.Atoi(w); err == nil {
			req.Workers = n
		}
	}

	plan, err := h.service.Plan(c.UserContext(), req)
	if err != nil {
		if errors.Is(err, ErrInvalidRequest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Sync plan failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(plan)
}

// HandleListReports lists archived run reports.
func (h *Handler) HandleListReports(c *fiber.Ctx) error {
	keys, err := h.service.ListReports(c.UserContext())
	if err != nil {
		logger.WithRayID(h.service.logger, c).Error("Failed to list reports", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"reports": keys})
}

// HandleGetReport returns one archived run report.
func (h *Handler) HandleGetReport(c *fiber.Ctx) error {
	report, err := h.service.GetReport(c.UserContext(), c.Params("*"))
	if err != nil {
		if errors.Is(err, reconcile.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		logger.WithRayID(h.service.logger, c).Error("Failed to get report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(report)
}

// HandleDeleteReport removes one archived run report.
func (h *Handler) HandleDeleteReport(c *fiber.Ctx) error {
	if err := h.service.DeleteReport(c.UserContext(), c.Params("*")); err != nil {
		if errors.Is(err, reconcile.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		logger.WithRayID(h.service.logger, c).Error("Failed to delete report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// HandleHealth reports liveness.
func HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
