package handlers

import (
	"github.com/campfund/backend/internal/http/dto"
	"github.com/campfund/backend/internal/middleware"
	"github.com/campfund/backend/internal/repositories"
	"github.com/campfund/backend/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AdminHandler exposes the operational controls: forced transitions,
// purchase retries, refund sweeps, on-demand reconciliation.
type AdminHandler struct {
	funding   *services.FundingService
	purchase  *services.PurchaseService
	refund    *services.RefundService
	reconcile *services.ReconcileService
	auditRepo *repositories.AuditRepo
	log       *zap.Logger
}

func NewAdminHandler(
	funding *services.FundingService,
	purchase *services.PurchaseService,
	refund *services.RefundService,
	reconcile *services.ReconcileService,
	auditRepo *repositories.AuditRepo,
	log *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		funding:   funding,
		purchase:  purchase,
		refund:    refund,
		reconcile: reconcile,
		auditRepo: auditRepo,
		log:       log,
	}
}

// RetryPurchase runs a purchase attempt synchronously so the admin sees
// the outcome in the audit trail right away.
func (h *AdminHandler) RetryPurchase(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	if err := h.purchase.Execute(c.Context(), id); err != nil {
		h.log.Warn("retry purchase", zap.String("campaign_id", id.String()), zap.Error(err))
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) TriggerRefunds(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	if err := h.refund.ProcessRefunds(c.Context(), id); err != nil {
		h.log.Error("trigger refunds", zap.Error(err))
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) OverrideStatus(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	var req dto.OverrideStatusRequest
	if err := c.BodyParser(&req); err != nil || req.Status == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "status is required"})
	}

	actor := middleware.GetUserID(c).String()
	if err := h.funding.OverrideStatus(c.Context(), id, req.Status, actor); err != nil {
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Error: err.Error()})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) RunReconcile(c *fiber.Ctx) error {
	if err := h.reconcile.Run(c.Context()); err != nil {
		h.log.Error("run reconcile", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "reconciliation failed"})
	}
	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) GetAudit(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	entries, err := h.auditRepo.GetByEntity(c.Context(), "campaign", id, c.QueryInt("limit", 50), c.QueryInt("offset", 0))
	if err != nil {
		h.log.Error("list audit", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "could not list audit log"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: entries})
}
