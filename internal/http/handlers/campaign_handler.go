package handlers

import (
	"time"

	"github.com/campfund/backend/internal/chain"
	"github.com/campfund/backend/internal/http/dto"
	"github.com/campfund/backend/internal/middleware"
	"github.com/campfund/backend/internal/models"
	"github.com/campfund/backend/internal/repositories"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CampaignHandler struct {
	campaignRepo *repositories.CampaignRepo
	ledgerRepo   *repositories.LedgerTxRepo
	refundRepo   *repositories.RefundRepo
	gateway      chain.Gateway
	log          *zap.Logger
}

func NewCampaignHandler(
	campaignRepo *repositories.CampaignRepo,
	ledgerRepo *repositories.LedgerTxRepo,
	refundRepo *repositories.RefundRepo,
	gateway chain.Gateway,
	log *zap.Logger,
) *CampaignHandler {
	return &CampaignHandler{
		campaignRepo: campaignRepo,
		ledgerRepo:   ledgerRepo,
		refundRepo:   refundRepo,
		gateway:      gateway,
		log:          log,
	}
}

func (h *CampaignHandler) CreateCampaign(c *fiber.Ctx) error {
	var req dto.CreateCampaignRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid body"})
	}

	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "title is required"})
	}
	kind := models.CampaignKind(req.Kind)
	if !models.IsValidCampaignKind(kind) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "unknown campaign kind"})
	}
	target, err := decimal.NewFromString(req.TargetAmount)
	if err != nil || !target.IsPositive() {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "target_amount must be a positive decimal"})
	}
	if req.Deadline.Before(time.Now()) {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "deadline must be in the future"})
	}

	campaign := &models.Campaign{
		ID:            uuid.New(),
		CreatorUserID: middleware.GetUserID(c),
		Title:         req.Title,
		Kind:          kind,
		TargetAmount:  target,
		CurrentAmount: decimal.Zero,
		Deadline:      req.Deadline,
		Status:        models.CampaignStatusActive,
		Metadata:      req.Metadata,
	}

	address, err := h.gateway.ResolveAddress(c.Context(), campaign.ID)
	if err != nil {
		h.log.Error("resolve campaign wallet", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "could not allocate campaign wallet"})
	}
	campaign.WalletAddress = address

	if err := h.campaignRepo.Create(c.Context(), campaign); err != nil {
		h.log.Error("create campaign", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "could not create campaign"})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetCampaign(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	campaign, err := h.campaignRepo.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaign})
}

func (h *CampaignHandler) GetFunding(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	campaign, err := h.campaignRepo.GetByID(c.Context(), id)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "campaign not found"})
	}

	return c.JSON(dto.CampaignFundingResponse{
		CampaignID:    campaign.ID.String(),
		WalletAddress: campaign.WalletAddress,
		CurrentAmount: campaign.CurrentAmount.String(),
		TargetAmount:  campaign.TargetAmount.String(),
		Status:        campaign.Status,
	})
}

func (h *CampaignHandler) ListCampaigns(c *fiber.Ctx) error {
	filter := repositories.CampaignFilter{
		Limit:  c.QueryInt("limit", 50),
		Offset: c.QueryInt("offset", 0),
	}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}
	if c.Query("mine") == "true" {
		userID := middleware.GetUserID(c)
		filter.CreatorUserID = &userID
	}

	campaigns, err := h.campaignRepo.List(c.Context(), filter)
	if err != nil {
		h.log.Error("list campaigns", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "could not list campaigns"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: campaigns})
}

func (h *CampaignHandler) GetLedger(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	txs, err := h.ledgerRepo.ListByCampaign(c.Context(), id, c.QueryInt("limit", 100))
	if err != nil {
		h.log.Error("list ledger", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "could not list ledger"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: txs})
}

func (h *CampaignHandler) GetRefunds(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid campaign id"})
	}

	refunds, err := h.refundRepo.ListByCampaign(c.Context(), id)
	if err != nil {
		h.log.Error("list refunds", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "could not list refunds"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: refunds})
}
