package handlers

import (
	"crypto/subtle"

	"github.com/campfund/backend/internal/auth"
	"github.com/campfund/backend/internal/config"
	"github.com/campfund/backend/internal/http/dto"
	"github.com/campfund/backend/internal/rbac"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AuthHandler struct {
	cfg *config.Config
	log *zap.Logger
}

func NewAuthHandler(cfg *config.Config, log *zap.Logger) *AuthHandler {
	return &AuthHandler{cfg: cfg, log: log}
}

// IssueToken exchanges the shared service key for a JWT. Identity comes
// from the upstream gateway that holds the key, so the user id and role
// are taken as claimed.
func (h *AuthHandler) IssueToken(c *fiber.Ctx) error {
	var req dto.TokenRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid body"})
	}

	if h.cfg.ServiceAPIKey == "" ||
		subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(h.cfg.ServiceAPIKey)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: "invalid api key"})
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}
	if _, ok := rbac.RolePermissions[req.Role]; !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "unknown role"})
	}

	token, err := auth.GenerateJWT(h.cfg.JWTSecret, userID, req.Role, h.cfg.JWTExpiration)
	if err != nil {
		h.log.Error("sign token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "could not issue token"})
	}

	return c.JSON(dto.TokenResponse{Token: token})
}
