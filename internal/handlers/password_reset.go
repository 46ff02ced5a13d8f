package handlers

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/devstudio/internal/config"
	"github.com/example/devstudio/internal/models"
	"github.com/example/devstudio/internal/services"
	"github.com/example/devstudio/internal/utils"
)

const resetTTL = 30 * time.Minute

// PasswordResetHandler manages the forgot-password flow.
type PasswordResetHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer services.MailSender
	logger zerolog.Logger
}

// NewPasswordResetHandler constructs a PasswordResetHandler.
func NewPasswordResetHandler(db *gorm.DB, cfg *config.Config, mailer services.MailSender, logger zerolog.Logger) *PasswordResetHandler {
	return &PasswordResetHandler{
		db:     db,
		cfg:    cfg,
		mailer: mailer,
		logger: logger.With().Str("handler", "password_reset").Logger(),
	}
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword issues a single-use reset token. Only the sha256 digest is
// stored; the raw token travels out-of-band in the reset link. Issuing a new
// token overwrites any unconsumed prior one.
func (h *PasswordResetHandler) ForgotPassword(c *fiber.Ctx) error {
	var req forgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "please provide your email")
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "no account found with this email")
		}
		return err
	}

	rawToken, digest, err := utils.GenerateResetToken()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate reset token")
	}

	expiresAt := time.Now().Add(resetTTL)
	if err := h.db.Model(&user).Updates(map[string]any{
		"reset_token_hash": digest,
		"reset_expires_at": &expiresAt,
	}).Error; err != nil {
		return err
	}

	resetLink := fmt.Sprintf("http://localhost:%s/reset-password.html?token=%s", h.cfg.AppPort, rawToken)

	if err := h.mailer.SendResetEmail(user.Email, user.Name, resetLink); err != nil {
		h.logger.Error().Err(err).Str("email", user.Email).Msg("reset mail dispatch failed")
		return fiber.NewError(fiber.StatusInternalServerError, "error sending reset email")
	}

	return c.JSON(fiber.Map{
		"message": "Password reset link sent to your email. Please check your inbox.",
	})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword consumes a reset token and stores the new credential. The
// token is matched by digest and invalidated in the same update, so a replay
// of the raw token fails.
func (h *PasswordResetHandler) ResetPassword(c *fiber.Ctx) error {
	var req resetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Token == "" || req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "token and new password are required")
	}

	if len(req.NewPassword) < 6 {
		return fiber.NewError(fiber.StatusBadRequest, "password must be at least 6 characters")
	}

	digest := utils.HashToken(req.Token)

	var user models.User
	err := h.db.
		Where("reset_token_hash = ? AND reset_expires_at > ?", digest, time.Now()).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid or expired reset token")
		}
		return err
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	if err := h.db.Model(&user).Updates(map[string]any{
		"password_hash":    hash,
		"reset_token_hash": "",
		"reset_expires_at": nil,
	}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"message": "Password reset successful! You can now login with your new password.",
	})
}
