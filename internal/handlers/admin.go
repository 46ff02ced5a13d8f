package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/devstudio/internal/models"
)

// AdminHandler manages user accounts on behalf of an operator. All routes
// sit behind the admin guard.
type AdminHandler struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(db *gorm.DB, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		db:     db,
		logger: logger.With().Str("handler", "admin").Logger(),
	}
}

// DeleteUser removes a user and every order they own, in one transaction.
func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Order{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		return err
	}

	h.logger.Info().Str("user_id", user.ID.String()).Msg("user deleted by admin")

	return c.JSON(fiber.Map{"message": "user deleted successfully"})
}

// ToggleVerify flips a user's verification flag. Flipping to verified
// consumes any pending OTP, matching what self-service verification does.
func (h *AdminHandler) ToggleVerify(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	verified := !user.IsVerified
	updates := map[string]any{"is_verified": verified}
	if verified {
		updates["otp_code"] = ""
		updates["otp_expires_at"] = nil
	}

	if err := h.db.Model(&user).Updates(updates).Error; err != nil {
		return err
	}

	message := "user unverified successfully"
	if verified {
		message = "user verified successfully"
	}

	return c.JSON(fiber.Map{
		"message":     message,
		"is_verified": verified,
	})
}
