package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/devstudio/internal/config"
	"github.com/example/devstudio/internal/middleware"
	"github.com/example/devstudio/internal/models"
	"github.com/example/devstudio/internal/services"
	"github.com/example/devstudio/internal/utils"
)

const otpTTL = 10 * time.Minute

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	cfg    *config.Config
	mailer services.MailSender
	logger zerolog.Logger
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, cfg *config.Config, mailer services.MailSender, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		db:     db,
		cfg:    cfg,
		mailer: mailer,
		logger: logger.With().Str("handler", "auth").Logger(),
	}
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

// Register creates a new unverified account and dispatches an OTP.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" || req.Email == "" || req.Password == "" || req.Phone == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing required fields")
	}

	var existing models.User
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusBadRequest, "user already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if err := h.db.Where("phone = ?", req.Phone).First(&existing).Error; err == nil {
		return fiber.NewError(fiber.StatusBadRequest, "phone number already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	passwordHash, err := utils.HashPassword(req.Password)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate verification code")
	}

	expiresAt := time.Now().Add(otpTTL)
	user := models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: passwordHash,
		IsVerified:   false,
		Role:         models.RoleUser,
		OTPCode:      code,
		OTPExpiresAt: &expiresAt,
	}

	if err := h.db.Create(&user).Error; err != nil {
		// Two concurrent registrations can both pass the existence checks;
		// the loser hits the unique index here.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fiber.NewError(fiber.StatusBadRequest, "user already exists")
		}
		return err
	}

	// A failed send leaves the account recoverable through resend-otp, so
	// the created user is not rolled back.
	if err := h.mailer.SendOTPEmail(user.Email, user.Name, code); err != nil {
		h.logger.Error().Err(err).Str("email", user.Email).Msg("otp mail dispatch failed")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"message": "Registration successful! Please check your email for the verification code.",
		"user_id": user.ID,
		"email":   user.Email,
	})
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP validates the emailed code and marks the account verified.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" || req.OTP == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email and otp are required")
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	if user.IsVerified {
		return fiber.NewError(fiber.StatusBadRequest, "email already verified, please login")
	}

	if user.OTPCode == "" || user.OTPExpiresAt == nil || time.Now().After(*user.OTPExpiresAt) {
		return fiber.NewError(fiber.StatusBadRequest, "verification code has expired, please request a new one")
	}

	if !utils.SecureCompare(user.OTPCode, req.OTP) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid verification code")
	}

	// Verify and consume the code in one update.
	if err := h.db.Model(&user).Updates(map[string]any{
		"is_verified":    true,
		"otp_code":       "",
		"otp_expires_at": nil,
	}).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Email verified successfully! You can now login.",
	})
}

type resendOTPRequest struct {
	Email string `json:"email"`
}

// ResendOTP regenerates the verification code, overwriting any unconsumed one.
func (h *AuthHandler) ResendOTP(c *fiber.Ctx) error {
	var req resendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Email == "" {
		return fiber.NewError(fiber.StatusBadRequest, "email is required")
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "user not found")
		}
		return err
	}

	if user.IsVerified {
		return fiber.NewError(fiber.StatusBadRequest, "email already verified, please login")
	}

	code, err := utils.GenerateOTP()
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate verification code")
	}

	expiresAt := time.Now().Add(otpTTL)
	if err := h.db.Model(&user).Updates(map[string]any{
		"otp_code":       code,
		"otp_expires_at": &expiresAt,
	}).Error; err != nil {
		return err
	}

	if err := h.mailer.SendOTPEmail(user.Email, user.Name, code); err != nil {
		h.logger.Error().Err(err).Str("email", user.Email).Msg("otp mail dispatch failed")
		return fiber.NewError(fiber.StatusInternalServerError, "error sending verification code")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "New verification code sent to your email.",
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates a verified user and issues the session cookie.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var user models.User
	if err := h.db.Where("email = ?", req.Email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
		}
		return err
	}

	if !user.IsVerified {
		// Deliberately distinguishable so the client can offer the
		// resend-otp recovery path. Documented policy trade-off.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message":            "please verify your email first",
			"needs_verification": true,
			"email":              user.Email,
		})
	}

	if !utils.CheckPassword(user.PasswordHash, req.Password) {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
	}

	token, err := utils.GenerateToken(h.cfg.JWTSecret, user.ID, h.cfg.SessionTTL)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to generate token")
	}

	h.setSessionCookie(c, token)

	return c.JSON(fiber.Map{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
	})
}

// Logout clears the session cookie. There is no server-side revocation list;
// an issued token stays valid until its natural expiry.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "logged out successfully"})
}

// GetProfile returns the authenticated user's profile.
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"id":          user.ID,
		"name":        user.Name,
		"email":       user.Email,
		"phone":       user.Phone,
		"is_verified": user.IsVerified,
		"is_premium":  user.IsPremium,
		"role":        user.Role,
	})
}

type updateProfileRequest struct {
	Name string `json:"name"`
}

// UpdateProfile renames the authenticated user.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" {
		return fiber.NewError(fiber.StatusBadRequest, "name is required")
	}

	if err := h.db.Model(user).Update("name", req.Name).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"id":      user.ID,
		"name":    req.Name,
		"email":   user.Email,
		"message": "profile updated successfully",
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword rotates the credential of the authenticated user.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.CurrentPassword == "" || req.NewPassword == "" {
		return fiber.NewError(fiber.StatusBadRequest, "all fields are required")
	}

	if len(req.NewPassword) < 6 {
		return fiber.NewError(fiber.StatusBadRequest, "new password must be at least 6 characters")
	}

	if !utils.CheckPassword(user.PasswordHash, req.CurrentPassword) {
		return fiber.NewError(fiber.StatusUnauthorized, "current password is incorrect")
	}

	hash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "failed to hash password")
	}

	if err := h.db.Model(user).Update("password_hash", hash).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "password changed successfully"})
}

// DeleteAccount removes the user and every order they own, then clears the
// session cookie.
func (h *AuthHandler) DeleteAccount(c *fiber.Ctx) error {
	user, err := h.currentUser(c)
	if err != nil {
		return err
	}

	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&models.Order{}).Error; err != nil {
			return err
		}
		return tx.Delete(user).Error
	})
	if err != nil {
		return err
	}

	h.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "account deleted successfully"})
}

func (h *AuthHandler) currentUser(c *fiber.Ctx) (*models.User, error) {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return nil, fiber.NewError(fiber.StatusUnauthorized, "not authorized, please login")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "not authorized, please login again")
		}
		return nil, err
	}

	return &user, nil
}

func (h *AuthHandler) setSessionCookie(c *fiber.Ctx, token string) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    token,
		Expires:  time.Now().Add(h.cfg.SessionTTL),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.SessionCookie,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.cfg.IsProduction(),
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
