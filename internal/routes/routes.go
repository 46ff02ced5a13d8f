package routes

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/devstudio/internal/config"
	"github.com/example/devstudio/internal/handlers"
	"github.com/example/devstudio/internal/middleware"
	"github.com/example/devstudio/internal/services"
)

// Register wires up collaborators and all HTTP routes.
func Register(app *fiber.App, db *gorm.DB, cfg *config.Config, logger zerolog.Logger) {
	mailer := services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass,
		cfg.MailFrom, cfg.AdminEmail, logger)
	telegram := services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat, logger)
	gateway := services.NewRazorpayClient(cfg.RazorpayKeyID, cfg.RazorpayKeySecret, logger)
	paymentService := services.NewPaymentService(db, cfg.RazorpayKeySecret, mailer, telegram, logger)

	authHandler := handlers.NewAuthHandler(db, cfg, mailer, logger)
	resetHandler := handlers.NewPasswordResetHandler(db, cfg, mailer, logger)
	orderHandler := handlers.NewOrderHandler(db)
	paymentHandler := handlers.NewPaymentHandler(db, paymentService, gateway)
	adminHandler := handlers.NewAdminHandler(db, logger)

	// Per-IP rate limits: credentials endpoints and OTP issuance.
	loginLimiter := limiter.New(limiter.Config{
		Max:        5,
		Expiration: 15 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many attempts, try again after 15 minutes")
		},
	})
	otpLimiter := limiter.New(limiter.Config{
		Max:        3,
		Expiration: 15 * time.Minute,
		LimitReached: func(c *fiber.Ctx) error {
			return fiber.NewError(fiber.StatusTooManyRequests, "too many OTP requests, try again after 15 minutes")
		},
	})

	app.Get("/health", healthCheck)

	api := app.Group("/api")
	api.Get("/health", healthCheck)

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/verify-otp", otpLimiter, authHandler.VerifyOTP)
	auth.Post("/resend-otp", otpLimiter, authHandler.ResendOTP)
	auth.Post("/login", loginLimiter, authHandler.Login)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/forgot", loginLimiter, resetHandler.ForgotPassword)
	auth.Post("/reset", resetHandler.ResetPassword)

	sessionAuth := middleware.AuthMiddleware(cfg)
	auth.Get("/profile", sessionAuth, authHandler.GetProfile)
	auth.Put("/update-profile", sessionAuth, authHandler.UpdateProfile)
	auth.Put("/change-password", sessionAuth, authHandler.ChangePassword)
	auth.Delete("/delete-account", sessionAuth, authHandler.DeleteAccount)

	orders := api.Group("/orders", sessionAuth)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/", orderHandler.ListMyOrders)
	orders.Get("/all", middleware.AdminOnly(db), orderHandler.ListAllOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Put("/:id", middleware.AdminOnly(db), orderHandler.UpdateOrder)

	payment := api.Group("/payment", sessionAuth)
	payment.Post("/create-order", paymentHandler.CreateGatewayOrder)
	payment.Post("/verify", paymentHandler.VerifyPayment)

	admin := api.Group("/admin", sessionAuth, middleware.AdminOnly(db))
	admin.Delete("/users/:id", adminHandler.DeleteUser)
	admin.Put("/users/:id/toggle-verify", adminHandler.ToggleVerify)
}

func healthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}
