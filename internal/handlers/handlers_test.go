package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/devstudio/internal/config"
	"github.com/example/devstudio/internal/middleware"
	"github.com/example/devstudio/internal/models"
	"github.com/example/devstudio/internal/services"
	"github.com/example/devstudio/internal/utils"
)

const testKeySecret = "test-key-secret"

type sentOTP struct {
	To   string
	Code string
}

type fakeMailer struct {
	otps         []sentOTP
	resetLinks   []string
	customerPaid int
	operatorPaid int
	failSends    bool
}

func (m *fakeMailer) SendOTPEmail(to, name, code string) error {
	if m.failSends {
		return io.ErrClosedPipe
	}
	m.otps = append(m.otps, sentOTP{To: to, Code: code})
	return nil
}

func (m *fakeMailer) SendResetEmail(to, name, link string) error {
	if m.failSends {
		return io.ErrClosedPipe
	}
	m.resetLinks = append(m.resetLinks, link)
	return nil
}

func (m *fakeMailer) SendOrderPaidCustomer(order *models.Order) error {
	m.customerPaid++
	return nil
}

func (m *fakeMailer) SendOrderPaidOperator(order *models.Order) error {
	m.operatorPaid++
	return nil
}

func (m *fakeMailer) lastOTP(t *testing.T) sentOTP {
	t.Helper()
	require.NotEmpty(t, m.otps, "no otp mail was sent")
	return m.otps[len(m.otps)-1]
}

type fakeGateway struct {
	lastAmount  int64
	lastReceipt string
}

func (g *fakeGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*services.GatewayOrder, error) {
	g.lastAmount = amount
	g.lastReceipt = receipt
	return &services.GatewayOrder{
		ID:       "rzp_order_test",
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
	}, nil
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

type testEnv struct {
	app     *fiber.App
	db      *gorm.DB
	cfg     *config.Config
	mailer  *fakeMailer
	gateway *fakeGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Order{}))

	cfg := &config.Config{
		AppPort:           "5000",
		JWTSecret:         "test-jwt-secret",
		SessionTTL:        time.Hour,
		RazorpayKeySecret: testKeySecret,
	}

	mailer := &fakeMailer{}
	gateway := &fakeGateway{}
	paymentService := services.NewPaymentService(db, cfg.RazorpayKeySecret, mailer, nil, zerolog.Nop())

	authHandler := NewAuthHandler(db, cfg, mailer, zerolog.Nop())
	resetHandler := NewPasswordResetHandler(db, cfg, mailer, zerolog.Nop())
	orderHandler := NewOrderHandler(db)
	paymentHandler := NewPaymentHandler(db, paymentService, gateway)
	adminHandler := NewAdminHandler(db, zerolog.Nop())

	app := fiber.New()

	api := app.Group("/api")
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/verify-otp", authHandler.VerifyOTP)
	auth.Post("/resend-otp", authHandler.ResendOTP)
	auth.Post("/login", authHandler.Login)
	auth.Post("/logout", authHandler.Logout)
	auth.Post("/forgot", resetHandler.ForgotPassword)
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

	return &testEnv{app: app, db: db, cfg: cfg, mailer: mailer, gateway: gateway}
}

func (e *testEnv) request(t *testing.T, method, path string, body any, cookie *http.Cookie) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(target))
}

// registerVerified walks a user through register + verify-otp.
func (e *testEnv) registerVerified(t *testing.T, name, email, password, phone string) {
	t.Helper()

	resp := e.request(t, http.MethodPost, "/api/auth/register", fiber.Map{
		"name": name, "email": email, "password": password, "phone": phone,
	}, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = e.request(t, http.MethodPost, "/api/auth/verify-otp", fiber.Map{
		"email": email, "otp": e.mailer.lastOTP(t).Code,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

// login returns the session cookie for an already-verified user.
func (e *testEnv) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()

	resp := e.request(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"email": email, "password": password,
	}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookie && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

// promoteAdmin flips the stored role for an existing user.
func (e *testEnv) promoteAdmin(t *testing.T, email string) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.User{}).
		Where("email = ?", email).
		Update("role", models.RoleAdmin).Error)
}

func (e *testEnv) userByEmail(t *testing.T, email string) *models.User {
	t.Helper()
	var user models.User
	require.NoError(t, e.db.Where("email = ?", email).First(&user).Error)
	return &user
}

// seedVerifiedUser inserts a verified user directly, bypassing the OTP flow.
func (e *testEnv) seedVerifiedUser(t *testing.T, name, email, password, phone, role string) *models.User {
	t.Helper()
	user := models.User{
		Name:         name,
		Email:        email,
		Phone:        phone,
		PasswordHash: passwordHash(t, password),
		IsVerified:   true,
		Role:         role,
	}
	require.NoError(t, e.db.Create(&user).Error)
	return &user
}

// seedOrder inserts an order directly, bypassing the HTTP surface.
func (e *testEnv) seedOrder(t *testing.T, owner *models.User) *models.Order {
	t.Helper()
	order := models.Order{
		UserID:         owner.ID,
		Name:           owner.Name,
		Email:          owner.Email,
		ProjectDetails: "portfolio site",
		ProjectType:    "website",
		TechStack:      "react",
		NumberOfPages:  5,
		BasePrice:      1000,
		TechMultiplier: 1.2,
		TotalPrice:     6000,
		PaymentStatus:  models.PaymentStatusPending,
		OrderStatus:    models.OrderStatusPending,
	}
	require.NoError(t, e.db.Create(&order).Error)
	return &order
}

// passwordHash is a convenience for seeding users directly.
func passwordHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := utils.HashPassword(password)
	require.NoError(t, err)
	return hash
}
