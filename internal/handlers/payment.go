package handlers

import (
	"errors"
	"fmt"
	"math"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/devstudio/internal/middleware"
	"github.com/example/devstudio/internal/models"
	"github.com/example/devstudio/internal/services"
)

// PaymentHandler manages payment-provider endpoints.
type PaymentHandler struct {
	db       *gorm.DB
	payments *services.PaymentService
	gateway  services.PaymentGateway
}

// NewPaymentHandler constructs a PaymentHandler.
func NewPaymentHandler(db *gorm.DB, payments *services.PaymentService, gateway services.PaymentGateway) *PaymentHandler {
	return &PaymentHandler{db: db, payments: payments, gateway: gateway}
}

type createGatewayOrderRequest struct {
	Amount  float64 `json:"amount"`
	OrderID string  `json:"order_id"`
}

// CreateGatewayOrder registers an order with the payment provider and hands
// the client what the checkout widget needs. The caller must own the order.
func (h *PaymentHandler) CreateGatewayOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createGatewayOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Amount <= 0 || req.OrderID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "amount and order_id are required")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	if order.UserID != userID {
		return fiber.NewError(fiber.StatusForbidden, "not authorized")
	}

	// Amount travels to the provider in minor currency units. Rounded, not
	// truncated: 19.99 is 1999 paise, not 1998.
	gatewayOrder, err := h.gateway.CreateOrder(c.Context(), int64(math.Round(req.Amount*100)), "INR",
		fmt.Sprintf("order_%s", order.ID),
		map[string]string{
			"order_id": order.ID.String(),
			"user_id":  userID.String(),
		})
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"order_id": gatewayOrder.ID,
		"amount":   gatewayOrder.Amount,
		"currency": gatewayOrder.Currency,
		"key_id":   h.gateway.KeyID(),
	})
}

type verifyPaymentRequest struct {
	ProviderOrderID   string `json:"razorpay_order_id"`
	ProviderPaymentID string `json:"razorpay_payment_id"`
	Signature         string `json:"razorpay_signature"`
	OrderID           string `json:"order_id"`
}

// VerifyPayment is the inbound confirmation gate: the reconciliation service
// checks the callback signature and performs the pending -> completed
// transition. Client-supplied payment state is never trusted directly.
func (h *PaymentHandler) VerifyPayment(c *fiber.Ctx) error {
	var req verifyPaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	order, err := h.payments.ConfirmPayment(c.Context(), req.ProviderOrderID, req.ProviderPaymentID, req.Signature, orderID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrSignatureMismatch):
			return fiber.NewError(fiber.StatusBadRequest, "payment verification failed")
		case errors.Is(err, services.ErrOrderNotFound):
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrOrderConflict):
			return fiber.NewError(fiber.StatusConflict, "order already settled")
		}
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "payment confirmed",
		"order":   order,
	})
}
