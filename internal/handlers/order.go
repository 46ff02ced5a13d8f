package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/devstudio/internal/middleware"
	"github.com/example/devstudio/internal/models"
	"github.com/example/devstudio/internal/utils"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	db *gorm.DB
}

// NewOrderHandler constructs an OrderHandler.
func NewOrderHandler(db *gorm.DB) *OrderHandler {
	return &OrderHandler{db: db}
}

type createOrderRequest struct {
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	ProjectDetails string  `json:"project_details"`
	ProjectType    string  `json:"project_type"`
	TechStack      string  `json:"tech_stack"`
	NumberOfPages  int     `json:"number_of_pages"`
	BasePrice      float64 `json:"base_price"`
	TechMultiplier float64 `json:"tech_multiplier"`
}

// CreateOrder records a checkout intent. The total is derived server-side at
// creation and never recomputed afterwards.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Name == "" || req.Email == "" || req.ProjectDetails == "" ||
		req.ProjectType == "" || req.TechStack == "" {
		return fiber.NewError(fiber.StatusBadRequest, "all fields are required")
	}
	if req.NumberOfPages <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "number of pages must be positive")
	}
	if req.BasePrice <= 0 || req.TechMultiplier <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid pricing inputs")
	}

	order := models.Order{
		UserID:         userID,
		Name:           req.Name,
		Email:          req.Email,
		ProjectDetails: req.ProjectDetails,
		ProjectType:    req.ProjectType,
		TechStack:      req.TechStack,
		NumberOfPages:  req.NumberOfPages,
		BasePrice:      req.BasePrice,
		TechMultiplier: req.TechMultiplier,
		TotalPrice:     req.BasePrice * req.TechMultiplier * float64(req.NumberOfPages),
		PaymentStatus:  models.PaymentStatusPending,
		OrderStatus:    models.OrderStatusPending,
	}

	if err := h.db.Create(&order).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"order_id": order.ID,
		"message":  "order created successfully",
	})
}

// ListMyOrders returns the caller's orders, newest first.
func (h *OrderHandler) ListMyOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var orders []models.Order
	if err := h.db.
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(orders)
}

// GetOrder returns a single order for its owner or an admin.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	if order.UserID != userID {
		var caller models.User
		if err := h.db.First(&caller, "id = ?", userID).Error; err != nil || !caller.IsAdmin() {
			return fiber.NewError(fiber.StatusForbidden, "not authorized to view this order")
		}
	}

	return c.JSON(order)
}

// ListAllOrders returns every order with its owner preloaded. Admin only.
func (h *OrderHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)

	query := h.db.Model(&models.Order{})
	if status := c.Query("status"); status != "" {
		query = query.Where("order_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.Preload("User").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

type updateOrderRequest struct {
	Status       string     `json:"status"`
	DeliveryDate *time.Time `json:"delivery_date"`
	Notes        string     `json:"notes"`
}

// UpdateOrder lets an admin advance fulfillment state, set a delivery date,
// or attach notes. Payment state is never writable here.
func (h *OrderHandler) UpdateOrder(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var req updateOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	var order models.Order
	if err := h.db.First(&order, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	updates := map[string]any{}
	if req.Status != "" {
		if !validOrderStatus(req.Status) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid order status")
		}
		updates["order_status"] = req.Status
	}
	if req.DeliveryDate != nil {
		updates["delivery_date"] = req.DeliveryDate
	}
	if req.Notes != "" {
		updates["notes"] = req.Notes
	}

	if len(updates) > 0 {
		if err := h.db.Model(&order).Updates(updates).Error; err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "order updated",
		"order":   order,
	})
}

func validOrderStatus(status string) bool {
	switch status {
	case models.OrderStatusPending, models.OrderStatusInProgress,
		models.OrderStatusCompleted, models.OrderStatusCancelled:
		return true
	}
	return false
}
