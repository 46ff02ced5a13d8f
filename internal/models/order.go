package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment states for an order. Completed and failed are terminal.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

// Fulfillment states for an order.
const (
	OrderStatusPending    = "pending"
	OrderStatusInProgress = "in_progress"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
)

// Order is one project request placed by a user. TotalPrice is fixed at
// creation (base price x tech multiplier x pages) and never re-derived.
type Order struct {
	BaseModel
	UserID uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	User   *User     `json:"user,omitempty"`

	Name           string  `json:"name"`
	Email          string  `json:"email"`
	ProjectDetails string  `json:"project_details"`
	ProjectType    string  `json:"project_type"`
	TechStack      string  `json:"tech_stack"`
	NumberOfPages  int     `json:"number_of_pages"`
	BasePrice      float64 `json:"base_price"`
	TechMultiplier float64 `json:"tech_multiplier"`
	TotalPrice     float64 `json:"total_price"`

	PaymentStatus   string `gorm:"default:pending" json:"payment_status"`
	PaymentID       string `json:"payment_id"`
	ProviderOrderID string `gorm:"index" json:"provider_order_id"`

	OrderStatus  string     `gorm:"default:pending" json:"order_status"`
	DeliveryDate *time.Time `json:"delivery_date"`
	Notes        string     `json:"notes"`
}
