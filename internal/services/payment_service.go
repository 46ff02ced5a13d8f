package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/example/devstudio/internal/models"
)

// Reconciliation outcomes surfaced to the transport layer.
var (
	// ErrSignatureMismatch means the callback signature did not verify.
	// The order must remain untouched in this case.
	ErrSignatureMismatch = errors.New("payment signature mismatch")

	// ErrOrderNotFound means the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")

	// ErrOrderConflict means the order already left the pending state with
	// different provider identifiers than the ones supplied.
	ErrOrderConflict = errors.New("order payment state conflict")
)

// PaymentService drives an order's payment state from pending to completed.
// It is the sole gate converting a client claim of payment into a trusted
// fact: only a callback whose HMAC verifies against the shared secret may
// transition the order.
type PaymentService struct {
	db        *gorm.DB
	keySecret string
	mailer    MailSender
	telegram  *TelegramService
	logger    zerolog.Logger
}

// NewPaymentService constructs a PaymentService.
func NewPaymentService(db *gorm.DB, keySecret string, mailer MailSender, telegram *TelegramService, logger zerolog.Logger) *PaymentService {
	return &PaymentService{
		db:        db,
		keySecret: keySecret,
		mailer:    mailer,
		telegram:  telegram,
		logger:    logger.With().Str("service", "payment").Logger(),
	}
}

// VerifySignature recomputes the HMAC-SHA256 over "orderID|paymentID" and
// compares it to the supplied signature in constant time.
func (s *PaymentService) VerifySignature(providerOrderID, providerPaymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(s.keySecret))
	mac.Write([]byte(providerOrderID + "|" + providerPaymentID))
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// ConfirmPayment validates a provider callback and settles the order.
//
// The pending -> completed transition is a conditional update guarded on the
// current payment state, so concurrent deliveries of the same callback settle
// exactly one winner. Replays with identical valid inputs return the stored
// order without re-sending notifications.
func (s *PaymentService) ConfirmPayment(ctx context.Context, providerOrderID, providerPaymentID, signature string, orderID uuid.UUID) (*models.Order, error) {
	if !s.VerifySignature(providerOrderID, providerPaymentID, signature) {
		s.logger.Warn().
			Str("order_id", orderID.String()).
			Str("provider_order_id", providerOrderID).
			Msg("rejected callback with invalid signature")
		return nil, ErrSignatureMismatch
	}

	var order models.Order
	if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	if order.PaymentStatus != models.PaymentStatusPending {
		return s.settleReplay(&order, providerOrderID, providerPaymentID)
	}

	res := s.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND payment_status = ?", orderID, models.PaymentStatusPending).
		Updates(map[string]any{
			"payment_status":    models.PaymentStatusCompleted,
			"payment_id":        providerPaymentID,
			"provider_order_id": providerOrderID,
		})
	if res.Error != nil {
		return nil, res.Error
	}

	if res.RowsAffected == 0 {
		// Lost the race against a concurrent callback; re-read and treat as replay.
		if err := s.db.WithContext(ctx).First(&order, "id = ?", orderID).Error; err != nil {
			return nil, err
		}
		return s.settleReplay(&order, providerOrderID, providerPaymentID)
	}

	order.PaymentStatus = models.PaymentStatusCompleted
	order.PaymentID = providerPaymentID
	order.ProviderOrderID = providerOrderID

	s.logger.Info().
		Str("order_id", order.ID.String()).
		Str("payment_id", providerPaymentID).
		Msg("payment confirmed")

	s.notifyPaid(&order)

	return &order, nil
}

// settleReplay resolves a callback against an order that already left the
// pending state. Matching provider identifiers mean a benign replay; anything
// else is a conflict. Notifications are not re-sent either way.
func (s *PaymentService) settleReplay(order *models.Order, providerOrderID, providerPaymentID string) (*models.Order, error) {
	if order.PaymentStatus == models.PaymentStatusCompleted &&
		order.ProviderOrderID == providerOrderID &&
		order.PaymentID == providerPaymentID {
		s.logger.Info().
			Str("order_id", order.ID.String()).
			Msg("duplicate payment callback, already settled")
		return order, nil
	}
	return nil, ErrOrderConflict
}

// notifyPaid dispatches the operator- and customer-facing notifications.
// Failures are logged and swallowed: the payment fact is already durable.
func (s *PaymentService) notifyPaid(order *models.Order) {
	if s.telegram != nil {
		if err := s.telegram.NotifyOrderPaid(order); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("telegram notification failed")
		}
	}
	if s.mailer != nil {
		if err := s.mailer.SendOrderPaidOperator(order); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("operator mail failed")
		}
		if err := s.mailer.SendOrderPaidCustomer(order); err != nil {
			s.logger.Error().Err(err).Str("order_id", order.ID.String()).Msg("customer mail failed")
		}
	}
}
