package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultRazorpayBaseURL = "https://api.razorpay.com/v1"

// GatewayOrder is the provider-side order returned by the payment gateway.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// PaymentGateway is the external payment-provider collaborator. Amounts are
// in minor currency units. Idempotency of repeated order creation is the
// provider's responsibility.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error)
	KeyID() string
}

// RazorpayClient talks to the Razorpay orders API. Constructed once at
// startup and reused; the zero-config client rejects calls instead of
// panicking.
type RazorpayClient struct {
	baseURL   string
	keyID     string
	keySecret string
	client    *http.Client
	logger    zerolog.Logger
}

// NewRazorpayClient constructs a RazorpayClient.
func NewRazorpayClient(keyID, keySecret string, logger zerolog.Logger) *RazorpayClient {
	return &RazorpayClient{
		baseURL:   defaultRazorpayBaseURL,
		keyID:     keyID,
		keySecret: keySecret,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger.With().Str("service", "razorpay").Logger(),
	}
}

// KeyID returns the public key the browser checkout widget needs.
func (c *RazorpayClient) KeyID() string {
	return c.keyID
}

type razorpayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder registers an order with Razorpay and returns the provider's
// order handle.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]string) (*GatewayOrder, error) {
	if c.keyID == "" || c.keySecret == "" {
		return nil, errors.New("razorpay credentials are not configured")
	}

	payload := razorpayOrderRequest{
		Amount:   amount,
		Currency: currency,
		Receipt:  receipt,
		Notes:    notes,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal razorpay order payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create razorpay order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute razorpay order request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read razorpay order response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr razorpayErrorResponse
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Description != "" {
			c.logger.Error().
				Int("status", resp.StatusCode).
				Str("code", apiErr.Error.Code).
				Msg("razorpay order creation rejected")
			return nil, fmt.Errorf("razorpay order creation failed: %s", apiErr.Error.Description)
		}
		return nil, fmt.Errorf("razorpay order creation failed with status %d", resp.StatusCode)
	}

	var order GatewayOrder
	if err := json.Unmarshal(respBody, &order); err != nil {
		return nil, fmt.Errorf("decode razorpay order response: %w", err)
	}

	c.logger.Info().Str("provider_order_id", order.ID).Int64("amount", order.Amount).Msg("razorpay order created")
	return &order, nil
}
