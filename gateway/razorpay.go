package gateway

import (
	"context"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/razorpay/razorpay-go/utils"
)

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
}

func (c RazorpayConfig) Enabled() bool {
	return c.KeyID != "" && c.KeySecret != ""
}

type razorpayGateway struct {
	client *razorpay.Client
	secret string
}

func NewRazorpayGateway(cfg RazorpayConfig) (Gateway, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	return &razorpayGateway{
		client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		secret: cfg.KeySecret,
	}, nil
}

// The SDK is synchronous and has no context support; ctx is checked before
// each round trip only.
func (g *razorpayGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Order.Create(map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: create order: %w", err)
	}
	return parseOrder(body)
}

func (g *razorpayGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Order.Fetch(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: fetch order %s: %w", orderID, err)
	}
	return parseOrder(body)
}

func (g *razorpayGateway) OrderAttempts(ctx context.Context, orderID string) ([]Attempt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := g.client.Order.Payments(orderID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("razorpay: list payments of order %s: %w", orderID, err)
	}
	return parseAttempts(body), nil
}

// VerifySignature checks the checkout callback signature with the SDK helper.
func (g *razorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	if orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	return utils.VerifyPaymentSignature(map[string]interface{}{
		"razorpay_order_id":   orderID,
		"razorpay_payment_id": paymentID,
	}, signature, g.secret)
}

func parseOrder(body map[string]interface{}) (*Order, error) {
	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("razorpay: order response without id")
	}
	o := &Order{ID: id}
	o.Currency, _ = body["currency"].(string)
	o.Receipt, _ = body["receipt"].(string)
	if status, ok := body["status"].(string); ok {
		o.Status = OrderStatus(status)
	}
	// JSON numbers decode as float64.
	if amount, ok := body["amount"].(float64); ok {
		o.Amount = int64(amount)
	}
	return o, nil
}

func parseAttempts(body map[string]interface{}) []Attempt {
	items, _ := body["items"].([]interface{})
	attempts := make([]Attempt, 0, len(items))
	for _, item := range items {
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		status, _ := m["status"].(string)
		attempts = append(attempts, Attempt{ID: id, Status: AttemptStatus(status)})
	}
	return attempts
}
