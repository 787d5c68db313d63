// Package gateway talks to the payment provider that collects entry fees.
package gateway

import (
	"context"
	"errors"
)

type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderAttempted OrderStatus = "attempted"
	OrderPaid      OrderStatus = "paid"
)

type AttemptStatus string

const (
	AttemptCreated    AttemptStatus = "created"
	AttemptAuthorized AttemptStatus = "authorized"
	AttemptCaptured   AttemptStatus = "captured"
	AttemptRefunded   AttemptStatus = "refunded"
	AttemptFailed     AttemptStatus = "failed"
)

var ErrNotConfigured = errors.New("payment gateway is not configured")

type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   OrderStatus
}

// Attempt is a single payment try against an order.
type Attempt struct {
	ID     string
	Status AttemptStatus
}

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	OrderAttempts(ctx context.Context, orderID string) ([]Attempt, error)
	VerifySignature(orderID, paymentID, signature string) bool
}
