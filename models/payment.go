package models

import "time"

type PaymentStatus string

const (
	PaymentCreated   PaymentStatus = "created"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Payment is an entry-fee order placed with the payment gateway.
type Payment struct {
	ID               int           `json:"id" db:"id"`
	TournamentID     int           `json:"tournament_id" db:"tournament_id"`
	ParticipantID    int           `json:"participant_id" db:"participant_id"`
	UserID           int           `json:"user_id" db:"user_id"`
	Amount           int64         `json:"amount" db:"amount"`
	Currency         string        `json:"currency" db:"currency"`
	GatewayOrderID   string        `json:"gateway_order_id" db:"gateway_order_id"`
	GatewayPaymentID *string       `json:"gateway_payment_id,omitempty" db:"gateway_payment_id"`
	Status           PaymentStatus `json:"status" db:"status"`
	CreatedAt        time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at" db:"updated_at"`
}
