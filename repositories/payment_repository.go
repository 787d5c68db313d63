package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/scrimhub/models"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrPaymentConflict = errors.New("payment with this gateway order already exists")
)

type PaymentRepository interface {
	Create(ctx context.Context, p *models.Payment) error
	GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	FindOpenByParticipant(ctx context.Context, participantID int) (*models.Payment, error)
	// ListStale returns created/pending payments older than cutoff, oldest first.
	ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Payment, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PaymentStatus, gatewayPaymentID *string) error
}

type postgresPaymentRepository struct {
	db *sql.DB
}

func NewPostgresPaymentRepository(db *sql.DB) PaymentRepository {
	return &postgresPaymentRepository{db: db}
}

const paymentColumns = `id, tournament_id, participant_id, user_id, amount, currency, gateway_order_id, gateway_payment_id, status, created_at, updated_at`

func scanPayment(row rowScanner, p *models.Payment) error {
	return row.Scan(
		&p.ID, &p.TournamentID, &p.ParticipantID, &p.UserID, &p.Amount, &p.Currency,
		&p.GatewayOrderID, &p.GatewayPaymentID, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
}

func (r *postgresPaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	query := `
		INSERT INTO payments (tournament_id, participant_id, user_id, amount, currency, gateway_order_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`
	err := r.db.QueryRowContext(ctx, query,
		p.TournamentID, p.ParticipantID, p.UserID, p.Amount, p.Currency, p.GatewayOrderID, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if code, constraint, ok := pqConstraint(err); ok && code == pqUniqueViolation && constraint == "payments_gateway_order_id_key" {
			return ErrPaymentConflict
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *postgresPaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*models.Payment, error) {
	p := &models.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, args...), p); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("failed to find payment: %w", err)
	}
	return p, nil
}

func (r *postgresPaymentRepository) GetByOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return r.findOne(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1`, orderID)
}

func (r *postgresPaymentRepository) FindOpenByParticipant(ctx context.Context, participantID int) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE participant_id = $1 AND status IN ($2, $3)
		ORDER BY created_at DESC LIMIT 1`
	return r.findOne(ctx, query, participantID, models.PaymentCreated, models.PaymentPending)
}

func (r *postgresPaymentRepository) ListStale(ctx context.Context, cutoff time.Time, limit int) ([]*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE status IN ($1, $2) AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4`
	rows, err := r.db.QueryContext(ctx, query, models.PaymentPending, models.PaymentCreated, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale payments: %w", err)
	}
	defer rows.Close()

	payments := make([]*models.Payment, 0)
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		payments = append(payments, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payment rows: %w", err)
	}
	return payments, nil
}

func (r *postgresPaymentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.PaymentStatus, gatewayPaymentID *string) error {
	query := `
		UPDATE payments
		SET status = $1, gateway_payment_id = COALESCE($2, gateway_payment_id), updated_at = NOW()
		WHERE id = $3`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, status, gatewayPaymentID, id)
	if err != nil {
		return fmt.Errorf("failed to update payment status: %w", err)
	}
	return checkAffectedRows(result, ErrPaymentNotFound)
}
