package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/Dosada05/scrimhub/gateway"
	"github.com/Dosada05/scrimhub/models"
	"github.com/Dosada05/scrimhub/repositories"
	"github.com/Dosada05/scrimhub/storage"
)

const (
	// ReconcileStaleAfter is how long an order may stay open before the
	// reconciler asks the gateway about it.
	ReconcileStaleAfter = 15 * time.Minute
	ReconcileBatchSize  = 50

	reconcileLockKey = "scrimhub:lock:reconcile-payments"
	reconcileLockTTL = 10 * time.Minute
)

type VerifyPaymentInput struct {
	OrderID   string `json:"order_id" validate:"required"`
	PaymentID string `json:"payment_id" validate:"required"`
	Signature string `json:"signature" validate:"required"`
}

// ReconcileResult summarizes one reconciliation pass.
type ReconcileResult struct {
	Checked   int  `json:"checked"`
	Completed int  `json:"completed"`
	Failed    int  `json:"failed"`
	Unchanged int  `json:"unchanged"`
	Errors    int  `json:"errors"`
	Skipped   bool `json:"skipped"`
}

type PaymentService interface {
	CreateOrder(ctx context.Context, tournamentID int, actor models.Actor) (*models.Payment, error)
	VerifyPayment(ctx context.Context, input VerifyPaymentInput, actor models.Actor) (*models.Payment, error)
	Reconcile(ctx context.Context) (ReconcileResult, error)
}

type paymentService struct {
	paymentRepo     repositories.PaymentRepository
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
	tx              repositories.Transactor
	gateway         gateway.Gateway
	locker          storage.Locker
	logger          *slog.Logger
	now             func() time.Time
}

// NewPaymentService creates the payment service. gw may be nil when no
// gateway credentials are configured; every payment operation then fails
// with ErrPaymentsDisabled.
func NewPaymentService(
	paymentRepo repositories.PaymentRepository,
	participantRepo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	tx repositories.Transactor,
	gw gateway.Gateway,
	locker storage.Locker,
	logger *slog.Logger,
) PaymentService {
	if locker == nil {
		locker = storage.NewLocalLocker()
	}
	return &paymentService{
		paymentRepo:     paymentRepo,
		participantRepo: participantRepo,
		tournamentRepo:  tournamentRepo,
		tx:              tx,
		gateway:         gw,
		locker:          locker,
		logger:          loggerOrDefault(logger),
		now:             time.Now,
	}
}

// CreateOrder opens a gateway order for the caller's pending registration.
// An order that is still open is returned instead of creating a second one.
func (s *paymentService) CreateOrder(ctx context.Context, tournamentID int, actor models.Actor) (*models.Payment, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if !tournament.IsPaid() {
		return nil, ErrTournamentNotPaid
	}
	participant, err := s.participantRepo.FindByUserAndTournament(ctx, actor.UserID, tournamentID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if participant.Status != models.ParticipantPendingPayment {
		return nil, ErrPaymentNotRequired
	}

	existing, err := s.paymentRepo.FindOpenByParticipant(ctx, participant.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repositories.ErrPaymentNotFound) {
		return nil, fmt.Errorf("failed to look up open payment: %w", err)
	}

	order, err := s.gateway.CreateOrder(ctx, tournament.EntryFee, tournament.Currency, "p_"+strconv.Itoa(participant.ID))
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	payment := &models.Payment{
		TournamentID:   tournamentID,
		ParticipantID:  participant.ID,
		UserID:         actor.UserID,
		Amount:         tournament.EntryFee,
		Currency:       tournament.Currency,
		GatewayOrderID: order.ID,
		Status:         models.PaymentCreated,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to store payment for order %s: %w", order.ID, err)
	}

	s.logger.Info("payment order created",
		slog.Int("tournament_id", tournamentID),
		slog.Int("participant_id", participant.ID),
		slog.String("order_id", order.ID))
	return payment, nil
}

func (s *paymentService) VerifyPayment(ctx context.Context, input VerifyPaymentInput, actor models.Actor) (*models.Payment, error) {
	if s.gateway == nil {
		return nil, ErrPaymentsDisabled
	}
	payment, err := s.paymentRepo.GetByOrderID(ctx, input.OrderID)
	if err != nil {
		return nil, handleRepositoryError(err)
	}
	if payment.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	if !s.gateway.VerifySignature(input.OrderID, input.PaymentID, input.Signature) {
		s.logger.Warn("payment signature mismatch", slog.String("order_id", input.OrderID), slog.Int("user_id", actor.UserID))
		return nil, ErrPaymentSignatureInvalid
	}
	if payment.Status == models.PaymentCompleted {
		return payment, nil
	}

	paymentID := input.PaymentID
	if err := s.settle(ctx, payment, models.PaymentCompleted, &paymentID); err != nil {
		return nil, err
	}
	return payment, nil
}

// settle moves the payment to a final status together with its registration.
func (s *paymentService) settle(ctx context.Context, payment *models.Payment, status models.PaymentStatus, gatewayPaymentID *string) error {
	participantStatus := models.ParticipantRegistered
	if status == models.PaymentFailed {
		participantStatus = models.ParticipantCancelled
	}

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.paymentRepo.UpdateStatus(ctx, exec, payment.ID, status, gatewayPaymentID); err != nil {
			return err
		}
		return s.participantRepo.UpdateStatus(ctx, exec, payment.ParticipantID, participantStatus)
	})
	if err != nil {
		return fmt.Errorf("failed to settle payment %d as %s: %w", payment.ID, status, handleRepositoryError(err))
	}

	payment.Status = status
	if gatewayPaymentID != nil {
		payment.GatewayPaymentID = gatewayPaymentID
	}
	s.logger.Info("payment settled",
		slog.Int("payment_id", payment.ID),
		slog.String("order_id", payment.GatewayOrderID),
		slog.String("status", string(status)))
	return nil
}

// Reconcile asks the gateway about orders left open for longer than
// ReconcileStaleAfter and settles them. Orders are processed one by one; a
// failing order is logged and the batch goes on.
func (s *paymentService) Reconcile(ctx context.Context) (ReconcileResult, error) {
	var result ReconcileResult
	if s.gateway == nil {
		return result, ErrPaymentsDisabled
	}

	release, err := s.locker.TryLock(ctx, reconcileLockKey, reconcileLockTTL)
	if err != nil {
		return result, err
	}
	if release == nil {
		s.logger.Info("payment reconciliation already running elsewhere, skipping")
		result.Skipped = true
		return result, nil
	}
	defer release()

	cutoff := s.now().Add(-ReconcileStaleAfter)
	stale, err := s.paymentRepo.ListStale(ctx, cutoff, ReconcileBatchSize)
	if err != nil {
		return result, fmt.Errorf("failed to list stale payments: %w", err)
	}

	for _, payment := range stale {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		status, err := s.reconcileOne(ctx, payment)
		if err != nil {
			result.Errors++
			s.logger.Warn("failed to reconcile payment",
				slog.Int("payment_id", payment.ID),
				slog.String("order_id", payment.GatewayOrderID),
				slog.Any("error", err))
			continue
		}
		switch status {
		case models.PaymentCompleted:
			result.Completed++
		case models.PaymentFailed:
			result.Failed++
		default:
			result.Unchanged++
		}
	}

	s.logger.Info("payment reconciliation finished",
		slog.Int("checked", result.Checked),
		slog.Int("completed", result.Completed),
		slog.Int("failed", result.Failed),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("errors", result.Errors))
	return result, nil
}

func (s *paymentService) reconcileOne(ctx context.Context, payment *models.Payment) (models.PaymentStatus, error) {
	order, err := s.gateway.FetchOrder(ctx, payment.GatewayOrderID)
	if err != nil {
		return "", err
	}

	switch order.Status {
	case gateway.OrderPaid:
		return models.PaymentCompleted, s.settle(ctx, payment, models.PaymentCompleted, nil)

	case gateway.OrderCreated:
		// Никто не пытался оплатить за отведённое время.
		return models.PaymentFailed, s.settle(ctx, payment, models.PaymentFailed, nil)

	case gateway.OrderAttempted:
		attempts, err := s.gateway.OrderAttempts(ctx, payment.GatewayOrderID)
		if err != nil {
			return "", err
		}
		allFailed := len(attempts) > 0
		for _, a := range attempts {
			if a.Status == gateway.AttemptCaptured || a.Status == gateway.AttemptAuthorized {
				id := a.ID
				return models.PaymentCompleted, s.settle(ctx, payment, models.PaymentCompleted, &id)
			}
			if a.Status != gateway.AttemptFailed {
				allFailed = false
			}
		}
		if allFailed {
			return models.PaymentFailed, s.settle(ctx, payment, models.PaymentFailed, nil)
		}
		if payment.Status == models.PaymentCreated {
			if err := s.paymentRepo.UpdateStatus(ctx, nil, payment.ID, models.PaymentPending, nil); err != nil {
				return "", err
			}
			payment.Status = models.PaymentPending
		}
		return payment.Status, nil
	}

	s.logger.Warn("unknown gateway order status", slog.String("order_id", payment.GatewayOrderID), slog.String("status", string(order.Status)))
	return payment.Status, nil
}
