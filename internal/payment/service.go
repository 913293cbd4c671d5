package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	ErrMissingRejectionReason = errors.New("rejection reason is required")
	ErrInvalidPaymentMethod   = errors.New("invalid payment method")
	ErrMissingProof           = errors.New("payment proof is required")
	ErrInvalidAmount          = errors.New("payment amount must be positive")
)

type SubmitRequest struct {
	Method        Method          `json:"payment_method"`
	BankName      string          `json:"bank_name"`
	AccountHolder string          `json:"account_holder"`
	Amount        decimal.Decimal `json:"amount"`
	ProofRef      string          `json:"proof_ref"`
	PaymentDate   *time.Time      `json:"payment_date"`
	Notes         string          `json:"notes"`
}

// Notifier wakes the notification drain loop after a commit.
type Notifier interface {
	Wake()
}

type Service interface {
	SubmitPayment(ctx context.Context, orderID int64, req SubmitRequest) (*Payment, error)
	VerifyPayment(ctx context.Context, paymentID, adminID int64) (*Payment, error)
	RejectPayment(ctx context.Context, paymentID, adminID int64, reason string) (*Payment, error)
	GetPaymentByID(ctx context.Context, paymentID int64) (*Payment, error)
	GetPaymentByOrderID(ctx context.Context, orderID int64) (*Payment, error)
	ListPendingPayments(ctx context.Context, limit, offset int) ([]Payment, int, error)
}

type service struct {
	repo     Repository
	notifier Notifier
}

func NewService(repo Repository, notifier Notifier) Service {
	return &service{repo: repo, notifier: notifier}
}

// SubmitPayment records a proof-of-payment for the order, resetting any
// existing record back to pending. This is both the first submission and the
// resubmission path after a rejection.
func (s *service) SubmitPayment(ctx context.Context, orderID int64, req SubmitRequest) (*Payment, error) {
	if !req.Method.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPaymentMethod, req.Method)
	}
	if req.ProofRef == "" {
		return nil, ErrMissingProof
	}
	if !req.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	paymentDate := req.PaymentDate
	if paymentDate == nil {
		now := time.Now().UTC()
		paymentDate = &now
	}

	p := &Payment{
		OrderID:       orderID,
		Method:        req.Method,
		BankName:      req.BankName,
		AccountHolder: req.AccountHolder,
		Amount:        req.Amount,
		ProofRef:      req.ProofRef,
		PaymentDate:   paymentDate,
		Notes:         req.Notes,
		Status:        StatusPending,
	}

	if err := s.repo.Upsert(ctx, p); err != nil {
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to submit payment")
		return nil, err
	}

	log.Info().Int64("order_id", orderID).Int64("payment_id", p.ID).Msg("service: payment proof submitted")
	s.notifier.Wake()
	return p, nil
}

// VerifyPayment reconciles a pending payment and advances the owning order to
// processing in the same transaction. Calling it on an already reconciled
// payment is an error, never a silent no-op.
func (s *service) VerifyPayment(ctx context.Context, paymentID, adminID int64) (*Payment, error) {
	p, err := s.repo.Verify(ctx, paymentID, adminID)
	if err != nil {
		if errors.Is(err, ErrAlreadyReconciled) || errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
		log.Error().Err(err).Int64("payment_id", paymentID).Msg("service: failed to verify payment")
		return nil, fmt.Errorf("service: failed to verify payment: %w", err)
	}

	log.Info().Int64("payment_id", paymentID).Int64("order_id", p.OrderID).Int64("admin_id", adminID).
		Msg("service: payment verified, order moved to processing")
	s.notifier.Wake()
	return p, nil
}

// RejectPayment reconciles a pending payment as rejected. The order stays
// pending so the customer can submit a new proof.
func (s *service) RejectPayment(ctx context.Context, paymentID, adminID int64, reason string) (*Payment, error) {
	if reason == "" {
		return nil, ErrMissingRejectionReason
	}

	p, err := s.repo.Reject(ctx, paymentID, adminID, reason)
	if err != nil {
		if errors.Is(err, ErrAlreadyReconciled) || errors.Is(err, ErrPaymentNotFound) {
			return nil, err
		}
		log.Error().Err(err).Int64("payment_id", paymentID).Msg("service: failed to reject payment")
		return nil, fmt.Errorf("service: failed to reject payment: %w", err)
	}

	log.Info().Int64("payment_id", paymentID).Int64("order_id", p.OrderID).Str("reason", reason).
		Msg("service: payment rejected")
	s.notifier.Wake()
	return p, nil
}

func (s *service) GetPaymentByID(ctx context.Context, paymentID int64) (*Payment, error) {
	p, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		log.Error().Err(err).Int64("payment_id", paymentID).Msg("service: failed to fetch payment")
		return nil, fmt.Errorf("service: failed to fetch payment: %w", err)
	}
	return p, nil
}

func (s *service) GetPaymentByOrderID(ctx context.Context, orderID int64) (*Payment, error) {
	p, err := s.repo.GetByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, ErrPaymentNotFound) {
			return nil, ErrPaymentNotFound
		}
		log.Error().Err(err).Int64("order_id", orderID).Msg("service: failed to fetch payment")
		return nil, fmt.Errorf("service: failed to fetch payment: %w", err)
	}
	return p, nil
}

func (s *service) ListPendingPayments(ctx context.Context, limit, offset int) ([]Payment, int, error) {
	payments, total, err := s.repo.ListPending(ctx, limit, offset)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to list pending payments")
		return nil, 0, fmt.Errorf("service: failed to list pending payments: %w", err)
	}
	return payments, total, nil
}
