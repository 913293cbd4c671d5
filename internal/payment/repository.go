package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/batikstore/backend/internal/db"
	"github.com/batikstore/backend/internal/notify"
	"github.com/batikstore/backend/internal/order"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")

	// ErrAlreadyReconciled means the payment left the pending state before
	// this call: it was already verified or rejected.
	ErrAlreadyReconciled = errors.New("payment already reconciled")
)

type Repository interface {
	GetByID(ctx context.Context, id int64) (*Payment, error)
	GetByOrderID(ctx context.Context, orderID int64) (*Payment, error)
	ListPending(ctx context.Context, limit, offset int) ([]Payment, int, error)
	Upsert(ctx context.Context, p *Payment) error
	Verify(ctx context.Context, paymentID, adminID int64) (*Payment, error)
	Reject(ctx context.Context, paymentID, adminID int64, reason string) (*Payment, error)
}

type postgresRepository struct {
	db     *pgxpool.Pool
	outbox *notify.Outbox
}

func NewRepository(pool *pgxpool.Pool, outbox *notify.Outbox) Repository {
	return &postgresRepository{db: pool, outbox: outbox}
}

const paymentColumns = `id, order_id, payment_method, bank_name, account_holder, amount,
	proof_ref, payment_date, notes, payment_status, verified_by, verified_at,
	rejection_reason, created_at, updated_at`

func scanPayment(row pgx.Row, p *Payment) error {
	return row.Scan(
		&p.ID,
		&p.OrderID,
		&p.Method,
		&p.BankName,
		&p.AccountHolder,
		&p.Amount,
		&p.ProofRef,
		&p.PaymentDate,
		&p.Notes,
		&p.Status,
		&p.VerifiedBy,
		&p.VerifiedAt,
		&p.RejectionReason,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

// rowQuerier is satisfied by both pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func orderRef(ctx context.Context, q rowQuerier, orderID int64) (*OrderRef, error) {
	var ref OrderRef
	err := q.QueryRow(ctx, `
		SELECT id, customer_name, customer_email, customer_phone, total, status
		FROM orders WHERE id = $1
	`, orderID).Scan(&ref.ID, &ref.CustomerName, &ref.CustomerEmail, &ref.CustomerPhone, &ref.Total, &ref.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("repository: failed to select order %d: %w", orderID, err)
	}
	return &ref, nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id int64) (*Payment, error) {
	var p Payment
	err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment by id %d: %w", id, err)
	}

	ref, err := orderRef(ctx, r.db, p.OrderID)
	if err != nil {
		return nil, err
	}
	p.Order = ref
	return &p, nil
}

func (r *postgresRepository) GetByOrderID(ctx context.Context, orderID int64) (*Payment, error) {
	var p Payment
	err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE order_id = $1`, orderID), &p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPaymentNotFound
		}
		return nil, fmt.Errorf("repository: failed to select payment by order id %d: %w", orderID, err)
	}

	ref, err := orderRef(ctx, r.db, p.OrderID)
	if err != nil {
		return nil, err
	}
	p.Order = ref
	return &p, nil
}

func (r *postgresRepository) ListPending(ctx context.Context, limit, offset int) ([]Payment, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM payments WHERE payment_status = 'pending'`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repository: failed to count pending payments: %w", err)
	}

	query := `
		SELECT p.id, p.order_id, p.payment_method, p.bank_name, p.account_holder, p.amount,
		       p.proof_ref, p.payment_date, p.notes, p.payment_status, p.verified_by, p.verified_at,
		       p.rejection_reason, p.created_at, p.updated_at,
		       o.id, o.customer_name, o.customer_email, o.customer_phone, o.total, o.status
		FROM payments p
		JOIN orders o ON o.id = p.order_id
		WHERE p.payment_status = 'pending'
		ORDER BY p.created_at DESC
	`
	args := []any{}
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(` OFFSET $%d`, len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository: failed to query pending payments: %w", err)
	}
	defer rows.Close()

	payments := make([]Payment, 0)
	for rows.Next() {
		var p Payment
		var ref OrderRef
		err := rows.Scan(
			&p.ID, &p.OrderID, &p.Method, &p.BankName, &p.AccountHolder, &p.Amount,
			&p.ProofRef, &p.PaymentDate, &p.Notes, &p.Status, &p.VerifiedBy, &p.VerifiedAt,
			&p.RejectionReason, &p.CreatedAt, &p.UpdatedAt,
			&ref.ID, &ref.CustomerName, &ref.CustomerEmail, &ref.CustomerPhone, &ref.Total, &ref.Status,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("repository: failed to scan pending payment: %w", err)
		}
		p.Order = &ref
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("repository: error iterating pending payments: %w", err)
	}

	return payments, total, nil
}

// Upsert creates the payment record for an order or, when one already
// exists, overwrites the proof fields and resets the status to pending. The
// reset is the resubmission path out of a rejected (or even verified) state.
func (r *postgresRepository) Upsert(ctx context.Context, p *Payment) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		ref, err := orderRef(ctx, tx, p.OrderID)
		if err != nil {
			return err
		}

		query := `
			INSERT INTO payments (order_id, payment_method, bank_name, account_holder, amount,
			                      proof_ref, payment_date, notes, payment_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending')
			ON CONFLICT (order_id) DO UPDATE SET
				payment_method   = EXCLUDED.payment_method,
				bank_name        = EXCLUDED.bank_name,
				account_holder   = EXCLUDED.account_holder,
				amount           = EXCLUDED.amount,
				proof_ref        = EXCLUDED.proof_ref,
				payment_date     = EXCLUDED.payment_date,
				notes            = EXCLUDED.notes,
				payment_status   = 'pending',
				verified_by      = NULL,
				verified_at      = NULL,
				rejection_reason = '',
				updated_at       = NOW()
			RETURNING id, payment_status, created_at, updated_at
		`
		err = tx.QueryRow(ctx, query,
			p.OrderID, string(p.Method), p.BankName, p.AccountHolder, p.Amount,
			p.ProofRef, p.PaymentDate, p.Notes,
		).Scan(&p.ID, &p.Status, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to upsert payment for order %d: %w", p.OrderID, err)
		}

		p.VerifiedBy = nil
		p.VerifiedAt = nil
		p.RejectionReason = ""
		p.Order = ref

		return r.outbox.Enqueue(ctx, tx, notify.EventPaymentUploaded, p.OrderID, payloadFor(p, ref))
	})
}

// Verify moves a pending payment to verified and, in the same transaction,
// the owning order from pending to processing. A verified payment with an
// order still stuck at pending is the desynchronization this coupling
// prevents.
func (r *postgresRepository) Verify(ctx context.Context, paymentID, adminID int64) (*Payment, error) {
	var p Payment
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := r.lockPending(ctx, tx, paymentID, &p); err != nil {
			return err
		}

		now := time.Now().UTC()
		err := tx.QueryRow(ctx, `
			UPDATE payments
			SET payment_status = 'verified', verified_by = $2, verified_at = $3, updated_at = $3
			WHERE id = $1
			RETURNING payment_status, verified_by, verified_at, updated_at
		`, paymentID, adminID, now).Scan(&p.Status, &p.VerifiedBy, &p.VerifiedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to verify payment %d: %w", paymentID, err)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE orders SET status = 'processing', updated_at = $2 WHERE id = $1
		`, p.OrderID, now); err != nil {
			return fmt.Errorf("repository: failed to advance order %d to processing: %w", p.OrderID, err)
		}

		ref, err := orderRef(ctx, tx, p.OrderID)
		if err != nil {
			return err
		}
		p.Order = ref

		return r.outbox.Enqueue(ctx, tx, notify.EventPaymentVerified, p.OrderID, payloadFor(&p, ref))
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Reject moves a pending payment to rejected with the mandatory reason. The
// order stays pending, awaiting resubmission.
func (r *postgresRepository) Reject(ctx context.Context, paymentID, adminID int64, reason string) (*Payment, error) {
	var p Payment
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if err := r.lockPending(ctx, tx, paymentID, &p); err != nil {
			return err
		}

		now := time.Now().UTC()
		err := tx.QueryRow(ctx, `
			UPDATE payments
			SET payment_status = 'rejected', rejection_reason = $2, verified_by = $3, verified_at = $4, updated_at = $4
			WHERE id = $1
			RETURNING payment_status, rejection_reason, verified_by, verified_at, updated_at
		`, paymentID, reason, adminID, now).Scan(&p.Status, &p.RejectionReason, &p.VerifiedBy, &p.VerifiedAt, &p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("repository: failed to reject payment %d: %w", paymentID, err)
		}

		ref, err := orderRef(ctx, tx, p.OrderID)
		if err != nil {
			return err
		}
		p.Order = ref

		return r.outbox.Enqueue(ctx, tx, notify.EventPaymentRejected, p.OrderID, payloadFor(&p, ref))
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// lockPending loads the payment row under a row lock and enforces the state
// machine: only a pending payment may be reconciled. The lock makes two
// simultaneous admin actions serialize; the loser sees a non-pending row and
// fails here instead of silently re-applying.
func (r *postgresRepository) lockPending(ctx context.Context, tx pgx.Tx, paymentID int64, p *Payment) error {
	err := scanPayment(tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`, paymentID), p)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrPaymentNotFound
		}
		return fmt.Errorf("repository: failed to lock payment %d: %w", paymentID, err)
	}
	if p.Status != StatusPending {
		return ErrAlreadyReconciled
	}
	return nil
}

func payloadFor(p *Payment, ref *OrderRef) notify.Payload {
	return notify.Payload{
		Order: notify.OrderSnapshot{
			OrderID:       ref.ID,
			CustomerName:  ref.CustomerName,
			CustomerEmail: ref.CustomerEmail,
			CustomerPhone: ref.CustomerPhone,
			Total:         ref.Total,
			Status:        ref.Status,
		},
		Payment: &notify.PaymentSnapshot{
			PaymentID:       p.ID,
			Method:          string(p.Method),
			Amount:          p.Amount,
			Status:          string(p.Status),
			ProofRef:        p.ProofRef,
			RejectionReason: p.RejectionReason,
		},
	}
}
