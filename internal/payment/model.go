package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusVerified PaymentStatus = "verified"
	StatusRejected PaymentStatus = "rejected"
)

func (ps PaymentStatus) String() string {
	return string(ps)
}

type Method string

const (
	MethodBankTransfer Method = "bank_transfer"
	MethodEwallet      Method = "ewallet"
	MethodCOD          Method = "cod"
)

func (m Method) Valid() bool {
	switch m {
	case MethodBankTransfer, MethodEwallet, MethodCOD:
		return true
	}
	return false
}

// OrderRef is the owning order as seen from a payment: enough to identify the
// order and the customer without loading the whole ledger record.
type OrderRef struct {
	ID            int64           `json:"id"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	CustomerPhone string          `json:"customer_phone"`
	Total         decimal.Decimal `json:"total"`
	Status        string          `json:"status"`
}

// Payment is the single proof-of-payment record for an order. Terminal
// states are left only through a fresh submission resetting to pending.
type Payment struct {
	ID              int64           `json:"id"`
	OrderID         int64           `json:"order_id"`
	Method          Method          `json:"payment_method"`
	BankName        string          `json:"bank_name,omitempty"`
	AccountHolder   string          `json:"account_holder,omitempty"`
	Amount          decimal.Decimal `json:"amount"`
	ProofRef        string          `json:"proof_ref"`
	PaymentDate     *time.Time      `json:"payment_date,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	Status          PaymentStatus   `json:"payment_status"`
	VerifiedBy      *int64          `json:"verified_by,omitempty"`
	VerifiedAt      *time.Time      `json:"verified_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Order           *OrderRef       `json:"order,omitempty"`
}
