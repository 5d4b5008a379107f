package models

import (
	"time"

	"github.com/google/uuid"
)

// Transaction status enum. paid is reachable only from pending via admin
// verification; released only from paid. released and refunded are terminal.
const (
	TransactionPending  = "pending"
	TransactionPaid     = "paid"
	TransactionReleased = "released"
	TransactionRefunded = "refunded"
)

const (
	PaymentPayPal       = "paypal"
	PaymentMobileMoney  = "mobile_money"
	PaymentBankTransfer = "bank_transfer"
)

type Transaction struct {
	ID               uuid.UUID  `json:"id"`
	JobID            uuid.UUID  `json:"job_id"`
	ClientID         uuid.UUID  `json:"client_id"`
	Amount           int        `json:"amount"`
	Status           string     `json:"status"`
	PaymentMethod    string     `json:"payment_method"`
	PaymentReference string     `json:"payment_reference"`
	AdminVerifiedAt  *time.Time `json:"admin_verified_at,omitempty"`
	ReleasedAt       *time.Time `json:"released_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
