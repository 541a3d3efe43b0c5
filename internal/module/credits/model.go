package credits

import "time"

// Account holds one user's credit balance in cents. The balance is mutated
// only through the ledger and never goes negative.
type Account struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	BalanceCents int64     `json:"balance_cents" gorm:"not null;default:0;check:balance_cents >= 0"`
	Disabled     bool      `json:"disabled" gorm:"default:false"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the table name for Account.
func (Account) TableName() string {
	return "accounts"
}

// TransactionReason categorizes ledger movements.
type TransactionReason string

const (
	ReasonPurchase     TransactionReason = "purchase"
	ReasonRefund       TransactionReason = "refund"
	ReasonPaymentGrant TransactionReason = "payment_grant"
	ReasonAdjustment   TransactionReason = "adjustment"
)

// Transaction is one journal entry. Delta is positive for credits and
// negative for debits; BalanceAfter snapshots the resulting balance.
type Transaction struct {
	ID           string            `json:"id" gorm:"primaryKey"`
	AccountID    string            `json:"account_id" gorm:"not null;index"`
	DeltaCents   int64             `json:"delta_cents" gorm:"not null"`
	BalanceAfter int64             `json:"balance_after" gorm:"not null"`
	Reason       TransactionReason `json:"reason" gorm:"not null"`
	ReferenceID  string            `json:"reference_id" gorm:"index"`
	CreatedAt    time.Time         `json:"created_at"`
}

// TableName returns the table name for Transaction.
func (Transaction) TableName() string {
	return "credit_transactions"
}
