package models

import (
	"fmt"
	"time"
)

// TillColumn is the validated name of the transactions column that holds
// the till / short code value. The upstream table is not under our
// control, so the column is discovered at runtime and addressed
// dynamically.
type TillColumn string

// String returns the raw column name
func (c TillColumn) String() string {
	return string(c)
}

// Valid reports whether the column name is a safe SQL identifier
func (c TillColumn) Valid() bool {
	if len(c) == 0 || len(c) > 63 {
		return false
	}
	for i, r := range string(c) {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// Quoted returns the column name as a quoted SQL identifier
func (c TillColumn) Quoted() string {
	return fmt.Sprintf("%q", string(c))
}

// Transaction represents a row of the upstream mobile-money transactions
// table. The table is written by the payments pipeline, never by this
// service; the till column is intentionally absent from the struct and is
// addressed through TillColumn instead.
type Transaction struct {
	ID          int64     `gorm:"primaryKey;column:id" json:"id"`
	PhoneNumber string    `gorm:"column:phone_number" json:"phone_number"`
	Amount      float64   `gorm:"column:amount" json:"amount"`
	Status      string    `gorm:"column:status" json:"status"`
	Reference   *string   `gorm:"column:reference" json:"reference,omitempty"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName returns the table name for the model
func (Transaction) TableName() string {
	return "transactions"
}

// CreatedAtISO returns the row timestamp as an RFC3339 UTC string. The
// aggregation layer compares these strings lexicographically, which for
// RFC3339 UTC matches chronological order.
func (t *Transaction) CreatedAtISO() string {
	return t.CreatedAt.UTC().Format(time.RFC3339)
}

// IsSuccess reports whether the transaction completed
func (t *Transaction) IsSuccess() bool {
	return t.Status == TransactionStatusSuccess
}

// Transaction status constants as written by the payments pipeline
const (
	TransactionStatusSuccess = "success"
	TransactionStatusFailed  = "failed"
	TransactionStatusPending = "pending"
)

// TransactionFilter represents filter criteria for transaction queries.
// TillColumn and TillValue travel together; TillValue is ignored when the
// column is empty.
type TransactionFilter struct {
	TillColumn     TillColumn
	TillValue      *string
	Status         *string
	Amount         *float64
	Search         *string
	CreatedAfter   *time.Time
	CreatedBefore  *time.Time // exclusive upper bound
	CreatedThrough *time.Time // inclusive upper bound
}
