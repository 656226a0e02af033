package businessflow

import (
	"math"

	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/utils"
)

// RecipientStats accumulates per-recipient figures across the matched
// transactions of a segment. Keyed by the international phone form.
type RecipientStats struct {
	PhoneIntl    string
	PhoneLocal   string
	TxCount      int64
	AmountTotal  float64
	StatusCounts map[string]int64
	// LastTxAt holds the chronologically greatest RFC3339 UTC timestamp.
	// RFC3339 UTC strings order lexicographically, so string comparison
	// is sufficient.
	LastTxAt string
	// FirstTx is the first matched transaction in scan order. Scans run
	// newest first, so this is the recipient's most recent transaction.
	FirstTx *models.Transaction
}

// RecipientSet holds deduplicated recipients preserving first-seen order.
type RecipientSet struct {
	ByPhone map[string]*RecipientStats
	Order   []string
}

// aggregateRecipients folds transaction rows into one entry per
// normalized phone. Rows whose phone normalizes to empty contribute to
// no recipient. Unknown status values still count toward TxCount.
func aggregateRecipients(rows []*models.Transaction) *RecipientSet {
	set := &RecipientSet{ByPhone: make(map[string]*RecipientStats)}
	for _, row := range rows {
		intl := utils.NormalizePhoneE164(row.PhoneNumber)
		if intl == "" {
			continue
		}
		stats, ok := set.ByPhone[intl]
		if !ok {
			stats = &RecipientStats{
				PhoneIntl:    intl,
				PhoneLocal:   utils.ToKenyanLocalPhone(intl),
				StatusCounts: make(map[string]int64),
				FirstTx:      row,
			}
			set.ByPhone[intl] = stats
			set.Order = append(set.Order, intl)
		}
		stats.TxCount++
		switch row.Status {
		case models.TransactionStatusSuccess, models.TransactionStatusFailed, models.TransactionStatusPending:
			stats.StatusCounts[row.Status]++
		}
		if !math.IsNaN(row.Amount) && !math.IsInf(row.Amount, 0) {
			stats.AmountTotal += row.Amount
		}
		if iso := row.CreatedAtISO(); iso > stats.LastTxAt {
			stats.LastTxAt = iso
		}
	}
	return set
}

// Phones returns the deduplicated phone list in first-seen order.
func (s *RecipientSet) Phones() []string {
	out := make([]string, len(s.Order))
	copy(out, s.Order)
	return out
}

// Len returns the number of distinct recipients.
func (s *RecipientSet) Len() int {
	return len(s.Order)
}
