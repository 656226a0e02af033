package businessflow

import (
	"math"
	"sort"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/utils"
)

// amountCoverageLimit bounds how many per-amount buckets a preview
// response carries.
const amountCoverageLimit = 100

// computeCoverage classifies each recipient against its SMS history.
// FailedOnly and SentOnly are independent worst-case flags, not a
// partition: a recipient with both a failed and an undelivered sent
// message counts in both.
func computeCoverage(recipients *RecipientSet, history map[string]*HistoryStats) dto.CoverageDTO {
	var cov dto.CoverageDTO
	cov.RecipientsTotal = int64(recipients.Len())
	for _, phone := range recipients.Order {
		stats, ok := history[phone]
		if !ok || stats.Ever.Count == 0 {
			continue
		}
		cov.RecipientsMessaged++
		if stats.Ever.Delivered > 0 {
			cov.RecipientsDelivered++
			continue
		}
		if stats.Ever.Failed > 0 {
			cov.RecipientsFailedOnly++
		}
		if stats.Ever.Sent > 0 {
			cov.RecipientsSentOnly++
		}
	}
	cov.RecipientsNew = cov.RecipientsTotal - cov.RecipientsMessaged
	return cov
}

// computeAmountCoverage groups recipients by the transaction amounts
// that produced them. A recipient transacting at several price points
// appears under each amount independently; within one amount a
// recipient is counted once no matter how many rows match. Buckets are
// sorted by tx_count descending and truncated for display.
func computeAmountCoverage(rows []*models.Transaction, history map[string]*HistoryStats) []dto.AmountCoverage {
	type bucket struct {
		txCount int64
		phones  map[string]bool
	}
	buckets := make(map[float64]*bucket)

	for _, row := range rows {
		if math.IsNaN(row.Amount) || math.IsInf(row.Amount, 0) {
			continue
		}
		intl := utils.NormalizePhoneE164(row.PhoneNumber)
		if intl == "" {
			continue
		}
		b, ok := buckets[row.Amount]
		if !ok {
			b = &bucket{phones: make(map[string]bool)}
			buckets[row.Amount] = b
		}
		b.txCount++
		b.phones[intl] = true
	}

	out := make([]dto.AmountCoverage, 0, len(buckets))
	for amount, b := range buckets {
		entry := dto.AmountCoverage{
			Amount:          amount,
			TxCount:         b.txCount,
			RecipientsTotal: int64(len(b.phones)),
		}
		for phone := range b.phones {
			if stats, ok := history[phone]; ok && stats.Ever.Count > 0 {
				entry.RecipientsMessaged++
			}
		}
		entry.RecipientsNew = entry.RecipientsTotal - entry.RecipientsMessaged
		out = append(out, entry)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].TxCount != out[j].TxCount {
			return out[i].TxCount > out[j].TxCount
		}
		return out[i].Amount < out[j].Amount
	})
	if len(out) > amountCoverageLimit {
		out = out[:amountCoverageLimit]
	}
	return out
}
