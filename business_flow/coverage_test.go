package businessflow

import (
	"math"
	"testing"
	"time"

	"github.com/pesaops/tillboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyWith(ever HistoryCounters) *HistoryStats {
	return &HistoryStats{Ever: ever}
}

func TestComputeCoverage(t *testing.T) {
	now := time.Now().UTC()
	recipients := aggregateRecipients([]*models.Transaction{
		testTx(1, "0711000001", 100, models.TransactionStatusSuccess, now),
		testTx(2, "0711000002", 100, models.TransactionStatusSuccess, now),
		testTx(3, "0711000003", 100, models.TransactionStatusSuccess, now),
		testTx(4, "0711000004", 100, models.TransactionStatusSuccess, now),
		testTx(5, "0711000005", 100, models.TransactionStatusSuccess, now),
	})

	history := map[string]*HistoryStats{
		// Delivered short-circuits the worst-case flags.
		"254711000001": historyWith(HistoryCounters{Count: 3, Delivered: 1, Failed: 1, Sent: 1}),
		// Failed and undelivered sent set both flags independently.
		"254711000002": historyWith(HistoryCounters{Count: 2, Failed: 1, Sent: 1}),
		"254711000003": historyWith(HistoryCounters{Count: 1, Failed: 1}),
		// Zero-count history entry does not count as messaged.
		"254711000004": historyWith(HistoryCounters{}),
	}

	cov := computeCoverage(recipients, history)
	assert.Equal(t, int64(5), cov.RecipientsTotal)
	assert.Equal(t, int64(3), cov.RecipientsMessaged)
	assert.Equal(t, int64(2), cov.RecipientsNew)
	assert.Equal(t, int64(1), cov.RecipientsDelivered)
	assert.Equal(t, int64(2), cov.RecipientsFailedOnly)
	assert.Equal(t, int64(1), cov.RecipientsSentOnly)
}

func TestComputeAmountCoverage(t *testing.T) {
	now := time.Now().UTC()
	rows := []*models.Transaction{
		// Amount 100: three rows, two distinct phones, one messaged.
		testTx(1, "0711000001", 100, models.TransactionStatusSuccess, now),
		testTx(2, "0711000001", 100, models.TransactionStatusSuccess, now),
		testTx(3, "0711000002", 100, models.TransactionStatusSuccess, now),
		// Amount 250: one row.
		testTx(4, "0711000003", 250, models.TransactionStatusSuccess, now),
		// Amount 50: one row, ties 250 on tx count but sorts first by amount.
		testTx(5, "0711000001", 50, models.TransactionStatusSuccess, now),
	}

	history := map[string]*HistoryStats{
		"254711000001": historyWith(HistoryCounters{Count: 1, Sent: 1}),
	}

	buckets := computeAmountCoverage(rows, history)
	require.Len(t, buckets, 3)

	assert.Equal(t, 100.0, buckets[0].Amount)
	assert.Equal(t, int64(3), buckets[0].TxCount)
	assert.Equal(t, int64(2), buckets[0].RecipientsTotal)
	assert.Equal(t, int64(1), buckets[0].RecipientsMessaged)
	assert.Equal(t, int64(1), buckets[0].RecipientsNew)

	// Equal tx counts order by amount ascending.
	assert.Equal(t, 50.0, buckets[1].Amount)
	assert.Equal(t, 250.0, buckets[2].Amount)
}

func TestComputeAmountCoverageSkipsNonFiniteAmounts(t *testing.T) {
	now := time.Now().UTC()
	rows := []*models.Transaction{
		testTx(1, "0711000001", 100, models.TransactionStatusSuccess, now),
		testTx(2, "0711000002", math.NaN(), models.TransactionStatusSuccess, now),
		testTx(3, "0711000003", math.Inf(1), models.TransactionStatusSuccess, now),
		testTx(4, "0711000004", math.Inf(-1), models.TransactionStatusSuccess, now),
	}

	buckets := computeAmountCoverage(rows, nil)
	require.Len(t, buckets, 1)
	assert.Equal(t, 100.0, buckets[0].Amount)
	assert.Equal(t, int64(1), buckets[0].TxCount)
}

func TestComputeAmountCoverageTruncates(t *testing.T) {
	now := time.Now().UTC()
	var rows []*models.Transaction
	for i := 0; i < amountCoverageLimit+20; i++ {
		rows = append(rows, testTx(int64(i+1), "0711000001", float64(i+1), models.TransactionStatusSuccess, now))
	}

	buckets := computeAmountCoverage(rows, nil)
	assert.Len(t, buckets, amountCoverageLimit)
}
