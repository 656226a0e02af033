package businessflow

import (
	"math"
	"testing"
	"time"

	"github.com/pesaops/tillboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateRecipients(t *testing.T) {
	newer := time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC)
	older := time.Date(2026, 8, 18, 9, 30, 0, 0, time.UTC)

	t.Run("local and international forms collapse to one recipient", func(t *testing.T) {
		rows := []*models.Transaction{
			testTx(1, "0712345678", 150, models.TransactionStatusSuccess, newer),
			testTx(2, "254712345678", 200, models.TransactionStatusFailed, older),
		}

		set := aggregateRecipients(rows)
		require.Equal(t, 1, set.Len())

		stats := set.ByPhone["254712345678"]
		require.NotNil(t, stats)
		assert.Equal(t, "254712345678", stats.PhoneIntl)
		assert.Equal(t, "0712345678", stats.PhoneLocal)
		assert.Equal(t, int64(2), stats.TxCount)
		assert.Equal(t, 350.0, stats.AmountTotal)
		assert.Equal(t, int64(1), stats.StatusCounts[models.TransactionStatusSuccess])
		assert.Equal(t, int64(1), stats.StatusCounts[models.TransactionStatusFailed])
	})

	t.Run("first seen row is kept and last timestamp is the greatest", func(t *testing.T) {
		rows := []*models.Transaction{
			testTx(10, "0712345678", 100, models.TransactionStatusSuccess, newer),
			testTx(11, "0712345678", 100, models.TransactionStatusSuccess, older),
		}

		set := aggregateRecipients(rows)
		stats := set.ByPhone["254712345678"]
		require.NotNil(t, stats)

		// Scans run newest first, so the first seen row is the latest one.
		assert.Equal(t, int64(10), stats.FirstTx.ID)
		assert.Equal(t, newer.Format(time.RFC3339), stats.LastTxAt)
	})

	t.Run("rows without digits contribute nothing", func(t *testing.T) {
		rows := []*models.Transaction{
			testTx(1, "n/a", 100, models.TransactionStatusSuccess, newer),
			testTx(2, "", 100, models.TransactionStatusSuccess, newer),
			testTx(3, "0712345678", 100, models.TransactionStatusSuccess, newer),
		}

		set := aggregateRecipients(rows)
		assert.Equal(t, 1, set.Len())
	})

	t.Run("unknown status still counts toward tx count", func(t *testing.T) {
		rows := []*models.Transaction{
			testTx(1, "0712345678", 100, "reversed", newer),
			testTx(2, "0712345678", 100, models.TransactionStatusSuccess, newer),
		}

		set := aggregateRecipients(rows)
		stats := set.ByPhone["254712345678"]
		require.NotNil(t, stats)
		assert.Equal(t, int64(2), stats.TxCount)
		assert.Equal(t, int64(1), stats.StatusCounts[models.TransactionStatusSuccess])
		assert.NotContains(t, stats.StatusCounts, "reversed")
	})

	t.Run("non finite amounts are excluded from the total", func(t *testing.T) {
		rows := []*models.Transaction{
			testTx(1, "0712345678", math.NaN(), models.TransactionStatusSuccess, newer),
			testTx(2, "0712345678", math.Inf(1), models.TransactionStatusSuccess, newer),
			testTx(3, "0712345678", 250, models.TransactionStatusSuccess, newer),
		}

		set := aggregateRecipients(rows)
		stats := set.ByPhone["254712345678"]
		require.NotNil(t, stats)
		assert.Equal(t, 250.0, stats.AmountTotal)
		assert.Equal(t, int64(3), stats.TxCount)
	})

	t.Run("phones preserve first seen order", func(t *testing.T) {
		rows := []*models.Transaction{
			testTx(1, "0722000001", 100, models.TransactionStatusSuccess, newer),
			testTx(2, "0733000002", 100, models.TransactionStatusSuccess, newer),
			testTx(3, "0722000001", 100, models.TransactionStatusSuccess, older),
			testTx(4, "0711000003", 100, models.TransactionStatusSuccess, older),
		}

		set := aggregateRecipients(rows)
		assert.Equal(t, []string{"254722000001", "254733000002", "254711000003"}, set.Phones())
	})
}
