package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(v string) *string {
	return &v
}

func TestRecipientsWindow(t *testing.T) {
	t.Run("single date spans one Nairobi day by default", func(t *testing.T) {
		req := &dto.ListRecipientsRequest{TillID: "174379", Date: strPtr("2026-08-20")}
		window, err := recipientsWindow(req)
		require.NoError(t, err)
		// Nairobi is UTC+3, so the local day starts at 21:00 UTC the day before.
		assert.Equal(t, time.Date(2026, 8, 19, 21, 0, 0, 0, time.UTC), window.Start)
		assert.Equal(t, time.Date(2026, 8, 20, 21, 0, 0, 0, time.UTC), window.End)
	})

	t.Run("range spans whole local days", func(t *testing.T) {
		req := &dto.ListRecipientsRequest{
			TillID:      "174379",
			StartDate:   strPtr("2026-08-18"),
			EndDate:     strPtr("2026-08-20"),
			TzOffsetMin: intPtr(0),
		}
		window, err := recipientsWindow(req)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC), window.Start)
		assert.Equal(t, time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC), window.End)
	})

	t.Run("offset clamped to real world bounds", func(t *testing.T) {
		req := &dto.ListRecipientsRequest{
			TillID:      "174379",
			Date:        strPtr("2026-08-20"),
			TzOffsetMin: intPtr(10000),
		}
		window, err := recipientsWindow(req)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 8, 20, 14, 0, 0, 0, time.UTC), window.Start)
	})

	t.Run("missing date rejected", func(t *testing.T) {
		_, err := recipientsWindow(&dto.ListRecipientsRequest{TillID: "174379"})
		require.Error(t, err)
		assert.True(t, IsDateRangeRequired(err))
	})

	t.Run("inverted range rejected", func(t *testing.T) {
		req := &dto.ListRecipientsRequest{
			TillID:    "174379",
			StartDate: strPtr("2026-08-20"),
			EndDate:   strPtr("2026-08-18"),
		}
		_, err := recipientsWindow(req)
		require.Error(t, err)
		assert.True(t, IsStartDateAfterEndDate(err))
	})
}

func TestPreview(t *testing.T) {
	now := time.Now().UTC()
	txRepo := &fakeTransactionRepo{
		sample: sampleWithTillColumn(),
		rows: []*models.Transaction{
			testTx(1, "0711000001", 100, models.TransactionStatusSuccess, now),
			testTx(2, "254711000001", 100, models.TransactionStatusFailed, now.Add(-time.Hour)),
			testTx(3, "0711000002", 250, models.TransactionStatusSuccess, now),
			testTx(4, "garbage", 50, models.TransactionStatusPending, now),
		},
	}
	msgRepo := newFakeMessageRepo(
		historyMsg("254711000001", models.SMSMessageStatusDelivered, now.Add(-48*time.Hour)),
	)

	flow := NewSegmentFlow(txRepo, msgRepo, scanTestConfig())

	resp, err := flow.Preview(context.Background(), &dto.PreviewSegmentRequest{
		SegmentFilterRequest: dto.SegmentFilterRequest{TillID: "174379"},
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(4), resp.TotalTransactions)
	assert.Equal(t, int64(2), resp.Coverage.RecipientsTotal)
	assert.Equal(t, int64(1), resp.Coverage.RecipientsMessaged)
	assert.Equal(t, int64(1), resp.Coverage.RecipientsDelivered)
	assert.Equal(t, int64(1), resp.Coverage.RecipientsNew)

	require.NotNil(t, resp.StatusBreakdown)
	assert.Equal(t, int64(4), resp.StatusBreakdown.Total)
	assert.Equal(t, int64(2), resp.StatusBreakdown.Success)
	assert.Equal(t, int64(1), resp.StatusBreakdown.Failed)
	assert.Equal(t, int64(1), resp.StatusBreakdown.Pending)

	require.NotEmpty(t, resp.AmountCoverage)
	assert.Equal(t, 100.0, resp.AmountCoverage[0].Amount)
	assert.Equal(t, int64(2), resp.AmountCoverage[0].TxCount)
}

func TestPreviewStatusBreakdown(t *testing.T) {
	now := time.Now().UTC()
	newRepo := func() *fakeTransactionRepo {
		return &fakeTransactionRepo{
			sample: sampleWithTillColumn(),
			rows: []*models.Transaction{
				testTx(1, "0711000001", 100, models.TransactionStatusSuccess, now),
				testTx(2, "0711000002", 100, models.TransactionStatusSuccess, now),
				testTx(3, "0711000003", 100, models.TransactionStatusFailed, now),
				testTx(4, "0711000004", 100, models.TransactionStatusPending, now),
			},
		}
	}

	t.Run("counts ignore the segment's status filter", func(t *testing.T) {
		flow := NewSegmentFlow(newRepo(), newFakeMessageRepo(), scanTestConfig())
		resp, err := flow.Preview(context.Background(), &dto.PreviewSegmentRequest{
			SegmentFilterRequest: dto.SegmentFilterRequest{TillID: "174379", Status: strPtr(models.TransactionStatusSuccess)},
		}, nil)
		require.NoError(t, err)

		// The scan itself is status-filtered, the breakdown is not.
		assert.Equal(t, int64(2), resp.TotalTransactions)
		require.NotNil(t, resp.StatusBreakdown)
		assert.Equal(t, int64(4), resp.StatusBreakdown.Total)
		assert.Equal(t, int64(2), resp.StatusBreakdown.Success)
		assert.Equal(t, int64(1), resp.StatusBreakdown.Failed)
		assert.Equal(t, int64(1), resp.StatusBreakdown.Pending)
	})

	t.Run("present on an empty segment", func(t *testing.T) {
		flow := NewSegmentFlow(newRepo(), newFakeMessageRepo(), scanTestConfig())
		resp, err := flow.Preview(context.Background(), &dto.PreviewSegmentRequest{
			SegmentFilterRequest: dto.SegmentFilterRequest{TillID: "174379", Status: strPtr("reversed")},
		}, nil)
		require.NoError(t, err)

		assert.Equal(t, int64(0), resp.TotalTransactions)
		require.NotNil(t, resp.StatusBreakdown)
		assert.Equal(t, int64(4), resp.StatusBreakdown.Total)
	})

	t.Run("returned alongside a scan refusal", func(t *testing.T) {
		repo := &fakeTransactionRepo{sample: sampleWithTillColumn()}
		for i := int64(0); i < 150; i++ {
			repo.rows = append(repo.rows, testTx(i+1, "0711000001", 100, models.TransactionStatusSuccess, now))
		}
		flow := NewSegmentFlow(repo, newFakeMessageRepo(), scanTestConfig())
		resp, err := flow.Preview(context.Background(), &dto.PreviewSegmentRequest{
			SegmentFilterRequest: dto.SegmentFilterRequest{TillID: "174379", MaxScan: intPtr(1)},
		}, nil)
		require.Error(t, err)
		assert.True(t, IsScanTooLarge(err))
		require.NotNil(t, resp)
		require.NotNil(t, resp.StatusBreakdown)
		assert.Equal(t, int64(150), resp.StatusBreakdown.Total)
	})

	t.Run("caller can opt out", func(t *testing.T) {
		repo := newRepo()
		flow := NewSegmentFlow(repo, newFakeMessageRepo(), scanTestConfig())
		off := false
		resp, err := flow.Preview(context.Background(), &dto.PreviewSegmentRequest{
			SegmentFilterRequest:   dto.SegmentFilterRequest{TillID: "174379"},
			IncludeStatusBreakdown: &off,
		}, nil)
		require.NoError(t, err)
		assert.Nil(t, resp.StatusBreakdown)
	})
}

func TestListRecipients(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	txRepo := &fakeTransactionRepo{
		sample: sampleWithTillColumn(),
		rows: []*models.Transaction{
			testTx(1, "0711000001", 100, models.TransactionStatusSuccess, day.Add(10*time.Hour)),
			testTx(2, "0711000001", 200, models.TransactionStatusSuccess, day.Add(8*time.Hour)),
			testTx(3, "0711000002", 300, models.TransactionStatusSuccess, day.Add(12*time.Hour)),
		},
	}
	msgRepo := newFakeMessageRepo(
		historyMsg("254711000001", models.SMSMessageStatusSent, day.Add(11*time.Hour)),
		historyMsg("254711000001", models.SMSMessageStatusDelivered, day.Add(-72*time.Hour)),
	)

	flow := NewSegmentFlow(txRepo, msgRepo, scanTestConfig())

	resp, err := flow.ListRecipients(context.Background(), &dto.ListRecipientsRequest{
		TillID:      "174379",
		Date:        strPtr("2026-08-20"),
		TzOffsetMin: intPtr(0),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(2), resp.Total)
	assert.Equal(t, int64(3), resp.TotalTransactions)
	require.Len(t, resp.Recipients, 2)

	// Ordered by most recent transaction first.
	first := resp.Recipients[0]
	assert.Equal(t, "254711000002", first.PhoneIntl)
	assert.Equal(t, "0711000002", first.PhoneLocal)
	assert.Equal(t, int64(0), first.SmsEver.Count)

	second := resp.Recipients[1]
	assert.Equal(t, "254711000001", second.PhoneIntl)
	assert.Equal(t, int64(2), second.TxCount)
	assert.Equal(t, 300.0, second.AmountTotal)
	assert.Equal(t, int64(2), second.SmsEver.Count)
	assert.Equal(t, int64(1), second.SmsEver.Delivered)
	// Only the same-day send counts toward the day set.
	assert.Equal(t, int64(1), second.SmsDay.Count)
	assert.Equal(t, int64(1), second.SmsDay.Sent)
	assert.Equal(t, "sent", second.SmsDay.LastStatus)
}
