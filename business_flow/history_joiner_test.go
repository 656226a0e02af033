package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/pesaops/tillboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func historyMsg(phone string, status models.SMSMessageStatus, createdAt time.Time) *models.SMSMessage {
	return &models.SMSMessage{
		PhoneNormalized: phone,
		Status:          status,
		CreatedAt:       createdAt,
	}
}

func TestLookupHistory(t *testing.T) {
	day := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	inDay := day.Add(10 * time.Hour)
	beforeDay := day.Add(-2 * time.Hour)

	repo := newFakeMessageRepo(
		historyMsg("254712345678", models.SMSMessageStatusDelivered, beforeDay),
		historyMsg("254712345678", models.SMSMessageStatusFailed, inDay),
		historyMsg("254733000002", models.SMSMessageStatusSent, inDay),
	)

	window := &dayWindow{Start: day, End: day.Add(24 * time.Hour)}
	stats, err := lookupHistory(context.Background(), repo, []string{"254712345678", "254733000002", "254700000000"}, window)
	require.NoError(t, err)
	require.Len(t, stats, 3)

	first := stats["254712345678"]
	assert.Equal(t, int64(2), first.Ever.Count)
	assert.Equal(t, int64(1), first.Ever.Delivered)
	assert.Equal(t, int64(1), first.Ever.Failed)
	// The later message wins the last-status slot.
	assert.Equal(t, "failed", first.Ever.LastStatus)
	assert.Equal(t, inDay.Format(time.RFC3339), first.Ever.LastAt)
	// Only the in-window message counts toward the day set.
	assert.Equal(t, int64(1), first.Day.Count)
	assert.Equal(t, int64(1), first.Day.Failed)
	assert.Equal(t, int64(0), first.Day.Delivered)

	second := stats["254733000002"]
	assert.Equal(t, int64(1), second.Ever.Count)
	assert.Equal(t, int64(1), second.Ever.Sent)
	assert.Equal(t, "sent", second.Ever.LastStatus)

	// Unmessaged phones still get a zero-valued entry.
	third := stats["254700000000"]
	require.NotNil(t, third)
	assert.Equal(t, int64(0), third.Ever.Count)
	assert.Equal(t, "", third.Ever.LastStatus)
}

func TestLookupHistoryWithoutWindow(t *testing.T) {
	repo := newFakeMessageRepo(
		historyMsg("254712345678", models.SMSMessageStatusSent, time.Now().UTC()),
	)

	stats, err := lookupHistory(context.Background(), repo, []string{"254712345678"}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats["254712345678"].Ever.Count)
	assert.Equal(t, int64(0), stats["254712345678"].Day.Count)
}

func TestDayWindowContains(t *testing.T) {
	start := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	w := dayWindow{Start: start, End: start.Add(24 * time.Hour)}

	assert.True(t, w.contains(start))
	assert.True(t, w.contains(start.Add(23*time.Hour+59*time.Minute)))
	// Half-open: the end boundary belongs to the next day.
	assert.False(t, w.contains(w.End))
	assert.False(t, w.contains(start.Add(-time.Second)))
}

func TestFoldKeepsLatestStatus(t *testing.T) {
	var c HistoryCounters
	fold(&c, "sent", "2026-08-18T10:00:00Z")
	fold(&c, "delivered", "2026-08-20T10:00:00Z")
	fold(&c, "failed", "2026-08-19T10:00:00Z")

	assert.Equal(t, int64(3), c.Count)
	assert.Equal(t, int64(1), c.Sent)
	assert.Equal(t, int64(1), c.Delivered)
	assert.Equal(t, int64(1), c.Failed)
	assert.Equal(t, "delivered", c.LastStatus)
	assert.Equal(t, "2026-08-20T10:00:00Z", c.LastAt)
}
