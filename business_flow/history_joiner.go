package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/pesaops/tillboard/repository"
	"github.com/pesaops/tillboard/utils"
)

// HistoryCounters summarizes message outcomes for one recipient over a
// window (all time or a single day).
type HistoryCounters struct {
	Count      int64
	Delivered  int64
	Sent       int64
	Failed     int64
	LastStatus string
	LastAt     string
}

// HistoryStats holds the all-time and same-day counter sets.
type HistoryStats struct {
	Ever HistoryCounters
	Day  HistoryCounters
}

// dayWindow is a half-open [Start, End) interval in UTC.
type dayWindow struct {
	Start time.Time
	End   time.Time
}

func (w dayWindow) contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// lookupHistory fetches message history for a set of normalized phones
// and folds it into per-phone counters. Every requested phone gets an
// entry, zero-valued when no history exists. Lookups run in chunks to
// stay under the store's IN-list ceiling.
func lookupHistory(ctx context.Context, repo repository.SMSMessageRepository, phones []string, window *dayWindow) (map[string]*HistoryStats, error) {
	out := make(map[string]*HistoryStats, len(phones))
	for _, p := range phones {
		out[p] = &HistoryStats{}
	}

	for start := 0; start < len(phones); start += utils.HistoryChunkSize {
		end := start + utils.HistoryChunkSize
		if end > len(phones) {
			end = len(phones)
		}
		rows, err := repo.ListByPhones(ctx, phones[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to look up sms history: %w", err)
		}
		for _, msg := range rows {
			stats, ok := out[msg.PhoneNormalized]
			if !ok {
				continue
			}
			at := msg.CreatedAtISO()
			status := string(msg.Status)
			fold(&stats.Ever, status, at)
			if window != nil && window.contains(msg.CreatedAt.UTC()) {
				fold(&stats.Day, status, at)
			}
		}
	}
	return out, nil
}

func fold(c *HistoryCounters, status, at string) {
	c.Count++
	switch status {
	case "delivered":
		c.Delivered++
	case "sent":
		c.Sent++
	case "failed":
		c.Failed++
	}
	if at > c.LastAt {
		c.LastAt = at
		c.LastStatus = status
	}
}
