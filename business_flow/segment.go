package businessflow

import (
	"context"
	"fmt"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/repository"
)

// clampMaxScan bounds a requested scan ceiling to the configured limits.
// A nil request falls back to the configured default.
func clampMaxScan(requested *int, cfg config.ScanConfig) int64 {
	max := cfg.DefaultMaxScan
	if requested != nil {
		max = *requested
	}
	if max > cfg.HardMaxScan {
		max = cfg.HardMaxScan
	}
	if max < 100 {
		max = 100
	}
	return int64(max)
}

// dateFloor parses a YYYY-MM-DD date as midnight UTC.
func dateFloor(date string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t.UTC(), nil
}

// buildSegmentFilter converts a segment request into a repository filter.
// EndDate is inclusive at day granularity.
func buildSegmentFilter(req dto.SegmentFilterRequest, column models.TillColumn) (models.TransactionFilter, error) {
	filter := models.TransactionFilter{
		TillColumn: column,
		TillValue:  &req.TillID,
		Status:     req.Status,
		Amount:     req.Amount,
		Search:     req.Search,
	}
	if req.StartDate != nil && req.EndDate != nil && *req.StartDate > *req.EndDate {
		return models.TransactionFilter{}, ErrStartDateAfterEndDate
	}
	if req.StartDate != nil {
		start, err := dateFloor(*req.StartDate)
		if err != nil {
			return models.TransactionFilter{}, err
		}
		filter.CreatedAfter = &start
	}
	if req.EndDate != nil {
		end, err := dateFloor(*req.EndDate)
		if err != nil {
			return models.TransactionFilter{}, err
		}
		through := end.Add(24*time.Hour - time.Nanosecond)
		filter.CreatedThrough = &through
	}
	return filter, nil
}

// scanSegment reads every transaction matching the filter, newest first.
// It counts before reading and refuses the scan outright when the match
// count exceeds maxScan, so an oversized segment costs zero page reads.
func scanSegment(ctx context.Context, repo repository.TransactionRepository, filter models.TransactionFilter, maxScan int64, pageSize int) ([]*models.Transaction, int64, error) {
	total, err := repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count segment: %w", err)
	}
	if total == 0 {
		return nil, 0, nil
	}
	if total > maxScan {
		return nil, total, NewBusinessErrorf("SCAN_TOO_LARGE",
			"Segment matches %d transactions, limit is %d", ErrScanTooLarge, total, maxScan)
	}

	rows := make([]*models.Transaction, 0, total)
	for offset := int64(0); offset < total; offset += int64(pageSize) {
		page, err := repo.Page(ctx, filter, pageSize, int(offset))
		if err != nil {
			return nil, total, fmt.Errorf("failed to read segment page at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		rows = append(rows, page...)
	}
	return rows, total, nil
}
