package businessflow

import (
	"context"
	"testing"
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/config"
	"github.com/pesaops/tillboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransactionRepo serves canned rows and counts how often each
// method is hit.
type fakeTransactionRepo struct {
	rows       []*models.Transaction
	sample     map[string]any
	tillValues []*string
	countHits  int
	pageHits   int
}

func (f *fakeTransactionRepo) SampleRow(ctx context.Context) (map[string]any, error) {
	return f.sample, nil
}

func (f *fakeTransactionRepo) ByID(ctx context.Context, id int64) (*models.Transaction, error) {
	for _, row := range f.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return nil, nil
}

func (f *fakeTransactionRepo) matching(filter models.TransactionFilter) []*models.Transaction {
	if filter.Status == nil {
		return f.rows
	}
	var out []*models.Transaction
	for _, row := range f.rows {
		if row.Status == *filter.Status {
			out = append(out, row)
		}
	}
	return out
}

func (f *fakeTransactionRepo) Count(ctx context.Context, filter models.TransactionFilter) (int64, error) {
	f.countHits++
	return int64(len(f.matching(filter))), nil
}

func (f *fakeTransactionRepo) Page(ctx context.Context, filter models.TransactionFilter, limit, offset int) ([]*models.Transaction, error) {
	f.pageHits++
	rows := f.matching(filter)
	if offset >= len(rows) {
		return nil, nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end], nil
}

func (f *fakeTransactionRepo) StatusCount(ctx context.Context, filter models.TransactionFilter, status string) (int64, error) {
	filter.Status = &status
	return int64(len(f.matching(filter))), nil
}

func (f *fakeTransactionRepo) TillValues(ctx context.Context, column models.TillColumn, limit, offset int) ([]*string, error) {
	if offset >= len(f.tillValues) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.tillValues) {
		end = len(f.tillValues)
	}
	return f.tillValues[offset:end], nil
}

func testTx(id int64, phone string, amount float64, status string, createdAt time.Time) *models.Transaction {
	return &models.Transaction{
		ID:          id,
		PhoneNumber: phone,
		Amount:      amount,
		Status:      status,
		CreatedAt:   createdAt,
	}
}

func scanTestConfig() config.ScanConfig {
	return config.ScanConfig{
		DefaultMaxScan: 10000,
		HardMaxScan:    50000,
		PageSize:       1000,
	}
}

func TestClampMaxScan(t *testing.T) {
	cfg := scanTestConfig()

	tests := []struct {
		name      string
		requested *int
		expected  int64
	}{
		{"nil uses default", nil, 10000},
		{"explicit value kept", intPtr(2500), 2500},
		{"above hard limit clamped", intPtr(80000), 50000},
		{"below floor raised", intPtr(10), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, clampMaxScan(tt.requested, cfg))
		})
	}
}

func TestBuildSegmentFilter(t *testing.T) {
	t.Run("end date is inclusive at day granularity", func(t *testing.T) {
		start := "2026-08-01"
		end := "2026-08-03"
		req := dto.SegmentFilterRequest{TillID: "174379", StartDate: &start, EndDate: &end}

		filter, err := buildSegmentFilter(req, "till_number")
		require.NoError(t, err)

		require.NotNil(t, filter.CreatedAfter)
		assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), *filter.CreatedAfter)

		require.NotNil(t, filter.CreatedThrough)
		lastInstant := time.Date(2026, 8, 4, 0, 0, 0, 0, time.UTC).Add(-time.Nanosecond)
		assert.Equal(t, lastInstant, *filter.CreatedThrough)
	})

	t.Run("start after end rejected", func(t *testing.T) {
		start := "2026-08-10"
		end := "2026-08-03"
		req := dto.SegmentFilterRequest{TillID: "174379", StartDate: &start, EndDate: &end}

		_, err := buildSegmentFilter(req, "till_number")
		require.Error(t, err)
		assert.True(t, IsStartDateAfterEndDate(err))
	})

	t.Run("till value travels with the resolved column", func(t *testing.T) {
		req := dto.SegmentFilterRequest{TillID: "174379"}
		filter, err := buildSegmentFilter(req, "short_code")
		require.NoError(t, err)
		assert.Equal(t, models.TillColumn("short_code"), filter.TillColumn)
		require.NotNil(t, filter.TillValue)
		assert.Equal(t, "174379", *filter.TillValue)
	})

	t.Run("malformed date rejected", func(t *testing.T) {
		bad := "01/08/2026"
		req := dto.SegmentFilterRequest{TillID: "174379", StartDate: &bad}
		_, err := buildSegmentFilter(req, "till_number")
		require.Error(t, err)
	})
}

func TestScanSegment(t *testing.T) {
	now := time.Now().UTC()

	t.Run("reads every page when under the ceiling", func(t *testing.T) {
		repo := &fakeTransactionRepo{}
		for i := int64(0); i < 250; i++ {
			repo.rows = append(repo.rows, testTx(i+1, "0712345678", 100, models.TransactionStatusSuccess, now))
		}

		rows, total, err := scanSegment(context.Background(), repo, models.TransactionFilter{}, 1000, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(250), total)
		assert.Len(t, rows, 250)
		assert.Equal(t, 1, repo.countHits)
		assert.Equal(t, 3, repo.pageHits)
	})

	t.Run("oversized segment costs zero page reads", func(t *testing.T) {
		repo := &fakeTransactionRepo{}
		for i := int64(0); i < 50; i++ {
			repo.rows = append(repo.rows, testTx(i+1, "0712345678", 100, models.TransactionStatusSuccess, now))
		}

		_, total, err := scanSegment(context.Background(), repo, models.TransactionFilter{}, 10, 100)
		require.Error(t, err)
		assert.True(t, IsScanTooLarge(err))
		assert.Equal(t, int64(50), total)
		assert.Equal(t, 0, repo.pageHits)

		var bizErr *BusinessError
		require.ErrorAs(t, err, &bizErr)
		assert.Equal(t, "SCAN_TOO_LARGE", bizErr.Code)
	})

	t.Run("empty segment returns no rows and no error", func(t *testing.T) {
		repo := &fakeTransactionRepo{}
		rows, total, err := scanSegment(context.Background(), repo, models.TransactionFilter{}, 1000, 100)
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, rows)
		assert.Equal(t, 0, repo.pageHits)
	})
}

func intPtr(v int) *int {
	return &v
}
