package businessflow

import (
	"testing"

	"github.com/pesaops/tillboard/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveTillColumn(t *testing.T) {
	tests := []struct {
		name      string
		sampleRow map[string]any
		override  string
		expected  models.TillColumn
		errCheck  func(error) bool
	}{
		{
			name:      "empty sample row",
			sampleRow: nil,
			errCheck:  IsNoSampleRow,
		},
		{
			name: "preferred name wins",
			sampleRow: map[string]any{
				"id":          int64(1),
				"till_number": "174379",
				"created_at":  "2026-08-01T00:00:00Z",
			},
			expected: "till_number",
		},
		{
			name: "earlier preference beats later",
			sampleRow: map[string]any{
				"till_id":     "174379",
				"short_code":  "174379",
				"till_number": "174379",
			},
			expected: "till_id",
		},
		{
			name: "preference match is case insensitive",
			sampleRow: map[string]any{
				"id":                "1",
				"BusinessShortCode": "174379",
			},
			expected: "BusinessShortCode",
		},
		{
			name: "fuzzy hint when no preferred name matches",
			sampleRow: map[string]any{
				"id":                 int64(1),
				"merchant_till_code": "174379",
				"phone_number":       "0712345678",
			},
			expected: "merchant_till_code",
		},
		{
			name: "no candidate at all",
			sampleRow: map[string]any{
				"id":           int64(1),
				"phone_number": "0712345678",
				"amount":       150.0,
			},
			errCheck: IsTillColumnNotFound,
		},
		{
			name: "override matches case insensitively",
			sampleRow: map[string]any{
				"Till_No": "174379",
				"till_id": "999",
			},
			override: "till_no",
			expected: "Till_No",
		},
		{
			name: "missing override is an error even with candidates present",
			sampleRow: map[string]any{
				"till_id": "174379",
			},
			override: "store_code",
			errCheck: IsTillColumnNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			column, err := ResolveTillColumn(tt.sampleRow, tt.override)
			if tt.errCheck != nil {
				require.Error(t, err)
				assert.True(t, tt.errCheck(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, column)
		})
	}
}

func TestResolveTillColumnDeterministic(t *testing.T) {
	// Two fuzzy candidates and no preferred name. Map iteration order is
	// random, so the resolver must pick through sorted keys.
	sampleRow := map[string]any{
		"b_till_code": "1",
		"a_till_code": "1",
	}
	for i := 0; i < 20; i++ {
		column, err := ResolveTillColumn(sampleRow, "")
		require.NoError(t, err)
		assert.Equal(t, models.TillColumn("a_till_code"), column)
	}
}
