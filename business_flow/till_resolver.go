package businessflow

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pesaops/tillboard/models"
)

// tillColumnPreference is checked in order against the sample row's keys.
// The upstream payments pipeline has shipped all of these names at one
// deployment or another.
var tillColumnPreference = []string{
	"till_id",
	"tillid",
	"till_number",
	"tillnumber",
	"till_no",
	"tillno",
	"till",
	"short_code",
	"shortcode",
	"business_short_code",
	"business_shortcode",
	"businessshortcode",
	"paybill",
	"paybill_number",
	"paybillnumber",
}

var tillColumnFuzzyHints = []string{"till", "shortcode", "paybill"}

// ResolveTillColumn discovers which column of the transactions table
// carries the till / short code value. An explicit override wins, then
// the preference list, then a fuzzy substring match. The resolved name
// is only valid for the sample row it was derived from and must not be
// cached across requests.
func ResolveTillColumn(sampleRow map[string]any, override string) (models.TillColumn, error) {
	if len(sampleRow) == 0 {
		return "", ErrNoSampleRow
	}

	keys := make([]string, 0, len(sampleRow))
	for k := range sampleRow {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if override != "" {
		for _, k := range keys {
			if strings.EqualFold(k, override) {
				return models.TillColumn(k), nil
			}
		}
		return "", fmt.Errorf("configured till column %q not present, available columns: %s: %w",
			override, strings.Join(keys, ", "), ErrTillColumnNotFound)
	}

	for _, preferred := range tillColumnPreference {
		for _, k := range keys {
			if strings.EqualFold(k, preferred) {
				return models.TillColumn(k), nil
			}
		}
	}

	for _, k := range keys {
		lower := strings.ToLower(k)
		for _, hint := range tillColumnFuzzyHints {
			if strings.Contains(lower, hint) {
				return models.TillColumn(k), nil
			}
		}
	}

	return "", fmt.Errorf("available columns: %s: %w", strings.Join(keys, ", "), ErrTillColumnNotFound)
}
