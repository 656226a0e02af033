package dto

// SegmentFilterRequest represents the transaction filter that defines a segment
type SegmentFilterRequest struct {
	TillID    string   `json:"till_id" validate:"required,max=100"`
	Status    *string  `json:"status,omitempty" validate:"omitempty,max=50"`
	StartDate *string  `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string  `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Amount    *float64 `json:"amount,omitempty"`
	Search    *string  `json:"search,omitempty" validate:"omitempty,max=255"`
	MaxScan   *int     `json:"max_scan,omitempty" validate:"omitempty,min=1"`
}

// PreviewSegmentRequest represents the request for a segment coverage preview
type PreviewSegmentRequest struct {
	SegmentFilterRequest
	// IncludeStatusBreakdown defaults to true; the breakdown is skipped
	// only when the caller explicitly opts out.
	IncludeStatusBreakdown *bool `json:"include_status_breakdown,omitempty"`
}

// PreviewSegmentResponse represents segment coverage statistics
type PreviewSegmentResponse struct {
	TotalTransactions int64               `json:"total_transactions"`
	Coverage          CoverageDTO         `json:"coverage"`
	StatusBreakdown   *StatusBreakdownDTO `json:"status_breakdown,omitempty"`
	AmountCoverage    []AmountCoverage    `json:"amount_coverage"`
}

// StatusBreakdownDTO counts segment transactions by status, ignoring the
// segment's own status filter.
type StatusBreakdownDTO struct {
	Total   int64 `json:"total"`
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
	Pending int64 `json:"pending"`
}

// CoverageDTO represents aggregate recipient coverage for a segment
type CoverageDTO struct {
	RecipientsTotal      int64 `json:"recipients_total"`
	RecipientsMessaged   int64 `json:"recipients_messaged"`
	RecipientsNew        int64 `json:"recipients_new"`
	RecipientsDelivered  int64 `json:"recipients_delivered"`
	RecipientsFailedOnly int64 `json:"recipients_failed_only"`
	RecipientsSentOnly   int64 `json:"recipients_sent_only"`
}

// AmountCoverage represents coverage statistics for one unique amount
type AmountCoverage struct {
	Amount             float64 `json:"amount"`
	TxCount            int64   `json:"tx_count"`
	RecipientsTotal    int64   `json:"recipients_total"`
	RecipientsNew      int64   `json:"recipients_new"`
	RecipientsMessaged int64   `json:"recipients_messaged"`
}

// ListRecipientsRequest represents the request for a per-recipient day report
type ListRecipientsRequest struct {
	TillID      string  `json:"-" query:"till_id" validate:"required,max=100"`
	Status      *string `json:"-" query:"status" validate:"omitempty,max=50"`
	Date        *string `json:"-" query:"date" validate:"omitempty,datetime=2006-01-02"`
	StartDate   *string `json:"-" query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate     *string `json:"-" query:"end_date" validate:"omitempty,datetime=2006-01-02"`
	TzOffsetMin *int    `json:"-" query:"tz_offset_min"`
	Page        int     `json:"-" query:"page" validate:"omitempty,min=1"`
	Limit       int     `json:"-" query:"limit" validate:"omitempty,min=1"`
	MaxScan     *int    `json:"-" query:"max_scan" validate:"omitempty,min=1"`
}

// ListRecipientsResponse represents the per-recipient day report
type ListRecipientsResponse struct {
	Recipients        []RecipientDTO `json:"recipients"`
	Total             int64          `json:"total"`
	Page              int            `json:"page"`
	Limit             int            `json:"limit"`
	TotalTransactions int64          `json:"total_transactions"`
}

// RecipientDTO represents one deduplicated recipient with transaction and SMS history
type RecipientDTO struct {
	PhoneLocal   string              `json:"phone_local"`
	PhoneIntl    string              `json:"phone_intl"`
	TxCount      int64               `json:"tx_count"`
	AmountTotal  float64             `json:"amount_total"`
	StatusCounts map[string]int64    `json:"status_counts"`
	LastTxAt     string              `json:"last_tx_at"`
	SmsEver      RecipientHistoryDTO `json:"sms_ever"`
	SmsDay       RecipientHistoryDTO `json:"sms_day"`
}

// RecipientHistoryDTO represents historical SMS outcomes for one recipient
type RecipientHistoryDTO struct {
	Count      int64  `json:"count"`
	Delivered  int64  `json:"delivered"`
	Sent       int64  `json:"sent"`
	Failed     int64  `json:"failed"`
	LastStatus string `json:"last_status,omitempty"`
	LastAt     string `json:"last_at,omitempty"`
}
