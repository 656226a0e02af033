package dto

// CreateCampaignRequest represents the request to create a new SMS campaign
type CreateCampaignRequest struct {
	CreatedBy string               `json:"-"`
	Name      *string              `json:"name,omitempty" validate:"omitempty,max=255"`
	SenderID  *string              `json:"sender_id,omitempty" validate:"omitempty,max=50"`
	Message   string               `json:"message" validate:"required,max=1000"`
	Segment   SegmentFilterRequest `json:"segment" validate:"required"`
}

// CreateCampaignResponse represents the response to create a new SMS campaign
type CreateCampaignResponse struct {
	Campaign   CampaignDTO `json:"campaign"`
	Recipients int64       `json:"recipients"`
}

// ListCampaignsRequest represents the request to list campaigns
type ListCampaignsRequest struct {
	Status   *string `json:"-" query:"status" validate:"omitempty,oneof=draft sending sent failed"`
	Page     int     `json:"-" query:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"-" query:"page_size" validate:"omitempty,min=1,max=100"`
}

// ListCampaignsResponse represents the paginated campaign listing
type ListCampaignsResponse struct {
	Campaigns []CampaignDTO `json:"campaigns"`
	Total     int64         `json:"total"`
	Page      int           `json:"page"`
	PageSize  int           `json:"page_size"`
}

// GetCampaignRequest represents the request to fetch an existing campaign
type GetCampaignRequest struct {
	UUID string `json:"-" validate:"required,uuid4"`
}

// CampaignDTO represents one campaign in responses
type CampaignDTO struct {
	ID             uint       `json:"id"`
	UUID           string     `json:"uuid"`
	CreatedBy      string     `json:"created_by"`
	Name           string     `json:"name"`
	SenderID       string     `json:"sender_id"`
	Message        string     `json:"message"`
	Status         string     `json:"status"`
	Segment        SegmentDTO `json:"segment"`
	TargetCount    int64      `json:"target_count"`
	SentCount      int64      `json:"sent_count"`
	DeliveredCount int64      `json:"delivered_count"`
	FailedCount    int64      `json:"failed_count"`
	LastDispatchAt *string    `json:"last_dispatch_at,omitempty"`
	LastRefreshAt  *string    `json:"last_refresh_at,omitempty"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
}

// SegmentDTO represents the stored segment descriptor of a campaign
type SegmentDTO struct {
	TillID            *string  `json:"till_id,omitempty"`
	Status            *string  `json:"status,omitempty"`
	StartDate         *string  `json:"start_date,omitempty"`
	EndDate           *string  `json:"end_date,omitempty"`
	Amount            *float64 `json:"amount,omitempty"`
	Search            *string  `json:"search,omitempty"`
	TotalTransactions int64    `json:"total_transactions"`
}

// ListCampaignMessagesRequest represents the request to list a campaign's messages
type ListCampaignMessagesRequest struct {
	UUID     string  `json:"-" validate:"required,uuid4"`
	Status   *string `json:"-" query:"status" validate:"omitempty,oneof=queued sent delivered failed"`
	Page     int     `json:"-" query:"page" validate:"omitempty,min=1"`
	PageSize int     `json:"-" query:"page_size" validate:"omitempty,min=1,max=500"`
}

// ListCampaignMessagesResponse represents the paginated message listing
type ListCampaignMessagesResponse struct {
	Messages []CampaignMessageDTO `json:"messages"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// CampaignMessageDTO represents one campaign message in responses
type CampaignMessageDTO struct {
	ID                 uint     `json:"id"`
	PhoneLocal         string   `json:"phone_local"`
	PhoneNormalized    string   `json:"phone_normalized"`
	TransactionID      *int64   `json:"transaction_id,omitempty"`
	TransactionStatus  *string  `json:"transaction_status,omitempty"`
	Amount             *float64 `json:"amount,omitempty"`
	Status             string   `json:"status"`
	ProviderMessageID  *string  `json:"provider_message_id,omitempty"`
	DeliveryCode       *int     `json:"delivery_code,omitempty"`
	DeliveryStatusText *string  `json:"delivery_status_text,omitempty"`
	LastCheckedAt      *string  `json:"last_checked_at,omitempty"`
	CreatedAt          string   `json:"created_at"`
}

// ListMessagesRequest represents the request to list messages across all campaigns
type ListMessagesRequest struct {
	Status       *string `json:"-" query:"status" validate:"omitempty,oneof=queued sent delivered failed"`
	CampaignUUID *string `json:"-" query:"campaign_id" validate:"omitempty,uuid4"`
	Search       *string `json:"-" query:"search" validate:"omitempty,max=255"`
	Page         int     `json:"-" query:"page" validate:"omitempty,min=1"`
	PageSize     int     `json:"-" query:"page_size" validate:"omitempty,min=1,max=200"`
}

// ListMessagesResponse represents the cross-campaign message listing.
// Campaigns carries the referenced campaigns keyed by UUID so the
// caller can render names without a second round trip.
type ListMessagesResponse struct {
	Messages  []MessageWithCampaignDTO      `json:"messages"`
	Campaigns map[string]MessageCampaignDTO `json:"campaigns"`
	Total     int64                         `json:"total"`
	Page      int                           `json:"page"`
	PageSize  int                           `json:"page_size"`
}

// MessageWithCampaignDTO is a campaign message plus the UUID of the
// campaign it belongs to
type MessageWithCampaignDTO struct {
	CampaignMessageDTO
	CampaignUUID string `json:"campaign_uuid"`
}

// MessageCampaignDTO is the campaign summary attached to a message listing
type MessageCampaignDTO struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// DispatchCampaignRequest represents the request to dispatch queued messages
type DispatchCampaignRequest struct {
	UUID          string `json:"-" validate:"required,uuid4"`
	MaxRecipients *int   `json:"max_recipients,omitempty" validate:"omitempty,min=1"`
}

// DispatchCampaignResponse represents the outcome of a dispatch
type DispatchCampaignResponse struct {
	Campaign  CampaignDTO `json:"campaign"`
	Attempted int64       `json:"attempted"`
	Sent      int64       `json:"sent"`
	Failed    int64       `json:"failed"`
}

// RefreshCampaignRequest represents the request to poll delivery status
type RefreshCampaignRequest struct {
	UUID  string `json:"-" validate:"required,uuid4"`
	Limit *int   `json:"limit,omitempty" validate:"omitempty,min=1"`
}

// RefreshCampaignResponse represents the outcome of a delivery refresh
type RefreshCampaignResponse struct {
	Campaign  CampaignDTO `json:"campaign"`
	Checked   int64       `json:"checked"`
	Delivered int64       `json:"delivered"`
	Failed    int64       `json:"failed"`
	Errors    []string    `json:"errors,omitempty"`
}

// ResendCampaignRequest represents the request to requeue failed messages
type ResendCampaignRequest struct {
	UUID string `json:"-" validate:"required,uuid4"`
}

// ResendCampaignResponse represents the outcome of a resend
type ResendCampaignResponse struct {
	Campaign    CampaignDTO `json:"campaign"`
	Rescheduled int64       `json:"rescheduled"`
}
