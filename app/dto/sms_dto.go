package dto

// TestSendRequest represents the request to send a one-off test SMS
type TestSendRequest struct {
	CreatedBy string  `json:"-"`
	Phone     string  `json:"phone" validate:"required,max=20"`
	Message   string  `json:"message" validate:"required,max=1000"`
	SenderID  *string `json:"sender_id,omitempty" validate:"omitempty,max=50"`
}

// TestSendResponse represents the gateway outcome of a test SMS
type TestSendResponse struct {
	Phone               string  `json:"phone"`
	Accepted            bool    `json:"accepted"`
	ProviderMessageID   *string `json:"provider_message_id,omitempty"`
	ResponseCode        int     `json:"response_code"`
	ResponseDescription string  `json:"response_description"`
	// CampaignUUID points at the one-off campaign logged for this send,
	// when the log write succeeded.
	CampaignUUID *string `json:"campaign_uuid,omitempty"`
}

// BalanceResponse represents the SMS gateway balance passthrough
type BalanceResponse struct {
	Balance string `json:"balance"`
}
