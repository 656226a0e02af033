// Package businessflow contains the business logic for the application.
package businessflow

import (
	"time"

	"github.com/pesaops/tillboard/app/dto"
	"github.com/pesaops/tillboard/models"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds all client-related information for audit logging and session tracking
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceInfo: make(map[string]string),
		Additional: make(map[string]string),
	}
}

// AddDeviceInfo adds device information to the metadata
func (cm *ClientMetadata) AddDeviceInfo(key, value string) {
	if cm.DeviceInfo == nil {
		cm.DeviceInfo = make(map[string]string)
	}
	cm.DeviceInfo[key] = value
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// ToCampaignDTO converts a campaign model to its response shape
func ToCampaignDTO(c models.SMSCampaign) dto.CampaignDTO {
	out := dto.CampaignDTO{
		ID:             c.ID,
		UUID:           c.UUID.String(),
		CreatedBy:      c.CreatedBy,
		Name:           c.Name,
		SenderID:       c.SenderID,
		Message:        c.Message,
		Status:         string(c.Status),
		TargetCount:    int64(c.TargetCount),
		SentCount:      int64(c.SentCount),
		DeliveredCount: int64(c.DeliveredCount),
		FailedCount:    int64(c.FailedCount),
		CreatedAt:      c.CreatedAt.UTC().Format(time.RFC3339),
		Segment: dto.SegmentDTO{
			TillID:            c.Segment.TillID,
			Status:            c.Segment.Status,
			StartDate:         c.Segment.StartDate,
			EndDate:           c.Segment.EndDate,
			Amount:            c.Segment.Amount,
			Search:            c.Segment.Search,
			TotalTransactions: c.Segment.TotalTransactions,
		},
	}
	if c.UpdatedAt != nil {
		out.UpdatedAt = c.UpdatedAt.UTC().Format(time.RFC3339)
	}
	if c.LastDispatchAt != nil {
		v := c.LastDispatchAt.UTC().Format(time.RFC3339)
		out.LastDispatchAt = &v
	}
	if c.LastRefreshAt != nil {
		v := c.LastRefreshAt.UTC().Format(time.RFC3339)
		out.LastRefreshAt = &v
	}
	return out
}

// ToCampaignMessageDTO converts a campaign message model to its response shape
func ToCampaignMessageDTO(m models.SMSMessage) dto.CampaignMessageDTO {
	out := dto.CampaignMessageDTO{
		ID:                 m.ID,
		PhoneLocal:         m.PhoneLocal,
		PhoneNormalized:    m.PhoneNormalized,
		TransactionID:      m.TransactionID,
		TransactionStatus:  m.TransactionStatus,
		Amount:             m.Amount,
		Status:             string(m.Status),
		ProviderMessageID:  m.ProviderMessageID,
		DeliveryCode:       m.DeliveryCode,
		DeliveryStatusText: m.DeliveryStatusText,
		CreatedAt:          m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.LastCheckedAt != nil {
		v := m.LastCheckedAt.UTC().Format(time.RFC3339)
		out.LastCheckedAt = &v
	}
	return out
}
