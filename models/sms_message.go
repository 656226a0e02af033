package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SMSMessageStatus represents the delivery state of a single campaign message
type SMSMessageStatus string

const (
	SMSMessageStatusQueued    SMSMessageStatus = "queued"
	SMSMessageStatusSent      SMSMessageStatus = "sent"
	SMSMessageStatusDelivered SMSMessageStatus = "delivered"
	SMSMessageStatusFailed    SMSMessageStatus = "failed"
)

// String returns the string representation of the status
func (s SMSMessageStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SMSMessageStatus) Valid() bool {
	switch s {
	case SMSMessageStatusQueued, SMSMessageStatusSent,
		SMSMessageStatusDelivered, SMSMessageStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SMSMessageStatus
func (s *SMSMessageStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SMSMessageStatus(v)
	case []byte:
		*s = SMSMessageStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SMSMessageStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SMSMessageStatus
func (s SMSMessageStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SMSMessageStatus: %s", s)
	}
	return string(s), nil
}

// SMSMessage represents one recipient of a campaign. The transaction
// fields are denormalized from the row the recipient was selected by, so
// the audit trail survives upstream data churn.
type SMSMessage struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	CampaignID uint   `gorm:"not null;index:idx_sms_messages_campaign_id" json:"campaign_id"`
	PhoneLocal string `gorm:"size:32;not null" json:"phone_local"`
	// PhoneNormalized is the international digit form; message history
	// joins key on this column.
	PhoneNormalized string `gorm:"size:32;not null;index:idx_sms_messages_phone_normalized" json:"phone_normalized"`

	TransactionID     *int64   `json:"transaction_id,omitempty"`
	TransactionStatus *string  `gorm:"size:32" json:"transaction_status,omitempty"`
	Amount            *float64 `json:"amount,omitempty"`

	Status            SMSMessageStatus `gorm:"type:sms_message_status;not null;default:'queued';index:idx_sms_messages_status" json:"status"`
	ProviderMessageID *string          `gorm:"size:128;index:idx_sms_messages_provider_message_id" json:"provider_message_id,omitempty"`
	// SendResponse is the gateway's answer to the send call;
	// DeliveryResponse is the latest delivery-check payload. They are
	// separate columns so a delivery poll never clobbers the send record.
	SendResponse       json.RawMessage `gorm:"type:jsonb" json:"send_response,omitempty"`
	DeliveryResponse   json.RawMessage `gorm:"type:jsonb" json:"delivery_response,omitempty"`
	DeliveryCode       *int            `json:"delivery_code,omitempty"`
	DeliveryStatusText *string         `gorm:"type:text" json:"delivery_status_text,omitempty"`
	LastCheckedAt      *time.Time      `gorm:"index:idx_sms_messages_last_checked_at" json:"last_checked_at,omitempty"`

	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_sms_messages_created_at" json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`

	// Relations
	Campaign *SMSCampaign `gorm:"foreignKey:CampaignID;references:ID" json:"campaign,omitempty"`
}

// TableName returns the table name for the model
func (SMSMessage) TableName() string {
	return "sms_messages"
}

// BeforeCreate is called before creating a new record
func (m *SMSMessage) BeforeCreate() error {
	if m.Status == "" {
		m.Status = SMSMessageStatusQueued
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (m *SMSMessage) BeforeUpdate() error {
	now := time.Now().UTC()
	m.UpdatedAt = &now
	return nil
}

// CreatedAtISO returns the row timestamp as an RFC3339 UTC string
func (m *SMSMessage) CreatedAtISO() string {
	return m.CreatedAt.UTC().Format(time.RFC3339)
}

// SMSMessageFilter represents filter criteria for campaign messages
type SMSMessageFilter struct {
	ID                *uint             `json:"id,omitempty"`
	CampaignID        *uint             `json:"campaign_id,omitempty"`
	Status            *SMSMessageStatus `json:"status,omitempty"`
	PhoneNormalized   *string           `json:"phone_normalized,omitempty"`
	PhoneNormalizedIn []string          `json:"phone_normalized_in,omitempty"`
	HasProviderID     *bool             `json:"has_provider_id,omitempty"`
	// Search matches the local phone, normalized phone, or provider
	// message id as a substring.
	Search        *string    `json:"search,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
