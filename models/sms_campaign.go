package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SMSCampaignStatus represents the status of an SMS campaign
type SMSCampaignStatus string

const (
	SMSCampaignStatusDraft   SMSCampaignStatus = "draft"
	SMSCampaignStatusSending SMSCampaignStatus = "sending"
	SMSCampaignStatusSent    SMSCampaignStatus = "sent"
	SMSCampaignStatusFailed  SMSCampaignStatus = "failed"
)

// String returns the string representation of the status
func (s SMSCampaignStatus) String() string {
	return string(s)
}

// Valid checks if the status is valid
func (s SMSCampaignStatus) Valid() bool {
	switch s {
	case SMSCampaignStatusDraft, SMSCampaignStatusSending,
		SMSCampaignStatusSent, SMSCampaignStatusFailed:
		return true
	default:
		return false
	}
}

// Scan implements the sql.Scanner interface for SMSCampaignStatus
func (s *SMSCampaignStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = SMSCampaignStatus(v)
	case []byte:
		*s = SMSCampaignStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into SMSCampaignStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for SMSCampaignStatus
func (s SMSCampaignStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid SMSCampaignStatus: %s", s)
	}
	return string(s), nil
}

// SegmentSpec is the audit snapshot of the transaction segment a campaign
// was built from. Stored as JSONB so the exact targeting criteria survive
// schema drift in the upstream table.
type SegmentSpec struct {
	TillID    *string  `json:"tillId,omitempty"`
	Status    *string  `json:"status,omitempty"`
	StartDate *string  `json:"startDate,omitempty"`
	EndDate   *string  `json:"endDate,omitempty"`
	Amount    *float64 `json:"amount,omitempty"`
	Search    *string  `json:"search,omitempty"`

	// Mode and Phone mark one-off test sends, which target a single
	// number instead of a transaction segment.
	Mode  *string `json:"mode,omitempty"`
	Phone *string `json:"phone,omitempty"`

	// TotalTransactions is the number of rows the segment matched at
	// creation time, before recipient deduplication.
	TotalTransactions int64 `json:"totalTransactions"`
}

// Value implements the driver.Valuer interface for SegmentSpec
func (s SegmentSpec) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for SegmentSpec
func (s *SegmentSpec) Scan(value any) error {
	if value == nil {
		*s = SegmentSpec{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("cannot scan %T into SegmentSpec", value)
	}

	return json.Unmarshal(bytes, s)
}

// SMSCampaign represents an SMS campaign in the database
type SMSCampaign struct {
	ID        uint              `gorm:"primaryKey" json:"id"`
	UUID      uuid.UUID         `gorm:"type:uuid;not null;uniqueIndex:uk_sms_campaigns_uuid" json:"uuid"`
	CreatedBy string            `gorm:"size:255;not null;index:idx_sms_campaigns_created_by" json:"created_by"`
	Name      string            `gorm:"size:255;not null" json:"name"`
	SenderID  string            `gorm:"size:64;not null" json:"sender_id"`
	Message   string            `gorm:"type:text;not null" json:"message"`
	Status    SMSCampaignStatus `gorm:"type:sms_campaign_status;not null;default:'draft';index:idx_sms_campaigns_status" json:"status"`
	Segment   SegmentSpec       `gorm:"type:jsonb;not null" json:"segment"`

	// Denormalized counters, recomputed from message rows after every
	// dispatch and refresh.
	TargetCount    int `gorm:"not null;default:0" json:"target_count"`
	SentCount      int `gorm:"not null;default:0" json:"sent_count"`
	DeliveredCount int `gorm:"not null;default:0" json:"delivered_count"`
	FailedCount    int `gorm:"not null;default:0" json:"failed_count"`

	LastDispatchAt *time.Time `json:"last_dispatch_at,omitempty"`
	LastRefreshAt  *time.Time `json:"last_refresh_at,omitempty"`
	CreatedAt      time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_sms_campaigns_created_at" json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

// TableName returns the table name for the model
func (SMSCampaign) TableName() string {
	return "sms_campaigns"
}

// BeforeCreate is called before creating a new record
func (c *SMSCampaign) BeforeCreate() error {
	if c.UUID == uuid.Nil {
		c.UUID = uuid.New()
	}
	if c.Status == "" {
		c.Status = SMSCampaignStatusDraft
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	return nil
}

// BeforeUpdate is called before updating a record
func (c *SMSCampaign) BeforeUpdate() error {
	now := time.Now().UTC()
	c.UpdatedAt = &now
	return nil
}

// IsDispatchable checks if the campaign can accept a dispatch request
func (c *SMSCampaign) IsDispatchable() bool {
	return c.Status == SMSCampaignStatusDraft || c.Status == SMSCampaignStatusSending
}

// CanTransitionTo checks if the campaign can transition to the given status
func (c *SMSCampaign) CanTransitionTo(newStatus SMSCampaignStatus) bool {
	switch c.Status {
	case SMSCampaignStatusDraft:
		return newStatus == SMSCampaignStatusSending
	case SMSCampaignStatusSending:
		return newStatus == SMSCampaignStatusSending ||
			newStatus == SMSCampaignStatusSent ||
			newStatus == SMSCampaignStatusFailed
	default:
		return false
	}
}

// CampaignCounters holds per-status message counts recounted from the
// sms_messages table. Derived totals follow the recount rules: target is
// every tracked row, sent includes delivered.
type CampaignCounters struct {
	Queued    int64
	Sent      int64
	Delivered int64
	Failed    int64
}

func (c CampaignCounters) TargetCount() int {
	return int(c.Queued + c.Sent + c.Delivered + c.Failed)
}

func (c CampaignCounters) SentCount() int {
	return int(c.Sent + c.Delivered)
}

func (c CampaignCounters) DeliveredCount() int {
	return int(c.Delivered)
}

func (c CampaignCounters) FailedCount() int {
	return int(c.Failed)
}

// SMSCampaignFilter represents filter criteria for SMS campaigns
type SMSCampaignFilter struct {
	ID            *uint              `json:"id,omitempty"`
	IDs           []uint             `json:"ids,omitempty"`
	UUID          *uuid.UUID         `json:"uuid,omitempty"`
	CreatedBy     *string            `json:"created_by,omitempty"`
	Status        *SMSCampaignStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}
