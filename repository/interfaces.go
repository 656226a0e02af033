// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/pesaops/tillboard/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// TransactionRepository defines read-only operations for the upstream
// transactions table. The till column is resolved at runtime, so scans
// carry a models.TillColumn inside the filter.
type TransactionRepository interface {
	// SampleRow returns one arbitrary row as a column-keyed map, used to
	// discover which column carries the till value. Returns nil when the
	// table is empty.
	SampleRow(ctx context.Context) (map[string]any, error)
	// ByID fetches one row by primary key, nil when missing.
	ByID(ctx context.Context, id int64) (*models.Transaction, error)
	Count(ctx context.Context, filter models.TransactionFilter) (int64, error)
	// Page returns one page of matching rows ordered newest first.
	Page(ctx context.Context, filter models.TransactionFilter, limit, offset int) ([]*models.Transaction, error)
	// StatusCount counts matching rows with the given status value.
	StatusCount(ctx context.Context, filter models.TransactionFilter, status string) (int64, error)
	// TillValues returns one page of raw values of the resolved till
	// column, newest rows first. Used for till derivation.
	TillValues(ctx context.Context, column models.TillColumn, limit, offset int) ([]*string, error)
}

// SMSCampaignRepository defines operations for SMS campaigns
type SMSCampaignRepository interface {
	Repository[models.SMSCampaign, models.SMSCampaignFilter]
	ByUUID(ctx context.Context, uuid uuid.UUID) (*models.SMSCampaign, error)
	Update(ctx context.Context, campaign *models.SMSCampaign) error
	// UpdateCounters writes the denormalized counter columns plus the
	// supplied extra column values (status, last_dispatch_at, ...).
	UpdateCounters(ctx context.Context, campaignID uint, counters models.CampaignCounters, extra map[string]any) error
	ListByStatus(ctx context.Context, status models.SMSCampaignStatus, limit int) ([]*models.SMSCampaign, error)
}

// SMSMessageRepository defines operations for campaign messages
type SMSMessageRepository interface {
	Repository[models.SMSMessage, models.SMSMessageFilter]
	Update(ctx context.Context, message *models.SMSMessage) error
	CountByStatus(ctx context.Context, campaignID uint, status models.SMSMessageStatus) (int64, error)
	// ListQueued returns queued messages oldest first, bounded by limit.
	ListQueued(ctx context.Context, campaignID uint, limit int) ([]*models.SMSMessage, error)
	// ListSentForRefresh returns sent messages that have a provider id,
	// least recently checked first with never-checked rows leading.
	ListSentForRefresh(ctx context.Context, campaignID uint, limit int) ([]*models.SMSMessage, error)
	// ListByPhones returns all messages whose normalized phone is in the
	// given set, across every campaign. Callers chunk the set.
	ListByPhones(ctx context.Context, phones []string) ([]*models.SMSMessage, error)
	// RequeueFailed flips failed messages back to queued, clearing
	// provider state, and reports how many rows changed.
	RequeueFailed(ctx context.Context, campaignID uint) (int64, error)
}

// AuditLogRepository defines operations for audit logs
type AuditLogRepository interface {
	Repository[models.AuditLog, models.AuditLogFilter]
	ListByStaff(ctx context.Context, staffEmail string, limit, offset int) ([]*models.AuditLog, error)
	ListByAction(ctx context.Context, action string, limit, offset int) ([]*models.AuditLog, error)
	ListFailedActions(ctx context.Context, limit, offset int) ([]*models.AuditLog, error)
}
