package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/utils"
	"gorm.io/gorm"
)

// SMSMessageRepositoryImpl implements SMSMessageRepository
type SMSMessageRepositoryImpl struct {
	*BaseRepository[models.SMSMessage, models.SMSMessageFilter]
}

func NewSMSMessageRepository(db *gorm.DB) SMSMessageRepository {
	return &SMSMessageRepositoryImpl{BaseRepository: NewBaseRepository[models.SMSMessage, models.SMSMessageFilter](db)}
}

func (r *SMSMessageRepositoryImpl) Update(ctx context.Context, message *models.SMSMessage) error {
	db, shouldCommit, err := r.getDBForWrite(ctx)
	if err != nil {
		return err
	}
	if shouldCommit {
		defer func() {
			if err != nil {
				db.Rollback()
			} else {
				db.Commit()
			}
		}()
	}

	if hookErr := message.BeforeUpdate(); hookErr != nil {
		err = hookErr
		return err
	}
	err = db.Save(message).Error
	if err != nil {
		return fmt.Errorf("failed to update message: %w", err)
	}
	return nil
}

func (r *SMSMessageRepositoryImpl) CountByStatus(ctx context.Context, campaignID uint, status models.SMSMessageStatus) (int64, error) {
	filter := models.SMSMessageFilter{CampaignID: &campaignID, Status: &status}
	return r.Count(ctx, filter)
}

func (r *SMSMessageRepositoryImpl) ListQueued(ctx context.Context, campaignID uint, limit int) ([]*models.SMSMessage, error) {
	status := models.SMSMessageStatusQueued
	filter := models.SMSMessageFilter{CampaignID: &campaignID, Status: &status}
	return r.ByFilter(ctx, filter, "created_at ASC, id ASC", limit, 0)
}

func (r *SMSMessageRepositoryImpl) ListSentForRefresh(ctx context.Context, campaignID uint, limit int) ([]*models.SMSMessage, error) {
	status := models.SMSMessageStatusSent
	filter := models.SMSMessageFilter{
		CampaignID:    &campaignID,
		Status:        &status,
		HasProviderID: utils.ToPtr(true),
	}
	return r.ByFilter(ctx, filter, "last_checked_at ASC NULLS FIRST, id ASC", limit, 0)
}

func (r *SMSMessageRepositoryImpl) ListByPhones(ctx context.Context, phones []string) ([]*models.SMSMessage, error) {
	if len(phones) == 0 {
		return nil, nil
	}
	filter := models.SMSMessageFilter{PhoneNormalizedIn: phones}
	return r.ByFilter(ctx, filter, "", 0, 0)
}

func (r *SMSMessageRepositoryImpl) RequeueFailed(ctx context.Context, campaignID uint) (int64, error) {
	db := r.getDB(ctx)
	res := db.Model(&models.SMSMessage{}).
		Where("campaign_id = ? AND status = ?", campaignID, models.SMSMessageStatusFailed).
		Updates(map[string]any{
			"status":               models.SMSMessageStatusQueued,
			"provider_message_id":  nil,
			"send_response":        nil,
			"delivery_response":    nil,
			"delivery_code":        nil,
			"delivery_status_text": nil,
			"updated_at":           utils.UTCNow(),
		})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to requeue failed messages: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *SMSMessageRepositoryImpl) applyFilter(db *gorm.DB, f models.SMSMessageFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.CampaignID != nil {
		db = db.Where("campaign_id = ?", *f.CampaignID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.PhoneNormalized != nil {
		db = db.Where("phone_normalized = ?", *f.PhoneNormalized)
	}
	if len(f.PhoneNormalizedIn) > 0 {
		db = db.Where("phone_normalized IN ?", f.PhoneNormalizedIn)
	}
	if f.HasProviderID != nil {
		if *f.HasProviderID {
			db = db.Where("provider_message_id IS NOT NULL")
		} else {
			db = db.Where("provider_message_id IS NULL")
		}
	}
	if f.Search != nil && *f.Search != "" {
		like := "%" + strings.ReplaceAll(*f.Search, "%", "") + "%"
		db = db.Where("phone_local ILIKE ? OR phone_normalized ILIKE ? OR provider_message_id ILIKE ?", like, like, like)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *SMSMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.SMSMessageFilter, orderBy string, limit, offset int) ([]*models.SMSMessage, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SMSMessage{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SMSMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SMSMessageRepositoryImpl) Count(ctx context.Context, filter models.SMSMessageFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SMSMessage{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SMSMessageRepositoryImpl) Exists(ctx context.Context, filter models.SMSMessageFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
