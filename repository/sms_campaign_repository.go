package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/pesaops/tillboard/models"
	"github.com/pesaops/tillboard/utils"
	"gorm.io/gorm"
)

// SMSCampaignRepositoryImpl implements SMSCampaignRepository
type SMSCampaignRepositoryImpl struct {
	*BaseRepository[models.SMSCampaign, models.SMSCampaignFilter]
}

func NewSMSCampaignRepository(db *gorm.DB) SMSCampaignRepository {
	return &SMSCampaignRepositoryImpl{BaseRepository: NewBaseRepository[models.SMSCampaign, models.SMSCampaignFilter](db)}
}

func (r *SMSCampaignRepositoryImpl) ByUUID(ctx context.Context, id uuid.UUID) (*models.SMSCampaign, error) {
	db := r.getDB(ctx)
	var row models.SMSCampaign
	if err := db.Where("uuid = ?", id).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *SMSCampaignRepositoryImpl) Update(ctx context.Context, campaign *models.SMSCampaign) error {
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

	if hookErr := campaign.BeforeUpdate(); hookErr != nil {
		err = hookErr
		return err
	}
	err = db.Save(campaign).Error
	if err != nil {
		return fmt.Errorf("failed to update campaign: %w", err)
	}
	return nil
}

func (r *SMSCampaignRepositoryImpl) UpdateCounters(ctx context.Context, campaignID uint, counters models.CampaignCounters, extra map[string]any) error {
	db := r.getDB(ctx)
	updates := map[string]any{
		"target_count":    counters.TargetCount(),
		"sent_count":      counters.SentCount(),
		"delivered_count": counters.DeliveredCount(),
		"failed_count":    counters.FailedCount(),
		"updated_at":      utils.UTCNow(),
	}
	for k, v := range extra {
		updates[k] = v
	}
	if err := db.Model(&models.SMSCampaign{}).Where("id = ?", campaignID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update campaign counters: %w", err)
	}
	return nil
}

func (r *SMSCampaignRepositoryImpl) ListByStatus(ctx context.Context, status models.SMSCampaignStatus, limit int) ([]*models.SMSCampaign, error) {
	filter := models.SMSCampaignFilter{Status: &status}
	return r.ByFilter(ctx, filter, "created_at ASC", limit, 0)
}

func (r *SMSCampaignRepositoryImpl) applyFilter(db *gorm.DB, f models.SMSCampaignFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if len(f.IDs) > 0 {
		db = db.Where("id IN ?", f.IDs)
	}
	if f.UUID != nil {
		db = db.Where("uuid = ?", *f.UUID)
	}
	if f.CreatedBy != nil {
		db = db.Where("created_by = ?", *f.CreatedBy)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *SMSCampaignRepositoryImpl) ByFilter(ctx context.Context, filter models.SMSCampaignFilter, orderBy string, limit, offset int) ([]*models.SMSCampaign, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SMSCampaign{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.SMSCampaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *SMSCampaignRepositoryImpl) Count(ctx context.Context, filter models.SMSCampaignFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.SMSCampaign{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *SMSCampaignRepositoryImpl) Exists(ctx context.Context, filter models.SMSCampaignFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
