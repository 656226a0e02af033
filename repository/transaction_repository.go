package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/pesaops/tillboard/models"
	"gorm.io/gorm"
)

// TransactionRepositoryImpl implements TransactionRepository. The
// transactions table belongs to the payments pipeline; everything here is
// read-only and tolerant of schema drift in the till column.
type TransactionRepositoryImpl struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &TransactionRepositoryImpl{db: db}
}

func (r *TransactionRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// SampleRow fetches one arbitrary row as a map so callers can inspect the
// live column set.
func (r *TransactionRepositoryImpl) SampleRow(ctx context.Context) (map[string]any, error) {
	db := r.getDB(ctx)
	var rows []map[string]any
	if err := db.WithContext(ctx).Table(models.Transaction{}.TableName()).Limit(1).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to sample transactions table: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByID fetches one row by primary key. Returns nil without error when the
// row does not exist.
func (r *TransactionRepositoryImpl) ByID(ctx context.Context, id int64) (*models.Transaction, error) {
	db := r.getDB(ctx)
	var row models.Transaction
	err := db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch transaction %d: %w", id, err)
	}
	return &row, nil
}

func (r *TransactionRepositoryImpl) applyFilter(db *gorm.DB, f models.TransactionFilter) (*gorm.DB, error) {
	if f.TillValue != nil {
		if !f.TillColumn.Valid() {
			return nil, fmt.Errorf("invalid till column %q", f.TillColumn)
		}
		db = db.Where(fmt.Sprintf("%s = ?", f.TillColumn.Quoted()), *f.TillValue)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	if f.Amount != nil {
		db = db.Where("amount = ?", *f.Amount)
	}
	if f.Search != nil && *f.Search != "" {
		like := "%" + *f.Search + "%"
		db = db.Where("phone_number ILIKE ? OR reference ILIKE ?", like, like)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	if f.CreatedThrough != nil {
		db = db.Where("created_at <= ?", *f.CreatedThrough)
	}
	return db, nil
}

func (r *TransactionRepositoryImpl) Count(ctx context.Context, filter models.TransactionFilter) (int64, error) {
	db := r.getDB(ctx)
	query, err := r.applyFilter(db.WithContext(ctx).Model(&models.Transaction{}), filter)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepositoryImpl) StatusCount(ctx context.Context, filter models.TransactionFilter, status string) (int64, error) {
	filter.Status = &status
	return r.Count(ctx, filter)
}

func (r *TransactionRepositoryImpl) Page(ctx context.Context, filter models.TransactionFilter, limit, offset int) ([]*models.Transaction, error) {
	db := r.getDB(ctx)
	query, err := r.applyFilter(db.WithContext(ctx).Model(&models.Transaction{}), filter)
	if err != nil {
		return nil, err
	}
	query = query.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Transaction
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to page transactions: %w", err)
	}
	return rows, nil
}

func (r *TransactionRepositoryImpl) TillValues(ctx context.Context, column models.TillColumn, limit, offset int) ([]*string, error) {
	if !column.Valid() {
		return nil, fmt.Errorf("invalid till column %q", column)
	}
	db := r.getDB(ctx)
	query := db.WithContext(ctx).
		Table(models.Transaction{}.TableName()).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var values []*string
	if err := query.Pluck(column.Quoted(), &values).Error; err != nil {
		return nil, fmt.Errorf("failed to pluck till values: %w", err)
	}
	return values, nil
}
