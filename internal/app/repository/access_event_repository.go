package repository

import (
	"context"
	"time"

	"github.com/petermyo/DecentralizeFileShare/internal/app/model"
	"gorm.io/gorm"
)

// AccessEventRepository defines the data access contract for access events.
type AccessEventRepository interface {
	Create(ctx context.Context, event *model.AccessEvent) error
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

type accessEventRepository struct {
	db *gorm.DB
}

// NewAccessEventRepository returns a GORM-backed AccessEventRepository.
func NewAccessEventRepository(db *gorm.DB) AccessEventRepository {
	return &accessEventRepository{db: db}
}

func (r *accessEventRepository) Create(ctx context.Context, event *model.AccessEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *accessEventRepository) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", before).
		Delete(&model.AccessEvent{})
	return result.RowsAffected, result.Error
}
