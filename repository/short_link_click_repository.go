package repository

import (
	"context"
	"time"

	"github.com/amirphl/safelink/models"
	"gorm.io/gorm"
)

// ShortLinkClickRepositoryImpl implements ShortLinkClickRepository
type ShortLinkClickRepositoryImpl struct {
	*BaseRepository[models.ShortLinkClick, models.ShortLinkClickFilter]
}

func NewShortLinkClickRepository(db *gorm.DB) ShortLinkClickRepository {
	return &ShortLinkClickRepositoryImpl{BaseRepository: NewBaseRepository[models.ShortLinkClick, models.ShortLinkClickFilter](db)}
}

func (r *ShortLinkClickRepositoryImpl) applyFilter(db *gorm.DB, f models.ShortLinkClickFilter) *gorm.DB {
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

// ListWithShortLinkBetween returns the clicks in [from, to) with their short link loaded
func (r *ShortLinkClickRepositoryImpl) ListWithShortLinkBetween(ctx context.Context, from, to time.Time) ([]*models.ShortLinkClick, error) {
	db := r.getDB(ctx)
	filter := models.ShortLinkClickFilter{CreatedAfter: &from, CreatedBefore: &to}
	var rows []*models.ShortLinkClick
	err := r.applyFilter(db.Model(&models.ShortLinkClick{}), filter).
		Preload("ShortLink").
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
