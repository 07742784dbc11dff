package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/safelink/models"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const uniqueViolationCode = "23505"

// ShortLinkRepositoryImpl implements ShortLinkRepository
type ShortLinkRepositoryImpl struct {
	*BaseRepository[models.ShortLink, models.ShortLinkFilter]
}

func NewShortLinkRepository(db *gorm.DB) ShortLinkRepository {
	return &ShortLinkRepositoryImpl{BaseRepository: NewBaseRepository[models.ShortLink, models.ShortLinkFilter](db)}
}

// Save inserts a short link, mapping a unique violation on the code to ErrDuplicateCode
func (r *ShortLinkRepositoryImpl) Save(ctx context.Context, link *models.ShortLink) error {
	return mapDuplicateCode(r.BaseRepository.Save(ctx, link))
}

// SaveBatch inserts short links in one transaction; a taken code fails the whole batch
func (r *ShortLinkRepositoryImpl) SaveBatch(ctx context.Context, links []*models.ShortLink) error {
	return mapDuplicateCode(r.BaseRepository.SaveBatch(ctx, links))
}

func mapDuplicateCode(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return ErrDuplicateCode
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateCode
	}
	return err
}

func (r *ShortLinkRepositoryImpl) ByCode(ctx context.Context, code string) (*models.ShortLink, error) {
	filter := models.ShortLinkFilter{Code: &code}
	rows, err := r.ByFilter(ctx, filter, "id DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *ShortLinkRepositoryImpl) IncrementClickCount(ctx context.Context, id uint) error {
	db := r.getDB(ctx)
	res := db.Model(&models.ShortLink{}).
		Where("id = ?", id).
		UpdateColumn("click_count", gorm.Expr("click_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment click count: %w", res.Error)
	}
	return nil
}

func (r *ShortLinkRepositoryImpl) applyFilter(db *gorm.DB, f models.ShortLinkFilter) *gorm.DB {
	if f.Code != nil {
		db = db.Where("code = ?", *f.Code)
	}
	return db
}

func (r *ShortLinkRepositoryImpl) ByFilter(ctx context.Context, filter models.ShortLinkFilter, orderBy string, limit, offset int) ([]*models.ShortLink, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.ShortLink{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.ShortLink
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Exists reports whether any short link matches the filter
func (r *ShortLinkRepositoryImpl) Exists(ctx context.Context, filter models.ShortLinkFilter) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	if err := r.applyFilter(db.Model(&models.ShortLink{}), filter).Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to check short link: %w", err)
	}
	return count > 0, nil
}
