// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/safelink/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

// ErrDuplicateCode is returned when a short code is already taken
var ErrDuplicateCode = errors.New("short link code already exists")

type Repository[T any, F any] interface {
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
}

// ShortLinkRepository defines operations for short links
type ShortLinkRepository interface {
	Repository[models.ShortLink, models.ShortLinkFilter]
	ByFilter(ctx context.Context, filter models.ShortLinkFilter, orderBy string, limit, offset int) ([]*models.ShortLink, error)
	Exists(ctx context.Context, filter models.ShortLinkFilter) (bool, error)
	ByCode(ctx context.Context, code string) (*models.ShortLink, error)
	IncrementClickCount(ctx context.Context, id uint) error
}

// ShortLinkClickRepository defines operations for short link clicks
type ShortLinkClickRepository interface {
	Repository[models.ShortLinkClick, models.ShortLinkClickFilter]
	ListWithShortLinkBetween(ctx context.Context, from, to time.Time) ([]*models.ShortLinkClick, error)
}
