package models

import (
	"time"

	"github.com/lib/pq"
)

// ShortLink maps a short code to a destination token, a destination URL or a full gate URL.
// Records are written by the issuing bot and read by the resolver.
type ShortLink struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	Code       string         `gorm:"size:64;not null;uniqueIndex:uk_short_links_code" json:"code"`
	Target     string         `gorm:"type:text;not null" json:"target"`
	Issuer     *string        `gorm:"size:128;index:idx_short_links_issuer" json:"issuer,omitempty"`
	Tags       pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`
	ClickCount int64          `gorm:"not null;default:0" json:"click_count"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_short_links_created_at" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

// TableName returns the table name for ShortLink
func (ShortLink) TableName() string { return "short_links" }

// ShortLinkFilter provides filter fields for repository queries
type ShortLinkFilter struct {
	Code *string
}
