package models

import "time"

// ShortLinkClick records one successful resolution of a short code
type ShortLinkClick struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ShortLinkID uint      `gorm:"index:idx_short_link_clicks_short_link_id;not null" json:"short_link_id"`
	Code        string    `gorm:"size:64;not null;index:idx_short_link_clicks_code" json:"code"`
	Source      string    `gorm:"size:16;not null;default:'page'" json:"source"`
	UserAgent   *string   `gorm:"type:text" json:"user_agent,omitempty"`
	IP          *string   `gorm:"size:64" json:"ip,omitempty"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_short_link_clicks_created_at" json:"created_at"`

	ShortLink *ShortLink `gorm:"foreignKey:ShortLinkID" json:"short_link,omitempty"`
}

// TableName returns the table name for ShortLinkClick
func (ShortLinkClick) TableName() string { return "short_link_clicks" }

// ShortLinkClickFilter provides filter fields for repository queries
type ShortLinkClickFilter struct {
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
}
