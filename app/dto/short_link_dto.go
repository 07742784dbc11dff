package dto

import "time"

// BotCreateShortLinkRequest is sent by the issuing bot.
// URL may be a destination URL, a bare destination token or a full verify link.
type BotCreateShortLinkRequest struct {
	Code   string   `json:"code,omitempty" validate:"omitempty,min=3,max=64,alphanum"`
	URL    string   `json:"url" validate:"required,max=4096"`
	Issuer *string  `json:"issuer,omitempty" validate:"omitempty,max=128"`
	Tags   []string `json:"tags,omitempty" validate:"omitempty,max=16,dive,required,max=64"`
}

// ShortLinkItem is a stored short link as returned to API clients
type ShortLinkItem struct {
	ID         uint      `json:"id"`
	Code       string    `json:"code"`
	Token      string    `json:"token"`
	ShortURL   string    `json:"short_url"`
	VerifyURL  string    `json:"verify_url"`
	Issuer     *string   `json:"issuer,omitempty"`
	Tags       []string  `json:"tags,omitempty"`
	ClickCount int64     `json:"click_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type BotCreateShortLinkResponse struct {
	Message string        `json:"message"`
	Item    ShortLinkItem `json:"item"`
}

// ResolveShortLinkResponse is the body of a successful /api/resolve lookup
type ResolveShortLinkResponse struct {
	URL string `json:"url"`
}

// ResolveShortLinkError is the body of a failed /api/resolve lookup
type ResolveShortLinkError struct {
	Error string `json:"error"`
}

// ResolvedShortLink is the outcome of resolving a short code
type ResolvedShortLink struct {
	Code   string
	Target string
	Token  string
}

// AdminShortLinkClickReportRequest selects the clicks exported to the report, dates inclusive
type AdminShortLinkClickReportRequest struct {
	From string `query:"from" validate:"required,datetime=2006-01-02"`
	To   string `query:"to" validate:"required,datetime=2006-01-02"`
}

// AdminImportShortLinksResponse summarizes a CSV import
type AdminImportShortLinksResponse struct {
	Message   string          `json:"message"`
	TotalRows int             `json:"total_rows"`
	Created   int             `json:"created"`
	Skipped   int             `json:"skipped"`
	Items     []ShortLinkItem `json:"items,omitempty"`
}
