// Package businessflow contains the business logic for the application.
package businessflow

import (
	"strings"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/models"
	"github.com/amirphl/safelink/utils"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds the client information recorded with clicks and logged with gate events
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// ToShortLinkItem converts a short link model to its API representation
func ToShortLinkItem(link models.ShortLink, publicBaseURL string) dto.ShortLinkItem {
	base := utils.NormalizeBaseURL(publicBaseURL)
	return dto.ShortLinkItem{
		ID:         link.ID,
		Code:       link.Code,
		Token:      link.Target,
		ShortURL:   base + "/s/" + link.Code,
		VerifyURL:  base + utils.VerifyPathMarker + link.Target,
		Issuer:     link.Issuer,
		Tags:       []string(link.Tags),
		ClickCount: link.ClickCount,
		CreatedAt:  link.CreatedAt,
	}
}

// ToPostCard converts a post to a listing card with a plain text excerpt
func ToPostCard(post models.Post, excerptLength int) dto.PostCard {
	image := services.FirstImage(post.Content)
	if image == "" && len(post.Images) > 0 {
		image = post.Images[0].URL
	}
	return dto.PostCard{
		ID:        post.ID,
		Title:     post.Title,
		Excerpt:   services.Excerpt(post.Content, excerptLength),
		Image:     image,
		Labels:    post.Labels,
		Author:    post.Author.DisplayName,
		Published: post.Published,
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
