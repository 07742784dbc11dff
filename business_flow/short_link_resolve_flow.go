package businessflow

import (
	"context"
	"net/url"
	"strings"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/models"
	"github.com/amirphl/safelink/repository"
	"github.com/amirphl/safelink/utils"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Click sources stored with each resolution
const (
	ClickSourcePage = "page"
	ClickSourceAPI  = "api"
)

// ShortLinkResolveFlow maps short codes to destination tokens
type ShortLinkResolveFlow interface {
	Resolve(ctx context.Context, code string, source string, metadata *ClientMetadata) (*dto.ResolvedShortLink, error)
	ExtractToken(value string) string
}

type ShortLinkResolveFlowImpl struct {
	repo      repository.ShortLinkRepository
	clickRepo repository.ShortLinkClickRepository
	db        *gorm.DB
	codec     services.DestinationCodec
	metrics   *services.GateMetrics
	logger    *zap.Logger
}

func NewShortLinkResolveFlow(
	repo repository.ShortLinkRepository,
	clickRepo repository.ShortLinkClickRepository,
	db *gorm.DB,
	codec services.DestinationCodec,
	metrics *services.GateMetrics,
	logger *zap.Logger,
) ShortLinkResolveFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShortLinkResolveFlowImpl{
		repo:      repo,
		clickRepo: clickRepo,
		db:        db,
		codec:     codec,
		metrics:   metrics,
		logger:    logger,
	}
}

// Resolve looks the code up and returns the stored value with its normalized token.
// A successful lookup records a click; failing to record it does not fail the lookup.
func (f *ShortLinkResolveFlowImpl) Resolve(ctx context.Context, code string, source string, metadata *ClientMetadata) (*dto.ResolvedShortLink, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		f.metrics.Resolution("not_found")
		return nil, NewBusinessError("SHORT_LINK_NOT_FOUND", "Link not found", ErrShortLinkNotFound)
	}

	link, err := f.repo.ByCode(ctx, code)
	if err != nil {
		f.metrics.Resolution("error")
		return nil, NewBusinessError("SHORT_LINK_LOOKUP_FAILED", "Failed to resolve link", err)
	}
	if link == nil {
		f.metrics.Resolution("not_found")
		return nil, NewBusinessError("SHORT_LINK_NOT_FOUND", "Link not found", ErrShortLinkNotFound)
	}

	token := f.ExtractToken(link.Target)
	if token == "" {
		f.metrics.Resolution("empty_target")
		return nil, NewBusinessError("SHORT_LINK_NOT_FOUND", "Link not found", ErrShortLinkNotFound)
	}

	f.recordClick(ctx, link, source, metadata)
	f.metrics.Resolution("ok")

	return &dto.ResolvedShortLink{
		Code:   link.Code,
		Target: link.Target,
		Token:  token,
	}, nil
}

// ExtractToken returns the token embedded in a stored value. A full verify link
// (with or without a "#" router prefix) yields the segment after the verify marker,
// without any trailing query or fragment. Anything else is taken as the token itself.
func (f *ShortLinkResolveFlowImpl) ExtractToken(value string) string {
	return extractToken(f.codec, value)
}

func extractToken(codec services.DestinationCodec, value string) string {
	v := strings.TrimSpace(value)
	if _, after, found := strings.Cut(v, utils.VerifyPathMarker); found {
		v = after
		if i := strings.IndexAny(v, "?#"); i >= 0 {
			v = v[:i]
		}
		v = strings.TrimSuffix(v, "/")
		if unescaped, err := url.PathUnescape(v); err == nil {
			v = unescaped
		}
	}
	return codec.Normalize(v)
}

func (f *ShortLinkResolveFlowImpl) recordClick(ctx context.Context, link *models.ShortLink, source string, metadata *ClientMetadata) {
	click := &models.ShortLinkClick{
		ShortLinkID: link.ID,
		Code:        link.Code,
		Source:      source,
	}
	if metadata != nil {
		click.UserAgent = optionalString(metadata.UserAgent)
		click.IP = optionalString(metadata.IPAddress)
	}

	err := repository.WithTransaction(ctx, f.db, func(txCtx context.Context) error {
		if err := f.clickRepo.Save(txCtx, click); err != nil {
			return err
		}
		return f.repo.IncrementClickCount(txCtx, link.ID)
	})
	if err != nil {
		f.logger.Warn("failed to record short link click",
			zap.String("code", link.Code),
			zap.String("source", source),
			zap.Error(err),
		)
	}
}
