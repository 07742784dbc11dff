package businessflow

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/models"
	"github.com/amirphl/safelink/repository"
	"github.com/amirphl/safelink/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// maxCodeAttempts bounds retries when a generated code collides with an existing one
const maxCodeAttempts = 3

// BotShortLinkFlow creates short links on behalf of the issuing bot
type BotShortLinkFlow interface {
	CreateShortLink(ctx context.Context, req *dto.BotCreateShortLinkRequest) (*dto.BotCreateShortLinkResponse, error)
}

// ShortLinkSettings configures short link creation
type ShortLinkSettings struct {
	PublicBaseURL string
	CodeLength    int
}

type BotShortLinkFlowImpl struct {
	repo     repository.ShortLinkRepository
	codec    services.DestinationCodec
	settings ShortLinkSettings
	logger   *zap.Logger
}

func NewBotShortLinkFlow(repo repository.ShortLinkRepository, codec services.DestinationCodec, settings ShortLinkSettings, logger *zap.Logger) BotShortLinkFlow {
	if settings.CodeLength <= 0 {
		settings.CodeLength = utils.DefaultShortCodeLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotShortLinkFlowImpl{repo: repo, codec: codec, settings: settings, logger: logger}
}

// CreateShortLink stores the canonical token for req.URL under the requested or a generated code
func (f *BotShortLinkFlowImpl) CreateShortLink(ctx context.Context, req *dto.BotCreateShortLinkRequest) (*dto.BotCreateShortLinkResponse, error) {
	if req == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "Request is required", ErrInvalidInput)
	}

	token, err := canonicalTarget(f.codec, req.URL)
	if err != nil {
		return nil, err
	}

	var issuer *string
	if req.Issuer != nil {
		issuer = optionalString(*req.Issuer)
	}

	link := &models.ShortLink{
		Target: token,
		Issuer: issuer,
		Tags:   normalizeTags(req.Tags),
	}

	if code := strings.TrimSpace(req.Code); code != "" {
		taken, err := f.repo.Exists(ctx, models.ShortLinkFilter{Code: &code})
		if err != nil {
			return nil, NewBusinessError("CREATE_SHORT_LINK_FAILED", "Failed to create short link", err)
		}
		if taken {
			return nil, NewBusinessError("SHORT_LINK_CODE_TAKEN", "Short link code already exists", ErrShortLinkCodeTaken)
		}
		link.Code = code
		// a concurrent insert can still take the code; Save maps that to ErrDuplicateCode
		if err := f.repo.Save(ctx, link); err != nil {
			if errors.Is(err, repository.ErrDuplicateCode) {
				return nil, NewBusinessError("SHORT_LINK_CODE_TAKEN", "Short link code already exists", ErrShortLinkCodeTaken)
			}
			return nil, NewBusinessError("CREATE_SHORT_LINK_FAILED", "Failed to create short link", err)
		}
	} else if err := f.saveWithGeneratedCode(ctx, link); err != nil {
		return nil, err
	}

	f.logger.Info("short link created",
		zap.String("code", link.Code),
		zap.String("issuer", utils.Deref(link.Issuer)),
	)

	return &dto.BotCreateShortLinkResponse{
		Message: "Short link created",
		Item:    ToShortLinkItem(*link, f.settings.PublicBaseURL),
	}, nil
}

func (f *BotShortLinkFlowImpl) saveWithGeneratedCode(ctx context.Context, link *models.ShortLink) error {
	var lastErr error
	for range maxCodeAttempts {
		code, err := gonanoid.Generate(utils.ShortCodeAlphabet, f.settings.CodeLength)
		if err != nil {
			return NewBusinessError("CODE_GENERATION_FAILED", "Failed to generate short link code", err)
		}
		link.Code = code
		lastErr = f.repo.Save(ctx, link)
		if lastErr == nil {
			return nil
		}
		if !errors.Is(lastErr, repository.ErrDuplicateCode) {
			return NewBusinessError("CREATE_SHORT_LINK_FAILED", "Failed to create short link", lastErr)
		}
		f.logger.Warn("generated short code collided", zap.String("code", code))
	}
	return NewBusinessError("CODE_GENERATION_FAILED", "Failed to allocate a free short link code", lastErr)
}

// canonicalTarget turns a destination URL, a bare token or a full verify link
// into the canonical token stored with a short link.
func canonicalTarget(codec services.DestinationCodec, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", NewBusinessError("SHORT_LINK_URL_REQUIRED", "url is required", ErrShortLinkURLRequired)
	}

	if strings.Contains(raw, utils.VerifyPathMarker) {
		token := extractToken(codec, raw)
		if _, err := codec.Decode(token); err == nil {
			return token, nil
		}
	}

	if u, err := url.Parse(raw); err == nil && u.Scheme != "" {
		token, err := codec.Encode(raw)
		if err != nil {
			return "", NewBusinessError("INVALID_SHORT_LINK_URL", "url is not a valid destination", err)
		}
		return token, nil
	}

	token := codec.Normalize(raw)
	if _, err := codec.Decode(token); err != nil {
		return "", NewBusinessError("INVALID_SHORT_LINK_URL", "url must be a destination URL, a token or a verify link", err)
	}
	return token, nil
}

func normalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
