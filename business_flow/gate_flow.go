package businessflow

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/models"
	"go.uber.org/zap"
)

// GateEntrySource names the entry point a visitor came through
type GateEntrySource string

const (
	GateEntrySafeLink  GateEntrySource = "safe_link"
	GateEntryVerify    GateEntrySource = "verify"
	GateEntryShortLink GateEntrySource = "short_link"
)

// GateFlow runs the link gate: entry on a random post, the human check at step 1,
// the countdown at step 2 and the final release to the destination.
// Nothing is stored between requests; the URL and signed tickets carry all state.
type GateFlow interface {
	EnterWithDestination(ctx context.Context, destination string, metadata *ClientMetadata) (string, error)
	Enter(ctx context.Context, token string, source GateEntrySource, metadata *ClientMetadata) (string, error)
	LoadStep(ctx context.Context, params models.GateParams) (*dto.GatePage, error)
	Verify(ctx context.Context, req *dto.GateVerifyRequest, metadata *ClientMetadata) (string, error)
	Release(ctx context.Context, req *dto.GateReleaseRequest, metadata *ClientMetadata) (string, error)
	Watch(ctx context.Context, params models.GateParams) <-chan models.GateView
	Timing() models.GateTiming
}

// GateFlowConfig holds the gate durations
type GateFlowConfig struct {
	VerifyDwell      time.Duration
	ProcessingDelay  time.Duration
	CountdownSeconds int
}

// GateFlowImpl implements GateFlow
type GateFlowImpl struct {
	codec    services.DestinationCodec
	content  services.ContentSource
	tickets  services.GateTicketService
	captcha  services.CaptchaService
	runner   *services.CountdownRunner
	metrics  *services.GateMetrics
	cfg      GateFlowConfig
	timing   models.GateTiming
	logger   *zap.Logger
	sleepFor func(ctx context.Context, d time.Duration) error
}

// NewGateFlow creates a new gate flow. captcha may be nil to disable the rotate check.
func NewGateFlow(
	codec services.DestinationCodec,
	content services.ContentSource,
	tickets services.GateTicketService,
	captcha services.CaptchaService,
	runner *services.CountdownRunner,
	metrics *services.GateMetrics,
	cfg GateFlowConfig,
	logger *zap.Logger,
) GateFlow {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GateFlowImpl{
		codec:   codec,
		content: content,
		tickets: tickets,
		captcha: captcha,
		runner:  runner,
		metrics: metrics,
		cfg:     cfg,
		timing: models.GateTiming{
			VerifyDwell: int(math.Ceil(cfg.VerifyDwell.Seconds())),
			Countdown:   cfg.CountdownSeconds,
		},
		logger:   logger,
		sleepFor: sleepCtx,
	}
}

// EnterWithDestination encodes a destination URL and enters the gate with it
func (f *GateFlowImpl) EnterWithDestination(ctx context.Context, destination string, metadata *ClientMetadata) (string, error) {
	token, err := f.codec.Encode(strings.TrimSpace(destination))
	if err != nil {
		return "", NewBusinessError("INVALID_DESTINATION", "Invalid destination link", err)
	}
	return f.Enter(ctx, token, GateEntrySafeLink, metadata)
}

// Enter returns the step 1 URL for a token on a randomly chosen post
func (f *GateFlowImpl) Enter(ctx context.Context, token string, source GateEntrySource, metadata *ClientMetadata) (string, error) {
	token = f.codec.Normalize(strings.TrimSpace(token))
	if token == "" {
		return "", NewBusinessError("INVALID_GATE_TOKEN", "Invalid link", ErrInvalidGateParams)
	}

	anchor, err := f.pickAnchor(ctx)
	if err != nil {
		return "", err
	}

	f.metrics.Entry(string(source))
	f.logger.Debug("gate entered",
		zap.String("source", string(source)),
		zap.String("anchor", anchor),
		zap.String("ip", clientIP(metadata)),
	)

	params := models.GateParams{Step: models.GateStepAwaitingVerification, Token: token}
	return params.PostURL(anchor), nil
}

// LoadStep prepares the gate overlay for a post page. Every load restarts the
// step's wait: the ticket becomes valid only after the full dwell or countdown.
func (f *GateFlowImpl) LoadStep(ctx context.Context, params models.GateParams) (*dto.GatePage, error) {
	params.Token = f.codec.Normalize(params.Token)
	view := models.DeriveGateView(params, 0, f.timing)

	page := &dto.GatePage{
		Step:             params.Step.QueryValue(),
		Token:            params.Token,
		EventsURL:        "/gate/events?" + params.Query(),
		VerifyDwell:      f.timing.VerifyDwell,
		CountdownSeconds: f.timing.Countdown,
		RemainingSeconds: view.RemainingSeconds,
		VerifyEnabled:    view.VerifyEnabled,
		FinishEnabled:    view.FinishEnabled,
	}

	var (
		purpose services.GateTicketPurpose
		wait    time.Duration
	)
	switch params.Step {
	case models.GateStepAwaitingVerification:
		purpose, wait = services.GateTicketVerify, f.cfg.VerifyDwell
		page.Action = "/gate/verify"
	case models.GateStepAwaitingTimer:
		purpose, wait = services.GateTicketRelease, time.Duration(f.timing.Countdown)*time.Second
		page.Action = "/gate/release"
	default:
		return nil, NewBusinessError("INVALID_GATE_PARAMS", "Invalid link", ErrInvalidGateParams)
	}

	ticket, err := f.tickets.Issue(purpose, params.Token, wait)
	if err != nil {
		return nil, NewBusinessError("GATE_TICKET_FAILED", "Failed to prepare verification", err)
	}
	page.Ticket = ticket

	if params.Step == models.GateStepAwaitingVerification && f.captcha != nil {
		challenge, err := f.captcha.GenerateRotate(ctx)
		if err != nil {
			return nil, NewBusinessError("CAPTCHA_GENERATION_FAILED", "Failed to prepare verification", err)
		}
		page.Captcha = &dto.GateCaptcha{
			ID:          challenge.ID,
			MasterImage: challenge.MasterImageBase64,
			ThumbImage:  challenge.ThumbImageBase64,
		}
	}

	return page, nil
}

// Verify accepts the step 1 human check and returns the step 2 URL on a fresh post
func (f *GateFlowImpl) Verify(ctx context.Context, req *dto.GateVerifyRequest, metadata *ClientMetadata) (string, error) {
	token := f.codec.Normalize(strings.TrimSpace(req.Token))

	if _, err := f.tickets.Validate(req.Ticket, services.GateTicketVerify, token); err != nil {
		if errors.Is(err, services.ErrTicketNotYetValid) {
			f.metrics.Verification("too_early")
			return "", NewBusinessError("VERIFY_TOO_EARLY", "Please wait a moment before verifying", ErrVerifyTooEarly)
		}
		f.metrics.Verification("invalid_ticket")
		return "", NewBusinessError("GATE_TICKET_INVALID", "This verification has expired. Please start again.", fmt.Errorf("%w: %w", ErrGateTicketInvalid, err))
	}

	if f.captcha != nil {
		if err := f.captcha.VerifyRotate(ctx, req.CaptchaID, req.CaptchaAngle); err != nil {
			f.metrics.Verification("captcha_failed")
			return "", NewBusinessError("CAPTCHA_FAILED", "Verification failed. Please try again.", fmt.Errorf("%w: %w", ErrCaptchaFailed, err))
		}
	}

	if err := f.sleepFor(ctx, f.cfg.ProcessingDelay); err != nil {
		return "", err
	}

	anchor, err := f.pickAnchor(ctx)
	if err != nil {
		f.metrics.Verification("routing_failed")
		return "", err
	}

	f.metrics.Verification("ok")
	f.logger.Debug("gate verified", zap.String("anchor", anchor), zap.String("ip", clientIP(metadata)))

	params := models.GateParams{Step: models.GateStepAwaitingTimer, Token: token}
	return params.PostURL(anchor), nil
}

// Release decodes the token once the countdown ticket is valid and returns the destination
func (f *GateFlowImpl) Release(ctx context.Context, req *dto.GateReleaseRequest, metadata *ClientMetadata) (string, error) {
	token := f.codec.Normalize(strings.TrimSpace(req.Token))

	if _, err := f.tickets.Validate(req.Ticket, services.GateTicketRelease, token); err != nil {
		if errors.Is(err, services.ErrTicketNotYetValid) {
			f.metrics.Release("too_early")
			return "", NewBusinessError("RELEASE_TOO_EARLY", "Please wait for the timer to finish", ErrReleaseTooEarly)
		}
		f.metrics.Release("invalid_ticket")
		return "", NewBusinessError("GATE_TICKET_INVALID", "This link has expired. Please start again.", fmt.Errorf("%w: %w", ErrGateTicketInvalid, err))
	}

	destination, err := f.codec.Decode(token)
	if err != nil {
		f.metrics.Release("invalid_token")
		return "", NewBusinessError("INVALID_LINK_FORMAT", "Invalid link format", err)
	}

	f.metrics.Release("ok")
	f.logger.Info("gate released", zap.String("ip", clientIP(metadata)))
	return destination, nil
}

// Watch streams the gate view once per tick until the step's control is enabled or ctx is done
func (f *GateFlowImpl) Watch(ctx context.Context, params models.GateParams) <-chan models.GateView {
	return f.runner.Start(ctx, params, f.timing)
}

func (f *GateFlowImpl) Timing() models.GateTiming {
	return f.timing
}

func (f *GateFlowImpl) pickAnchor(ctx context.Context) (string, error) {
	id, err := f.content.PickRandomPostID(ctx)
	switch {
	case err == nil && id != "":
		return id, nil
	case err == nil, errors.Is(err, services.ErrNoPosts):
		return "", NewBusinessError("ROUTING_UNAVAILABLE", "System busy. Please try again.", ErrRoutingUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "", err
	case errors.Is(err, ErrContentSource):
		return "", NewBusinessError("CONTENT_SOURCE_FAILED", "Failed to reach the blog. Please try again.", err)
	default:
		return "", NewBusinessError("CONTENT_SOURCE_FAILED", "Failed to reach the blog. Please try again.", fmt.Errorf("%w: %w", ErrContentSource, err))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clientIP(metadata *ClientMetadata) string {
	if metadata == nil {
		return ""
	}
	return metadata.IPAddress
}
