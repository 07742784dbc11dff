package businessflow

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/models"
	testutil "github.com/amirphl/safelink/testing"
	"github.com/amirphl/safelink/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gateFixture struct {
	flow    *GateFlowImpl
	codec   services.DestinationCodec
	content *testutil.FakeContentSource
	clock   *utils.FixedClock
	slept   []time.Duration
}

type stubCaptcha struct {
	verifyErr error
	verified  []string
}

func (s *stubCaptcha) GenerateRotate(ctx context.Context) (*services.RotateChallenge, error) {
	return &services.RotateChallenge{ID: "challenge-1", MasterImageBase64: "master", ThumbImageBase64: "thumb"}, nil
}

func (s *stubCaptcha) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) error {
	s.verified = append(s.verified, challengeID)
	return s.verifyErr
}

func (s *stubCaptcha) Close() {}

func newGateFixture(t *testing.T, captcha services.CaptchaService) *gateFixture {
	t.Helper()
	clock := &utils.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tickets, err := services.NewGateTicketService("flow-test-secret-with-enough-bytes!!", 10*time.Minute, "safelink-test", clock)
	require.NoError(t, err)

	codec := services.NewDestinationCodec()
	content := testutil.NewFakeContentSource(testutil.SamplePosts(3)...)
	fx := &gateFixture{codec: codec, content: content, clock: clock}

	flow := NewGateFlow(
		codec,
		content,
		tickets,
		captcha,
		services.NewCountdownRunner(time.Millisecond),
		services.NewGateMetrics(prometheus.NewRegistry()),
		GateFlowConfig{
			VerifyDwell:      utils.DefaultVerifyDwell,
			ProcessingDelay:  utils.DefaultProcessingDelay,
			CountdownSeconds: utils.DefaultCountdownSeconds,
		},
		nil,
	).(*GateFlowImpl)
	flow.sleepFor = func(ctx context.Context, d time.Duration) error {
		fx.slept = append(fx.slept, d)
		return ctx.Err()
	}
	fx.flow = flow
	return fx
}

func parseGateURL(t *testing.T, raw string) (string, *models.GateParams) {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	params, err := models.ParseGateParams(u.Query())
	require.NoError(t, err)
	require.NotNil(t, params)
	return u.Path, params
}

func TestGateFlow_FullScenario(t *testing.T) {
	fx := newGateFixture(t, nil)
	ctx := context.Background()
	md := NewClientMetadata("203.0.113.7", "test-agent")
	destination := "https://example.com/a?b=c"

	stepOneURL, err := fx.flow.EnterWithDestination(ctx, destination, md)
	require.NoError(t, err)
	path, params := parseGateURL(t, stepOneURL)
	assert.Equal(t, "/post/a-post", path)
	assert.Equal(t, models.GateStepAwaitingVerification, params.Step)
	expectedToken, err := fx.codec.Encode(destination)
	require.NoError(t, err)
	assert.Equal(t, expectedToken, params.Token)

	page, err := fx.flow.LoadStep(ctx, *params)
	require.NoError(t, err)
	assert.Equal(t, "1", page.Step)
	assert.Equal(t, "/gate/verify", page.Action)
	assert.False(t, page.VerifyEnabled)
	assert.Nil(t, page.Captcha)

	// verify is rejected until the dwell has passed
	_, err = fx.flow.Verify(ctx, &dto.GateVerifyRequest{Token: page.Token, Ticket: page.Ticket}, md)
	require.Error(t, err)
	assert.True(t, IsVerifyTooEarly(err))
	assert.Empty(t, fx.slept)

	fx.clock.Advance(utils.DefaultVerifyDwell)
	stepTwoURL, err := fx.flow.Verify(ctx, &dto.GateVerifyRequest{Token: page.Token, Ticket: page.Ticket}, md)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{utils.DefaultProcessingDelay}, fx.slept)

	path, params = parseGateURL(t, stepTwoURL)
	assert.Equal(t, "/post/b-post", path)
	assert.Equal(t, models.GateStepAwaitingTimer, params.Step)
	assert.Equal(t, expectedToken, params.Token)

	page, err = fx.flow.LoadStep(ctx, *params)
	require.NoError(t, err)
	assert.Equal(t, "2", page.Step)
	assert.Equal(t, "/gate/release", page.Action)
	assert.Equal(t, utils.DefaultCountdownSeconds, page.RemainingSeconds)
	assert.False(t, page.FinishEnabled)

	_, err = fx.flow.Release(ctx, &dto.GateReleaseRequest{Token: page.Token, Ticket: page.Ticket}, md)
	require.Error(t, err)
	assert.True(t, IsReleaseTooEarly(err))

	fx.clock.Advance(time.Duration(utils.DefaultCountdownSeconds) * time.Second)
	got, err := fx.flow.Release(ctx, &dto.GateReleaseRequest{Token: page.Token, Ticket: page.Ticket}, md)
	require.NoError(t, err)
	assert.Equal(t, destination, got)
}

func TestGateFlow_ReleaseInvalidToken(t *testing.T) {
	fx := newGateFixture(t, nil)
	ctx := context.Background()

	stepOneURL, err := fx.flow.Enter(ctx, "not-a-real-token", GateEntryVerify, nil)
	require.NoError(t, err)
	_, params := parseGateURL(t, stepOneURL)

	params.Step = models.GateStepAwaitingTimer
	page, err := fx.flow.LoadStep(ctx, *params)
	require.NoError(t, err)

	fx.clock.Advance(time.Duration(utils.DefaultCountdownSeconds) * time.Second)
	dest, err := fx.flow.Release(ctx, &dto.GateReleaseRequest{Token: page.Token, Ticket: page.Ticket}, nil)
	require.Error(t, err)
	assert.Empty(t, dest)
	assert.True(t, IsDecode(err))

	var be *BusinessError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, "Invalid link format", be.Message)
}

func TestGateFlow_EnterNormalizesUnsafeCharacters(t *testing.T) {
	fx := newGateFixture(t, nil)

	stepOneURL, err := fx.flow.Enter(context.Background(), "ab+cd/ef==", GateEntryVerify, nil)
	require.NoError(t, err)
	_, params := parseGateURL(t, stepOneURL)
	assert.Equal(t, "ab-cd_ef", params.Token)
}

func TestGateFlow_EnterErrors(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(fx *gateFixture)
		token   string
		checkFn func(error) bool
	}{
		{
			name:    "empty token",
			token:   "  ",
			checkFn: IsInvalidGateParams,
		},
		{
			name:    "no posts",
			token:   "abc",
			setup:   func(fx *gateFixture) { fx.content.PickErr = services.ErrNoPosts },
			checkFn: IsRoutingUnavailable,
		},
		{
			name:    "content source down",
			token:   "abc",
			setup:   func(fx *gateFixture) { fx.content.Err = services.ErrContentSource },
			checkFn: IsContentSource,
		},
		{
			name:    "unclassified failure is a content source error",
			token:   "abc",
			setup:   func(fx *gateFixture) { fx.content.PickErr = assert.AnError },
			checkFn: IsContentSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newGateFixture(t, nil)
			if tt.setup != nil {
				tt.setup(fx)
			}
			got, err := fx.flow.Enter(context.Background(), tt.token, GateEntryVerify, nil)
			require.Error(t, err)
			assert.Empty(t, got)
			assert.True(t, tt.checkFn(err), "unexpected error: %v", err)
		})
	}
}

func TestGateFlow_EnterWithInvalidDestination(t *testing.T) {
	fx := newGateFixture(t, nil)

	_, err := fx.flow.EnterWithDestination(context.Background(), "not a url", nil)
	require.Error(t, err)
	assert.True(t, IsInvalidInput(err))
	assert.Zero(t, fx.content.CallCount("PickRandomPostID"))
}

func TestGateFlow_VerifyRoutingUnavailableKeepsStepOne(t *testing.T) {
	fx := newGateFixture(t, nil)
	ctx := context.Background()

	page, err := fx.flow.LoadStep(ctx, models.GateParams{Step: models.GateStepAwaitingVerification, Token: "abc"})
	require.NoError(t, err)
	fx.clock.Advance(utils.DefaultVerifyDwell)
	fx.content.PickErr = services.ErrNoPosts

	next, err := fx.flow.Verify(ctx, &dto.GateVerifyRequest{Token: "abc", Ticket: page.Ticket}, nil)
	require.Error(t, err)
	assert.Empty(t, next)
	assert.True(t, IsRoutingUnavailable(err))
}

func TestGateFlow_VerifyRejectsForeignTicket(t *testing.T) {
	fx := newGateFixture(t, nil)
	ctx := context.Background()

	page, err := fx.flow.LoadStep(ctx, models.GateParams{Step: models.GateStepAwaitingVerification, Token: "abc"})
	require.NoError(t, err)
	fx.clock.Advance(utils.DefaultVerifyDwell)

	_, err = fx.flow.Verify(ctx, &dto.GateVerifyRequest{Token: "other", Ticket: page.Ticket}, nil)
	require.Error(t, err)
	assert.True(t, IsGateTicketInvalid(err))

	// a step 2 ticket cannot be used to verify
	release, err := fx.flow.LoadStep(ctx, models.GateParams{Step: models.GateStepAwaitingTimer, Token: "abc"})
	require.NoError(t, err)
	fx.clock.Advance(time.Minute)
	_, err = fx.flow.Verify(ctx, &dto.GateVerifyRequest{Token: "abc", Ticket: release.Ticket}, nil)
	require.Error(t, err)
	assert.True(t, IsGateTicketInvalid(err))
}

func TestGateFlow_VerifyCancelledDuringProcessing(t *testing.T) {
	fx := newGateFixture(t, nil)
	page, err := fx.flow.LoadStep(context.Background(), models.GateParams{Step: models.GateStepAwaitingVerification, Token: "abc"})
	require.NoError(t, err)
	fx.clock.Advance(utils.DefaultVerifyDwell)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = fx.flow.Verify(ctx, &dto.GateVerifyRequest{Token: "abc", Ticket: page.Ticket}, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fx.content.CallCount("PickRandomPostID"))
}

func TestGateFlow_Captcha(t *testing.T) {
	captcha := &stubCaptcha{}
	fx := newGateFixture(t, captcha)
	ctx := context.Background()

	page, err := fx.flow.LoadStep(ctx, models.GateParams{Step: models.GateStepAwaitingVerification, Token: "abc"})
	require.NoError(t, err)
	require.NotNil(t, page.Captcha)
	assert.Equal(t, "challenge-1", page.Captcha.ID)
	fx.clock.Advance(utils.DefaultVerifyDwell)

	captcha.verifyErr = services.ErrCaptchaRejected
	_, err = fx.flow.Verify(ctx, &dto.GateVerifyRequest{Token: "abc", Ticket: page.Ticket, CaptchaID: "challenge-1", CaptchaAngle: 10}, nil)
	require.Error(t, err)
	assert.True(t, IsCaptchaFailed(err))

	captcha.verifyErr = nil
	next, err := fx.flow.Verify(ctx, &dto.GateVerifyRequest{Token: "abc", Ticket: page.Ticket, CaptchaID: "challenge-1", CaptchaAngle: 10}, nil)
	require.NoError(t, err)
	assert.Contains(t, next, "step=2")
	assert.Equal(t, []string{"challenge-1", "challenge-1"}, captcha.verified)

	// step 2 pages carry no challenge
	page, err = fx.flow.LoadStep(ctx, models.GateParams{Step: models.GateStepAwaitingTimer, Token: "abc"})
	require.NoError(t, err)
	assert.Nil(t, page.Captcha)
}

func TestGateFlow_WatchCountsDown(t *testing.T) {
	fx := newGateFixture(t, nil)
	params := models.GateParams{Step: models.GateStepAwaitingTimer, Token: "abc"}

	var views []models.GateView
	for v := range fx.flow.Watch(context.Background(), params) {
		views = append(views, v)
	}

	require.Len(t, views, utils.DefaultCountdownSeconds+1)
	assert.Equal(t, utils.DefaultCountdownSeconds, views[0].RemainingSeconds)
	for i := 1; i < len(views); i++ {
		assert.Equal(t, views[i-1].RemainingSeconds-1, views[i].RemainingSeconds)
	}
	assert.True(t, views[len(views)-1].FinishEnabled)
}

func TestSleepCtx(t *testing.T) {
	require.NoError(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepCtx(ctx, time.Hour), context.Canceled)
}
