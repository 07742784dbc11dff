package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/amirphl/safelink/utils"
	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
)

// ErrCaptchaRejected is returned when a rotate challenge is unknown, expired or answered wrongly
var ErrCaptchaRejected = errors.New("captcha rejected")

// CaptchaService issues rotate challenges for the gate's human check.
// Challenges are single use and kept in memory until they expire.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) error
	Close()
}

// RotateChallenge carries the images the page renders for one challenge
type RotateChallenge struct {
	ID                string `json:"id"`
	MasterImageBase64 string `json:"master_image"`
	ThumbImageBase64  string `json:"thumb_image"`
}

type captchaServiceImpl struct {
	rotator rotate.Captcha
	store   *challengeStore
	padding int // accepted angle difference in degrees
}

// NewCaptchaServiceRotate constructs a CaptchaService using rotate mode
func NewCaptchaServiceRotate(ttl time.Duration, padding int, imgSizePx int, clock utils.Clock) (CaptchaService, error) {
	if imgSizePx <= 0 {
		imgSizePx = 220
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(generateRotateBackgrounds(3, imgSizePx)),
	)

	return &captchaServiceImpl{
		rotator: builder.Make(),
		store:   newChallengeStore(ttl, clock),
		padding: padding,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate rotate captcha: %w", err)
	}

	block := captData.GetData()
	if block == nil {
		return nil, fmt.Errorf("rotate captcha returned no data")
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, fmt.Errorf("failed to encode master image: %w", err)
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, fmt.Errorf("failed to encode thumb image: %w", err)
	}

	id := uuid.NewString()
	s.store.Put(id, block.Angle)

	return &RotateChallenge{
		ID:                id,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
	}, nil
}

func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) error {
	// consumed on success or failure
	target, ok := s.store.Take(challengeID)
	if !ok {
		return ErrCaptchaRejected
	}
	if !rotate.Validate(int(math.Round(userAngle)), target, s.padding) {
		return ErrCaptchaRejected
	}
	return nil
}

func (s *captchaServiceImpl) Close() {
	s.store.Close()
}

type challenge struct {
	targetAngle int
	expiresAt   time.Time
}

type challengeStore struct {
	mu      sync.Mutex
	m       map[string]challenge
	ttl     time.Duration
	clock   utils.Clock
	stop    chan struct{}
	stopped sync.Once
}

func newChallengeStore(ttl time.Duration, clock utils.Clock) *challengeStore {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	cs := &challengeStore{
		m:     make(map[string]challenge),
		ttl:   ttl,
		clock: clock,
		stop:  make(chan struct{}),
	}
	go cs.sweepLoop(time.Minute)
	return cs
}

func (s *challengeStore) Put(id string, angle int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[id] = challenge{targetAngle: angle, expiresAt: s.clock.Now().Add(s.ttl)}
}

// Take removes the challenge and returns its angle if it has not expired
func (s *challengeStore) Take(id string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.m[id]
	if !ok {
		return 0, false
	}
	delete(s.m, id)
	if s.clock.Now().After(c.expiresAt) {
		return 0, false
	}
	return c.targetAngle, true
}

func (s *challengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.m)
}

func (s *challengeStore) sweep() {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range s.m {
		if now.After(v.expiresAt) {
			delete(s.m, k)
		}
	}
}

func (s *challengeStore) sweepLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *challengeStore) Close() {
	s.stopped.Do(func() { close(s.stop) })
}

func generateRotateBackgrounds(n int, size int) []image.Image {
	imgs := make([]image.Image, 0, max(n, 1))
	for range max(n, 1) {
		imgs = append(imgs, newGradientImage(size))
	}
	return imgs
}

func newGradientImage(size int) image.Image {
	rgba := image.NewRGBA(image.Rect(0, 0, size, size))
	half := float64(size) / 2
	for y := range size {
		for x := range size {
			dist := math.Hypot(float64(x)-half, float64(y)-half)
			t := math.Min(dist/half, 1)
			base := uint8(210 - int(140*t))
			noise := uint8(rand.IntN(24))
			rgba.Set(x, y, color.RGBA{R: base, G: base/2 + noise, B: 255 - base/3, A: 255})
		}
	}
	// a couple of shapes give the rotation something to anchor on
	stripe(rgba, size/8, size/8, size/2, size/14, color.RGBA{R: 255, G: 255, B: 255, A: 40})
	stripe(rgba, size/2, size/3, size/3, size/9, color.RGBA{A: 30})
	return rgba
}

func stripe(dst *image.RGBA, x, y, w, h int, c color.RGBA) {
	draw.Draw(dst, image.Rect(x, y, x+w, y+h), &image.Uniform{C: c}, image.Point{}, draw.Over)
}
