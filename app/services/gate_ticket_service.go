package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/safelink/utils"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Gate ticket error constants
var (
	ErrTicketNotYetValid = errors.New("gate ticket is not valid yet")
	ErrTicketExpired     = errors.New("gate ticket has expired")
	ErrTicketInvalid     = errors.New("invalid gate ticket")
)

// GateTicketPurpose names the gate action a ticket unlocks
type GateTicketPurpose string

const (
	GateTicketVerify  GateTicketPurpose = "verify"
	GateTicketRelease GateTicketPurpose = "release"
)

// GateTicketService issues and checks the signed tickets embedded in gate pages.
// A ticket's not-before time is the render time plus the wait the visitor must sit
// through, so the server enforces the dwell and the countdown without storing anything.
type GateTicketService interface {
	Issue(purpose GateTicketPurpose, token string, wait time.Duration) (string, error)
	Validate(ticket string, purpose GateTicketPurpose, token string) (*GateTicketClaims, error)
}

// GateTicketClaims represents the claims in a gate ticket
type GateTicketClaims struct {
	Purpose GateTicketPurpose `json:"purpose"`
	Token   string            `json:"tok"`
	jwt.RegisteredClaims
}

// GateTicketServiceImpl implements GateTicketService with HS256 JWTs
type GateTicketServiceImpl struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
	clock     utils.Clock
}

// NewGateTicketService creates a new gate ticket service
func NewGateTicketService(secretKey string, ttl time.Duration, issuer string, clock utils.Clock) (GateTicketService, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("secret key is required for gate tickets")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("ticket ttl must be positive")
	}
	if clock == nil {
		clock = utils.SystemClock{}
	}

	return &GateTicketServiceImpl{
		secretKey: []byte(secretKey),
		ttl:       ttl,
		issuer:    issuer,
		clock:     clock,
	}, nil
}

// Issue signs a ticket for the given token that becomes valid after wait
func (s *GateTicketServiceImpl) Issue(purpose GateTicketPurpose, token string, wait time.Duration) (string, error) {
	now := s.clock.Now()
	notBefore := ceilSecond(now.Add(wait))

	claims := GateTicketClaims{
		Purpose: purpose,
		Token:   token,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(notBefore),
			ExpiresAt: jwt.NewNumericDate(notBefore.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secretKey)
	if err != nil {
		return "", fmt.Errorf("failed to sign gate ticket: %w", err)
	}
	return signed, nil
}

// Validate checks the signature, the timing window and the bound token of a ticket
func (s *GateTicketServiceImpl) Validate(ticket string, purpose GateTicketPurpose, token string) (*GateTicketClaims, error) {
	if ticket == "" {
		return nil, ErrTicketInvalid
	}

	claims := &GateTicketClaims{}
	_, err := jwt.ParseWithClaims(ticket, claims, func(t *jwt.Token) (any, error) {
		return s.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithTimeFunc(s.clock.Now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTicketNotYetValid
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTicketExpired
		default:
			return nil, ErrTicketInvalid
		}
	}

	if claims.Purpose != purpose || claims.Token != token {
		return nil, ErrTicketInvalid
	}

	return claims, nil
}

// ceilSecond rounds t up to a whole second. NumericDate drops the fraction.
func ceilSecond(t time.Time) time.Time {
	truncated := t.Truncate(time.Second)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Second)
}
