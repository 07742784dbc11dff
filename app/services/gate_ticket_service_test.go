package services

import (
	"testing"
	"time"

	"github.com/amirphl/safelink/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTicketSecret = "test-secret-key-for-gate-tickets-32c"

func newTestTicketService(t *testing.T) (GateTicketService, *utils.FixedClock) {
	t.Helper()
	clock := &utils.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, err := NewGateTicketService(testTicketSecret, 30*time.Minute, "safelink-test", clock)
	require.NoError(t, err)
	return svc, clock
}

func TestNewGateTicketService(t *testing.T) {
	tests := []struct {
		name        string
		secret      string
		ttl         time.Duration
		expectError bool
	}{
		{name: "valid", secret: testTicketSecret, ttl: time.Minute},
		{name: "missing secret", secret: "", ttl: time.Minute, expectError: true},
		{name: "zero ttl", secret: testTicketSecret, ttl: 0, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewGateTicketService(tt.secret, tt.ttl, "issuer", nil)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, svc)
		})
	}
}

func TestGateTicket_NotValidBeforeWait(t *testing.T) {
	svc, clock := newTestTicketService(t)

	ticket, err := svc.Issue(GateTicketVerify, "tok", 5*time.Second)
	require.NoError(t, err)

	for range 5 {
		_, err = svc.Validate(ticket, GateTicketVerify, "tok")
		assert.ErrorIs(t, err, ErrTicketNotYetValid)
		clock.Advance(time.Second)
	}

	claims, err := svc.Validate(ticket, GateTicketVerify, "tok")
	require.NoError(t, err)
	assert.Equal(t, GateTicketVerify, claims.Purpose)
	assert.Equal(t, "tok", claims.Token)
	assert.NotEmpty(t, claims.ID)
}

func TestGateTicket_FractionalIssueTimeWaitsFullDwell(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 900*int(time.Millisecond), time.UTC)
	clock := &utils.FixedClock{T: start}
	svc, err := NewGateTicketService(testTicketSecret, 30*time.Minute, "safelink-test", clock)
	require.NoError(t, err)

	for _, wait := range []time.Duration{5 * time.Second, 15 * time.Second} {
		clock.T = start
		ticket, err := svc.Issue(GateTicketVerify, "tok", wait)
		require.NoError(t, err)

		clock.T = start.Add(wait - 900*time.Millisecond)
		_, err = svc.Validate(ticket, GateTicketVerify, "tok")
		assert.ErrorIs(t, err, ErrTicketNotYetValid, "wait %s", wait)

		clock.T = start.Add(wait - time.Millisecond)
		_, err = svc.Validate(ticket, GateTicketVerify, "tok")
		assert.ErrorIs(t, err, ErrTicketNotYetValid, "wait %s", wait)

		clock.T = start.Add(wait + 100*time.Millisecond)
		_, err = svc.Validate(ticket, GateTicketVerify, "tok")
		assert.NoError(t, err, "wait %s", wait)
	}
}

func TestGateTicket_Expired(t *testing.T) {
	svc, clock := newTestTicketService(t)

	ticket, err := svc.Issue(GateTicketRelease, "tok", 15*time.Second)
	require.NoError(t, err)

	clock.Advance(15*time.Second + 31*time.Minute)
	_, err = svc.Validate(ticket, GateTicketRelease, "tok")
	assert.ErrorIs(t, err, ErrTicketExpired)
}

func TestGateTicket_BoundToPurposeAndToken(t *testing.T) {
	svc, _ := newTestTicketService(t)

	ticket, err := svc.Issue(GateTicketVerify, "tok", 0)
	require.NoError(t, err)

	_, err = svc.Validate(ticket, GateTicketRelease, "tok")
	assert.ErrorIs(t, err, ErrTicketInvalid)

	_, err = svc.Validate(ticket, GateTicketVerify, "other")
	assert.ErrorIs(t, err, ErrTicketInvalid)

	_, err = svc.Validate("", GateTicketVerify, "tok")
	assert.ErrorIs(t, err, ErrTicketInvalid)
}

func TestGateTicket_WrongSecret(t *testing.T) {
	svc, clock := newTestTicketService(t)
	other, err := NewGateTicketService("another-secret-key-for-gate-tickets-32", time.Minute, "safelink-test", clock)
	require.NoError(t, err)

	ticket, err := other.Issue(GateTicketVerify, "tok", 0)
	require.NoError(t, err)

	_, err = svc.Validate(ticket, GateTicketVerify, "tok")
	assert.ErrorIs(t, err, ErrTicketInvalid)
}
