package models

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultTiming = GateTiming{VerifyDwell: 5, Countdown: 15}

func TestParseGateParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    *GateParams
		wantErr bool
	}{
		{name: "no gate", query: "", want: nil},
		{name: "unrelated params", query: "page=abc", want: nil},
		{name: "step one", query: "step=1&url=aHR0cHM6Ly9leGFtcGxlLmNvbQ", want: &GateParams{Step: GateStepAwaitingVerification, Token: "aHR0cHM6Ly9leGFtcGxlLmNvbQ"}},
		{name: "step two", query: "step=2&url=abc", want: &GateParams{Step: GateStepAwaitingTimer, Token: "abc"}},
		{name: "invalid step", query: "step=3&url=abc", wantErr: true},
		{name: "missing step", query: "url=abc", wantErr: true},
		{name: "missing token", query: "step=1", wantErr: true},
		{name: "empty token", query: "step=2&url=", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := ParseGateParams(values)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidGateParams))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGateParams_PostURL(t *testing.T) {
	p := GateParams{Step: GateStepAwaitingVerification, Token: "abc-_"}
	assert.Equal(t, "/post/12345?step=1&url=abc-_", p.PostURL("12345"))

	p.Step = GateStepAwaitingTimer
	assert.Equal(t, "/post/9?step=2&url=abc-_", p.PostURL("9"))
}

func TestDeriveGateView_CountdownMonotonic(t *testing.T) {
	params := GateParams{Step: GateStepAwaitingTimer, Token: "abc"}

	prev := DeriveGateView(params, 0, defaultTiming)
	assert.Equal(t, 15, prev.RemainingSeconds)
	assert.False(t, prev.FinishEnabled)

	for n := 1; n <= 40; n++ {
		view := DeriveGateView(params, n, defaultTiming)
		assert.LessOrEqual(t, view.RemainingSeconds, prev.RemainingSeconds)
		assert.GreaterOrEqual(t, view.RemainingSeconds, 0)
		assert.Equal(t, max(0, 15-n), view.RemainingSeconds)
		assert.Equal(t, view.RemainingSeconds == 0, view.FinishEnabled)
		prev = view
	}
	assert.Equal(t, 100, prev.ProgressPercent)
}

func TestDeriveGateView_VerifyDwell(t *testing.T) {
	params := GateParams{Step: GateStepAwaitingVerification, Token: "abc"}

	for n := range 5 {
		// re-rendering at the same tick count never enables verify early
		for range 3 {
			view := DeriveGateView(params, n, defaultTiming)
			assert.False(t, view.VerifyEnabled, "tick %d", n)
			assert.False(t, view.FinishEnabled)
		}
	}
	for n := 5; n < 10; n++ {
		assert.True(t, DeriveGateView(params, n, defaultTiming).VerifyEnabled)
	}
}

func TestDeriveGateView_NegativeTicks(t *testing.T) {
	view := DeriveGateView(GateParams{Step: GateStepAwaitingTimer, Token: "x"}, -3, defaultTiming)
	assert.Equal(t, 15, view.RemainingSeconds)
	assert.Equal(t, 0, view.ProgressPercent)
}

func TestGateSession_TickMatchesDerivedView(t *testing.T) {
	for _, step := range []GateStep{GateStepAwaitingVerification, GateStepAwaitingTimer} {
		params := GateParams{Step: step, Token: "abc"}
		s := NewGateSession(params, "1", defaultTiming)
		for n := 0; n <= 20; n++ {
			assert.Equal(t, DeriveGateView(params, n, defaultTiming), s.View(), "step %s tick %d", step, n)
			s.Tick()
		}
	}
}

func TestGateSession_ControlsFollowTicks(t *testing.T) {
	s := NewGateSession(GateParams{Step: GateStepAwaitingVerification, Token: "abc"}, "100", defaultTiming)
	assert.False(t, s.Verified)
	for range 5 {
		assert.False(t, s.VerifyEnabled(), "verify stays disabled during the dwell")
		s.Tick()
	}
	assert.True(t, s.VerifyEnabled())
	assert.False(t, s.CanFinish())

	s = NewGateSession(GateParams{Step: GateStepAwaitingTimer, Token: "abc"}, "200", defaultTiming)
	assert.True(t, s.Verified)
	assert.False(t, s.VerifyEnabled())
	assert.Equal(t, "200", s.RoutingAnchor)
	for range 15 {
		assert.False(t, s.CanFinish())
		s.Tick()
	}
	assert.True(t, s.CanFinish())
	s.Tick()
	assert.Equal(t, 0, s.RemainingSeconds)
	assert.Equal(t, 100, s.View().ProgressPercent)
}

func TestGateStep_Valid(t *testing.T) {
	assert.True(t, GateStepAwaitingTimer.Valid())
	assert.False(t, GateStep("DONE").Valid())
	assert.Equal(t, "", GateStep("DONE").QueryValue())
	assert.Equal(t, "AWAITING_TIMER", GateStepAwaitingTimer.String())
}
