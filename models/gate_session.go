package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// GateStep is the visible phase of the link gate
type GateStep string

const (
	GateStepAwaitingVerification GateStep = "AWAITING_VERIFICATION"
	GateStepAwaitingTimer        GateStep = "AWAITING_TIMER"
)

// String returns the string representation of the step
func (s GateStep) String() string {
	return string(s)
}

// Valid checks if the step is valid
func (s GateStep) Valid() bool {
	switch s {
	case GateStepAwaitingVerification, GateStepAwaitingTimer:
		return true
	default:
		return false
	}
}

// QueryValue returns the value carried in the step query parameter
func (s GateStep) QueryValue() string {
	switch s {
	case GateStepAwaitingVerification:
		return "1"
	case GateStepAwaitingTimer:
		return "2"
	default:
		return ""
	}
}

// ErrInvalidGateParams is returned when the step or token query parameters are malformed
var ErrInvalidGateParams = errors.New("invalid gate parameters")

const (
	gateStepParam  = "step"
	gateTokenParam = "url"
)

// GateParams is the gate state carried in a page URL
type GateParams struct {
	Step  GateStep
	Token string
}

// ParseGateParams reads the gate parameters from a query string.
// It returns nil, nil when neither parameter is present.
func ParseGateParams(values url.Values) (*GateParams, error) {
	hasStep := values.Has(gateStepParam)
	hasToken := values.Has(gateTokenParam)
	if !hasStep && !hasToken {
		return nil, nil
	}

	token := strings.TrimSpace(values.Get(gateTokenParam))
	if token == "" {
		return nil, fmt.Errorf("%w: missing token", ErrInvalidGateParams)
	}

	var step GateStep
	switch values.Get(gateStepParam) {
	case "1":
		step = GateStepAwaitingVerification
	case "2":
		step = GateStepAwaitingTimer
	default:
		return nil, fmt.Errorf("%w: step must be 1 or 2", ErrInvalidGateParams)
	}

	return &GateParams{Step: step, Token: token}, nil
}

// Query encodes the parameters as a query string
func (p GateParams) Query() string {
	v := url.Values{}
	v.Set(gateStepParam, p.Step.QueryValue())
	v.Set(gateTokenParam, p.Token)
	return v.Encode()
}

// PostURL returns the path of the post page hosting the gate at this step
func (p GateParams) PostURL(anchor string) string {
	return "/post/" + url.PathEscape(anchor) + "?" + p.Query()
}

// GateTiming holds the gate durations in ticks of one second
type GateTiming struct {
	VerifyDwell int
	Countdown   int
}

// GateView is what a gate page shows after a number of elapsed ticks
type GateView struct {
	Step             GateStep `json:"step"`
	RemainingSeconds int      `json:"remaining_seconds"`
	DwellRemaining   int      `json:"dwell_remaining"`
	VerifyEnabled    bool     `json:"verify_enabled"`
	FinishEnabled    bool     `json:"finish_enabled"`
	ProgressPercent  int      `json:"progress_percent"`
}

// DeriveGateView computes the displayed gate state from the URL parameters and
// the ticks elapsed since the page was loaded. It depends on nothing else, so
// re-rendering never changes the result.
func DeriveGateView(params GateParams, elapsedTicks int, timing GateTiming) GateView {
	elapsed := max(elapsedTicks, 0)
	view := GateView{Step: params.Step}

	switch params.Step {
	case GateStepAwaitingVerification:
		view.DwellRemaining = max(0, timing.VerifyDwell-elapsed)
		view.RemainingSeconds = timing.Countdown
		view.VerifyEnabled = view.DwellRemaining == 0
		view.ProgressPercent = percentDone(timing.VerifyDwell, view.DwellRemaining)
	case GateStepAwaitingTimer:
		view.RemainingSeconds = max(0, timing.Countdown-elapsed)
		view.FinishEnabled = view.RemainingSeconds == 0
		view.ProgressPercent = percentDone(timing.Countdown, view.RemainingSeconds)
	}

	return view
}

func percentDone(total, remaining int) int {
	if total <= 0 {
		return 100
	}
	return (total - remaining) * 100 / total
}

// GateSession is the live state of one gate page. It is rebuilt from the URL on
// every load and never persisted. Step changes happen in the gate flow, which
// checks the signed tickets; the session only counts ticks.
type GateSession struct {
	Step             GateStep
	Token            string
	RoutingAnchor    string
	RemainingSeconds int
	DwellRemaining   int
	Verified         bool

	timing GateTiming
}

// NewGateSession starts a session at the step given by the parameters
func NewGateSession(params GateParams, anchor string, timing GateTiming) *GateSession {
	s := &GateSession{
		Step:             params.Step,
		Token:            params.Token,
		RoutingAnchor:    anchor,
		RemainingSeconds: timing.Countdown,
		timing:           timing,
	}
	if params.Step == GateStepAwaitingVerification {
		s.DwellRemaining = timing.VerifyDwell
	} else {
		s.Verified = true
	}
	return s
}

// Tick advances the session by one second. Counters never go below zero.
func (s *GateSession) Tick() {
	switch s.Step {
	case GateStepAwaitingVerification:
		if s.DwellRemaining > 0 {
			s.DwellRemaining--
		}
	case GateStepAwaitingTimer:
		if s.RemainingSeconds > 0 {
			s.RemainingSeconds--
		}
	}
}

// VerifyEnabled reports whether the verify control accepts input
func (s *GateSession) VerifyEnabled() bool {
	return s.Step == GateStepAwaitingVerification && s.DwellRemaining == 0
}

// CanFinish reports whether the destination may be revealed
func (s *GateSession) CanFinish() bool {
	return s.Step == GateStepAwaitingTimer && s.RemainingSeconds == 0
}

// View returns the displayed state of the session
func (s *GateSession) View() GateView {
	view := GateView{
		Step:             s.Step,
		RemainingSeconds: s.RemainingSeconds,
		DwellRemaining:   s.DwellRemaining,
		VerifyEnabled:    s.VerifyEnabled(),
		FinishEnabled:    s.CanFinish(),
	}
	switch s.Step {
	case GateStepAwaitingVerification:
		view.ProgressPercent = percentDone(s.timing.VerifyDwell, s.DwellRemaining)
	case GateStepAwaitingTimer:
		view.ProgressPercent = percentDone(s.timing.Countdown, s.RemainingSeconds)
	}
	return view
}
