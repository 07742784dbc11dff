package dto

// GateVerifyRequest is posted by the step 1 page
type GateVerifyRequest struct {
	Token        string  `json:"url" form:"url" validate:"required,max=8192"`
	Ticket       string  `json:"ticket" form:"ticket" validate:"required,max=2048"`
	CaptchaID    string  `json:"captcha_id,omitempty" form:"captcha_id" validate:"omitempty,max=64"`
	CaptchaAngle float64 `json:"captcha_angle,omitempty" form:"captcha_angle" validate:"gte=0,lte=360"`
}

// GateReleaseRequest is posted by the step 2 page once the countdown is over
type GateReleaseRequest struct {
	Token  string `json:"url" form:"url" validate:"required,max=8192"`
	Ticket string `json:"ticket" form:"ticket" validate:"required,max=2048"`
}

// GateVerifyResponse carries the step 2 location for script clients
type GateVerifyResponse struct {
	NextURL string `json:"next_url"`
}

// GateCaptcha is the rotate challenge rendered on the step 1 page
type GateCaptcha struct {
	ID          string `json:"id"`
	MasterImage string `json:"master_image"`
	ThumbImage  string `json:"thumb_image"`
}

// GatePage is everything a post page needs to render the gate overlay
type GatePage struct {
	Step             string       `json:"step"`
	Token            string       `json:"url"`
	Ticket           string       `json:"ticket"`
	Action           string       `json:"action"`
	EventsURL        string       `json:"events_url"`
	VerifyDwell      int          `json:"verify_dwell"`
	CountdownSeconds int          `json:"countdown_seconds"`
	RemainingSeconds int          `json:"remaining_seconds"`
	VerifyEnabled    bool         `json:"verify_enabled"`
	FinishEnabled    bool         `json:"finish_enabled"`
	Captcha          *GateCaptcha `json:"captcha,omitempty"`
}

// IsVerification reports whether the page shows the human check
func (p *GatePage) IsVerification() bool {
	return p != nil && p.Step == "1"
}

// WaitSeconds is how long the page keeps its button disabled after loading
func (p *GatePage) WaitSeconds() int {
	if p.IsVerification() {
		return p.VerifyDwell
	}
	return p.RemainingSeconds
}
