// Package businessflow contains the core business logic and use cases for the link gate and the blog
package businessflow

import (
	"errors"
	"fmt"

	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/models"
)

// Business flow error constants
var (
	// Destination codec errors
	ErrInvalidInput = services.ErrInvalidInput
	ErrDecode       = services.ErrDecode

	// Gate errors
	ErrInvalidGateParams  = models.ErrInvalidGateParams
	ErrRoutingUnavailable = errors.New("no post available to host the gate")
	ErrVerifyTooEarly     = errors.New("verification is not available yet")
	ErrReleaseTooEarly    = errors.New("countdown has not finished yet")
	ErrGateTicketInvalid  = errors.New("gate ticket is invalid or expired")
	ErrCaptchaFailed      = errors.New("human check failed")

	// Short link errors
	ErrShortLinkNotFound    = errors.New("link not found")
	ErrShortLinkCodeTaken   = errors.New("short link code already exists")
	ErrShortLinkURLRequired = errors.New("short link url is required")

	// Content errors
	ErrContentSource = services.ErrContentSource
	ErrPostNotFound  = services.ErrPostNotFound
	ErrPageNotFound  = errors.New("page not found")

	// Filter errors
	ErrStartDateAfterEndDate = errors.New("start date cannot be after end date")
	ErrDateRangeTooLarge     = errors.New("date range cannot exceed 93 days")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

func IsInvalidGateParams(err error) bool {
	return errors.Is(err, ErrInvalidGateParams)
}

func IsRoutingUnavailable(err error) bool {
	return errors.Is(err, ErrRoutingUnavailable)
}

func IsVerifyTooEarly(err error) bool {
	return errors.Is(err, ErrVerifyTooEarly)
}

func IsReleaseTooEarly(err error) bool {
	return errors.Is(err, ErrReleaseTooEarly)
}

func IsGateTicketInvalid(err error) bool {
	return errors.Is(err, ErrGateTicketInvalid)
}

func IsCaptchaFailed(err error) bool {
	return errors.Is(err, ErrCaptchaFailed)
}

func IsShortLinkNotFound(err error) bool {
	return errors.Is(err, ErrShortLinkNotFound)
}

func IsShortLinkCodeTaken(err error) bool {
	return errors.Is(err, ErrShortLinkCodeTaken)
}

func IsShortLinkURLRequired(err error) bool {
	return errors.Is(err, ErrShortLinkURLRequired)
}

func IsContentSource(err error) bool {
	return errors.Is(err, ErrContentSource)
}

func IsPostNotFound(err error) bool {
	return errors.Is(err, ErrPostNotFound)
}

func IsStartDateAfterEndDate(err error) bool {
	return errors.Is(err, ErrStartDateAfterEndDate)
}

func IsDateRangeTooLarge(err error) bool {
	return errors.Is(err, ErrDateRangeTooLarge)
}

func IsPageNotFound(err error) bool {
	return errors.Is(err, ErrPageNotFound)
}
