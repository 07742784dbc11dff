// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/amirphl/safelink/app/dto"
	businessflow "github.com/amirphl/safelink/business_flow"
	"github.com/amirphl/safelink/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultRequestTimeout = 15 * time.Second

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "alphanum":
		return err.Field() + " must contain only letters and numbers"
	case "datetime":
		return err.Field() + " must be a date in format " + err.Param()
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}

func validationDetails(err error) any {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = getValidationErrorMessage(fe)
	}
	return details
}

func errorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: false, Message: message, Error: dto.ErrorDetail{Code: errorCode, Details: details}})
}

func successResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{Success: true, Message: message, Data: data})
}

// createRequestContextWithTimeout builds the context passed to business flows.
// The caller must call the returned cancel function.
func createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	ctx, cancel := context.WithTimeout(c.Context(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

func clientMetadata(c fiber.Ctx) *businessflow.ClientMetadata {
	md := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	md.SetRequestID(requestID(c))
	return md
}

func requestID(c fiber.Ctx) string {
	if id, ok := c.Locals("requestid").(string); ok && id != "" {
		return id
	}
	return c.Get(businessflow.RequestIDKey)
}

// businessMessage returns the visitor facing message carried by a business error
func businessMessage(err error, fallback string) string {
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Message != "" {
		return be.Message
	}
	return fallback
}

func businessCode(err error, fallback string) string {
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Code != "" {
		return be.Code
	}
	return fallback
}

// statusForError maps flow errors to an HTTP status and a page title
func statusForError(err error) (int, string) {
	switch {
	case businessflow.IsInvalidInput(err), businessflow.IsDecode(err), businessflow.IsInvalidGateParams(err):
		return fiber.StatusBadRequest, "Link Error"
	case businessflow.IsShortLinkNotFound(err), businessflow.IsPostNotFound(err), businessflow.IsPageNotFound(err):
		return fiber.StatusNotFound, "Not Found"
	case businessflow.IsVerifyTooEarly(err), businessflow.IsReleaseTooEarly(err):
		return fiber.StatusConflict, "Please Wait"
	case businessflow.IsCaptchaFailed(err), businessflow.IsGateTicketInvalid(err):
		return fiber.StatusForbidden, "Verification Failed"
	case businessflow.IsRoutingUnavailable(err):
		return fiber.StatusServiceUnavailable, "System Busy"
	case businessflow.IsContentSource(err):
		return fiber.StatusBadGateway, "Connection Error"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "Connection Error"
	default:
		return fiber.StatusInternalServerError, "Error"
	}
}

// renderErrorPage shows a flow error to the visitor with the matching status
func renderErrorPage(c fiber.Ctx, site dto.SiteInfo, err error, retryURL string) error {
	status, title := statusForError(err)
	message := businessMessage(err, "Something went wrong. Please try again.")
	if status == fiber.StatusGatewayTimeout {
		message = "The request took too long. Please try again."
	}
	return c.Status(status).Render("error", dto.ErrorPage{
		Site:     site,
		Status:   status,
		Title:    title,
		Message:  message,
		RetryURL: retryURL,
	})
}

// queryValues returns the raw query string of the request as url.Values
func queryValues(c fiber.Ctx) url.Values {
	values, err := url.ParseQuery(string(c.RequestCtx().URI().QueryString()))
	if err != nil {
		return url.Values{}
	}
	return values
}

func wantsJSON(c fiber.Ctx) bool {
	return strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON)
}

// loadSite fetches the page chrome with a short deadline of its own
func loadSite(ctx context.Context, blog businessflow.BlogFlow) dto.SiteInfo {
	if ctx.Err() != nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return blog.Site(ctx)
}
