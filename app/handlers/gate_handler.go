package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/amirphl/safelink/app/dto"
	businessflow "github.com/amirphl/safelink/business_flow"
	"github.com/amirphl/safelink/models"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// GateHandlerInterface defines the contract for the link gate endpoints
type GateHandlerInterface interface {
	SafeLink(c fiber.Ctx) error
	VerifyLink(c fiber.Ctx) error
	Verify(c fiber.Ctx) error
	Release(c fiber.Ctx) error
	Events(c fiber.Ctx) error
}

// GateHandler handles gate entry, the step transitions and the countdown stream
type GateHandler struct {
	flow      businessflow.GateFlow
	blog      businessflow.BlogFlow
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGateHandler creates a new gate handler
func NewGateHandler(flow businessflow.GateFlow, blog businessflow.BlogFlow, logger *zap.Logger) GateHandlerInterface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GateHandler{
		flow:      flow,
		blog:      blog,
		validator: validator.New(),
		logger:    logger,
	}
}

// SafeLink encodes a destination and enters the gate
// @Summary Generate Safe Link
// @Tags Gate
// @Param url query string true "Destination URL"
// @Success 302 {string} string "Redirect to step 1"
// @Failure 400 {string} string "Invalid destination link"
// @Failure 503 {string} string "No post available"
// @Router /safe-link [get]
func (h *GateHandler) SafeLink(c fiber.Ctx) error {
	ctx, cancel := createRequestContextWithTimeout(c, "/safe-link", 0)
	defer cancel()

	next, err := h.flow.EnterWithDestination(ctx, c.Query("url"), clientMetadata(c))
	if err != nil {
		return h.fail(c, ctx, err, "")
	}
	return c.Redirect().Status(fiber.StatusFound).To(next)
}

// VerifyLink enters the gate with a token issued by the bot
// @Summary Enter Gate With Token
// @Tags Gate
// @Param token path string true "Destination token"
// @Success 302 {string} string "Redirect to step 1"
// @Router /verify/{token} [get]
func (h *GateHandler) VerifyLink(c fiber.Ctx) error {
	token, err := url.PathUnescape(strings.TrimSuffix(c.Params("*"), "/"))
	if err != nil {
		token = c.Params("*")
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/verify", 0)
	defer cancel()

	next, err := h.flow.Enter(ctx, token, businessflow.GateEntryVerify, clientMetadata(c))
	if err != nil {
		return h.fail(c, ctx, err, "")
	}
	return c.Redirect().Status(fiber.StatusFound).To(next)
}

// Verify accepts the step 1 human check
// @Summary Verify Human Check
// @Tags Gate
// @Accept x-www-form-urlencoded,json
// @Param request body dto.GateVerifyRequest true "Gate verification"
// @Success 302 {string} string "Redirect to step 2"
// @Success 200 {object} dto.APIResponse{data=dto.GateVerifyResponse}
// @Failure 409 {object} dto.APIResponse "Dwell not elapsed"
// @Router /gate/verify [post]
func (h *GateHandler) Verify(c fiber.Ctx) error {
	var req dto.GateVerifyRequest
	if err := c.Bind().Body(&req); err != nil {
		return h.badRequest(c, "Invalid request body", err)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.badRequest(c, "Validation failed", err)
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/gate/verify", 0)
	defer cancel()

	next, err := h.flow.Verify(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.fail(c, ctx, err, retryEntry(req.Token))
	}

	if wantsJSON(c) {
		return successResponse(c, fiber.StatusOK, "Verified", dto.GateVerifyResponse{NextURL: next})
	}
	return c.Redirect().Status(fiber.StatusFound).To(next)
}

// Release reveals the destination after the countdown
// @Summary Release Destination
// @Tags Gate
// @Accept x-www-form-urlencoded,json
// @Param request body dto.GateReleaseRequest true "Gate release"
// @Success 302 {string} string "Redirect to destination"
// @Failure 400 {string} string "Invalid link format"
// @Router /gate/release [post]
func (h *GateHandler) Release(c fiber.Ctx) error {
	var req dto.GateReleaseRequest
	if err := c.Bind().Body(&req); err != nil {
		return h.badRequest(c, "Invalid request body", err)
	}
	if err := h.validator.Struct(&req); err != nil {
		return h.badRequest(c, "Validation failed", err)
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/gate/release", 0)
	defer cancel()

	destination, err := h.flow.Release(ctx, &req, clientMetadata(c))
	if err != nil {
		retry := retryEntry(req.Token)
		if businessflow.IsDecode(err) {
			retry = ""
		}
		return h.fail(c, ctx, err, retry)
	}

	if wantsJSON(c) {
		return successResponse(c, fiber.StatusOK, "Released", dto.GateVerifyResponse{NextURL: destination})
	}
	return c.Redirect().Status(fiber.StatusFound).To(destination)
}

// Events streams the gate view once per second as server-sent events
// @Summary Gate Countdown Stream
// @Tags Gate
// @Produce text/event-stream
// @Param step query string true "Gate step (1 or 2)"
// @Param url query string true "Destination token"
// @Router /gate/events [get]
func (h *GateHandler) Events(c fiber.Ctx) error {
	params, err := models.ParseGateParams(queryValues(c))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid gate parameters", "INVALID_GATE_PARAMS", err.Error())
	}
	if params == nil {
		return errorResponse(c, fiber.StatusBadRequest, "Gate parameters are required", "INVALID_GATE_PARAMS", nil)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	// The stream outlives the handler, so it gets its own context.
	ctx, cancel := context.WithCancel(context.Background())
	views := h.flow.Watch(ctx, *params)

	return c.SendStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		for view := range views {
			if err := writeEvent(w, "tick", view); err != nil {
				h.logger.Debug("gate stream closed", zap.Error(err))
				return
			}
		}
		_ = writeEvent(w, "done", fiber.Map{"step": params.Step})
	})
}

func writeEvent(w *bufio.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload); err != nil {
		return err
	}
	return w.Flush()
}

func (h *GateHandler) badRequest(c fiber.Ctx, message string, err error) error {
	if wantsJSON(c) {
		return errorResponse(c, fiber.StatusBadRequest, message, "VALIDATION_ERROR", validationDetails(err))
	}
	return c.Status(fiber.StatusBadRequest).Render("error", dto.ErrorPage{
		Site:    loadSite(c.Context(), h.blog),
		Status:  fiber.StatusBadRequest,
		Title:   "Link Error",
		Message: message,
	})
}

func (h *GateHandler) fail(c fiber.Ctx, ctx context.Context, err error, retryURL string) error {
	status, _ := statusForError(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("gate request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
	}
	if businessflow.IsRoutingUnavailable(err) || businessflow.IsContentSource(err) {
		if retryURL == "" {
			retryURL = c.OriginalURL()
		}
	}
	if wantsJSON(c) {
		return errorResponse(c, status, businessMessage(err, "Request failed"), businessCode(err, "GATE_FAILED"), nil)
	}
	return renderErrorPage(c, loadSite(ctx, h.blog), err, retryURL)
}

// retryEntry is the verify link that restarts the gate for a token
func retryEntry(token string) string {
	token = strings.TrimSpace(token)
	if token == "" {
		return ""
	}
	return "/verify/" + url.PathEscape(token)
}
