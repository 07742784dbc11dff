package handlers

import (
	"time"

	"github.com/amirphl/safelink/app/dto"
	businessflow "github.com/amirphl/safelink/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ShortLinkBotHandlerInterface defines contract for bot short link endpoints
type ShortLinkBotHandlerInterface interface {
	CreateShortLink(c fiber.Ctx) error
}

// ShortLinkBotHandler handles bot short link creation
type ShortLinkBotHandler struct {
	flow      businessflow.BotShortLinkFlow
	validator *validator.Validate
	logger    *zap.Logger
}

func NewShortLinkBotHandler(flow businessflow.BotShortLinkFlow, logger *zap.Logger) ShortLinkBotHandlerInterface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShortLinkBotHandler{flow: flow, validator: validator.New(), logger: logger}
}

// CreateShortLink creates a single short link (bot)
// @Summary Bot Create Short Link
// @Tags Bot ShortLinks
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param request body dto.BotCreateShortLinkRequest true "Short link creation"
// @Success 201 {object} dto.APIResponse{data=dto.BotCreateShortLinkResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/bot/short-links [post]
func (h *ShortLinkBotHandler) CreateShortLink(c fiber.Ctx) error {
	var req dto.BotCreateShortLinkRequest
	if err := c.Bind().JSON(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/bot/short-links", 30*time.Second)
	defer cancel()

	res, err := h.flow.CreateShortLink(ctx, &req)
	if err != nil {
		switch {
		case businessflow.IsShortLinkCodeTaken(err):
			return errorResponse(c, fiber.StatusConflict, businessMessage(err, "Short link code already exists"), "SHORT_LINK_CODE_TAKEN", nil)
		case businessflow.IsShortLinkURLRequired(err), businessflow.IsInvalidInput(err), businessflow.IsDecode(err):
			return errorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Invalid url"), businessCode(err, "INVALID_SHORT_LINK_URL"), nil)
		}
		h.logger.Error("bot create short link failed", zap.String("request_id", requestID(c)), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to create short link", "CREATE_SHORT_LINK_FAILED", nil)
	}
	return successResponse(c, fiber.StatusCreated, "Short link created", res)
}
