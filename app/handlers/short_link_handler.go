package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/amirphl/safelink/app/dto"
	businessflow "github.com/amirphl/safelink/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ShortLinkHandlerInterface defines contract for public short link visit and lookup
type ShortLinkHandlerInterface interface {
	Visit(c fiber.Ctx) error
	Resolve(c fiber.Ctx) error
}

type ShortLinkHandler struct {
	flow   businessflow.ShortLinkResolveFlow
	gate   businessflow.GateFlow
	blog   businessflow.BlogFlow
	logger *zap.Logger
}

func NewShortLinkHandler(flow businessflow.ShortLinkResolveFlow, gate businessflow.GateFlow, blog businessflow.BlogFlow, logger *zap.Logger) ShortLinkHandlerInterface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShortLinkHandler{flow: flow, gate: gate, blog: blog, logger: logger}
}

// Visit resolves a short link and enters the gate with its token
// @Summary Visit Short Link
// @Tags ShortLinks
// @Param code path string true "Short link code"
// @Success 302 {string} string "Redirect to step 1"
// @Failure 404 {string} string "link not found"
// @Router /s/{code} [get]
func (h *ShortLinkHandler) Visit(c fiber.Ctx) error {
	code := strings.TrimSpace(c.Params("code"))

	ctx, cancel := createRequestContextWithTimeout(c, "/s/"+code, 10*time.Second)
	defer cancel()

	md := clientMetadata(c)
	link, err := h.flow.Resolve(ctx, code, businessflow.ClickSourcePage, md)
	if err != nil {
		return h.fail(c, ctx, err)
	}

	next, err := h.gate.Enter(ctx, link.Token, businessflow.GateEntryShortLink, md)
	if err != nil {
		return h.fail(c, ctx, err)
	}
	return c.Redirect().Status(fiber.StatusFound).To(next)
}

// Resolve is the lookup endpoint used by pages and external clients
// @Summary Resolve Short Link
// @Tags ShortLinks
// @Produce json
// @Param code query string true "Short link code"
// @Success 200 {object} dto.ResolveShortLinkResponse
// @Failure 400 {object} dto.ResolveShortLinkError
// @Failure 404 {object} dto.ResolveShortLinkError
// @Failure 500 {object} dto.ResolveShortLinkError
// @Router /api/resolve [get]
func (h *ShortLinkHandler) Resolve(c fiber.Ctx) error {
	code := strings.TrimSpace(c.Query("code"))
	if code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ResolveShortLinkError{Error: "Missing code parameter"})
	}

	ctx, cancel := createRequestContextWithTimeout(c, "/api/resolve", 10*time.Second)
	defer cancel()

	link, err := h.flow.Resolve(ctx, code, businessflow.ClickSourceAPI, clientMetadata(c))
	if err != nil {
		if businessflow.IsShortLinkNotFound(err) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ResolveShortLinkError{Error: "Link not found"})
		}
		h.logger.Error("short link lookup failed", zap.String("code", code), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ResolveShortLinkError{Error: "Internal server error"})
	}

	return c.Status(fiber.StatusOK).JSON(dto.ResolveShortLinkResponse{URL: link.Target})
}

func (h *ShortLinkHandler) fail(c fiber.Ctx, ctx context.Context, err error) error {
	retry := ""
	status, _ := statusForError(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("short link visit failed", zap.String("path", c.Path()), zap.Error(err))
		retry = c.OriginalURL()
	}
	return renderErrorPage(c, loadSite(ctx, h.blog), err, retry)
}
