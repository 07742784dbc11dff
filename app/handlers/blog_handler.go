package handlers

import (
	"context"

	"github.com/amirphl/safelink/app/dto"
	businessflow "github.com/amirphl/safelink/business_flow"
	"github.com/amirphl/safelink/models"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// BlogHandlerInterface defines the public blog pages
type BlogHandlerInterface interface {
	Home(c fiber.Ctx) error
	Category(c fiber.Ctx) error
	Post(c fiber.Ctx) error
	StaticPage(slug string) fiber.Handler
}

type BlogHandler struct {
	blog   businessflow.BlogFlow
	gate   businessflow.GateFlow
	logger *zap.Logger
}

func NewBlogHandler(blog businessflow.BlogFlow, gate businessflow.GateFlow, logger *zap.Logger) BlogHandlerInterface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlogHandler{blog: blog, gate: gate, logger: logger}
}

// Home renders the latest posts. ?page= carries the next page token.
// @Summary Home Page
// @Tags Blog
// @Produce html
// @Param page query string false "Page token"
// @Router / [get]
func (h *BlogHandler) Home(c fiber.Ctx) error {
	ctx, cancel := createRequestContextWithTimeout(c, "/", 0)
	defer cancel()

	page, err := h.blog.Home(ctx, c.Query("page"))
	if err != nil {
		return h.fail(c, ctx, err)
	}
	return c.Render("home", page)
}

// @Summary Category Page
// @Tags Blog
// @Produce html
// @Param label path string true "Label"
// @Param page query string false "Page token"
// @Router /category/{label} [get]
func (h *BlogHandler) Category(c fiber.Ctx) error {
	ctx, cancel := createRequestContextWithTimeout(c, "/category", 0)
	defer cancel()

	page, err := h.blog.Category(ctx, c.Params("label"), c.Query("page"))
	if err != nil {
		return h.fail(c, ctx, err)
	}
	return c.Render("category", page)
}

// Post renders an article. When step and url are present the gate overlay is attached.
// @Summary Post Page
// @Tags Blog
// @Produce html
// @Param id path string true "Post ID"
// @Param step query string false "Gate step (1 or 2)"
// @Param url query string false "Destination token"
// @Router /post/{id} [get]
func (h *BlogHandler) Post(c fiber.Ctx) error {
	ctx, cancel := createRequestContextWithTimeout(c, "/post", 0)
	defer cancel()

	params, err := models.ParseGateParams(queryValues(c))
	if err != nil {
		return h.fail(c, ctx, businessflow.NewBusinessError("INVALID_GATE_PARAMS", "Invalid link", err))
	}

	var gate *dto.GatePage
	if params != nil {
		gate, err = h.gate.LoadStep(ctx, *params)
		if err != nil {
			return h.fail(c, ctx, err)
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
	}

	page, err := h.blog.Post(ctx, c.Params("id"), gate)
	if err != nil {
		return h.fail(c, ctx, err)
	}
	return c.Render("post", page)
}

// StaticPage returns a handler rendering one of the fixed site pages
func (h *BlogHandler) StaticPage(slug string) fiber.Handler {
	return func(c fiber.Ctx) error {
		ctx, cancel := createRequestContextWithTimeout(c, "/"+slug, 0)
		defer cancel()

		page, err := h.blog.StaticPage(ctx, slug)
		if err != nil {
			return h.fail(c, ctx, err)
		}
		return c.Render("page", page)
	}
}

func (h *BlogHandler) fail(c fiber.Ctx, ctx context.Context, err error) error {
	retry := ""
	status, _ := statusForError(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("blog page failed",
			zap.String("path", c.Path()),
			zap.String("request_id", requestID(c)),
			zap.Error(err),
		)
		retry = c.OriginalURL()
	}
	return renderErrorPage(c, loadSite(ctx, h.blog), err, retry)
}
