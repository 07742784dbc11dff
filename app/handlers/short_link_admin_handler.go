package handlers

import (
	"mime/multipart"
	"strings"
	"time"

	"github.com/amirphl/safelink/app/dto"
	businessflow "github.com/amirphl/safelink/business_flow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ShortLinkAdminHandlerInterface defines admin endpoints for short links (CSV upload and click report)
type ShortLinkAdminHandlerInterface interface {
	UploadCSV(c fiber.Ctx) error
	DownloadClickReport(c fiber.Ctx) error
}

// ShortLinkAdminHandler implements the admin short link endpoints
type ShortLinkAdminHandler struct {
	flow      businessflow.AdminShortLinkFlow
	validator *validator.Validate
	logger    *zap.Logger
}

func NewShortLinkAdminHandler(flow businessflow.AdminShortLinkFlow, logger *zap.Logger) ShortLinkAdminHandlerInterface {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShortLinkAdminHandler{flow: flow, validator: validator.New(), logger: logger}
}

// UploadCSV accepts a multipart/form-data with file (CSV) and issuer fields
// @Summary Admin Upload Short Links CSV
// @Tags Admin ShortLinks
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "CSV file with url and optional code columns"
// @Param issuer formData string true "Issuer recorded on every imported link"
// @Success 201 {object} dto.APIResponse{data=dto.AdminImportShortLinksResponse}
// @Failure 400 {object} dto.APIResponse
// @Failure 409 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/short-links/upload-csv [post]
func (h *ShortLinkAdminHandler) UploadCSV(c fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil || fileHeader == nil {
		return errorResponse(c, fiber.StatusBadRequest, "file is required", "INVALID_REQUEST", nil)
	}
	issuer := strings.TrimSpace(c.FormValue("issuer"))
	if issuer == "" {
		return errorResponse(c, fiber.StatusBadRequest, "issuer is required", "VALIDATION_ERROR", nil)
	}
	fh, err := openFormFile(fileHeader)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid file", "INVALID_FILE", err.Error())
	}
	defer fh.Close()

	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/admin/short-links/upload-csv", 60*time.Second)
	defer cancel()

	res, err := h.flow.CreateShortLinksFromCSV(ctx, fh, issuer)
	if err != nil {
		switch {
		case businessflow.IsShortLinkCodeTaken(err):
			return errorResponse(c, fiber.StatusConflict, businessMessage(err, "Short link code already exists"), "SHORT_LINK_CODE_TAKEN", nil)
		case businessflow.IsInvalidInput(err), strings.HasPrefix(businessCode(err, ""), "CSV_"):
			return errorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Invalid CSV file"), businessCode(err, "INVALID_FILE"), nil)
		}
		h.logger.Error("admin upload short links failed", zap.String("issuer", issuer), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to create short links", "CREATE_SHORT_LINKS_FAILED", nil)
	}
	return successResponse(c, fiber.StatusCreated, res.Message, res)
}

// DownloadClickReport returns an Excel workbook of the clicks between two days, one sheet per issuer
// @Summary Admin Download Short Link Click Report (Excel)
// @Tags Admin ShortLinks
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param from query string true "First day (YYYY-MM-DD)"
// @Param to query string true "Last day (YYYY-MM-DD)"
// @Success 200 {string} string "Excel file"
// @Failure 400 {object} dto.APIResponse
// @Failure 500 {object} dto.APIResponse
// @Router /api/v1/admin/short-links/report [get]
func (h *ShortLinkAdminHandler) DownloadClickReport(c fiber.Ctx) error {
	var req dto.AdminShortLinkClickReportRequest
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}
	if err := h.validator.Struct(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationDetails(err))
	}
	from, _ := time.Parse(time.DateOnly, req.From)
	to, _ := time.Parse(time.DateOnly, req.To)

	ctx, cancel := createRequestContextWithTimeout(c, "/api/v1/admin/short-links/report", 60*time.Second)
	defer cancel()

	filename, data, err := h.flow.DownloadClickReportExcel(ctx, from, to)
	if err != nil {
		if businessflow.IsStartDateAfterEndDate(err) || businessflow.IsDateRangeTooLarge(err) {
			return errorResponse(c, fiber.StatusBadRequest, businessMessage(err, "Invalid date range"), businessCode(err, "INVALID_DATE_RANGE"), nil)
		}
		h.logger.Error("admin click report failed", zap.String("from", req.From), zap.String("to", req.To), zap.Error(err))
		return errorResponse(c, fiber.StatusInternalServerError, "Failed to generate Excel", "DOWNLOAD_FAILED", nil)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, "attachment; filename="+filename)
	return c.Send(data)
}

func openFormFile(fh *multipart.FileHeader) (multipart.File, error) {
	return fh.Open()
}
