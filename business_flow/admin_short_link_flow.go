package businessflow

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/models"
	"github.com/amirphl/safelink/repository"
	"github.com/amirphl/safelink/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// maxReportRange caps the click report window
const maxReportRange = 93 * 24 * time.Hour

const unassignedIssuer = "unassigned"

// AdminShortLinkFlow provides the admin use cases for short links.
// The CSV import reads a 'url' column (destination URL, token or verify link) and an
// optional 'code' column; rows without a url are skipped. Every imported link gets
// the issuer given by the admin.
// The click report is an Excel workbook with one sheet per issuer.
type AdminShortLinkFlow interface {
	CreateShortLinksFromCSV(ctx context.Context, csvReader io.Reader, issuer string) (*dto.AdminImportShortLinksResponse, error)
	DownloadClickReportExcel(ctx context.Context, from, to time.Time) (string, []byte, error)
}

type AdminShortLinkFlowImpl struct {
	repo      repository.ShortLinkRepository
	clickRepo repository.ShortLinkClickRepository
	codec     services.DestinationCodec
	settings  ShortLinkSettings
	logger    *zap.Logger
}

func NewAdminShortLinkFlow(repo repository.ShortLinkRepository, clickRepo repository.ShortLinkClickRepository, codec services.DestinationCodec, settings ShortLinkSettings, logger *zap.Logger) AdminShortLinkFlow {
	if settings.CodeLength <= 0 {
		settings.CodeLength = utils.DefaultShortCodeLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminShortLinkFlowImpl{repo: repo, clickRepo: clickRepo, codec: codec, settings: settings, logger: logger}
}

func (f *AdminShortLinkFlowImpl) CreateShortLinksFromCSV(ctx context.Context, csvReader io.Reader, issuer string) (*dto.AdminImportShortLinksResponse, error) {
	if csvReader == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "CSV file is required", ErrInvalidInput)
	}
	issuerPtr := optionalString(issuer)
	if issuerPtr == nil {
		return nil, NewBusinessError("VALIDATION_ERROR", "issuer is required", ErrInvalidInput)
	}

	reader := csv.NewReader(bufio.NewReader(csvReader))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, NewBusinessError("CSV_READ_ERROR", "Failed to read CSV header", err)
	}

	colIndex := map[string]int{}
	for i, h := range header {
		colIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}

	urlIdx, ok := colIndex["url"]
	if !ok {
		return nil, NewBusinessError("CSV_HEADER_ERROR", "CSV must contain a 'url' column", ErrInvalidInput)
	}
	codeIdx, hasCode := colIndex["code"]

	rows := make([]*models.ShortLink, 0, 256)
	usedCodes := map[string]bool{}
	skipped := 0
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, NewBusinessError("CSV_READ_ERROR", "Failed to read CSV row", err)
		}
		if urlIdx >= len(rec) {
			skipped++
			continue
		}
		token, err := canonicalTarget(f.codec, rec[urlIdx])
		if err != nil {
			skipped++
			continue
		}

		code := ""
		if hasCode && codeIdx < len(rec) {
			code = strings.TrimSpace(rec[codeIdx])
		}
		if code == "" {
			code, err = gonanoid.Generate(utils.ShortCodeAlphabet, f.settings.CodeLength)
			if err != nil {
				return nil, NewBusinessError("CODE_GENERATION_FAILED", "Failed to generate short link code", err)
			}
		}
		if usedCodes[code] {
			skipped++
			continue
		}
		usedCodes[code] = true

		rows = append(rows, &models.ShortLink{
			Code:   code,
			Target: token,
			Issuer: issuerPtr,
		})
	}

	total := len(rows) + skipped
	if len(rows) == 0 {
		return &dto.AdminImportShortLinksResponse{
			Message:   "No valid rows to create",
			TotalRows: total,
			Skipped:   skipped,
		}, nil
	}

	if err := f.repo.SaveBatch(ctx, rows); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, NewBusinessError("SHORT_LINK_CODE_TAKEN", "A short link code in the file already exists", ErrShortLinkCodeTaken)
		}
		return nil, NewBusinessError("CREATE_SHORT_LINKS_FAILED", "Failed to create short links", err)
	}

	items := make([]dto.ShortLinkItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, ToShortLinkItem(*r, f.settings.PublicBaseURL))
	}

	f.logger.Info("short links imported", zap.String("issuer", *issuerPtr), zap.Int("created", len(rows)), zap.Int("skipped", skipped))

	return &dto.AdminImportShortLinksResponse{
		Message:   "Short links created",
		TotalRows: total,
		Created:   len(rows),
		Skipped:   skipped,
		Items:     items,
	}, nil
}

// DownloadClickReportExcel exports the clicks recorded between the start of from and the end of to
func (f *AdminShortLinkFlowImpl) DownloadClickReportExcel(ctx context.Context, from, to time.Time) (string, []byte, error) {
	from = startOfDay(from)
	end := startOfDay(to).Add(24 * time.Hour)
	if from.After(startOfDay(to)) {
		return "", nil, NewBusinessError("START_DATE_AFTER_END_DATE", "from must not be after to", ErrStartDateAfterEndDate)
	}
	if end.Sub(from) > maxReportRange {
		return "", nil, NewBusinessError("DATE_RANGE_TOO_LARGE", "Date range cannot exceed 93 days", ErrDateRangeTooLarge)
	}

	clicks, err := f.clickRepo.ListWithShortLinkBetween(ctx, from, end)
	if err != nil {
		return "", nil, NewBusinessError("FETCH_CLICKS_FAILED", "Failed to fetch short link clicks", err)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	byIssuer := make(map[string][]*models.ShortLinkClick)
	order := make([]string, 0)
	for _, c := range clicks {
		issuer := unassignedIssuer
		if c.ShortLink != nil && c.ShortLink.Issuer != nil && strings.TrimSpace(*c.ShortLink.Issuer) != "" {
			issuer = *c.ShortLink.Issuer
		}
		if _, ok := byIssuer[issuer]; !ok {
			order = append(order, issuer)
		}
		byIssuer[issuer] = append(byIssuer[issuer], c)
	}

	header := []string{"click_id", "code", "destination", "issuer", "tags", "source", "user_agent", "ip", "clicked_at"}
	if len(order) == 0 {
		_ = xl.SetSheetRow(xl.GetSheetName(0), "A1", &header)
	}

	usedNames := map[string]bool{}
	for i, issuer := range order {
		baseName := sanitizeSheetName(issuer)
		name := baseName
		idx := 1
		for usedNames[name] {
			idx++
			name = truncateSheetName(fmt.Sprintf("%s_%d", baseName, idx))
		}
		usedNames[name] = true
		if i == 0 {
			if err := xl.SetSheetName(xl.GetSheetName(0), name); err != nil {
				return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
			}
		} else if _, err := xl.NewSheet(name); err != nil {
			return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
		}

		_ = xl.SetSheetRow(name, "A1", &header)
		for ri, c := range byIssuer[issuer] {
			record := f.clickRecord(c, issuer)
			cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
			_ = xl.SetSheetRow(name, cellRef, &record)
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}
	filename := fmt.Sprintf("short_link_clicks_%s_%s.xlsx", from.Format("20060102"), startOfDay(to).Format("20060102"))
	return filename, buf.Bytes(), nil
}

func (f *AdminShortLinkFlowImpl) clickRecord(c *models.ShortLinkClick, issuer string) []string {
	destination := ""
	tags := ""
	if c.ShortLink != nil {
		if d, err := f.codec.Decode(extractToken(f.codec, c.ShortLink.Target)); err == nil {
			destination = d
		}
		tags = strings.Join(c.ShortLink.Tags, ",")
	}
	return []string{
		strconv.FormatUint(uint64(c.ID), 10),
		c.Code,
		destination,
		issuer,
		tags,
		c.Source,
		utils.Deref(c.UserAgent),
		utils.Deref(c.IP),
		c.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sanitizeSheetName(name string) string {
	// Excel sheet names cannot contain: : \\ / ? * [ ] and must be <= 31 chars
	replacer := strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "_", "]", "_")
	safe := replacer.Replace(name)
	return truncateSheetName(strings.TrimSpace(safe))
}

func truncateSheetName(name string) string {
	if len(name) > 31 {
		return name[:31]
	}
	if name == "" {
		return "Sheet"
	}
	return name
}
