package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/amirphl/safelink/app/dto"
	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/app/views"
	businessflow "github.com/amirphl/safelink/business_flow"
	testutil "github.com/amirphl/safelink/testing"
	"github.com/amirphl/safelink/utils"
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type stubResolveFlow struct {
	links map[string]string
	err   error
	calls int
}

func (s *stubResolveFlow) Resolve(ctx context.Context, code, source string, md *businessflow.ClientMetadata) (*dto.ResolvedShortLink, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	target, ok := s.links[code]
	if !ok {
		return nil, businessflow.NewBusinessError("SHORT_LINK_NOT_FOUND", "Link not found", businessflow.ErrShortLinkNotFound)
	}
	return &dto.ResolvedShortLink{Code: code, Target: target, Token: s.ExtractToken(target)}, nil
}

func (s *stubResolveFlow) ExtractToken(value string) string {
	if _, after, ok := strings.Cut(value, utils.VerifyPathMarker); ok {
		return after
	}
	return value
}

type stubBotFlow struct {
	req *dto.BotCreateShortLinkRequest
	err error
}

func (s *stubBotFlow) CreateShortLink(ctx context.Context, req *dto.BotCreateShortLinkRequest) (*dto.BotCreateShortLinkResponse, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	code := req.Code
	if code == "" {
		code = "Gen3r4t3"
	}
	return &dto.BotCreateShortLinkResponse{
		Message: "Short link created",
		Item:    dto.ShortLinkItem{ID: 1, Code: code, Token: "dG9rZW4", ShortURL: "https://blog.example.com/s/" + code},
	}, nil
}

type stubAdminFlow struct {
	csv        string
	issuer     string
	importErr  error
	from, to   time.Time
	reportErr  error
	reportData []byte
}

func (s *stubAdminFlow) CreateShortLinksFromCSV(ctx context.Context, r io.Reader, issuer string) (*dto.AdminImportShortLinksResponse, error) {
	data, _ := io.ReadAll(r)
	s.csv, s.issuer = string(data), issuer
	if s.importErr != nil {
		return nil, s.importErr
	}
	return &dto.AdminImportShortLinksResponse{Message: "Short links created", TotalRows: 1, Created: 1}, nil
}

func (s *stubAdminFlow) DownloadClickReportExcel(ctx context.Context, from, to time.Time) (string, []byte, error) {
	s.from, s.to = from, to
	if s.reportErr != nil {
		return "", nil, s.reportErr
	}
	return "short_link_clicks_20260301_20260302.xlsx", s.reportData, nil
}

type handlerFixture struct {
	app     *fiber.App
	clock   *utils.FixedClock
	codec   services.DestinationCodec
	content *testutil.FakeContentSource
	resolve *stubResolveFlow
	bot     *stubBotFlow
	admin   *stubAdminFlow
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()

	clock := &utils.FixedClock{T: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tickets, err := services.NewGateTicketService("handler-test-secret-with-enough-bytes", 10*time.Minute, "safelink-test", clock)
	require.NoError(t, err)

	codec := services.NewDestinationCodec()
	content := testutil.NewFakeContentSource(testutil.SamplePosts(3)...)
	content.NotFoundErr = services.ErrPostNotFound

	gate := businessflow.NewGateFlow(
		codec,
		content,
		tickets,
		nil,
		services.NewCountdownRunner(time.Millisecond),
		services.NewGateMetrics(prometheus.NewRegistry()),
		businessflow.GateFlowConfig{
			VerifyDwell:      utils.DefaultVerifyDwell,
			CountdownSeconds: utils.DefaultCountdownSeconds,
		},
		nil,
	)
	blog := businessflow.NewBlogFlow(content, services.NewContentMarkup(true), businessflow.BlogSettings{SiteTitle: "Test Blog", AdsenseClient: "ca-pub-1"}, nil)

	fx := &handlerFixture{
		clock:   clock,
		codec:   codec,
		content: content,
		resolve: &stubResolveFlow{links: map[string]string{}},
		bot:     &stubBotFlow{},
		admin:   &stubAdminFlow{reportData: []byte("PK-xlsx")},
	}

	gateHandler := NewGateHandler(gate, blog, nil)
	shortLinkHandler := NewShortLinkHandler(fx.resolve, gate, blog, nil)
	blogHandler := NewBlogHandler(blog, gate, nil)

	app := fiber.New(fiber.Config{Views: views.New()})
	app.Get("/", blogHandler.Home)
	app.Get("/category/:label", blogHandler.Category)
	app.Get("/post/:id", blogHandler.Post)
	app.Get("/about", blogHandler.StaticPage("about"))
	app.Get("/nowhere", blogHandler.StaticPage("nowhere"))
	app.Get("/safe-link", gateHandler.SafeLink)
	app.Get("/verify/*", gateHandler.VerifyLink)
	app.Post("/gate/verify", gateHandler.Verify)
	app.Post("/gate/release", gateHandler.Release)
	app.Get("/gate/events", gateHandler.Events)
	app.Get("/s/:code", shortLinkHandler.Visit)
	app.Get("/api/resolve", shortLinkHandler.Resolve)
	app.Post("/api/v1/bot/short-links", NewShortLinkBotHandler(fx.bot, nil).CreateShortLink)
	admin := NewShortLinkAdminHandler(fx.admin, nil)
	app.Post("/api/v1/admin/short-links/upload-csv", admin.UploadCSV)
	app.Get("/api/v1/admin/short-links/report", admin.DownloadClickReport)

	fx.app = app
	return fx
}

type testResponse struct {
	status   int
	location string
	header   http.Header
	body     string
}

func (fx *handlerFixture) do(t *testing.T, req *http.Request) testResponse {
	t.Helper()
	resp, err := fx.app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second, FailOnTimeout: true})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return testResponse{
		status:   resp.StatusCode,
		location: resp.Header.Get(fiber.HeaderLocation),
		header:   resp.Header,
		body:     string(body),
	}
}

func (fx *handlerFixture) get(t *testing.T, target string) testResponse {
	t.Helper()
	return fx.do(t, httptest.NewRequest(http.MethodGet, target, nil))
}

func (fx *handlerFixture) postForm(t *testing.T, target string, form url.Values) testResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return fx.do(t, req)
}

func (fx *handlerFixture) postJSON(t *testing.T, target, body string) testResponse {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return fx.do(t, req)
}

var hiddenInput = regexp.MustCompile(`name="(url|ticket)" value="([^"]+)"`)

// gateForm reads the hidden gate fields from a rendered post page
func gateForm(t *testing.T, body string) url.Values {
	t.Helper()
	form := url.Values{}
	for _, m := range hiddenInput.FindAllStringSubmatch(body, -1) {
		form.Set(m[1], m[2])
	}
	require.NotEmpty(t, form.Get("url"), "gate token missing from page")
	require.NotEmpty(t, form.Get("ticket"), "gate ticket missing from page")
	return form
}
