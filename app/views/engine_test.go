package views

import (
	"bytes"
	"html/template"
	"testing"
	"testing/fstest"
	"time"

	"github.com/amirphl/safelink/app/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSite = dto.SiteInfo{
	Title:         "Daily Notes",
	Description:   "Notes on everything",
	AdsenseClient: "ca-pub-123",
	Categories:    []string{"go", "travel"},
	Year:          2026,
}

func render(t *testing.T, name string, data any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, New().Render(&buf, name, data))
	return buf.String()
}

func TestEngine_Home(t *testing.T) {
	out := render(t, "home", dto.HomePage{
		Site:          testSite,
		Hero:          &dto.PostCard{ID: "1", Title: "Hero Post", Excerpt: "hero excerpt", Published: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		Posts:         []dto.PostCard{{ID: "2", Title: "Second Post"}},
		NextPageToken: "tok2",
	})

	assert.Contains(t, out, "<title>Daily Notes</title>")
	assert.Contains(t, out, "Hero Post")
	assert.Contains(t, out, "March 1, 2026")
	assert.Contains(t, out, `href="/post/2"`)
	assert.Contains(t, out, `href="/?page=tok2"`)
	assert.Contains(t, out, `href="/category/travel"`)
	assert.Contains(t, out, `data-ad-client="ca-pub-123"`)
}

func TestEngine_HomeWithoutAds(t *testing.T) {
	site := testSite
	site.AdsenseClient = ""
	out := render(t, "home", dto.HomePage{Site: site})

	assert.NotContains(t, out, "adsbygoogle")
	assert.Contains(t, out, "No posts yet.")
}

func TestEngine_PostWithoutGate(t *testing.T) {
	out := render(t, "post", dto.PostPage{
		Site:   testSite,
		ID:     "42",
		Title:  "A Post",
		Body:   template.HTML("<p>body <b>text</b></p>"),
		Labels: []string{"go"},
	})

	assert.Contains(t, out, "<title>A Post | Daily Notes</title>")
	assert.Contains(t, out, "<p>body <b>text</b></p>")
	assert.NotContains(t, out, `id="gate"`)
	assert.NotContains(t, out, "EventSource")
}

func TestEngine_PostVerificationStep(t *testing.T) {
	out := render(t, "post", dto.PostPage{
		Site:  testSite,
		ID:    "42",
		Title: "A Post",
		Gate: &dto.GatePage{
			Step:             "1",
			Token:            "aHR0cHM6Ly9leGFtcGxlLmNvbQ",
			Ticket:           "ticket-1",
			Action:           "/gate/verify",
			EventsURL:        "/gate/events?step=1&url=aHR0cHM6Ly9leGFtcGxlLmNvbQ",
			VerifyDwell:      5,
			CountdownSeconds: 15,
			RemainingSeconds: 15,
			Captcha:          &dto.GateCaptcha{ID: "cap-1", MasterImage: "QUJD", ThumbImage: "data:image/png;base64,REVG"},
		},
	})

	assert.Contains(t, out, `action="/gate/verify"`)
	assert.Contains(t, out, `value="ticket-1"`)
	assert.Contains(t, out, `value="aHR0cHM6Ly9leGFtcGxlLmNvbQ"`)
	assert.Contains(t, out, `id="gate-button" disabled`)
	assert.Contains(t, out, `src="data:image/png;base64,QUJD"`)
	assert.Contains(t, out, `src="data:image/png;base64,REVG"`)
	assert.Contains(t, out, `name="captcha_id" value="cap-1"`)
	assert.Contains(t, out, "EventSource")
	assert.Contains(t, out, `data-wait="5"`)
	assert.Contains(t, out, "setTimeout(localTick, 1000)")
}

func TestEngine_PostCountdownStep(t *testing.T) {
	out := render(t, "post", dto.PostPage{
		Site:  testSite,
		ID:    "43",
		Title: "Other Post",
		Gate: &dto.GatePage{
			Step:             "2",
			Token:            "tok",
			Ticket:           "ticket-2",
			Action:           "/gate/release",
			EventsURL:        "/gate/events?step=2&url=tok",
			CountdownSeconds: 15,
			RemainingSeconds: 15,
		},
	})

	assert.Contains(t, out, `action="/gate/release"`)
	assert.Contains(t, out, "Get Link")
	assert.Contains(t, out, `<span id="gate-remaining">15</span>`)
	assert.Contains(t, out, `data-wait="15"`)
	assert.NotContains(t, out, "I am not a robot")
}

func TestEngine_StaticAndError(t *testing.T) {
	site := testSite
	site.ContactEmail = "hello@example.com"

	out := render(t, "page", dto.StaticPage{Site: site, Slug: "contact", Title: "Contact Us"})
	assert.Contains(t, out, "mailto:hello@example.com")

	out = render(t, "error", dto.ErrorPage{Site: site, Status: 503, Title: "System Busy", Message: "System busy. Please try again.", RetryURL: "/safe-link?url=x"})
	assert.Contains(t, out, "System busy. Please try again.")
	assert.Contains(t, out, `href="/safe-link?url=x"`)
}

func TestEngine_UnknownTemplate(t *testing.T) {
	var buf bytes.Buffer
	err := New().Render(&buf, "missing", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestEngine_LoadFromFS(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/layout.html": {Data: []byte(`{{define "layout"}}[{{template "content" .}}]{{end}}`)},
		"templates/hello.html":  {Data: []byte(`{{define "content"}}hello {{.}}{{end}}`)},
	}
	engine := NewFromFS(fsys)
	require.NoError(t, engine.Load())

	var buf bytes.Buffer
	require.NoError(t, engine.Render(&buf, "hello", "world"))
	assert.Equal(t, "[hello world]", buf.String())
}

func TestEngine_LoadFailsOnBrokenTemplate(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/layout.html": {Data: []byte(`{{define "layout"}}{{template "content" .}}{{end}}`)},
		"templates/bad.html":    {Data: []byte(`{{define "content"}}{{.Broken{{end}}`)},
	}
	assert.Error(t, NewFromFS(fsys).Load())
}
