// Package views renders the blog pages from embedded html/template files
package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	layoutFile    = "templates/layout.html"
	defaultLayout = "layout"
)

// Engine implements fiber.Views. Every page template is parsed together with
// the shared layout and rendered through it.
type Engine struct {
	fsys      fs.FS
	funcs     template.FuncMap
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// New returns an engine over the embedded templates
func New() *Engine {
	return NewFromFS(templateFS)
}

// NewFromFS returns an engine reading templates/*.html from fsys
func NewFromFS(fsys fs.FS) *Engine {
	return &Engine{
		fsys: fsys,
		funcs: template.FuncMap{
			"formatDate": formatDate,
			"imageSrc":   imageSrc,
			"pathEscape": url.PathEscape,
			"hasPrefix":  strings.HasPrefix,
		},
	}
}

// Load parses all templates. It may be called again to reload them.
func (e *Engine) Load() error {
	base, err := template.New(defaultLayout).Funcs(e.funcs).ParseFS(e.fsys, layoutFile)
	if err != nil {
		return fmt.Errorf("views: parse layout: %w", err)
	}

	files, err := fs.Glob(e.fsys, "templates/*.html")
	if err != nil {
		return fmt.Errorf("views: list templates: %w", err)
	}

	templates := make(map[string]*template.Template, len(files))
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		page, err := base.Clone()
		if err != nil {
			return fmt.Errorf("views: clone layout: %w", err)
		}
		if _, err := page.ParseFS(e.fsys, file); err != nil {
			return fmt.Errorf("views: parse %s: %w", file, err)
		}
		templates[strings.TrimSuffix(path.Base(file), ".html")] = page
	}

	e.mu.Lock()
	e.templates = templates
	e.mu.Unlock()
	return nil
}

// Render executes the named page through the layout
func (e *Engine) Render(out io.Writer, name string, binding any, layout ...string) error {
	e.mu.RLock()
	loaded := e.templates != nil
	e.mu.RUnlock()
	if !loaded {
		if err := e.Load(); err != nil {
			return err
		}
	}

	e.mu.RLock()
	tmpl, ok := e.templates[name]
	e.mu.RUnlock()
	if !ok {
		return fmt.Errorf("views: template %q not found", name)
	}

	entry := defaultLayout
	if len(layout) > 0 && layout[0] != "" {
		entry = layout[0]
	}
	return tmpl.ExecuteTemplate(out, entry, binding)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

// imageSrc accepts captcha images with or without the data URI prefix
func imageSrc(data string) template.URL {
	if strings.HasPrefix(data, "data:image/") {
		return template.URL(data)
	}
	return template.URL("data:image/png;base64," + data)
}
