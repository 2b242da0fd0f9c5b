// Package views renders the server-side HTML pages.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/angelmondragon/productdesk/internal/notify"
	"github.com/angelmondragon/productdesk/pkg/backend"
)

//go:embed templates/*.html
var templateFS embed.FS

const layoutFile = "templates/layout.html"

// Page names.
const (
	PageLoading    = "loading"
	PageLogin      = "login"
	PageSignup     = "signup"
	PageDashboard  = "dashboard"
	PageAddProduct = "add_product"
	PageProducts   = "products"
)

// Page is the data every template receives.
type Page struct {
	Title   string
	User    *backend.User
	Flashes []notify.Flash
	Form    map[string]string
	Errors  map[string]string
	// Refresh asks the browser to reload the page after this many seconds.
	Refresh int
}

// FieldError returns the message for name, if any.
func (p Page) FieldError(name string) string {
	return p.Errors[name]
}

// Value returns the submitted value of name, if any.
func (p Page) Value(name string) string {
	return p.Form[name]
}

// Renderer holds the parsed page templates.
type Renderer struct {
	pages map[string]*template.Template
}

func NewRenderer() (*Renderer, error) {
	files, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	pages := map[string]*template.Template{}
	for _, file := range files {
		if file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(path.Base(file), ".html")
		tmpl, err := template.New(path.Base(layoutFile)).ParseFS(templateFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", file, err)
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages}, nil
}

// Render writes page name with status.
func (r *Renderer) Render(w http.ResponseWriter, status int, name string, page Page) error {
	tmpl, ok := r.pages[name]
	if !ok {
		return fmt.Errorf("unknown page %q", name)
	}
	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", page); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
