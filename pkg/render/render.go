package render

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

const layoutFile = "templates/layout.html"

// Engine renders dashboard pages embedded in the package. Each page is
// parsed together with the shared layout.
type Engine struct {
	pages map[string]*template.Template
}

var funcs = template.FuncMap{
	"formatTime":  formatTime,
	"timeOrNever": timeOrNever,
	"deref":       deref,
	"ago":         ago,
}

// New initialises an Engine by parsing all embedded templates.
func New() (*Engine, error) {
	files, err := templatesFS.ReadDir("templates")
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}

	pages := make(map[string]*template.Template)
	for _, f := range files {
		file := path.Join("templates", f.Name())
		if f.IsDir() || file == layoutFile {
			continue
		}
		name := strings.TrimSuffix(f.Name(), path.Ext(f.Name()))
		t, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, layoutFile, file)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}
	return &Engine{pages: pages}, nil
}

// Render executes the named page with the provided data and returns the rendered HTML.
func (e *Engine) Render(name string, data any) (string, error) {
	if e == nil || e.pages == nil {
		return "", fmt.Errorf("nil engine")
	}
	t, ok := e.pages[name]
	if !ok {
		return "", fmt.Errorf("unknown template %q", name)
	}

	buf := bytes.NewBuffer(nil)
	if err := t.ExecuteTemplate(buf, "layout", data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

// Static serves the dashboard's embedded assets. Mount it with the mount
// prefix stripped.
func Static() (http.Handler, error) {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("prepare static fs: %w", err)
	}
	return http.FileServer(http.FS(sub)), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}

func timeOrNever(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return formatTime(*t)
}

// ago renders a relative time such as "3 hours ago".
func ago(t *time.Time) string {
	if t == nil {
		return "Never"
	}
	return humanize.Time(*t)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
