package render

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type testHost struct {
	ID        string
	Hostname  string
	APIKey    string
	CreatedAt time.Time
	LastSeen  *time.Time
}

func TestRenderHostsEscapesInput(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	seen := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	out, err := e.Render("hosts", map[string]any{
		"Title":    "Hosts",
		"Username": "admin",
		"Hosts": []testHost{
			{ID: "1", Hostname: "<script>alert(1)</script>", APIKey: "abc", CreatedAt: seen},
			{ID: "2", Hostname: "db-01", APIKey: "def", CreatedAt: seen, LastSeen: &seen},
		},
	})
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}

	if strings.Contains(out, "<script>alert(1)</script>") {
		t.Error("hostname rendered without escaping")
	}
	for _, want := range []string{"db-01", "/dashboard/hosts/2/regenerate-key", "2024-03-01 10:00 UTC", "Never", "admin"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}
}

func TestRenderUnknownTemplate(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := e.Render("missing", nil); err == nil {
		t.Fatal("Render(missing) succeeded")
	}
}

func TestRenderPagesParsed(t *testing.T) {
	e, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, name := range []string{"overview", "host", "hosts"} {
		if _, ok := e.pages[name]; !ok {
			t.Errorf("page %q not parsed", name)
		}
	}
	if _, ok := e.pages["layout"]; ok {
		t.Error("layout parsed as a page")
	}
}

func TestTimeHelpers(t *testing.T) {
	if got := timeOrNever(nil); got != "Never" {
		t.Errorf("timeOrNever(nil) = %q", got)
	}
	local := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	if got := formatTime(local); got != "2024-03-01 11:00 UTC" {
		t.Errorf("formatTime() = %q", got)
	}
	if got := ago(nil); got != "Never" {
		t.Errorf("ago(nil) = %q", got)
	}
	past := time.Now().Add(-3 * time.Hour)
	if got := ago(&past); got != "3 hours ago" {
		t.Errorf("ago(3h) = %q", got)
	}
	if got := deref(nil); got != "" {
		t.Errorf("deref(nil) = %q", got)
	}
}

func TestStaticServesStylesheet(t *testing.T) {
	h, err := Static()
	if err != nil {
		t.Fatalf("Static() error = %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pmgmt.css", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/css") {
		t.Errorf("Content-Type = %q", ct)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/missing.css", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing asset status = %d, want 404", rec.Code)
	}
}
