package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/skyhop/internal/adapters/http"
)

// apiDocumentPath walks up from the package directory to api/openapi.yaml.
func apiDocumentPath(t *testing.T) string {
	t.Helper()
	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		candidate := filepath.Join(dir, "api", "openapi.yaml")
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		dir = filepath.Dir(dir)
	}
	t.Fatalf("could not find api/openapi.yaml")
	return ""
}

func loadAPIDocument(t *testing.T) *openapi3.T {
	t.Helper()
	data, err := os.ReadFile(apiDocumentPath(t))
	if err != nil {
		t.Fatalf("read openapi.yaml: %v", err)
	}
	doc, err := (&openapi3.Loader{IsExternalRefsAllowed: false}).LoadFromData(data)
	if err != nil {
		t.Fatalf("parse openapi.yaml: %v", err)
	}
	return doc
}

func TestAPIDocument_Valid(t *testing.T) {
	doc := loadAPIDocument(t)
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("openapi.yaml does not validate: %v", err)
	}
}

// Every route the router mounts is documented.
func TestAPIDocument_CoversRoutes(t *testing.T) {
	doc := loadAPIDocument(t)
	for _, path := range []string{
		"/v1/health",
		"/v1/ready",
		"/v1/segments/{id}/availability",
		"/v1/segments/{id}/seats",
		"/v1/holds",
		"/v1/bookings",
		"/v1/bookings/pnr/{pnr}",
		"/v1/bookings/{id}",
		"/v1/bookings/{id}/cancel",
		"/v1/bookings/{id}/refunds",
		"/v1/bookings/{id}/reschedule/quote",
		"/v1/bookings/{id}/reschedule/commit",
		"/v1/admin/bookings/{id}/cancel",
		"/v1/admin/refunds",
		"/v1/admin/refunds/{id}/decision",
		"/v1/admin/refunds/{id}/settle",
		"/graphql",
	} {
		if doc.Paths.Find(path) == nil {
			t.Errorf("path %s is not documented", path)
		}
	}

	for _, schema := range []string{
		"Availability", "SeatMap", "HoldRequest", "BookingRequest", "Booking",
		"CommitResult", "CancelResult", "RefundRecord", "RescheduleQuote",
		"APIError", "Pagination",
	} {
		if doc.Components.Schemas[schema] == nil {
			t.Errorf("schema %s is missing", schema)
		}
	}
}

func TestAPIDocument_Info(t *testing.T) {
	doc := loadAPIDocument(t)
	if doc.Info.Title != "Skyhop Reservations API" || doc.Info.Version != "1.0.0" {
		t.Errorf("unexpected info: %q %q", doc.Info.Title, doc.Info.Version)
	}
	if doc.Info.Description == "" {
		t.Error("description is empty")
	}
	if len(doc.Servers) == 0 {
		t.Error("no servers listed")
	}
}

func TestSetupDocs_ServesBothEncodings(t *testing.T) {
	app := fiber.New()
	handler.SetupDocs(app, apiDocumentPath(t))

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/openapi.json", nil))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
	}
	if err := json.Unmarshal(body, &doc); err != nil || doc.Info.Title != "Skyhop Reservations API" {
		t.Fatalf("unexpected json document (%v): %.200s", err, body)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/docs/openapi.yaml", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK || resp.Header.Get("Content-Type") != "application/yaml" {
		t.Fatalf("unexpected yaml response %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestSetupDocs_MissingDocument(t *testing.T) {
	app := fiber.New()
	handler.SetupDocs(app, filepath.Join(t.TempDir(), "absent.yaml"))

	resp, err := app.Test(httptest.NewRequest("GET", "/docs/openapi.json", nil))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	resp, _ = app.Test(httptest.NewRequest("GET", "/docs", nil))
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("swagger ui should stay up, got %d", resp.StatusCode)
	}
}
