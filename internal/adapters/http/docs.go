package http

import (
	"encoding/json"
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Skyhop Reservations API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
  <style>html{box-sizing:border-box}*,*::before,*::after{box-sizing:inherit}body{margin:0;background:#fafafa}</style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: '/docs/openapi.yaml',
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.SwaggerUIStandalonePreset],
      layout: 'BaseLayout',
    });
  </script>
</body>
</html>`

// apiDocument is the OpenAPI document parsed once at startup, rendered in
// both encodings the UI and client generators ask for.
type apiDocument struct {
	yaml []byte
	json []byte
}

func loadAPIDocument(path string) (*apiDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := (&openapi3.Loader{}).LoadFromData(data)
	if err != nil {
		return nil, err
	}
	js, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	return &apiDocument{yaml: data, json: js}, nil
}

func (d *apiDocument) serve(contentType string, body []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if d == nil {
			return newError(c, fiber.StatusNotFound, "not_found", "api document not available")
		}
		c.Set("Content-Type", contentType)
		return c.Send(body)
	}
}

// SetupDocs registers Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml and /docs/openapi.json. A missing or invalid document
// leaves the UI up and the document routes answering 404.
func SetupDocs(app *fiber.App, specPath string) {
	doc, err := loadAPIDocument(specPath)
	if err != nil {
		slog.Warn("api document unavailable", "path", specPath, "error", err)
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/html; charset=utf-8")
		return c.SendString(swaggerUIHTML)
	})

	var yamlBody, jsonBody []byte
	if doc != nil {
		yamlBody, jsonBody = doc.yaml, doc.json
	}
	app.Get("/docs/openapi.yaml", doc.serve("application/yaml", yamlBody))
	app.Get("/docs/openapi.json", doc.serve("application/json", jsonBody))
}
