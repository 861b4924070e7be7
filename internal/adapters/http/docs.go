package http

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/gofiber/fiber/v2"
)

// DefaultOpenAPIPath is where the directory API contract lives relative to
// the working directory of the api binary.
const DefaultOpenAPIPath = "api/openapi.yaml"

const docsPage = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Annuaire Voyage API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body style="margin:0">
  <div id="docs"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({ url: '/docs/openapi.json', dom_id: '#docs', deepLinking: true });
  </script>
</body>
</html>`

// APIDocument is a validated OpenAPI contract ready to be served.
type APIDocument struct {
	raw  []byte
	json []byte
}

// LoadAPIDocument reads and validates the OpenAPI document at path.
func LoadAPIDocument(ctx context.Context, path string) (*APIDocument, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read openapi document: %w", err)
	}

	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: false}
	doc, err := loader.LoadFromData(raw)
	if err != nil {
		return nil, fmt.Errorf("parse openapi document: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	js, err := doc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	return &APIDocument{raw: raw, json: js}, nil
}

// SetupDocs serves the API browser at /docs and the contract at
// /docs/openapi.yaml and /docs/openapi.json. A missing or invalid contract
// leaves the routes answering 404.
func SetupDocs(app *fiber.App, path string) {
	doc, err := LoadAPIDocument(context.Background(), path)
	if err != nil {
		slog.Warn("api docs disabled", "path", path, "error", err)
	}

	notFound := func(c *fiber.Ctx) error {
		return newError(c, fiber.StatusNotFound, "NOT_FOUND", "API documentation is not available")
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		if doc == nil {
			return notFound(c)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(docsPage)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if doc == nil {
			return notFound(c)
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(doc.raw)
	})

	app.Get("/docs/openapi.json", func(c *fiber.Ctx) error {
		if doc == nil {
			return notFound(c)
		}
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(doc.json)
	})
}
