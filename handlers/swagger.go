package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RegisterSwagger registers minimal Swagger/OpenAPI endpoints for the catalog API.
// - GET /swagger/index.html  -> a small HTML page that loads the OpenAPI JSON
// - GET /swagger/doc.json    -> machine-readable OpenAPI JSON
func RegisterSwagger(rg *gin.Engine) {
	rg.GET("/swagger/index.html", func(c *gin.Context) {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, swaggerHTML)
	})

	rg.GET("/swagger/doc.json", func(c *gin.Context) {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(swaggerJSON))
	})
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>catalog - Swagger</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/swagger/doc.json',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`

// Minimal OpenAPI document describing the public catalog endpoints.
const swaggerJSON = `{
  "openapi": "3.0.0",
  "info": { "title": "catalog", "version": "v1.0.0" },
  "components": {
    "securitySchemes": { "bearer": { "type": "http", "scheme": "bearer", "bearerFormat": "JWT" } },
    "schemas": {
      "Product": {
        "type": "object",
        "properties": {
          "id": {"type":"string"}, "name": {"type":"string"}, "description": {"type":"string"},
          "category": {"type":"string"}, "store": {"type":"string"}, "link": {"type":"string"},
          "price": {"type":"number"}, "images": {"type":"array","items":{"type":"string"},"minItems":1,"maxItems":3}
        }
      },
      "ProductForm": {
        "type": "object",
        "properties": {
          "nome": {"type":"string"}, "descricao": {"type":"string"}, "categoria": {"type":"string"},
          "loja": {"type":"string"}, "link": {"type":"string"}, "preco": {"type":"string"},
          "imagens": {"type":"array","items":{"type":"string","format":"binary"}}
        }
      },
      "Error": { "type": "object", "properties": { "error": {"type":"string"} } }
    }
  },
  "paths": {
    "/api/login": {
      "post": {
        "summary": "Issue an admin access token",
        "requestBody": { "content": { "application/json": { "schema": {"type":"object","properties":{"username":{"type":"string"},"password":{"type":"string"}}}}}},
        "responses": { "200": { "description": "token returned" }, "401": { "description": "invalid credentials" }, "429": { "description": "rate limited" } }
      }
    },
    "/api/produtos": {
      "get": { "summary": "List products", "responses": { "200": { "description": "{produtos, total}" } } },
      "post": {
        "summary": "Create a product with 1 to 3 images",
        "security": [{"bearer": []}],
        "requestBody": { "content": { "multipart/form-data": { "schema": {"$ref":"#/components/schemas/ProductForm"} } } },
        "responses": { "201": { "description": "created product" }, "400": { "description": "validation failed" }, "401": { "description": "missing token" }, "403": { "description": "invalid token" }, "409": { "description": "concurrent modification" }, "413": { "description": "catalog or body too large" }, "500": { "description": "upload or storage failure" } }
      }
    },
    "/api/produtos/{id}": {
      "get": { "summary": "Get one product", "responses": { "200": { "description": "product" }, "404": { "description": "not found" } } },
      "put": {
        "summary": "Update a product; images replace the current ones when sent",
        "security": [{"bearer": []}],
        "requestBody": { "content": { "multipart/form-data": { "schema": {"$ref":"#/components/schemas/ProductForm"} } } },
        "responses": { "200": { "description": "updated product" }, "400": { "description": "validation failed" }, "404": { "description": "not found" }, "409": { "description": "concurrent modification" } }
      },
      "delete": { "summary": "Delete a product and its images", "security": [{"bearer": []}], "responses": { "200": { "description": "deleted" }, "404": { "description": "not found" } } }
    },
    "/health": { "get": { "summary": "Liveness check", "responses": { "200": { "description": "healthy" } } } },
    "/ready": { "get": { "summary": "Readiness check", "responses": { "200": { "description": "ready" }, "503": { "description": "not ready" } } } },
    "/metrics": { "get": { "summary": "Prometheus metrics", "responses": { "200": { "description": "metrics" } } } }
  }
}`
