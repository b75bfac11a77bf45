// Package docs registers the OpenAPI description served under /swagger.
// Regenerate with: swag init -g cmd/main.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "paths": {
        "/v1/tax/preview": {
            "post": {
                "tags": ["tax"],
                "summary": "Compute invoice totals without saving",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/handlers.PreviewRequest"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}
            }
        },
        "/v1/tax/gst-type": {
            "get": {
                "tags": ["tax"],
                "summary": "Derive the GST split for a supply",
                "parameters": [
                    {"type": "string", "name": "from", "in": "query", "required": true},
                    {"type": "string", "name": "to", "in": "query", "required": true}
                ],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/v1/clients": {
            "get": {"tags": ["clients"], "summary": "List clients", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["clients"], "summary": "Create a client", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/v1/invoices": {
            "get": {"tags": ["invoices"], "summary": "List invoices", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["invoices"], "summary": "Create an invoice", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/v1/invoices/{id}": {
            "put": {"tags": ["invoices"], "summary": "Replace an invoice's contents and recompute its totals", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/v1/invoices/{id}/status": {
            "patch": {"tags": ["invoices"], "summary": "Move an invoice to a new status", "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/v1/invoices/{id}/pdf": {
            "post": {"tags": ["invoices"], "summary": "Render the invoice PDF and return a time-limited download link", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/expenses": {
            "get": {"tags": ["expenses"], "summary": "List expenses", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["expenses"], "summary": "Record an expense", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/v1/expenses/{id}/receipt": {
            "post": {"tags": ["expenses"], "summary": "Attach a receipt (JPEG, PNG or PDF, max 10MB)", "consumes": ["multipart/form-data"], "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}}}
        },
        "/v1/reports/monthly": {
            "get": {"tags": ["reports"], "summary": "Monthly sales, expenses and tax", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/reports/gst-summary": {
            "get": {"tags": ["reports"], "summary": "Output GST, input credit and net liability for a period", "responses": {"200": {"description": "OK"}}}
        },
        "/v1/reports/verify-totals": {
            "get": {"tags": ["reports"], "summary": "List invoices whose stored totals disagree with a recomputation", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "handlers.PreviewRequest": {
            "type": "object",
            "properties": {
                "items": {"type": "array", "items": {"type": "object"}},
                "gstConfig": {"type": "object"},
                "billFromState": {"type": "string"},
                "billToState": {"type": "string"},
                "mode": {"type": "string", "enum": ["per_item_rate", "flat_rate_approximation"]},
                "discount": {"type": "number"},
                "discountPercentage": {"type": "number"},
                "additionalCharges": {"type": "number"},
                "conversionRate": {"type": "number"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Billbook API",
	Description:      "GST invoicing, expenses and tax reports for small businesses.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
