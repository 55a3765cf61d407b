// Package docs registers the OpenAPI document served under /swagger/.
// Regenerate with: swag init -g internal/platform/httpserver/server.go -o internal/platform/httpserver/docs
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
    "paths": {
        "/transactions": {
            "get": {
                "description": "Newest first.",
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "List transactions",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "array",
                            "items": {"$ref": "#/definitions/http.TransactionDTO"}
                        }
                    }
                }
            }
        },
        "/transactions/create": {
            "post": {
                "description": "Stores a pending transaction once per Idempotency-Key. Replays answer with the original record.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Create a transaction",
                "parameters": [
                    {"type": "string", "description": "Client idempotency token", "name": "Idempotency-Key", "in": "header", "required": true},
                    {"description": "Transaction", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateTransactionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.TransactionDTO"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/transactions/async-process": {
            "post": {
                "description": "Same as create, and schedules background processing for new transactions. The response is the pending record.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Create and process a transaction asynchronously",
                "parameters": [
                    {"type": "string", "description": "Client idempotency token", "name": "Idempotency-Key", "in": "header", "required": true},
                    {"description": "Transaction", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateTransactionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.TransactionDTO"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/transactions/{transaction_id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["transactions"],
                "summary": "Get a transaction",
                "parameters": [
                    {"type": "string", "description": "Transaction id", "name": "transaction_id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.TransactionDTO"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/assistant/summarize": {
            "post": {
                "description": "Generates a short summary and stores the request with its result.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["assistant"],
                "summary": "Summarize text",
                "parameters": [
                    {"description": "Text to summarize", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.SummarizeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.SummaryDTO"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "502": {"description": "Bad Gateway", "schema": {"$ref": "#/definitions/http.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/http.ErrorResponse"}}
                }
            }
        },
        "/assistant/summaries": {
            "get": {
                "produces": ["application/json"],
                "tags": ["assistant"],
                "summary": "List recent summaries",
                "parameters": [
                    {"type": "integer", "description": "Page size (max 100)", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.ListSummariesResponse"}}
                }
            }
        }
    },
    "definitions": {
        "http.CreateTransactionRequest": {
            "type": "object",
            "required": ["amount", "type", "user_id"],
            "properties": {
                "amount": {"type": "number"},
                "type": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "http.TransactionDTO": {
            "type": "object",
            "properties": {
                "amount": {"type": "number"},
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "status": {"type": "string"},
                "type": {"type": "string"},
                "user_id": {"type": "string"}
            }
        },
        "http.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "http.SummarizeRequest": {
            "type": "object",
            "required": ["text"],
            "properties": {
                "text": {"type": "string"}
            }
        },
        "http.SummaryDTO": {
            "type": "object",
            "properties": {
                "created_at": {"type": "string"},
                "id": {"type": "string"},
                "input_text": {"type": "string"},
                "output_summary": {"type": "string"}
            }
        },
        "http.ListSummariesResponse": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/http.SummaryDTO"}},
                "status": {"type": "string"}
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
	Title:            "txengine API",
	Description:      "Idempotent transaction creation, background processing and live status streaming.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
