// Package docs registers the OpenAPI document served by /swagger/*any.
// Regenerate with: swag init -g cmd/server/main.go -o docs
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
        "/": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meta"],
                "summary": "Service banner",
                "operationId": "root",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/handlers.SuccessResponse"}
                    }
                }
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Meta"],
                "summary": "Liveness and database state",
                "operationId": "health",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"$ref": "#/definitions/handlers.HealthResponse"}
                    }
                }
            }
        },
        "/api/subscribe": {
            "post": {
                "description": "Stores a normalized email address. Each address can subscribe once.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Subscriptions"],
                "summary": "Subscribe an email address",
                "operationId": "subscribe",
                "parameters": [
                    {
                        "description": "Subscription payload",
                        "name": "body",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/handlers.SubscribeRequest"}
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {"$ref": "#/definitions/handlers.SuccessResponse"},
                        "headers": {
                            "RateLimit-Remaining": {
                                "type": "string",
                                "description": "Requests left in the current window"
                            }
                        }
                    },
                    "400": {
                        "description": "Validation failed or duplicate email",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    },
                    "413": {
                        "description": "Body too large",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    },
                    "429": {
                        "description": "Rate limit exceeded",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    },
                    "500": {
                        "description": "Internal error",
                        "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}
                    }
                }
            }
        }
    },
    "definitions": {
        "apperr.FieldError": {
            "type": "object",
            "properties": {
                "field": {"type": "string", "example": "email"},
                "message": {"type": "string", "example": "Please provide a valid email address"},
                "value": {}
            }
        },
        "handlers.ErrorBody": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "VALIDATION_ERROR"},
                "details": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/apperr.FieldError"}
                },
                "message": {"type": "string", "example": "Validation failed"},
                "raw": {"$ref": "#/definitions/handlers.RawError"},
                "stack": {"type": "string"}
            }
        },
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"$ref": "#/definitions/handlers.ErrorBody"},
                "request_id": {"type": "string", "example": "123e4567-e89b-12d3-a456-426614174000"},
                "status": {"type": "string", "example": "fail"}
            }
        },
        "handlers.HealthResponse": {
            "type": "object",
            "properties": {
                "database": {"type": "string", "example": "connected"},
                "status": {"type": "string", "example": "healthy"},
                "timestamp": {"type": "string"},
                "uptime": {"type": "number", "example": 12.5}
            }
        },
        "handlers.RawError": {
            "type": "object",
            "properties": {
                "cause": {"type": "string"},
                "details": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/apperr.FieldError"}
                },
                "errorCode": {"type": "string"},
                "isOperational": {"type": "boolean"},
                "status": {"type": "string"},
                "statusCode": {"type": "integer"}
            }
        },
        "handlers.SubscribeRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "reader@example.com"}
            }
        },
        "handlers.SuccessResponse": {
            "type": "object",
            "properties": {
                "message": {"type": "string", "example": "Successfully subscribed!"},
                "status": {"type": "string", "example": "success"}
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
	Title:            "Subscription API",
	Description:      "Email subscription service with uniform error rendering and per-client rate limiting.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
