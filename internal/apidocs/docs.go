// Package apidocs registers the OpenAPI document served under /swagger/.
// Regenerate with:
//
//	swag init -g cmd/comfyd/docs.go -o internal/apidocs --packageName apidocs --outputTypes go
package apidocs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {"name": "comfyd maintainers"},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Server status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/workflows": {
            "get": {
                "produces": ["application/json"],
                "tags": ["workflows"],
                "summary": "List workflow templates",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.WorkflowsResponse"}}}
            }
        },
        "/options": {
            "get": {
                "produces": ["application/json"],
                "tags": ["workflows"],
                "summary": "Parameter catalogs",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.OptionsResponse"}}}
            }
        },
        "/sessions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "List active jobs",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SessionsResponse"}}}
            }
        },
        "/sessions/{sessionID}/generate": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/x-ndjson"],
                "tags": ["sessions"],
                "summary": "Generate an image",
                "parameters": [
                    {"type": "string", "description": "Session id", "name": "sessionID", "in": "path", "required": true},
                    {"description": "Generation parameters", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.GenerateRequest"}}
                ],
                "responses": {
                    "200": {"description": "NDJSON: StartLine, ProgressLine..., DoneLine", "schema": {"$ref": "#/definitions/types.DoneLine"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/sessions/{sessionID}/job": {
            "get": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Active job of a session",
                "parameters": [{"type": "string", "description": "Session id", "name": "sessionID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.JobStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "produces": ["application/json"],
                "tags": ["sessions"],
                "summary": "Cancel the active job of a session",
                "parameters": [{"type": "string", "description": "Session id", "name": "sessionID", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.JobStatus"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "invalid JSON body"},
                "code": {"type": "integer", "example": 400}
            }
        },
        "types.GenerateRequest": {
            "type": "object",
            "properties": {
                "prompt": {"type": "string", "example": "a lighthouse at dusk, oil painting"},
                "negative_prompt": {"type": "string"},
                "seed": {"type": "string", "example": "42"},
                "steps": {"type": "integer", "example": 9},
                "size": {"type": "string", "example": "1024x1024"},
                "width": {"type": "integer"},
                "height": {"type": "integer"},
                "cfg": {"type": "number", "example": 1},
                "shift": {"type": "number", "example": 3},
                "sampler": {"type": "string", "example": "euler"},
                "scheduler": {"type": "string", "example": "simple"},
                "styles": {"type": "array", "items": {"type": "string"}},
                "workflow": {"type": "string"}
            }
        },
        "types.JobStatus": {
            "type": "object",
            "properties": {
                "session_id": {"type": "string", "example": "123456789"},
                "job_id": {"type": "string"},
                "state": {"type": "string", "example": "polling"},
                "progress": {"type": "number", "example": 74},
                "node": {"type": "string"},
                "seed": {"type": "integer"},
                "workflow": {"type": "string"},
                "cancelled": {"type": "boolean"},
                "created_unix": {"type": "integer", "example": 1700000000}
            }
        },
        "types.SessionsResponse": {
            "type": "object",
            "properties": {"sessions": {"type": "array", "items": {"$ref": "#/definitions/types.JobStatus"}}}
        },
        "types.Workflow": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "path": {"type": "string"},
                "nodes": {"type": "integer"}
            }
        },
        "types.WorkflowsResponse": {
            "type": "object",
            "properties": {
                "workflows": {"type": "array", "items": {"$ref": "#/definitions/types.Workflow"}},
                "default": {"type": "string"}
            }
        },
        "types.OptionsResponse": {
            "type": "object",
            "properties": {
                "samplers": {"type": "array", "items": {"type": "string"}},
                "schedulers": {"type": "array", "items": {"type": "string"}},
                "sizes": {"type": "array", "items": {"type": "string"}},
                "defaults": {"$ref": "#/definitions/types.GenerateRequest"}
            }
        },
        "types.DoneLine": {
            "type": "object",
            "properties": {
                "done": {"type": "boolean"},
                "state": {"type": "string", "example": "completed"},
                "job_id": {"type": "string"},
                "seed": {"type": "integer"},
                "elapsed_ms": {"type": "integer"},
                "image_base64": {"type": "string"},
                "error": {"type": "string"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "backend_url": {"type": "string", "example": "http://127.0.0.1:8188"},
                "sessions": {"type": "array", "items": {"$ref": "#/definitions/types.JobStatus"}},
                "jobs_started": {"type": "integer", "example": 12},
                "jobs_completed": {"type": "integer"},
                "jobs_failed": {"type": "integer"},
                "jobs_cancelled": {"type": "integer"},
                "uptime_seconds": {"type": "integer", "example": 3600},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "draining": {"type": "boolean"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "comfyd API",
	Description:      "HTTP API for orchestrating ComfyUI image generation per chat session.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
