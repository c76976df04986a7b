// Package docs is generated by swaggo/swag from the annotations in
// cmd/localllm and internal/httpapi. Regenerate with:
//
//	swag init -g cmd/localllm/docs.go -o docs
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "localllm maintainers"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {
            "get": {
                "description": "Models the configured runtime can serve.",
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List models",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "description": "Load state, device and counters of the generation adapter.",
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Adapter status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}
                }
            }
        },
        "/v1/generate": {
            "post": {
                "description": "Runs one single-turn generation against the local model. The model is loaded on first use.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["generate"],
                "summary": "Generate content",
                "parameters": [
                    {
                        "description": "Generation request",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.GenerateRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.GenerateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "415": {"description": "Unsupported Media Type", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "504": {"description": "Gateway Timeout", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.GenerateRequest": {
            "type": "object",
            "properties": {
                "config": {"$ref": "#/definitions/types.GenerationConfig"},
                "contents": {"type": "string", "example": "Write a haiku about the ocean."},
                "model": {"type": "string", "example": "gemini-1.5-flash"}
            }
        },
        "types.GenerateResponse": {
            "type": "object",
            "properties": {
                "id": {"type": "string", "example": "4b1c1f0e-5d2a-4a43-9d8e-0f5f0b7b9a10"},
                "model_version": {"type": "string", "example": "Qwen/Qwen2-0.5B-Instruct"},
                "text": {"type": "string", "example": "Waves fold into foam"},
                "usage_metadata": {"$ref": "#/definitions/types.UsageMetadata"}
            }
        },
        "types.GenerationConfig": {
            "type": "object",
            "properties": {
                "max_output_tokens": {"type": "integer", "example": 128},
                "temperature": {"type": "number", "example": 0.7}
            }
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "family": {"type": "string", "example": "qwen2"},
                "id": {"type": "string", "example": "qwen2-0.5b-instruct-q4_k_m.gguf"},
                "name": {"type": "string", "example": "qwen2-0.5b-instruct-q4_k_m"},
                "path": {"type": "string", "example": "/home/user/models/qwen2-0.5b-instruct-q4_k_m.gguf"},
                "quant": {"type": "string", "example": "Q4_K_M"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "device": {"type": "string", "example": "accelerated"},
                "generations_total": {"type": "integer", "example": 12},
                "last_error": {"type": "string"},
                "loaded_at_unix": {"type": "integer", "example": 1700000000},
                "loads_total": {"type": "integer", "example": 1},
                "model_id": {"type": "string", "example": "Qwen/Qwen2-0.5B-Instruct"},
                "runtime": {"type": "string", "example": "llama-server"},
                "server_time_unix": {"type": "integer", "example": 1700000000},
                "state": {"type": "string", "example": "loaded"},
                "uptime_seconds": {"type": "integer", "example": 3600}
            }
        },
        "types.UsageMetadata": {
            "type": "object",
            "properties": {
                "candidates_token_count": {"type": "integer", "example": 3},
                "prompt_token_count": {"type": "integer", "example": 7},
                "total_token_count": {"type": "integer", "example": 10}
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
	Title:            "localllm API",
	Description:      "HTTP API for a locally hosted causal language model with a generate_content interface.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
