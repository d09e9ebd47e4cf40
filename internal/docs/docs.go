// Package docs holds the swagger document for the REST API.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "paths": {
        "/calls/initiate": {
            "post": {
                "summary": "Start a call",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/InitiateCallRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/CallSession"}}}
            }
        },
        "/calls/{id}/join": {
            "post": {
                "summary": "Accept a pending call",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/CallSession"}}, "409": {"description": "Invalid state"}}
            }
        },
        "/calls/{id}/reject": {
            "post": {
                "summary": "Decline a pending call",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/CallSession"}}, "409": {"description": "Invalid state"}}
            }
        },
        "/calls/{id}/end": {
            "post": {
                "summary": "End a pending or active call",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/CallSession"}}, "409": {"description": "Invalid state"}}
            }
        },
        "/calls/history": {
            "get": {
                "summary": "Finished calls of the caller, newest first",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "query", "name": "limit", "type": "integer"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/CallSession"}}}}
            }
        },
        "/calls/{id}/emotion": {
            "post": {
                "summary": "Log an emotion observation for an active call",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/LogEmotionRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/EmotionLog"}}}
            }
        },
        "/calls/{id}/emotions": {
            "get": {
                "summary": "Emotion observations of a call, oldest first",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/EmotionLog"}}}}
            }
        },
        "/webrtc/ice-servers": {
            "get": {
                "summary": "ICE servers for peer connections",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/ws": {
            "get": {
                "summary": "Realtime signaling socket (token in Authorization header or ?token=)",
                "responses": {"101": {"description": "Switching protocols"}, "401": {"description": "Authentication error"}}
            }
        }
    },
    "definitions": {
        "InitiateCallRequest": {
            "type": "object",
            "properties": {"recipientId": {"type": "string"}}
        },
        "CallSession": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "participants": {"type": "array", "items": {"type": "string"}},
                "status": {"type": "string", "enum": ["pending", "active", "ended", "missed"]},
                "initiatorId": {"type": "string"},
                "startedAt": {"type": "string", "format": "date-time"},
                "endedAt": {"type": "string", "format": "date-time"},
                "duration": {"type": "integer"},
                "createdAt": {"type": "string", "format": "date-time"},
                "updatedAt": {"type": "string", "format": "date-time"}
            }
        },
        "LogEmotionRequest": {
            "type": "object",
            "properties": {
                "detectedEmotions": {"type": "array", "items": {"type": "string"}},
                "dominantEmotion": {"type": "string"},
                "confidence": {"type": "number"},
                "generatedText": {"type": "string"},
                "frameData": {"type": "string"}
            }
        },
        "EmotionLog": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "callId": {"type": "string"},
                "userId": {"type": "string"},
                "timestamp": {"type": "string", "format": "date-time"},
                "detectedEmotions": {"type": "array", "items": {"type": "string"}},
                "dominantEmotion": {"type": "string"},
                "confidence": {"type": "number"},
                "generatedText": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/v1",
	Schemes:          []string{},
	Title:            "HeartSpeak Signaling API",
	Description:      "Call signaling and emotion relay for HeartSpeak",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
