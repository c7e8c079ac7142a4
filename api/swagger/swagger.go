package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Azhur Katering API",
        "description": "Catering service backend: accounts, email verification and menu management",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Account lifecycle and sessions"},
        {"name": "Menu", "description": "Categories and dishes"}
    ],
    "paths": {
        "/auth/register": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Register a new account",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegisterRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}},
                    "400": {"description": "Validation or duplicate email/username"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate and receive token cookies",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Incorrect password"},
                    "403": {"description": "Locked or inactive account"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Rotate the refresh token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Expired, revoked or malformed token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke the session and clear cookies",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/auth/send-verification": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Send a fresh verification code",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendVerificationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Already verified"}
                }
            }
        },
        "/auth/verify-email": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Redeem a 6 digit verification code",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyEmailRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid or expired code"}
                }
            }
        },
        "/auth/change-password": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Change password and revoke all sessions",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ChangePasswordRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Wrong current password"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "401": {"description": "Missing or invalid access token"}
                }
            }
        },
        "/categories": {
            "get": {
                "tags": ["Menu"],
                "summary": "List categories",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Menu"],
                "summary": "Create category (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateCategoryRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "403": {"description": "Admin role required"}
                }
            }
        },
        "/categories/all": {
            "get": {
                "tags": ["Menu"],
                "summary": "List all categories including hidden ones (admin)",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}},
                    "403": {"description": "Admin role required"}
                }
            }
        },
        "/categories/{id}/status": {
            "patch": {
                "tags": ["Menu"],
                "summary": "Show or hide category on the public menu (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateCategoryStatusRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/categories/{id}": {
            "get": {
                "tags": ["Menu"],
                "summary": "Get category",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Menu"],
                "summary": "Update category (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateCategoryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Concurrent update"}
                }
            },
            "delete": {
                "tags": ["Menu"],
                "summary": "Delete empty category (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Category still has dishes"}
                }
            }
        },
        "/dishes": {
            "get": {
                "tags": ["Menu"],
                "summary": "List dishes",
                "parameters": [
                    {"name": "category_id", "in": "query", "type": "string"},
                    {"name": "available", "in": "query", "type": "boolean"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Menu"],
                "summary": "Create dish (admin)",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateDishRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "404": {"description": "Category not found"}
                }
            }
        },
        "/dishes/available": {
            "get": {
                "tags": ["Menu"],
                "summary": "List available dishes",
                "parameters": [
                    {"name": "category_id", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/dishes/search": {
            "get": {
                "tags": ["Menu"],
                "summary": "Search dishes by name or description",
                "parameters": [
                    {"name": "q", "in": "query", "required": true, "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/dishes/export": {
            "get": {
                "tags": ["Menu"],
                "summary": "Export the menu as CSV or PDF",
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File"}
                }
            }
        },
        "/dishes/{id}": {
            "get": {
                "tags": ["Menu"],
                "summary": "Get dish",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Not found"}
                }
            },
            "put": {
                "tags": ["Menu"],
                "summary": "Update dish (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateDishRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "409": {"description": "Concurrent update"}
                }
            },
            "delete": {
                "tags": ["Menu"],
                "summary": "Delete dish (admin)",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/dishes/{id}/image": {
            "post": {
                "tags": ["Menu"],
                "summary": "Upload dish image (admin)",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "image", "in": "formData", "required": true, "type": "file"},
                    {"name": "thumbnail", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Missing or oversized file"}
                }
            }
        }
    },
    "definitions": {
        "RegisterRequest": {
            "type": "object",
            "required": ["username", "email", "password"],
            "properties": {
                "username": {"type": "string"},
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ChangePasswordRequest": {
            "type": "object",
            "required": ["currentPassword", "newPassword"],
            "properties": {
                "currentPassword": {"type": "string"},
                "newPassword": {"type": "string"}
            }
        },
        "SendVerificationRequest": {
            "type": "object",
            "required": ["email"],
            "properties": {
                "email": {"type": "string"}
            }
        },
        "VerifyEmailRequest": {
            "type": "object",
            "required": ["email", "code"],
            "properties": {
                "email": {"type": "string"},
                "code": {"type": "string"}
            }
        },
        "CreateCategoryRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "sort_order": {"type": "integer"}
            }
        },
        "UpdateCategoryRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "sort_order": {"type": "integer"}
            }
        },
        "UpdateCategoryStatusRequest": {
            "type": "object",
            "required": ["is_active"],
            "properties": {
                "is_active": {"type": "boolean"}
            }
        },
        "CreateDishRequest": {
            "type": "object",
            "required": ["category_id", "name", "price"],
            "properties": {
                "category_id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "number"},
                "weight_grams": {"type": "integer"},
                "is_available": {"type": "boolean"}
            }
        },
        "UpdateDishRequest": {
            "type": "object",
            "properties": {
                "category_id": {"type": "string"},
                "name": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "number"},
                "weight_grams": {"type": "integer"},
                "is_available": {"type": "boolean"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "data": {"type": "object"},
                "errorCode": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
