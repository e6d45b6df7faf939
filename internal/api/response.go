package api

import (
	"net/http"
)

// Error codes carried in the envelope.
const (
	CodeValidation       = "validation/invalid-format"
	CodeNotFound         = "resource/not-found"
	CodeAccessDenied     = "resource/access-denied"
	CodeAuthAccessDenied = "auth/access-denied"
	CodeInternal         = "server/internal-error"
	CodeUnavailable      = "server/service-unavailable"
	CodeQuotaExceeded    = "server/quota-exceeded"
	CodeProfileNotFound  = "profile/not-found"
)

// Envelope is the uniform response body.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// Success writes a 200 envelope.
func Success(w http.ResponseWriter, data any, message string) {
	JSON(w, http.StatusOK, Envelope{Success: true, Data: data, Message: message})
}

// Created writes a 201 envelope.
func Created(w http.ResponseWriter, data any, message string) {
	if message == "" {
		message = "Resource created successfully"
	}
	JSON(w, http.StatusCreated, Envelope{Success: true, Data: data, Message: message})
}

// Fail writes an error envelope.
func Fail(w http.ResponseWriter, status int, message, code string, details any) {
	JSON(w, status, Envelope{Success: false, Error: message, Code: code, Details: details})
}

// NotFound writes a 404 envelope for resource.
func NotFound(w http.ResponseWriter, resource string) {
	if resource == "" {
		resource = "Resource"
	}
	Fail(w, http.StatusNotFound, resource+" not found", CodeNotFound, nil)
}

// Forbidden writes a 403 envelope.
func Forbidden(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Access denied"
	}
	Fail(w, http.StatusForbidden, message, CodeAccessDenied, nil)
}

// Unauthorized writes a 401 envelope.
func Unauthorized(w http.ResponseWriter, message string) {
	if message == "" {
		message = "Unauthorized"
	}
	Fail(w, http.StatusUnauthorized, message, CodeAuthAccessDenied, nil)
}

// ServerError writes a 500 envelope.
func ServerError(w http.ResponseWriter, details any) {
	Fail(w, http.StatusInternalServerError, "Internal server error", CodeInternal, details)
}
