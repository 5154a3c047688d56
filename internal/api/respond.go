package api

import (
	"encoding/json"
	"log"
	"net/http"
)

// Error codes surfaced to clients. The body shape is always
// {"error": {"code": ..., "message": ...}}.
const (
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeUserExists         = "USER_EXISTS"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeSlotNotFound       = "SLOT_NOT_FOUND"
	CodeSlotTaken          = "SLOT_TAKEN"
	CodeValidationError    = "VALIDATION_ERROR"
	CodeNotFound           = "NOT_FOUND"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      = "INTERNAL_ERROR"
)

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

// internalError logs the real failure server-side and returns an opaque
// body to the client.
func internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	log.Printf("%s: %v request_id=%s", op, err, GetRequestID(r.Context()))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
}
