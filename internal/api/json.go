package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Error types reported in the error envelope.
const (
	errTypeNotFound   = "Not Found Error"
	errTypeValidation = "Validation Error"
	errTypeIntegrity  = "Integrity Error"
	errTypeAuth       = "Authorization Error"
	errTypeBadRequest = "Bad Request"
	errTypeInternal   = "Internal Server Error"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

func successBody(help string, result any) SuccessResponse {
	return SuccessResponse{Help: help, Success: true, Result: result}
}

// errorBody builds the failure envelope. Field messages, when present, are
// added next to __type and message.
func errorBody(help, typ, msg string, fields map[string][]string) ErrorResponse {
	detail := map[string]any{"__type": typ}
	if msg != "" {
		detail["message"] = msg
	}
	for k, v := range fields {
		if k == "__type" || k == "message" {
			continue
		}
		detail[k] = v
	}
	return ErrorResponse{Help: help, Success: false, Error: detail}
}
