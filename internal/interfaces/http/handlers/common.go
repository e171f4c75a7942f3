// Package handlers implements the REST endpoints of the annotation service.
package handlers

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/turtacn/LoreKit/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/LoreKit/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, statusCode int, code errors.ErrorCode, message string) {
	writeJSON(w, statusCode, ErrorResponse{Code: code.String(), Message: message})
}

// writeAppError maps application-level errors to HTTP status codes.  Server
// errors are logged and answered with the code's default message only.
func writeAppError(w http.ResponseWriter, logger logging.Logger, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	if status >= http.StatusInternalServerError {
		logger.Error("request failed", logging.String("code", code.String()), logging.Err(err))
		writeError(w, status, code, errors.DefaultMessageForCode(code))
		return
	}

	resp := ErrorResponse{Code: code.String(), Message: err.Error()}
	var ae *errors.AppError
	if stderrors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	writeJSON(w, status, resp)
}

// decodeJSON reads a JSON body of at most maxBytes into dst.  An empty body,
// malformed JSON and oversized bodies are COMMON_002 errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst interface{}) error {
	body := r.Body
	if maxBytes > 0 {
		body = http.MaxBytesReader(w, r.Body, maxBytes)
	}
	err := json.NewDecoder(body).Decode(dst)
	if err == nil {
		return nil
	}

	var tooLarge *http.MaxBytesError
	switch {
	case stderrors.Is(err, io.EOF):
		return errors.New(errors.ErrCodeBadRequest, "request body is empty")
	case stderrors.As(err, &tooLarge):
		return errors.New(errors.ErrCodeBadRequest, "request body too large")
	default:
		return errors.Wrap(err, errors.ErrCodeBadRequest, "invalid JSON body")
	}
}
