package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"quizzy-service/internal/domain"
)

type messageResponse struct {
	Message string `json:"message"`
}

type otpResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to an HTTP status. Unknown errors are 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrCodeNotFound), errors.Is(err, domain.ErrEmailNotFound):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrExpired),
		errors.Is(err, domain.ErrMismatch):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// publicMessage returns the client-safe message for err, or fallback for internal failures.
func publicMessage(err error, fallback string) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}

// writeError logs internal failures with op and writes {"message": ...}.
func writeError(w http.ResponseWriter, logger *zap.Logger, op string, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	}
	writeJSON(w, status, messageResponse{Message: publicMessage(err, fallback)})
}

// writeOTPError is writeError for the OTP endpoints, which also carry a success flag.
func writeOTPError(w http.ResponseWriter, logger *zap.Logger, op string, err error, fallback string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", zap.Error(err))
	}
	writeJSON(w, status, otpResponse{Success: false, Message: publicMessage(err, fallback)})
}

// decodeJSON reads a typed request body. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return domain.NewError(domain.ErrValidation, "Invalid request body")
	}
	return nil
}
