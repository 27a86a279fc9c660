package http

import (
	"bytes"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"quizzy-service/internal/app"
	"quizzy-service/internal/domain"
)

// codeValue accepts the code as a JSON string or number.
type codeValue string

func (c *codeValue) UnmarshalJSON(data []byte) error {
	if bytes.HasPrefix(data, []byte(`"`)) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = codeValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = codeValue(n.String())
	return nil
}

type sendCodeRequest struct {
	Email string `json:"email"`
	Type  string `json:"type"`
}

type verifyCodeRequest struct {
	Email string    `json:"email"`
	OTP   codeValue `json:"otp"`
	Type  string    `json:"type"`
}

type resetPasswordRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OTPHandler serves the one-time code endpoints.
type OTPHandler struct {
	otp     *app.OTPService
	metrics *Metrics
	logger  *zap.Logger
}

func NewOTPHandler(otp *app.OTPService, metrics *Metrics, logger *zap.Logger) *OTPHandler {
	return &OTPHandler{otp: otp, metrics: metrics, logger: logger}
}

func (h *OTPHandler) SendCode(w http.ResponseWriter, r *http.Request) {
	var req sendCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeOTPError(w, h.logger, "send otp", err, "Error sending OTP")
		return
	}
	purpose := domain.Purpose(req.Type)
	if err := h.otp.SendCode(r.Context(), req.Email, purpose); err != nil {
		writeOTPError(w, h.logger, "send otp", err, "Error sending OTP")
		return
	}
	if h.metrics != nil {
		h.metrics.otpSent.WithLabelValues(string(purpose)).Inc()
	}
	writeJSON(w, http.StatusOK, otpResponse{Success: true, Message: "OTP sent successfully"})
}

func (h *OTPHandler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeOTPError(w, h.logger, "verify otp", err, "OTP verification failed")
		return
	}
	if err := h.otp.VerifyCode(r.Context(), req.Email, string(req.OTP), domain.Purpose(req.Type)); err != nil {
		writeOTPError(w, h.logger, "verify otp", err, "OTP verification failed")
		return
	}
	writeJSON(w, http.StatusOK, otpResponse{Success: true, Message: "OTP verified successfully"})
}

func (h *OTPHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeOTPError(w, h.logger, "reset password", err, "Failed to reset password")
		return
	}
	if err := h.otp.ResetPassword(r.Context(), req.Email, req.Password); err != nil {
		writeOTPError(w, h.logger, "reset password", err, "Failed to reset password")
		return
	}
	writeJSON(w, http.StatusOK, otpResponse{Success: true, Message: "Password reset successful"})
}
