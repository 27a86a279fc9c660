package domain

import "errors"

// Error kinds. Every user-visible failure unwraps to exactly one of these.
var (
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrExpired      = errors.New("expired")
	ErrMismatch     = errors.New("mismatch")
	ErrUnavailable  = errors.New("unavailable")
)

// Error is a failure with a message that is safe to show to clients.
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Kind }

// NewError builds a client-facing error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

var (
	ErrEmailRequired      = NewError(ErrValidation, "Email and password are required")
	ErrInvalidEmail       = NewError(ErrValidation, "Invalid email format")
	ErrWeakPassword       = NewError(ErrValidation, "Password must be at least 6 characters and include letters and numbers")
	ErrEmailTaken         = NewError(ErrConflict, "Email already registered")
	ErrInvalidCredentials = NewError(ErrUnauthorized, "Invalid email or password")

	ErrOTPFieldsRequired = NewError(ErrValidation, "Email and type are required")
	ErrOTPVerifyRequired = NewError(ErrValidation, "Email, OTP, and type are required")
	ErrInvalidPurpose    = NewError(ErrValidation, "Invalid OTP type")
	ErrEmailNotFound     = NewError(ErrNotFound, "Email not found")
	ErrCodeNotFound      = NewError(ErrNotFound, "OTP not found. Please request a new one.")
	ErrCodeExpired       = NewError(ErrExpired, "OTP has expired")
	ErrCodeMismatch      = NewError(ErrMismatch, "Incorrect OTP")
	ErrUserNotFound      = NewError(ErrNotFound, "User not found")

	ErrInvalidStars    = NewError(ErrValidation, "Invalid stars earned")
	ErrNoQuestions     = NewError(ErrUnavailable, "No questions available.")
	ErrMissingToken    = NewError(ErrUnauthorized, "Authorization token missing")
	ErrInvalidToken    = NewError(ErrUnauthorized, "Invalid token")
	ErrInvalidUserID   = NewError(ErrValidation, "Invalid user id")
	ErrNoFileUploaded  = NewError(ErrValidation, "No file uploaded")
	ErrUnsupportedFile = NewError(ErrValidation, "Only image files are allowed")
	ErrFileTooLarge    = NewError(ErrValidation, "File too large")
)

// Store-level sentinels. Repositories return these; services translate them.
var (
	// ErrRecordNotFound is returned by repositories when a lookup has no match.
	ErrRecordNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
	// ErrConcurrentUpdate is returned when a compare-and-swap update kept losing.
	ErrConcurrentUpdate = errors.New("concurrent update")
)
