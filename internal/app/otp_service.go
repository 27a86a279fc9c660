package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html/template"
	"math/big"
	"time"

	"go.uber.org/zap"

	"quizzy-service/internal/auth"
	"quizzy-service/internal/domain"
)

// DefaultCodeTTL is how long an emailed code stays valid.
const DefaultCodeTTL = 5 * time.Minute

const codeEmailSubject = "Your OTP Code"

var codeEmailHTML = template.Must(template.New("otp").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; padding: 20px;">
  <p>Hi,</p>
  <p>Your OTP is: <strong>{{.Code}}</strong>. It will expire in {{.Minutes}} minutes.</p>
</body>
</html>
`))

// OTPService issues and checks emailed one-time codes and resets passwords.
type OTPService struct {
	users  UserRepository
	codes  CodeRepository
	mailer Mailer
	hasher *auth.Hasher
	ttl    time.Duration
	now    func() time.Time
	code   func() (string, error)
	logger *zap.Logger
}

func NewOTPService(users UserRepository, codes CodeRepository, mailer Mailer, hasher *auth.Hasher, ttl time.Duration, logger *zap.Logger) *OTPService {
	return NewOTPServiceWithClock(users, codes, mailer, hasher, ttl, logger, time.Now)
}

// NewOTPServiceWithClock is test-only for deterministic expiry.
func NewOTPServiceWithClock(users UserRepository, codes CodeRepository, mailer Mailer, hasher *auth.Hasher, ttl time.Duration, logger *zap.Logger, now func() time.Time) *OTPService {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}
	return &OTPService{
		users:  users,
		codes:  codes,
		mailer: mailer,
		hasher: hasher,
		ttl:    ttl,
		now:    now,
		code:   randomCode,
		logger: logger,
	}
}

// SendCode stores a fresh code for (email, purpose) and emails it.
func (s *OTPService) SendCode(ctx context.Context, email string, purpose domain.Purpose) error {
	email = auth.NormalizeEmail(email)
	if email == "" || purpose == "" {
		return domain.ErrOTPFieldsRequired
	}
	if !purpose.Valid() {
		return domain.ErrInvalidPurpose
	}

	registered, err := s.isRegistered(ctx, email)
	if err != nil {
		return err
	}
	switch {
	case purpose == domain.PurposeVerifyEmail && registered:
		return domain.ErrEmailTaken
	case purpose == domain.PurposeResetPassword && !registered:
		return domain.ErrEmailNotFound
	}

	value, err := s.code()
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}
	code := domain.OneTimeCode{
		Email:     email,
		Code:      value,
		ExpiresAt: s.now().Add(s.ttl),
		Purpose:   purpose,
	}
	if err := s.codes.Replace(ctx, code); err != nil {
		return fmt.Errorf("store code: %w", err)
	}

	msg, err := s.codeEmail(code)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send code: %w", err)
	}
	s.logger.Info("otp sent", zap.String("purpose", string(purpose)))
	return nil
}

// VerifyCode consumes the code for (email, purpose) if it matches and has not expired.
// An expired code is deleted; a mismatched one is kept.
func (s *OTPService) VerifyCode(ctx context.Context, email, value string, purpose domain.Purpose) error {
	email = auth.NormalizeEmail(email)
	if email == "" || value == "" || purpose == "" {
		return domain.ErrOTPVerifyRequired
	}

	stored, err := s.codes.Find(ctx, email, purpose)
	if errors.Is(err, domain.ErrRecordNotFound) {
		return domain.ErrCodeNotFound
	}
	if err != nil {
		return fmt.Errorf("find code: %w", err)
	}

	if s.now().After(stored.ExpiresAt) {
		if _, err := s.codes.Consume(ctx, email, purpose, stored.Code); err != nil {
			return fmt.Errorf("delete expired code: %w", err)
		}
		return domain.ErrCodeExpired
	}
	if value != stored.Code {
		return domain.ErrCodeMismatch
	}
	consumed, err := s.codes.Consume(ctx, email, purpose, stored.Code)
	if err != nil {
		return fmt.Errorf("consume code: %w", err)
	}
	if !consumed {
		// Redeemed or replaced since it was read.
		return domain.ErrCodeNotFound
	}
	return nil
}

// ResetPassword replaces the password of a registered email and drops all of its codes.
func (s *OTPService) ResetPassword(ctx context.Context, email, password string) error {
	email = auth.NormalizeEmail(email)
	if email == "" || password == "" {
		return domain.ErrEmailRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return err
	}

	if _, err := s.users.ByEmail(ctx, email); errors.Is(err, domain.ErrRecordNotFound) {
		return domain.ErrUserNotFound
	} else if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.users.SetPasswordHash(ctx, email, hash); err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return fmt.Errorf("set password: %w", err)
	}
	if err := s.codes.DeleteByEmail(ctx, email); err != nil {
		return fmt.Errorf("delete codes: %w", err)
	}
	return nil
}

func (s *OTPService) isRegistered(ctx context.Context, email string) (bool, error) {
	_, err := s.users.ByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, domain.ErrRecordNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("lookup email: %w", err)
	}
}

func (s *OTPService) codeEmail(code domain.OneTimeCode) (Email, error) {
	minutes := int(s.ttl / time.Minute)
	var body bytes.Buffer
	err := codeEmailHTML.Execute(&body, struct {
		Code    string
		Minutes int
	}{Code: code.Code, Minutes: minutes})
	if err != nil {
		return Email{}, fmt.Errorf("render code email: %w", err)
	}
	return Email{
		To:      code.Email,
		Subject: codeEmailSubject,
		Text:    fmt.Sprintf("Hi, Your OTP is: %s. It will expire in %d minutes.", code.Code, minutes),
		HTML:    body.String(),
	}, nil
}

// randomCode returns a uniformly random six-digit code.
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
