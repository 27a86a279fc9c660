package auth

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"quizzy-service/internal/domain"
)

const (
	minPasswordLength = 6
	passwordSymbols   = "@$!%*?&"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases an address so lookups are case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail rejects addresses that do not look like local@domain.tld.
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return domain.ErrInvalidEmail
	}
	return nil
}

// ValidatePassword requires at least six characters drawn from letters, digits and
// a small symbol set, with at least one letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return domain.ErrWeakPassword
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			hasLetter = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
		default:
			return domain.ErrWeakPassword
		}
	}
	if !hasLetter || !hasDigit {
		return domain.ErrWeakPassword
	}
	return nil
}

// Hasher wraps bcrypt with a fixed cost.
type Hasher struct {
	cost  int
	dummy []byte
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	// dummy lets Compare spend the same time when there is no stored hash.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("quizzy-dummy-password1"), cost)
	return &Hasher{cost: cost, dummy: dummy}
}

func (h *Hasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// Compare reports whether password matches hash. An empty hash still costs one bcrypt round.
func (h *Hasher) Compare(hash, password string) bool {
	if hash == "" {
		_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
