package app

import (
	"context"
	"io"

	"quizzy-service/internal/domain"
)

// UserRepository abstracts how accounts are stored (memory, Mongo, Postgres).
// Lookups return domain.ErrRecordNotFound on a miss and writes return
// domain.ErrDuplicate when a unique key (id, email, external id) is taken.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	ByID(ctx context.Context, id int64) (domain.User, error)
	ByEmail(ctx context.Context, email string) (domain.User, error)
	ByExternalID(ctx context.Context, externalID string) (domain.User, error)
	IDExists(ctx context.Context, id int64) (bool, error)
	// LinkExternalID attaches an external identity and fills the name only when it is empty.
	LinkExternalID(ctx context.Context, id int64, externalID, name string) error
	SetPasswordHash(ctx context.Context, email, hash string) error
}

// ProfileRepository stores one profile per user.
type ProfileRepository interface {
	// GetOrCreate returns the stored profile, inserting a default one first if needed.
	GetOrCreate(ctx context.Context, userID int64) (domain.Profile, error)
	// Update applies mutate atomically with respect to other updates of the same profile,
	// creating the default profile first if it does not exist.
	Update(ctx context.Context, userID int64, mutate func(*domain.Profile) error) (domain.Profile, error)
	// ListByStars returns every profile ordered by stars, highest first.
	ListByStars(ctx context.Context) ([]domain.Profile, error)
}

// CodeRepository stores one-time codes keyed by (email, purpose).
type CodeRepository interface {
	// Replace removes any code for the same (email, purpose) and stores code.
	Replace(ctx context.Context, code domain.OneTimeCode) error
	Find(ctx context.Context, email string, purpose domain.Purpose) (domain.OneTimeCode, error)
	// Consume deletes the code for (email, purpose) only if its value is code and reports
	// whether it did. Of several concurrent callers at most one sees true.
	Consume(ctx context.Context, email string, purpose domain.Purpose, code string) (bool, error)
	DeleteByEmail(ctx context.Context, email string) error
}

// Email is an outbound message.
type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers email through some external transport.
type Mailer interface {
	Send(ctx context.Context, msg Email) error
}

// QuestionSource loads the full question set from wherever it lives.
type QuestionSource interface {
	FetchQuestions(ctx context.Context) ([]domain.Question, error)
}

// ImageStore persists uploaded avatar images and returns the reference clients use to fetch them.
type ImageStore interface {
	Save(ctx context.Context, name, contentType string, body io.ReadSeeker) (string, error)
}

// NewDefaultProfile is the profile every user starts with.
func NewDefaultProfile(userID int64) domain.Profile {
	return domain.Profile{UserID: userID, Name: domain.DefaultDisplayName}
}
