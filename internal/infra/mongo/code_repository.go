package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"quizzy-service/internal/domain"
)

type codeDoc struct {
	Email     string    `bson:"email"`
	Code      string    `bson:"otp"`
	ExpiresAt time.Time `bson:"expiresAt"`
	Purpose   string    `bson:"type"`
}

// CodeRepository stores one-time codes in the otps collection, at most one per (email, type).
type CodeRepository struct {
	coll *mongo.Collection
}

func NewCodeRepository(db *mongo.Database) *CodeRepository {
	return &CodeRepository{coll: db.Collection(codesCollection)}
}

// Replace upserts on (email, type), so the previous code for the pair is overwritten atomically.
func (r *CodeRepository) Replace(ctx context.Context, code domain.OneTimeCode) error {
	filter := bson.M{"email": code.Email, "type": string(code.Purpose)}
	doc := codeDoc{
		Email:     code.Email,
		Code:      code.Code,
		ExpiresAt: code.ExpiresAt.UTC(),
		Purpose:   string(code.Purpose),
	}
	_, err := r.coll.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("replace code: %w", err)
	}
	return nil
}

func (r *CodeRepository) Find(ctx context.Context, email string, purpose domain.Purpose) (domain.OneTimeCode, error) {
	var doc codeDoc
	err := r.coll.FindOne(ctx, bson.M{"email": email, "type": string(purpose)}).Decode(&doc)
	if isNoDocuments(err) {
		return domain.OneTimeCode{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.OneTimeCode{}, fmt.Errorf("find code: %w", err)
	}
	return domain.OneTimeCode{
		Email:     doc.Email,
		Code:      doc.Code,
		ExpiresAt: doc.ExpiresAt,
		Purpose:   domain.Purpose(doc.Purpose),
	}, nil
}

func (r *CodeRepository) Consume(ctx context.Context, email string, purpose domain.Purpose, code string) (bool, error) {
	res, err := r.coll.DeleteOne(ctx, bson.M{"email": email, "type": string(purpose), "otp": code})
	if err != nil {
		return false, fmt.Errorf("consume code: %w", err)
	}
	return res.DeletedCount == 1, nil
}

func (r *CodeRepository) DeleteByEmail(ctx context.Context, email string) error {
	if _, err := r.coll.DeleteMany(ctx, bson.M{"email": email}); err != nil {
		return fmt.Errorf("delete codes: %w", err)
	}
	return nil
}
