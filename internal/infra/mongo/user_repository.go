package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"quizzy-service/internal/domain"
)

type userDoc struct {
	ID           int64     `bson:"_id"`
	Email        string    `bson:"email,omitempty"`
	PasswordHash string    `bson:"password,omitempty"`
	ExternalID   string    `bson:"googleId,omitempty"`
	Name         string    `bson:"name"`
	RegisteredAt time.Time `bson:"dateRegistered"`
	IsGuest      bool      `bson:"isGuest"`
}

func (d userDoc) toDomain() domain.User {
	return domain.User{
		ID:           d.ID,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		ExternalID:   d.ExternalID,
		Name:         d.Name,
		RegisteredAt: d.RegisteredAt,
		IsGuest:      d.IsGuest,
	}
}

// UserRepository stores users in the users collection, keyed by their numeric id.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	_, err := r.coll.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: user.PasswordHash,
		ExternalID:   user.ExternalID,
		Name:         user.Name,
		RegisteredAt: user.RegisteredAt,
		IsGuest:      user.IsGuest,
	})
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) ByID(ctx context.Context, id int64) (domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *UserRepository) ByEmail(ctx context.Context, email string) (domain.User, error) {
	if email == "" {
		return domain.User{}, domain.ErrRecordNotFound
	}
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *UserRepository) ByExternalID(ctx context.Context, externalID string) (domain.User, error) {
	if externalID == "" {
		return domain.User{}, domain.ErrRecordNotFound
	}
	return r.findOne(ctx, bson.M{"googleId": externalID})
}

func (r *UserRepository) IDExists(ctx context.Context, id int64) (bool, error) {
	n, err := r.coll.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	return n > 0, nil
}

func (r *UserRepository) LinkExternalID(ctx context.Context, id int64, externalID, name string) error {
	// Pipeline update so the name is only filled when it is still empty.
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "googleId", Value: bson.D{{Key: "$literal", Value: externalID}}},
			{Key: "name", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$gt", Value: bson.A{bson.D{{Key: "$ifNull", Value: bson.A{"$name", ""}}}, ""}}},
				"$name",
				bson.D{{Key: "$literal", Value: name}},
			}}}},
		}}},
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if mongo.IsDuplicateKeyError(err) {
		return domain.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("link external id: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) SetPasswordHash(ctx context.Context, email, hash string) error {
	res, err := r.coll.UpdateOne(ctx, bson.M{"email": email}, bson.M{"$set": bson.M{"password": hash}})
	if err != nil {
		return fmt.Errorf("set password: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (domain.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, filter).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.User{}, domain.ErrRecordNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("find user: %w", err)
	}
	return doc.toDomain(), nil
}
