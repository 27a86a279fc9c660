package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"quizzy-service/internal/app"
	"quizzy-service/internal/domain"
)

// maxUpdateAttempts bounds the compare-and-swap loop in Update.
const maxUpdateAttempts = 10

type profileDoc struct {
	UserID       int64      `bson:"_id"`
	Name         string     `bson:"name"`
	ImageURL     string     `bson:"imageUrl"`
	Stars        int64      `bson:"stars"`
	Streak       int        `bson:"quizStreak"`
	LastQuizDate *time.Time `bson:"lastQuizDate"`
	Version      int64      `bson:"version"`
}

func profileToDoc(p domain.Profile) profileDoc {
	doc := profileDoc{
		UserID:   p.UserID,
		Name:     p.Name,
		ImageURL: p.ImageURL,
		Stars:    p.Stars,
		Streak:   p.Streak,
		Version:  p.Version,
	}
	if !p.LastQuizDate.IsZero() {
		day := p.LastQuizDate.UTC()
		doc.LastQuizDate = &day
	}
	return doc
}

func (d profileDoc) toDomain() domain.Profile {
	p := domain.Profile{
		UserID:   d.UserID,
		Name:     d.Name,
		ImageURL: d.ImageURL,
		Stars:    d.Stars,
		Streak:   d.Streak,
		Version:  d.Version,
	}
	if d.LastQuizDate != nil {
		p.LastQuizDate = d.LastQuizDate.UTC()
	}
	return p
}

// ProfileRepository stores profiles in the userprofiles collection with _id = user id.
// Writes use a version field as a compare-and-swap guard.
type ProfileRepository struct {
	coll *mongo.Collection
}

func NewProfileRepository(db *mongo.Database) *ProfileRepository {
	return &ProfileRepository{coll: db.Collection(profilesCollection)}
}

func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID int64) (domain.Profile, error) {
	def := profileToDoc(app.NewDefaultProfile(userID))
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	update := bson.M{"$setOnInsert": bson.M{
		"name":         def.Name,
		"imageUrl":     def.ImageURL,
		"stars":        def.Stars,
		"quizStreak":   def.Streak,
		"lastQuizDate": nil,
		"version":      def.Version,
	}}

	var doc profileDoc
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// Two upserts raced; the other one inserted, so a plain read now succeeds.
		err = r.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc)
	}
	if err != nil {
		return domain.Profile{}, fmt.Errorf("get or create profile: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *ProfileRepository) Update(ctx context.Context, userID int64, mutate func(*domain.Profile) error) (domain.Profile, error) {
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		current, err := r.GetOrCreate(ctx, userID)
		if err != nil {
			return domain.Profile{}, err
		}

		next := current
		if err := mutate(&next); err != nil {
			return domain.Profile{}, err
		}
		next.UserID = userID
		next.Version = current.Version + 1
		doc := profileToDoc(next)

		res, err := r.coll.UpdateOne(ctx,
			bson.M{"_id": userID, "version": current.Version},
			bson.M{"$set": bson.M{
				"name":         doc.Name,
				"imageUrl":     doc.ImageURL,
				"stars":        doc.Stars,
				"quizStreak":   doc.Streak,
				"lastQuizDate": doc.LastQuizDate,
				"version":      doc.Version,
			}},
		)
		if err != nil {
			return domain.Profile{}, fmt.Errorf("update profile: %w", err)
		}
		if res.MatchedCount == 1 {
			return next, nil
		}
	}
	return domain.Profile{}, domain.ErrConcurrentUpdate
}

func (r *ProfileRepository) ListByStars(ctx context.Context) ([]domain.Profile, error) {
	cursor, err := r.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "stars", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	var docs []profileDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode profiles: %w", err)
	}
	profiles := make([]domain.Profile, 0, len(docs))
	for _, d := range docs {
		profiles = append(profiles, d.toDomain())
	}
	return profiles, nil
}

// isNoDocuments is shared by the repositories in this package.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
