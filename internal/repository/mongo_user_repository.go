package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/spec-kit/event-service/internal/domain"
)

type userDocument struct {
	ID             primitive.ObjectID `bson:"_id,omitempty"`
	Name           string             `bson:"name"`
	Email          string             `bson:"email"`
	Password       string             `bson:"password"`
	PastEvents     []string           `bson:"pastEvents"`
	UpcomingEvents []string           `bson:"upcomingEvents"`
	CreatedAt      time.Time          `bson:"createdAt"`
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		Email:          d.Email,
		PasswordHash:   d.Password,
		PastEvents:     nonNil(d.PastEvents),
		UpcomingEvents: nonNil(d.UpcomingEvents),
		CreatedAt:      d.CreatedAt,
	}
}

type mongoUserRepository struct {
	coll *mongo.Collection
}

// NewMongoUserRepository returns a MongoDB-backed implementation.
func NewMongoUserRepository(db *mongo.Database) UserRepository {
	return &mongoUserRepository{coll: db.Collection(usersCollection)}
}

func (r *mongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	doc := userDocument{
		ID:             primitive.NewObjectID(),
		Name:           user.Name,
		Email:          user.Email,
		Password:       user.PasswordHash,
		PastEvents:     []string{},
		UpcomingEvents: []string{},
		CreatedAt:      time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrDuplicateEmail
		}
		return err
	}
	user.ID = doc.ID.Hex()
	user.CreatedAt = doc.CreatedAt
	return nil
}

func (r *mongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *mongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *mongoUserRepository) GetByIDs(ctx context.Context, ids []string) ([]domain.User, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}
	result := []domain.User{}
	if len(oids) == 0 {
		return result, nil
	}

	cursor, err := r.coll.Find(ctx, bson.M{"_id": bson.M{"$in": oids}})
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode users: %w", err)
	}
	for i := range docs {
		result = append(result, *docs[i].toDomain())
	}
	return result, nil
}

func (r *mongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var doc userDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *mongoUserRepository) AddUpcomingEvent(ctx context.Context, userID, eventID string) error {
	return r.updateOne(ctx, userID, bson.M{"$addToSet": bson.M{"upcomingEvents": eventID}})
}

func (r *mongoUserRepository) RemoveUpcomingEvent(ctx context.Context, userID, eventID string) error {
	return r.updateOne(ctx, userID, bson.M{"$pull": bson.M{"upcomingEvents": bson.M{"$in": idForms(eventID)}}})
}

func (r *mongoUserRepository) ArchiveEvent(ctx context.Context, userID, eventID string) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil
	}
	forms := idForms(eventID)
	_, err = r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "upcomingEvents": bson.M{"$in": forms}},
		bson.M{
			"$pull":     bson.M{"upcomingEvents": bson.M{"$in": forms}},
			"$addToSet": bson.M{"pastEvents": eventID},
		})
	return err
}

func (r *mongoUserRepository) updateOne(ctx context.Context, userID string, update bson.M) error {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// idForms lists the stored forms of id. Older documents hold event
// references as ObjectIDs rather than hex strings.
func idForms(id string) bson.A {
	forms := bson.A{id}
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		forms = append(forms, oid)
	}
	return forms
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
