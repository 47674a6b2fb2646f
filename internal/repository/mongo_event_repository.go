package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/spec-kit/event-service/internal/domain"
)

const (
	eventsCollection = "events"
	usersCollection  = "users"
)

type eventDocument struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Name        string             `bson:"name"`
	Description string             `bson:"description"`
	EventDate   time.Time          `bson:"eventDate"`
	Location    string             `bson:"location"`
	Category    string             `bson:"category"`
	Status      string             `bson:"status"`
	Creator     string             `bson:"creator"`
	Attendees   []string           `bson:"attendees"`
	Version     int64              `bson:"version"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d *eventDocument) toDomain() *domain.Event {
	attendees := d.Attendees
	if attendees == nil {
		attendees = []string{}
	}
	return &domain.Event{
		ID:          d.ID.Hex(),
		Name:        d.Name,
		Description: d.Description,
		EventDate:   d.EventDate,
		Location:    d.Location,
		Category:    domain.EventCategory(d.Category),
		Status:      domain.EventStatus(d.Status),
		CreatorID:   d.Creator,
		Attendees:   attendees,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type mongoEventRepository struct {
	coll *mongo.Collection
}

// NewMongoEventRepository returns a MongoDB-backed implementation.
func NewMongoEventRepository(db *mongo.Database) EventRepository {
	return &mongoEventRepository{coll: db.Collection(eventsCollection)}
}

func (r *mongoEventRepository) Create(ctx context.Context, event *domain.Event) error {
	now := time.Now().UTC()
	if event.Attendees == nil {
		event.Attendees = []string{}
	}
	doc := eventDocument{
		ID:          primitive.NewObjectID(),
		Name:        event.Name,
		Description: event.Description,
		EventDate:   event.EventDate,
		Location:    event.Location,
		Category:    string(event.Category),
		Status:      string(event.Status),
		Creator:     event.CreatorID,
		Attendees:   event.Attendees,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return err
	}
	event.ID = doc.ID.Hex()
	event.Version = 0
	event.CreatedAt = now
	event.UpdatedAt = now
	return nil
}

func (r *mongoEventRepository) GetByID(ctx context.Context, id string) (*domain.Event, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	var doc eventDocument
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		return nil, translateMongoError(err)
	}
	return doc.toDomain(), nil
}

func (r *mongoEventRepository) UpdateDetails(ctx context.Context, event *domain.Event) error {
	oid, err := primitive.ObjectIDFromHex(event.ID)
	if err != nil {
		return domain.ErrNotFound
	}
	now := time.Now().UTC()
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"name":        event.Name,
		"description": event.Description,
		"eventDate":   event.EventDate,
		"location":    event.Location,
		"category":    string(event.Category),
		"status":      string(event.Status),
		"updatedAt":   now,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	event.UpdatedAt = now
	return nil
}

func (r *mongoEventRepository) SaveAttendees(ctx context.Context, id string, attendees []string, expectedVersion int64) (*domain.Event, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, domain.ErrNotFound
	}
	if attendees == nil {
		attendees = []string{}
	}

	update := bson.M{
		"$set": bson.M{"attendees": attendees, "updatedAt": time.Now().UTC()},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc eventDocument
	err = r.coll.FindOneAndUpdate(ctx, versionFilter(oid, expectedVersion), update, opts).Decode(&doc)
	if err == nil {
		return doc.toDomain(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	count, err := r.coll.CountDocuments(ctx, bson.M{"_id": oid}, options.Count().SetLimit(1))
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, domain.ErrNotFound
	}
	return nil, domain.ErrVersionConflict
}

// versionFilter matches id at expectedVersion. Documents written before
// versioning have no version field and count as version 0; $inc sets it to 1
// on their first save.
func versionFilter(id primitive.ObjectID, expectedVersion int64) bson.M {
	if expectedVersion == 0 {
		return bson.M{"_id": id, "version": bson.M{"$in": bson.A{int64(0), nil}}}
	}
	return bson.M{"_id": id, "version": expectedVersion}
}

func (r *mongoEventRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return domain.ErrNotFound
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *mongoEventRepository) List(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	query := bson.M{}
	if filter.CreatorID != nil {
		query["creator"] = *filter.CreatorID
	}
	if filter.Category != nil {
		query["category"] = string(*filter.Category)
	}
	dateRange := bson.M{}
	if filter.From != nil {
		dateRange["$gte"] = *filter.From
	}
	if filter.To != nil {
		dateRange["$lte"] = *filter.To
	}
	if filter.Before != nil {
		dateRange["$lt"] = *filter.Before
	}
	if len(dateRange) > 0 {
		query["eventDate"] = dateRange
	}

	direction := 1
	if filter.SortDesc {
		direction = -1
	}
	opts := options.Find().SetSort(bson.D{{Key: "eventDate", Value: direction}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	var docs []eventDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode events: %w", err)
	}

	result := make([]domain.Event, 0, len(docs))
	for i := range docs {
		result = append(result, *docs[i].toDomain())
	}
	return result, nil
}

// EnsureMongoIndexes creates the indexes the repositories rely on.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("users email index: %w", err)
	}
	_, err = db.Collection(eventsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "eventDate", Value: 1}}},
		{Keys: bson.D{{Key: "creator", Value: 1}, {Key: "eventDate", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("events indexes: %w", err)
	}
	return nil
}

func translateMongoError(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	return err
}
