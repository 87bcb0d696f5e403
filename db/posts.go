package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"blogspace/models"
)

const PostsCollection = "posts"

var ErrPostNotFound = errors.New("post not found")

// PostStore is the persistence boundary the HTTP handlers depend on.
type PostStore interface {
	Create(ctx context.Context, post *models.Post) (*models.Post, error)
	FindByID(ctx context.Context, id string) (*models.Post, error)
	FindAll(ctx context.Context) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) (*models.Post, error)
	Delete(ctx context.Context, id string) error
}

type MongoPostStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewPostStore(database *mongo.Database) *MongoPostStore {
	return &MongoPostStore{
		coll: database.Collection(PostsCollection),
		now:  time.Now,
	}
}

// EnsureIndexes creates the index backing the newest-first listing.
func (s *MongoPostStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "createdAt", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("could not create posts index: %w", err)
	}
	return nil
}

func (s *MongoPostStore) timestamp() time.Time {
	// BSON dates carry millisecond precision.
	return s.now().UTC().Truncate(time.Millisecond)
}

func (s *MongoPostStore) Create(ctx context.Context, post *models.Post) (*models.Post, error) {
	post.Id = primitive.NewObjectID()
	post.CreatedAt = s.timestamp()
	post.UpdatedAt = post.CreatedAt
	if post.Tags == nil {
		post.Tags = []string{}
	}

	if _, err := s.coll.InsertOne(ctx, post); err != nil {
		return nil, fmt.Errorf("could not create post: %w", err)
	}
	return post, nil
}

// FindByID returns ErrPostNotFound for unknown and for malformed ids: a
// malformed id cannot name any stored post.
func (s *MongoPostStore) FindByID(ctx context.Context, id string) (*models.Post, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrPostNotFound
	}

	var post models.Post
	err = s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&post)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not find post %s: %w", id, err)
	}
	return &post, nil
}

func (s *MongoPostStore) FindAll(ctx context.Context) ([]*models.Post, error) {
	opts := options.Find().SetSort(bson.D{
		{Key: "createdAt", Value: -1},
		{Key: "_id", Value: -1},
	})

	cursor, err := s.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("could not list posts: %w", err)
	}
	defer cursor.Close(ctx)

	posts := []*models.Post{}
	if err := cursor.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("could not decode posts: %w", err)
	}
	return posts, nil
}

// Update writes the mutable fields of post. id, userId, author and
// createdAt are never part of the update.
func (s *MongoPostStore) Update(ctx context.Context, post *models.Post) (*models.Post, error) {
	post.UpdatedAt = s.timestamp()
	if post.Tags == nil {
		post.Tags = []string{}
	}

	set := bson.M{
		"title":     post.Title,
		"content":   post.Content,
		"tags":      post.Tags,
		"updatedAt": post.UpdatedAt,
	}
	update := bson.M{"$set": set}
	if post.HasImage() {
		set["imageUrl"] = post.ImageURL
		set["imagePublicId"] = post.ImagePublicId
	} else {
		update["$unset"] = bson.M{"imageUrl": "", "imagePublicId": ""}
	}

	var updated models.Post
	err := s.coll.FindOneAndUpdate(
		ctx,
		bson.M{"_id": post.Id},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not update post %s: %w", post.Id.Hex(), err)
	}
	return &updated, nil
}

func (s *MongoPostStore) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrPostNotFound
	}

	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("could not delete post %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return ErrPostNotFound
	}
	return nil
}
