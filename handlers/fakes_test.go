package handlers_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"blogspace/attachment"
	"blogspace/auth"
	"blogspace/db"
	"blogspace/events"
	"blogspace/models"
)

// memStore is an in-memory db.PostStore. It hands out copies so handlers
// cannot change stored records without going through Update.
type memStore struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]models.Post
	clock time.Time

	createErr error
	updateErr error
}

func newMemStore() *memStore {
	return &memStore{
		posts: map[primitive.ObjectID]models.Post{},
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) Create(_ context.Context, post *models.Post) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	p := *post
	p.Id = primitive.NewObjectID()
	p.CreatedAt = s.tick()
	p.UpdatedAt = p.CreatedAt
	s.posts[p.Id] = p
	return &p, nil
}

func (s *memStore) FindByID(_ context.Context, id string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, db.ErrPostNotFound
	}
	p, ok := s.posts[oid]
	if !ok {
		return nil, db.ErrPostNotFound
	}
	return &p, nil
}

func (s *memStore) FindAll(context.Context) ([]*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	posts := make([]*models.Post, 0, len(s.posts))
	for _, p := range s.posts {
		p := p
		posts = append(posts, &p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].CreatedAt.After(posts[j].CreatedAt) })
	return posts, nil
}

func (s *memStore) Update(_ context.Context, post *models.Post) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return nil, s.updateErr
	}
	stored, ok := s.posts[post.Id]
	if !ok {
		return nil, db.ErrPostNotFound
	}
	stored.Title = post.Title
	stored.Content = post.Content
	stored.Tags = post.Tags
	stored.SetImage(post.ImageURL, post.ImagePublicId)
	stored.UpdatedAt = s.tick()
	s.posts[post.Id] = stored
	return &stored, nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return db.ErrPostNotFound
	}
	if _, ok := s.posts[oid]; !ok {
		return db.ErrPostNotFound
	}
	delete(s.posts, oid)
	return nil
}

func (s *memStore) put(p models.Post) *models.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Id = primitive.NewObjectID()
	p.CreatedAt = s.tick()
	p.UpdatedAt = p.CreatedAt
	if p.Tags == nil {
		p.Tags = []string{}
	}
	s.posts[p.Id] = p
	return &p
}

func (s *memStore) get(id primitive.ObjectID) (models.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	return p, ok
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.posts)
}

// fakeImages records every upload and release.
type fakeImages struct {
	mu       sync.Mutex
	uploads  []string
	released []string

	uploadErr  error
	releaseErr error
	// failRelease fails releases of these public ids only.
	failRelease map[string]error
}

func (f *fakeImages) Upload(_ context.Context, img attachment.Image) (attachment.Attachment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return attachment.Attachment{}, f.uploadErr
	}
	if _, err := io.Copy(io.Discard, img.Reader); err != nil {
		return attachment.Attachment{}, err
	}
	id := fmt.Sprintf("posts/img-%d%s", len(f.uploads)+1, img.Extension())
	f.uploads = append(f.uploads, id)
	return attachment.Attachment{URL: "https://cdn.test/" + id, PublicID: id}, nil
}

func (f *fakeImages) Release(_ context.Context, publicID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, publicID)
	if err, ok := f.failRelease[publicID]; ok {
		return err
	}
	return f.releaseErr
}

func (f *fakeImages) uploadCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.uploads)
}

func (f *fakeImages) releasedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.released...)
}

// tokenVerifier accepts the tokens it was built with.
type tokenVerifier map[string]auth.Identity

func (v tokenVerifier) Verify(_ context.Context, token string) (auth.Identity, error) {
	id, ok := v[token]
	if !ok {
		return auth.Identity{}, auth.ErrUnauthorized
	}
	return id, nil
}

type recordingPublisher struct {
	mu        sync.Mutex
	events    []events.Event
	deadlines []bool
	err       error
}

func (p *recordingPublisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	_, ok := ctx.Deadline()
	p.deadlines = append(p.deadlines, ok)
	return p.err
}

func (p *recordingPublisher) bounded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ok := range p.deadlines {
		if !ok {
			return false
		}
	}
	return len(p.deadlines) > 0
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.Type, len(p.events))
	for i, e := range p.events {
		types[i] = e.Type
	}
	return types
}

var errBoom = errors.New("boom")
