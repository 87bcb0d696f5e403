package attachment

import (
	"context"

	"blogspace/metrics"
)

type instrumented struct {
	next    Service
	metrics *metrics.Metrics
}

// Instrumented counts uploads and releases of next by outcome.
func Instrumented(next Service, m *metrics.Metrics) Service {
	return &instrumented{next: next, metrics: m}
}

func (s *instrumented) Upload(ctx context.Context, img Image) (Attachment, error) {
	a, err := s.next.Upload(ctx, img)
	s.metrics.ObserveAttachment("upload", err)
	return a, err
}

func (s *instrumented) Release(ctx context.Context, publicID string) error {
	err := s.next.Release(ctx, publicID)
	s.metrics.ObserveAttachment("release", err)
	return err
}
