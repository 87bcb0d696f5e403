package attachment

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"blogspace/metrics"
)

type stubService struct {
	releaseErr error
}

func (stubService) Upload(context.Context, Image) (Attachment, error) {
	return Attachment{URL: "https://cdn.test/a.png", PublicID: "a.png"}, nil
}

func (s stubService) Release(context.Context, string) error { return s.releaseErr }

func TestInstrumentedCountsOutcomes(t *testing.T) {
	m := metrics.New()
	svc := Instrumented(stubService{releaseErr: errors.New("gone")}, m)

	a, err := svc.Upload(context.Background(), Image{ContentType: "image/png"})
	if err != nil || a.PublicID != "a.png" {
		t.Fatalf("Upload() = %+v, %v", a, err)
	}
	if err := svc.Release(context.Background(), "a.png"); err == nil {
		t.Fatal("Release() error was swallowed")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`blog_api_attachment_operations_total{operation="upload",outcome="ok"} 1`,
		`blog_api_attachment_operations_total{operation="release",outcome="error"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}
