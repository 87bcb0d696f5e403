package attachment

import (
	"bytes"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"testing"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", name)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

func TestOpenAcceptsImages(t *testing.T) {
	img, closer, err := Open(fileHeader(t, "cat.png", pngHeader), 1<<20)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer closer.Close()

	if img.ContentType != "image/png" {
		t.Errorf("ContentType = %q", img.ContentType)
	}
	if img.Extension() != ".png" {
		t.Errorf("Extension() = %q", img.Extension())
	}
	if img.Filename != "cat.png" || img.Size != int64(len(pngHeader)) {
		t.Errorf("unexpected image %+v", img)
	}

	// Sniffing must not consume the stream.
	got, err := io.ReadAll(img.Reader)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, pngHeader) {
		t.Errorf("stream was not rewound: %q", got)
	}
}

func TestOpenRejects(t *testing.T) {
	cases := []struct {
		name     string
		content  []byte
		maxBytes int64
		want     error
	}{
		{"text file", []byte("just some text"), 1 << 20, ErrInvalidImage},
		{"too large", pngHeader, 4, ErrImageTooLarge},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, _, err := Open(fileHeader(t, "file.bin", c.content), c.maxBytes)
			if !errors.Is(err, c.want) {
				t.Fatalf("Open() error = %v, want %v", err, c.want)
			}
			if !IsClientError(err) {
				t.Fatalf("IsClientError(%v) = false", err)
			}
		})
	}
}

func TestMinioStoreKeysAndURLs(t *testing.T) {
	s, err := NewMinioStore(MinioConfig{
		Endpoint:  "http://localhost:9000",
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "blog-images",
		Folder:    "blog-images",
		PublicURL: "https://cdn.example.com/",
	})
	if err != nil {
		t.Fatalf("NewMinioStore() error: %v", err)
	}

	key := s.objectKey(Image{ContentType: "image/webp"})
	if !strings.HasPrefix(key, "blog-images/") || !strings.HasSuffix(key, ".webp") {
		t.Fatalf("objectKey() = %q", key)
	}
	if other := s.objectKey(Image{ContentType: "image/webp"}); other == key {
		t.Fatal("object keys must be unique")
	}
	if got := s.URL(key); got != "https://cdn.example.com/"+key {
		t.Fatalf("URL() = %q", got)
	}
}
