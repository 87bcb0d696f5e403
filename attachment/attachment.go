package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

var (
	ErrInvalidImage  = errors.New("only jpg, png, gif and webp images are allowed")
	ErrImageTooLarge = errors.New("image is too large")
)

// allowedTypes maps sniffed content types to the extension used for stored
// objects.
var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Image is an upload ready image stream.
type Image struct {
	Reader      io.Reader
	Size        int64
	Filename    string
	ContentType string
}

func (img Image) Extension() string {
	return allowedTypes[img.ContentType]
}

// Attachment identifies a stored image: the public URL to render it and the
// handle needed to release it.
type Attachment struct {
	URL      string
	PublicID string
}

type Service interface {
	Upload(ctx context.Context, img Image) (Attachment, error)
	Release(ctx context.Context, publicID string) error
}

// Open validates an uploaded form file and returns it as an Image. The
// caller closes the returned closer once the upload is finished.
func Open(fh *multipart.FileHeader, maxBytes int64) (Image, io.Closer, error) {
	if maxBytes > 0 && fh.Size > maxBytes {
		return Image{}, nil, fmt.Errorf("%w: %d bytes, limit is %d", ErrImageTooLarge, fh.Size, maxBytes)
	}

	f, err := fh.Open()
	if err != nil {
		return Image{}, nil, fmt.Errorf("could not read image: %w", err)
	}

	contentType, err := sniff(f)
	if err != nil {
		f.Close()
		return Image{}, nil, err
	}

	return Image{
		Reader:      f,
		Size:        fh.Size,
		Filename:    fh.Filename,
		ContentType: contentType,
	}, f, nil
}

func sniff(f multipart.File) (string, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("could not read image: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("could not rewind image: %w", err)
	}

	contentType := http.DetectContentType(head[:n])
	if _, ok := allowedTypes[contentType]; !ok {
		return "", ErrInvalidImage
	}
	return contentType, nil
}

// IsClientError reports whether err was caused by the uploaded file itself.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidImage) || errors.Is(err, ErrImageTooLarge)
}
