package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"blogspace/attachment"
)

const (
	imageField = "image"
	// formOverhead is the room left for text fields next to an image.
	formOverhead  = 1 << 20
	maxFormMemory = 8 << 20
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type CreatePostRequest struct {
	Title   string                `json:"title" validate:"required"`
	Content string                `json:"content" validate:"required"`
	Tags    string                `json:"tags"`
	Image   *multipart.FileHeader `json:"-"`
}

// UpdatePostRequest carries only what the caller supplied; blank fields
// keep the stored values.
type UpdatePostRequest struct {
	Title   string                `json:"title"`
	Content string                `json:"content"`
	Tags    string                `json:"tags"`
	Image   *multipart.FileHeader `json:"-"`
}

func parseCreateRequest(w http.ResponseWriter, r *http.Request, maxImageBytes int64) (*CreatePostRequest, error) {
	var req CreatePostRequest
	image, err := decodeForm(w, r, maxImageBytes, &req)
	if err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	req.Image = image

	if err := validate.Struct(&req); err != nil {
		return nil, validationError(err)
	}
	return &req, nil
}

func parseUpdateRequest(w http.ResponseWriter, r *http.Request, maxImageBytes int64) (*UpdatePostRequest, error) {
	var req UpdatePostRequest
	image, err := decodeForm(w, r, maxImageBytes, &req)
	if err != nil {
		return nil, err
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	req.Image = image
	return &req, nil
}

// formFields is implemented by both request types so one decoder fills
// either from multipart, urlencoded or JSON bodies.
type formFields interface {
	setFields(title, content, tags string)
}

func (req *CreatePostRequest) setFields(title, content, tags string) {
	req.Title, req.Content, req.Tags = title, content, tags
}

func (req *UpdatePostRequest) setFields(title, content, tags string) {
	req.Title, req.Content, req.Tags = title, content, tags
}

func decodeForm(w http.ResponseWriter, r *http.Request, maxImageBytes int64, dst formFields) (*multipart.FileHeader, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if maxImageBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxImageBytes+formOverhead)
	}

	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
			return nil, requestError(err)
		}
		return nil, nil
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxFormMemory); err != nil {
			return nil, requestError(err)
		}
	default:
		if err := r.ParseForm(); err != nil {
			return nil, requestError(err)
		}
	}

	dst.setFields(r.PostFormValue("title"), r.PostFormValue("content"), r.PostFormValue("tags"))

	if r.MultipartForm == nil {
		return nil, nil
	}
	if files := r.MultipartForm.File[imageField]; len(files) > 0 {
		return files[0], nil
	}
	return nil, nil
}

// RequestError is a malformed body or a rejected image.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string { return e.Err.Error() }
func (e *RequestError) Unwrap() error { return e.Err }

func requestError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		err = fmt.Errorf("%w: request exceeds %d bytes", attachment.ErrImageTooLarge, tooLarge.Limit)
	}
	return &RequestError{Err: err}
}

// ValidationError lists the fields that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f + " is required"
	}
	return "Post validation failed: " + strings.Join(msgs, ", ")
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestError{Err: err}
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &ValidationError{Fields: fields}
}
