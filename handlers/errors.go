package handlers

import (
	"errors"
	"net/http"

	"blogspace/attachment"
	"blogspace/db"
	"blogspace/httpx"
	"blogspace/logging"
)

var ErrForbidden = errors.New("forbidden")

// ForbiddenError is returned when the caller does not own the post.
type ForbiddenError struct {
	Action string
}

func (e *ForbiddenError) Error() string {
	return "Forbidden: You are not authorized to " + e.Action + " this post"
}

func (e *ForbiddenError) Is(target error) bool { return target == ErrForbidden }

// ImageError wraps a failed upload to the attachment service.
type ImageError struct {
	Err error
}

func (e *ImageError) Error() string { return "Image upload failed: " + e.Err.Error() }
func (e *ImageError) Unwrap() error { return e.Err }

func statusFor(err error) (int, string) {
	var (
		validationErr *ValidationError
		requestErr    *RequestError
		imageErr      *ImageError
	)
	switch {
	case errors.Is(err, db.ErrPostNotFound):
		return http.StatusNotFound, "Post not found"
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, err.Error()
	case errors.As(err, &validationErr),
		errors.As(err, &requestErr),
		errors.As(err, &imageErr),
		attachment.IsClientError(err):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, err.Error()
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).WithError(err).Error("request failed")
	}
	httpx.WriteMessage(w, status, msg)
}
