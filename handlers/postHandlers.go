package handlers

import (
	"context"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"blogspace/app"
	"blogspace/attachment"
	"blogspace/auth"
	"blogspace/events"
	"blogspace/httpx"
	"blogspace/logging"
	"blogspace/models"
)

func GetAllPostsHandler(app *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		posts, err := app.Posts.FindAll(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, posts)
	}
}

func GetPostHandler(app *app.App) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		post, err := app.Posts.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, post)
	}
}

func CreatePostHandler(app *app.App) auth.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		req, err := parseCreateRequest(w, r, app.MaxImageBytes)
		if err != nil {
			writeError(w, r, err)
			return
		}

		post, err := createPost(r.Context(), app, id, req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		publish(r.Context(), app, events.New(events.PostCreated, post.Id.Hex(), post.UserId))
		httpx.WriteJSON(w, http.StatusCreated, post)
	}
}

func createPost(ctx context.Context, app *app.App, id auth.Identity, req *CreatePostRequest) (*models.Post, error) {
	post := models.NewPost(req.Title, req.Content, id.DisplayName(), id.UID, models.ParseTags(req.Tags))

	var uploaded *attachment.Attachment
	if req.Image != nil {
		a, err := uploadImage(ctx, app, req.Image)
		if err != nil {
			return nil, err
		}
		post.SetImage(a.URL, a.PublicID)
		uploaded = &a
	}

	saved, err := app.Posts.Create(ctx, post)
	if err != nil {
		if uploaded != nil {
			compensate(ctx, app, uploaded.PublicID)
		}
		return nil, err
	}
	return saved, nil
}

func UpdatePostHandler(app *app.App) auth.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		post, err := app.Posts.FindByID(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !post.OwnedBy(id.UID) {
			writeError(w, r, &ForbiddenError{Action: "edit"})
			return
		}

		req, err := parseUpdateRequest(w, r, app.MaxImageBytes)
		if err != nil {
			writeError(w, r, err)
			return
		}

		updated, err := updatePost(r.Context(), app, post, req)
		if err != nil {
			writeError(w, r, err)
			return
		}

		publish(r.Context(), app, events.New(events.PostUpdated, updated.Id.Hex(), updated.UserId))
		httpx.WriteJSON(w, http.StatusOK, updated)
	}
}

// updatePost applies the supplied fields to post. The author, owner and
// creation time are never touched. A replacement image is uploaded before
// the previous one is released, and released again if anything after the
// upload fails.
func updatePost(ctx context.Context, app *app.App, post *models.Post, req *UpdatePostRequest) (*models.Post, error) {
	if req.Title != "" {
		post.Title = req.Title
	}
	if req.Content != "" {
		post.Content = req.Content
	}
	if req.Tags != "" {
		post.Tags = models.ParseTags(req.Tags)
	}

	var uploaded *attachment.Attachment
	if req.Image != nil {
		a, err := uploadImage(ctx, app, req.Image)
		if err != nil {
			return nil, err
		}
		uploaded = &a

		if post.HasImage() {
			if err := app.Images.Release(ctx, post.ImagePublicId); err != nil {
				compensate(ctx, app, uploaded.PublicID)
				return nil, err
			}
		}
		post.SetImage(a.URL, a.PublicID)
	}

	updated, err := app.Posts.Update(ctx, post)
	if err != nil {
		if uploaded != nil {
			compensate(ctx, app, uploaded.PublicID)
		}
		return nil, err
	}
	return updated, nil
}

func DeletePostHandler(app *app.App) auth.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, id auth.Identity) {
		ctx := r.Context()

		post, err := app.Posts.FindByID(ctx, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !post.OwnedBy(id.UID) {
			writeError(w, r, &ForbiddenError{Action: "delete"})
			return
		}

		if post.HasImage() {
			if err := app.Images.Release(ctx, post.ImagePublicId); err != nil {
				writeError(w, r, err)
				return
			}
		}

		if err := app.Posts.Delete(ctx, post.Id.Hex()); err != nil {
			writeError(w, r, err)
			return
		}

		publish(ctx, app, events.New(events.PostDeleted, post.Id.Hex(), post.UserId))
		httpx.WriteMessage(w, http.StatusOK, "Post deleted successfully")
	}
}

func uploadImage(ctx context.Context, app *app.App, fh *multipart.FileHeader) (attachment.Attachment, error) {
	img, closer, err := attachment.Open(fh, app.MaxImageBytes)
	if err != nil {
		if attachment.IsClientError(err) {
			return attachment.Attachment{}, &RequestError{Err: err}
		}
		return attachment.Attachment{}, err
	}
	defer closer.Close()

	a, err := app.Images.Upload(ctx, img)
	if err != nil {
		return attachment.Attachment{}, &ImageError{Err: err}
	}
	return a, nil
}

// compensate releases an image uploaded for a write that did not happen.
// It runs even when the request was cancelled and never fails the request.
func compensate(ctx context.Context, app *app.App, publicID string) {
	err := app.Images.Release(context.WithoutCancel(ctx), publicID)
	if app.Metrics != nil {
		app.Metrics.ObserveCompensation(err)
	}
	if err != nil {
		logging.FromContext(ctx).
			WithError(err).
			WithField("public_id", publicID).
			Warn("could not release uploaded image")
	}
}

// publishTimeout bounds how long a write request waits on the broker.
const publishTimeout = 3 * time.Second

// publish is best effort: a post that was written stays written.
func publish(ctx context.Context, app *app.App, e events.Event) {
	if app.Events == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := app.Events.Publish(pubCtx, e); err != nil {
		logging.FromContext(ctx).
			WithError(err).
			WithField("post_id", e.PostID).
			Warn("could not publish post event")
	}
}
