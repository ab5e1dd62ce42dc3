package server

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/catalog"
	errordefs "github.com/RegistryAccord/registryaccord-reels-go/internal/errors"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/media"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/schema"
)

// feedResponse is the FeedView plus a URL the player can fetch directly.
type feedResponse struct {
	model.FeedView
	PlaybackURL string `json:"playbackUrl,omitempty"`
	Demo        bool   `json:"demo"`
}

type advanceRequest struct {
	Delta int `json:"delta"`
}

type searchRequest struct {
	Term string `json:"term"`
}

type jumpRequest struct {
	VideoID string `json:"videoId"`
}

type gestureRequest struct {
	Phase string  `json:"phase"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
}

type gestureResponse struct {
	Command string         `json:"command,omitempty"` // "next" or "previous" when a swipe was recognized
	Feed    model.FeedView `json:"feed"`
}

type textRequest struct {
	Text string `json:"text"`
}

// handleFeed handles GET /v1/feed
func (m *Mux) handleFeed(w http.ResponseWriter, r *http.Request) {
	m.writeSuccess(w, http.StatusOK, m.feed(r))
}

func (m *Mux) feed(r *http.Request) feedResponse {
	sess := sessionFrom(r.Context())
	resp := feedResponse{FeedView: sess.View(), Demo: sess.Demo()}
	if resp.Video != nil {
		resp.PlaybackURL = resp.Video.MediaRef
		if m.opts.Media != nil {
			u, err := m.opts.Media.PlaybackURL(r.Context(), resp.Video.MediaRef, playbackURLExpiry)
			if err != nil {
				m.logger.Warn("failed to presign playback URL", "videoId", resp.Video.ID, "error", err)
			} else {
				resp.PlaybackURL = u
			}
		}
	}
	return resp
}

// handleAdvance handles POST /v1/feed/advance
func (m *Mux) handleAdvance(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req advanceRequest
	if err := decode(r, &req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	sessionFrom(r.Context()).Feed.Advance(req.Delta)
	m.writeSuccess(w, http.StatusOK, m.feed(r))
}

// handleSearch handles POST /v1/feed/search
func (m *Mux) handleSearch(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req searchRequest
	if err := decode(r, &req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	sessionFrom(r.Context()).Feed.SetSearch(req.Term)
	m.writeSuccess(w, http.StatusOK, m.feed(r))
}

// handleJump handles POST /v1/feed/jump
func (m *Mux) handleJump(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req jumpRequest
	if err := decode(r, &req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	if req.VideoID == "" {
		m.fail(w, r, start, errordefs.New(errordefs.FEED_VALIDATION, "videoId is required", ""))
		return
	}
	if !sessionFrom(r.Context()).Feed.JumpTo(req.VideoID) {
		m.fail(w, r, start, errordefs.New(errordefs.FEED_NOT_FOUND, "video is not in the current feed", ""))
		return
	}
	m.writeSuccess(w, http.StatusOK, m.feed(r))
}

// handleGesture handles POST /v1/feed/gesture
func (m *Mux) handleGesture(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req gestureRequest
	if err := decode(r, &req); err != nil {
		m.fail(w, r, start, err)
		return
	}

	sess := sessionFrom(r.Context())
	cmd, ok, err := sess.Swipe(req.Phase, req.X, req.Y)
	if err != nil {
		m.fail(w, r, start, err)
		return
	}
	resp := gestureResponse{Feed: sess.View()}
	if ok {
		resp.Command = cmd.String()
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("gesture.command", resp.Command))
	}
	m.writeSuccess(w, http.StatusOK, resp)
}

// handleToggleLike handles POST /v1/videos/{videoId}/like
func (m *Mux) handleToggleLike(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	videoID := r.PathValue("videoId")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("video.id", videoID))

	res, err := sessionFrom(r.Context()).Ledger.ToggleLike(r.Context(), userFrom(r.Context()), videoID)
	if err != nil {
		m.fail(w, r, start, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, res)
}

// handleComments handles GET and POST /v1/videos/{videoId}/comments
func (m *Mux) handleComments(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	videoID := r.PathValue("videoId")
	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("video.id", videoID))
	sess := sessionFrom(r.Context())

	if r.Method == http.MethodGet {
		if err := sess.WatchComments(); err != nil {
			m.fail(w, r, start, err)
			return
		}
		comments := sess.Ledger.Comments(videoID)
		if comments == nil {
			comments = []model.Comment{}
		}
		m.writeSuccess(w, http.StatusOK, comments)
		return
	}

	var req textRequest
	if err := decode(r, &req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	if err := m.validate(schema.KindComment, req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	comment, err := sess.Ledger.AddComment(r.Context(), videoID, userFrom(r.Context()), req.Text)
	if err != nil {
		m.fail(w, r, start, err)
		return
	}
	m.writeSuccess(w, http.StatusCreated, comment)
}

// handleChat handles GET and POST /v1/chat
func (m *Mux) handleChat(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sess := sessionFrom(r.Context())

	if r.Method == http.MethodGet {
		msgs := sess.Chat.Messages()
		if msgs == nil {
			msgs = []model.ChatMessage{}
		}
		m.writeSuccess(w, http.StatusOK, msgs)
		return
	}

	var req textRequest
	if err := decode(r, &req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	if err := m.validate(schema.KindChat, req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	msg, err := sess.Chat.Post(r.Context(), userFrom(r.Context()), req.Text)
	if err != nil {
		m.fail(w, r, start, err)
		return
	}
	m.writeSuccess(w, http.StatusCreated, msg)
}

// handleSubmitVideo handles POST /v1/videos. Uploaded media in the service's
// own bucket must exist and respect the size limit.
func (m *Mux) handleSubmitVideo(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	if m.opts.Store == nil {
		m.fail(w, r, start, errordefs.ErrStoreUnavailable)
		return
	}
	userID := userFrom(ctx)
	if userID == "" {
		m.fail(w, r, start, errordefs.ErrNotAuthenticated)
		return
	}

	var req model.SubmitVideoRequest
	if err := decode(r, &req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if err := m.validate(schema.KindVideo, req); err != nil {
		m.fail(w, r, start, err)
		return
	}

	if m.opts.Media != nil {
		if _, key, ok := media.ParseRef(req.MediaRef); ok && m.opts.Media.Ref(key) == req.MediaRef {
			size, err := m.opts.Media.Stat(ctx, key)
			if err != nil {
				m.fail(w, r, start, errordefs.Wrap(errordefs.FEED_VALIDATION, "media has not been uploaded", err))
				return
			}
			if m.opts.MaxMediaSize > 0 && size > m.opts.MaxMediaSize {
				m.fail(w, r, start, errordefs.New(errordefs.FEED_VALIDATION, "media exceeds the size limit", ""))
				return
			}
		}
	}

	video := model.Video{
		Title:       req.Title,
		Description: req.Description,
		MediaRef:    req.MediaRef,
		Category:    req.Category,
	}
	id, err := m.opts.Store.Add(ctx, m.opts.Paths.Videos(), catalog.Fields(video))
	if err != nil {
		m.fail(w, r, start, errordefs.Wrap(errordefs.FEED_TX_FAILED, "failed to save video", err))
		return
	}
	video.ID = id
	video.CreatedAt = catalog.CreatedAt(ctx, m.opts.Store, m.opts.Paths, id)
	m.logger.Info("video submitted", "videoId", id, "userId", userID)
	m.writeSuccess(w, http.StatusCreated, video)
}

// handleUploadInit handles POST /v1/media/uploadInit
func (m *Mux) handleUploadInit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	userID := userFrom(ctx)
	if userID == "" {
		m.fail(w, r, start, errordefs.ErrNotAuthenticated)
		return
	}
	if m.opts.Media == nil {
		m.fail(w, r, start, errordefs.New(errordefs.FEED_STORE_UNAVAILABLE, "media storage is not configured", ""))
		return
	}

	var req model.UploadInitRequest
	if err := decode(r, &req); err != nil {
		m.fail(w, r, start, err)
		return
	}
	if !slices.Contains(m.opts.AllowedMimeTypes, req.MimeType) {
		m.fail(w, r, start, errordefs.NewWithDetails(errordefs.FEED_VALIDATION, "unsupported media type", "", m.opts.AllowedMimeTypes))
		return
	}
	if req.Size <= 0 || (m.opts.MaxMediaSize > 0 && req.Size > m.opts.MaxMediaSize) {
		m.fail(w, r, start, errordefs.New(errordefs.FEED_VALIDATION, fmt.Sprintf("size must be between 1 and %d bytes", m.opts.MaxMediaSize), ""))
		return
	}

	key := media.NewKey(userID, req.Filename)
	uploadURL, err := m.opts.Media.PresignUpload(ctx, key, req.MimeType, uploadURLExpiry)
	if err != nil {
		m.fail(w, r, start, err)
		return
	}
	m.writeSuccess(w, http.StatusOK, model.UploadInitData{
		MediaRef:  m.opts.Media.Ref(key),
		UploadURL: uploadURL,
		ExpiresAt: time.Now().UTC().Add(uploadURLExpiry),
	})
}

// validate checks doc against the schema of kind.
func (m *Mux) validate(kind string, doc interface{}) error {
	if err := m.validator.Validate(kind, doc); err != nil {
		return errordefs.NewWithDetails(errordefs.FEED_VALIDATION, "schema validation failed", "", err.Error())
	}
	return nil
}
