// internal/model/reels.go
// Package model defines the data structures shared across the reels service.
// These structures mirror the documents kept in the document store.
package model

import (
	"time"
)

// Video is a single entry in the swipe feed.
// Videos are created externally and treated as read-only by the feed core.
type Video struct {
	ID          string    `json:"id"`                 // Stable unique identifier (document id)
	Title       string    `json:"title"`              // Display title
	Description string    `json:"description"`        // Short description shown under the title
	MediaRef    string    `json:"mediaRef"`           // URL or s3:// locator of the media
	Category    string    `json:"category,omitempty"` // Optional category used by search
	CreatedAt   time.Time `json:"createdAt"`          // Feed ordering key (descending)
}

// EngagementStats holds the aggregate counters for one video.
// Both counts are kept non-negative by the engagement ledger.
type EngagementStats struct {
	LikeCount    int `json:"likeCount"`
	CommentCount int `json:"commentCount"`
}

// UserLike is the per-user like flag for a video. Unlikes keep the
// document and flip Active to false.
type UserLike struct {
	VideoID   string    `json:"videoId"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Comment is an immutable comment attached to a video.
type Comment struct {
	ID        string    `json:"id"`        // Store-generated identifier
	VideoID   string    `json:"videoId"`   // Owning video
	AuthorID  string    `json:"authorId"`  // User who wrote the comment
	Text      string    `json:"text"`      // Trimmed, non-empty text
	CreatedAt time.Time `json:"createdAt"` // Server commit time
}

// ChatMessage is a message posted to the global chat room.
type ChatMessage struct {
	ID        string    `json:"id"`
	AuthorID  string    `json:"authorId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// LikeResult reports the durable outcome of a like toggle.
type LikeResult struct {
	VideoID   string `json:"videoId"`
	Liked     bool   `json:"liked"`
	LikeCount int    `json:"likeCount"`
}

// FeedView is the state rendered by the presentation shell.
type FeedView struct {
	Video  *Video          `json:"video"`  // nil when the filtered view is empty
	Index  int             `json:"index"`  // Position within the filtered view
	Total  int             `json:"total"`  // Length of the filtered view
	Search string          `json:"search"` // Active search term
	Stats  EngagementStats `json:"stats"`  // Counters for Video
	Liked  bool            `json:"liked"`  // Whether the signed-in user likes Video
}

// SubmitVideoRequest represents the request body for submitting a video.
type SubmitVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	MediaRef    string `json:"mediaRef"`
	Category    string `json:"category,omitempty"`
}

// UploadInitRequest represents the request body for initializing a media upload.
type UploadInitRequest struct {
	MimeType string `json:"mimeType"`
	Size     int64  `json:"size"`
	Filename string `json:"filename,omitempty"`
}

// UploadInitData contains the details needed to upload a media file.
type UploadInitData struct {
	MediaRef  string    `json:"mediaRef"`  // Locator to submit with the video
	UploadURL string    `json:"uploadUrl"` // Presigned URL for uploading the file
	ExpiresAt time.Time `json:"expiresAt"` // When the upload URL expires
}
