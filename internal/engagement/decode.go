package engagement

import (
	"cmp"
	"slices"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

// Document field names.
const (
	fieldLikeCount    = "likeCount"
	fieldCommentCount = "commentCount"
	fieldActive       = "active"
	fieldUpdatedAt    = "updatedAt"
	fieldVideoID      = "videoId"
	fieldAuthorID     = "authorId"
	fieldText         = "text"
	fieldCreatedAt    = "createdAt"
)

func decodeStats(f docstore.Fields) model.EngagementStats {
	return model.EngagementStats{
		LikeCount:    max(0, f.Int(fieldLikeCount)),
		CommentCount: max(0, f.Int(fieldCommentCount)),
	}
}

// isActive treats a like document as active unless it is explicitly false.
func isActive(snap docstore.DocumentSnapshot) bool {
	if !snap.Exists() {
		return false
	}
	active, ok := snap.Data().Bool(fieldActive)
	return !ok || active
}

func decodeComment(snap docstore.DocumentSnapshot) model.Comment {
	f := snap.Data()
	return model.Comment{
		ID:        snap.ID(),
		VideoID:   f.String(fieldVideoID),
		AuthorID:  f.String(fieldAuthorID),
		Text:      f.String(fieldText),
		CreatedAt: f.Time(fieldCreatedAt),
	}
}

func decodeChat(snap docstore.DocumentSnapshot) model.ChatMessage {
	f := snap.Data()
	return model.ChatMessage{
		ID:        snap.ID(),
		AuthorID:  f.String(fieldAuthorID),
		Text:      f.String(fieldText),
		CreatedAt: f.Time(fieldCreatedAt),
	}
}

// sortComments orders comments oldest first, breaking ties by id.
func sortComments(cs []model.Comment) {
	slices.SortStableFunc(cs, func(a, b model.Comment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

func sortChat(ms []model.ChatMessage) {
	slices.SortStableFunc(ms, func(a, b model.ChatMessage) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// DecodeStats maps stats documents to counters keyed by video id.
func DecodeStats(docs []docstore.DocumentSnapshot) map[string]model.EngagementStats {
	stats := make(map[string]model.EngagementStats, len(docs))
	for _, d := range docs {
		stats[d.ID()] = decodeStats(d.Data())
	}
	return stats
}

// DecodeComments returns the comments of videoID among docs, oldest first.
func DecodeComments(docs []docstore.DocumentSnapshot, videoID string) []model.Comment {
	return GroupComments(docs)[videoID]
}

// GroupComments groups docs by video id, each group oldest first.
func GroupComments(docs []docstore.DocumentSnapshot) map[string][]model.Comment {
	byVideo := make(map[string][]model.Comment)
	for _, d := range docs {
		c := decodeComment(d)
		byVideo[c.VideoID] = append(byVideo[c.VideoID], c)
	}
	for _, cs := range byVideo {
		sortComments(cs)
	}
	return byVideo
}
