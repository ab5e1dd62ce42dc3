package docstore

// Paths builds the document layout for one application namespace.
//
//	artifacts/{appId}/public/data/videos/{videoId}
//	artifacts/{appId}/public/data/videoStats/{videoId}
//	artifacts/{appId}/public/data/videoComments/{commentId}
//	artifacts/{appId}/public/data/chatMessages/{messageId}
//	artifacts/{appId}/users/{userId}/likes/{videoId}
type Paths struct {
	AppID string
}

func (p Paths) public() string { return "artifacts/" + p.AppID + "/public/data" }

// Videos is the collection of feed videos.
func (p Paths) Videos() string { return p.public() + "/videos" }

// Video is the document for one video.
func (p Paths) Video(videoID string) string { return Join(p.Videos(), videoID) }

// VideoStats is the collection of per-video engagement counters.
func (p Paths) VideoStats() string { return p.public() + "/videoStats" }

// VideoStat is the counters document for one video.
func (p Paths) VideoStat(videoID string) string { return Join(p.VideoStats(), videoID) }

// Comments is the flat comment collection shared by all videos.
func (p Paths) Comments() string { return p.public() + "/videoComments" }

// Chat is the global chat collection.
func (p Paths) Chat() string { return p.public() + "/chatMessages" }

// UserLikes is the private like-state collection of one user.
func (p Paths) UserLikes(userID string) string {
	return "artifacts/" + p.AppID + "/users/" + userID + "/likes"
}

// UserLike is one user's like-state document for one video.
func (p Paths) UserLike(userID, videoID string) string {
	return Join(p.UserLikes(userID), videoID)
}
