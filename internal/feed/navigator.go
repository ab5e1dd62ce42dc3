// Package feed implements the swipe feed's navigation state: the video list,
// the search filter and the current position within the filtered view.
package feed

import (
	"strings"
	"sync"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

// Navigator derives the displayed video from the video list and search term.
// The index always addresses the filtered view; when the video shown before a
// list or filter change is no longer part of the view, the index resets to 0.
//
// Navigator is safe for concurrent use.
type Navigator struct {
	mu       sync.RWMutex
	videos   []model.Video
	search   string // as given by the caller
	needle   string // trimmed, lower-cased search
	filtered []model.Video
	index    int
}

// NewNavigator returns an empty navigator.
func NewNavigator() *Navigator {
	return &Navigator{}
}

// SetVideos replaces the video list.
func (n *Navigator) SetVideos(videos []model.Video) {
	n.mu.Lock()
	defer n.mu.Unlock()

	prev := n.currentIDLocked()
	n.videos = append([]model.Video(nil), videos...)
	n.refilterLocked(prev)
}

// SetSearch replaces the search term. Matching is a case-insensitive
// substring test over title, description and category.
func (n *Navigator) SetSearch(term string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	prev := n.currentIDLocked()
	n.search = term
	n.needle = strings.ToLower(strings.TrimSpace(term))
	n.refilterLocked(prev)
}

// CurrentVideo returns the displayed video; ok is false when the filtered
// view is empty.
func (n *Navigator) CurrentVideo() (v model.Video, ok bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if len(n.filtered) == 0 {
		return model.Video{}, false
	}
	return n.filtered[n.index], true
}

// Advance moves delta positions through the filtered view, wrapping at both
// ends. It does nothing when the view is empty.
func (n *Navigator) Advance(delta int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	size := len(n.filtered)
	if size == 0 {
		return
	}
	n.index = mod(n.index+delta, size)
}

// JumpTo moves to videoID if it is in the filtered view and reports whether it was.
func (n *Navigator) JumpTo(videoID string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if i := indexOf(n.filtered, videoID); i >= 0 {
		n.index = i
		return true
	}
	return false
}

// Filtered returns a copy of the filtered view.
func (n *Navigator) Filtered() []model.Video {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]model.Video(nil), n.filtered...)
}

// Index returns the current position within the filtered view.
func (n *Navigator) Index() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.index
}

// Search returns the active search term.
func (n *Navigator) Search() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.search
}

// View returns the navigation part of a feed view. Stats and Liked are left
// for the caller to fill in.
func (n *Navigator) View() model.FeedView {
	n.mu.RLock()
	defer n.mu.RUnlock()

	view := model.FeedView{Index: n.index, Total: len(n.filtered), Search: n.search}
	if len(n.filtered) > 0 {
		v := n.filtered[n.index]
		view.Video = &v
	}
	return view
}

func (n *Navigator) currentIDLocked() string {
	if len(n.filtered) == 0 {
		return ""
	}
	return n.filtered[n.index].ID
}

func (n *Navigator) refilterLocked(prevID string) {
	n.filtered = n.filtered[:0:0]
	for _, v := range n.videos {
		if matches(v, n.needle) {
			n.filtered = append(n.filtered, v)
		}
	}

	switch {
	case len(n.filtered) == 0:
		n.index = 0
	case prevID == "" || indexOf(n.filtered, prevID) < 0:
		n.index = 0
	default:
		n.index = mod(n.index, len(n.filtered))
	}
}

func matches(v model.Video, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(v.Title), needle) ||
		strings.Contains(strings.ToLower(v.Description), needle) ||
		strings.Contains(strings.ToLower(v.Category), needle)
}

func indexOf(videos []model.Video, id string) int {
	for i, v := range videos {
		if v.ID == id {
			return i
		}
	}
	return -1
}

func mod(a, n int) int {
	r := a % n
	if r < 0 {
		r += n
	}
	return r
}
