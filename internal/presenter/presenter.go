// Package presenter decides which completed-media tab a finished task shows.
package presenter

import (
	"strings"

	"deckcast/internal/task"
)

// Media is the artifact tab offered for a completed generation.
type Media string

const (
	MediaVideo Media = "video"
	MediaAudio Media = "audio"
)

// ParseMedia converts a string into a known Media value.
func ParseMedia(value string) (Media, bool) {
	switch Media(strings.ToLower(strings.TrimSpace(value))) {
	case MediaVideo:
		return MediaVideo, true
	case MediaAudio:
		return MediaAudio, true
	default:
		return "", false
	}
}

// Presenter tracks the selected media tab and whether the user pinned it.
// It holds no locks; callers serialize access alongside the task they
// present.
type Presenter struct {
	selected Media
	pinned   bool
}

// New returns a presenter showing the video tab, unpinned.
func New() *Presenter {
	return &Presenter{selected: MediaVideo}
}

// Selection returns the tab currently shown.
func (p *Presenter) Selection() Media {
	return p.selected
}

// Pinned reports whether the user chose the tab manually.
func (p *Presenter) Pinned() bool {
	return p.pinned
}

// Apply re-evaluates the automatic selection with the latest declared output
// and probe result. The first matching rule wins: a podcast-only declaration
// forces audio; a declared or probe-confirmed video forces video. Returns
// true when the visible tab changed. Pinned selections never move.
func (p *Presenter) Apply(declared task.TaskType, videoConfirmed bool) bool {
	if p.pinned {
		return false
	}
	switch {
	case declared == task.TypePodcast:
		if p.selected != MediaAudio {
			p.selected = MediaAudio
			return true
		}
	case declared.IncludesVideo() || videoConfirmed:
		if p.selected != MediaVideo {
			p.selected = MediaVideo
			return true
		}
	}
	return false
}

// Select records a manual tab choice and pins it against automatic
// re-selection until Reset.
func (p *Presenter) Select(media Media) {
	p.selected = media
	p.pinned = true
}

// Reset returns the presenter to its initial state. Called when the task
// returns to idle; the pin does not survive the task it was made for.
func (p *Presenter) Reset() {
	p.selected = MediaVideo
	p.pinned = false
}
