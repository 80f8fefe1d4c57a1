package domain

import (
	"fmt"
	"strings"
	"time"
)

// PageState is one observation of the hosting page, as reported by the
// browser-side collaborator. The tracker polls the latest observation per
// page context.
type PageState struct {
	// ContextID identifies the tab/page context the observation came from.
	ContextID string `json:"contextId"`
	URL       string `json:"url"`
	// TitleCandidates is the ordered probe result for long-form titles;
	// the first non-empty entry wins.
	TitleCandidates []string `json:"titleCandidates"`
	// Description is the caption text used to synthesize short-form titles.
	Description string `json:"description"`
	// PageTitle is the document title, the last resort before a placeholder.
	PageTitle string `json:"pageTitle"`
	// Hidden reports tab visibility; a hidden page stops the watch clock.
	Hidden bool `json:"hidden"`
	// PlayerPaused reports the media element's paused state.
	PlayerPaused bool `json:"playerPaused"`
	ObservedAt   time.Time `json:"observedAt"`
}

// VideoInfo is the stable identity and metadata of one video, snapshotted at
// session start so later page mutations cannot leak into the finalize.
type VideoInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	IsShortForm bool   `json:"isShort"`
}

// DisplayTitle returns the title to classify and store, substituting a
// deterministic placeholder when extraction produced nothing.
func (v VideoInfo) DisplayTitle() string {
	if strings.TrimSpace(v.Title) != "" {
		return v.Title
	}
	if v.IsShortForm {
		return fmt.Sprintf("Short (%s)", v.ID)
	}
	return fmt.Sprintf("Video (%s)", v.ID)
}

// IsPlaceholderTitle reports whether a title matches the fallback-label
// patterns. Placeholder text is never fed to either classifier strategy.
func IsPlaceholderTitle(title string) bool {
	title = strings.TrimSpace(title)
	for _, prefix := range []string{"Short (", "Video ("} {
		if strings.HasPrefix(title, prefix) && strings.HasSuffix(title, ")") {
			return true
		}
	}
	return false
}

// WatchEvent is a finalized session: the snapshot of a tracked video plus
// its accumulated active watch time. Immutable once emitted.
type WatchEvent struct {
	SessionID     string
	Video         VideoInfo
	WatchDuration time.Duration
	FinalizedAt   time.Time
}
