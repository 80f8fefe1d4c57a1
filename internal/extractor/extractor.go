// Package extractor derives a stable video identity and best-effort title
// from a page observation.
package extractor

import (
	"regexp"
	"strings"
)

// shortTitleMaxRunes caps synthesized short-form titles.
const shortTitleMaxRunes = 80

// URL shapes for the three content link styles: long-form watch links,
// short-link redirects, and short-form paths.
var (
	watchURLPattern  = regexp.MustCompile(`youtube\.com/watch\?(?:[^#]*&)?v=([A-Za-z0-9_-]+)`)
	shortLinkPattern = regexp.MustCompile(`youtu\.be/([A-Za-z0-9_-]+)`)
	shortsURLPattern = regexp.MustCompile(`youtube\.com/shorts/([A-Za-z0-9_-]+)`)
)

// soundtrackPatterns strip embedded audio-credit boilerplate from short-form
// captions before they are used as titles.
var soundtrackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)original sound\s*[-–]?\s*\S*`),
	regexp.MustCompile(`(?i)\bmusic:\s*[^|\n]*`),
	regexp.MustCompile(`(?i)\bsound:\s*[^|\n]*`),
	regexp.MustCompile(`♪[^♪]*♪?`),
}

var whitespacePattern = regexp.MustCompile(`\s+`)

// Result is the extracted identity and metadata of the observed video.
type Result struct {
	VideoID     string
	Title       string
	URL         string
	IsShortForm bool
}

// ExtractVideoID parses the video id out of a URL, reporting whether the URL
// is a short-form path. The second return is false when no shape matches.
func ExtractVideoID(url string) (id string, isShortForm, ok bool) {
	if m := shortsURLPattern.FindStringSubmatch(url); m != nil {
		return m[1], true, true
	}
	if m := watchURLPattern.FindStringSubmatch(url); m != nil {
		return m[1], false, true
	}
	if m := shortLinkPattern.FindStringSubmatch(url); m != nil {
		return m[1], false, true
	}
	return "", false, false
}

// PageFields is the slice of an observation the extractor needs.
type PageFields struct {
	URL             string
	TitleCandidates []string
	Description     string
	PageTitle       string
}

// Extract produces the video identity and best-effort title for the page, or
// ok=false when no video id is derivable. A result with an empty Title is
// still valid; callers apply a deterministic fallback label.
func Extract(page PageFields) (Result, bool) {
	id, isShort, ok := ExtractVideoID(page.URL)
	if !ok {
		return Result{}, false
	}

	res := Result{
		VideoID:     id,
		URL:         page.URL,
		IsShortForm: isShort,
	}
	if isShort {
		res.Title = shortFormTitle(page)
	} else {
		res.Title = firstNonEmpty(page.TitleCandidates)
	}
	return res, true
}

// firstNonEmpty walks the ordered probe results; first non-empty match wins.
func firstNonEmpty(candidates []string) string {
	for _, c := range candidates {
		if t := strings.TrimSpace(c); t != "" {
			return t
		}
	}
	return ""
}

// shortFormTitle synthesizes a title from the short's caption, cleaned of
// soundtrack boilerplate and truncated. Falls back to the page title; an
// empty return leaves placeholder labeling to the caller.
func shortFormTitle(page PageFields) string {
	caption := CleanCaption(page.Description)
	if caption != "" {
		return truncate(caption, shortTitleMaxRunes)
	}
	if t := strings.TrimSpace(page.PageTitle); t != "" {
		return truncate(t, shortTitleMaxRunes)
	}
	return ""
}

// CleanCaption strips soundtrack/audio-credit boilerplate and collapses
// whitespace.
func CleanCaption(text string) string {
	for _, p := range soundtrackPatterns {
		text = p.ReplaceAllString(text, " ")
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// truncate cuts at max runes with an ellipsis marker.
func truncate(s string, maxRunes int) string {
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "…"
}
