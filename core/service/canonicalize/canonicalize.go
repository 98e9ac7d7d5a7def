// Package canonicalize extracts and normalizes references to the target
// platform's videos and playlists out of free-form message text
// (spec.md §4.2 Link canonicalization). Every function here is pure: no
// I/O, no external calls.
package canonicalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

// urlPattern finds candidate http(s) URLs in decoded message text.
var urlPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// videoIDPattern is the only shape an extracted video id may take; any
// match failing this is discarded rather than persisted (spec.md §4.2).
var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// Link is one canonicalized reference pulled out of a message, before it
// is attached to a user and an email id and persisted as a domain.Link.
type Link struct {
	Type         domain.LinkType
	CanonicalURL string
	VideoID      string
	PlaylistID   string
}

// ExtractLinks finds every recognizable video or playlist URL in text,
// canonicalizes each, and collapses duplicate video ids (or duplicate
// playlist ids for playlist-only links) to a single entry, preserving
// first-seen order (spec.md §4.2: "duplicate video-ids collapse to one
// Link row").
func ExtractLinks(text string) []Link {
	candidates := urlPattern.FindAllString(text, -1)

	seenVideo := make(map[string]bool)
	seenPlaylist := make(map[string]bool)
	var links []Link

	for _, raw := range candidates {
		link, ok := Canonicalize(raw)
		if !ok {
			continue
		}
		switch link.Type {
		case domain.LinkTypeVideo:
			if seenVideo[link.VideoID] {
				continue
			}
			seenVideo[link.VideoID] = true
		case domain.LinkTypePlaylist:
			if seenPlaylist[link.PlaylistID] {
				continue
			}
			seenPlaylist[link.PlaylistID] = true
		}
		links = append(links, link)
	}
	return links
}

// Canonicalize recognizes one of the five URL shapes spec.md §4.2
// tables and normalizes it. All query parameters other than v and list
// are stripped. ok is false when the URL isn't a recognized shape or its
// video id fails videoIDPattern.
func Canonicalize(rawURL string) (Link, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Link{}, false
	}

	host := strings.ToLower(u.Host)
	host = strings.TrimPrefix(host, "www.")
	path := strings.Trim(u.Path, "/")

	switch host {
	case "youtu.be":
		return videoLink(firstSegment(path), "")

	case "youtube.com":
		switch {
		case path == "watch":
			return videoLink(u.Query().Get("v"), u.Query().Get("list"))
		case strings.HasPrefix(path, "embed/"):
			return videoLink(firstSegment(strings.TrimPrefix(path, "embed/")), "")
		case strings.HasPrefix(path, "v/"):
			return videoLink(firstSegment(strings.TrimPrefix(path, "v/")), "")
		case path == "playlist":
			playlistID := u.Query().Get("list")
			if playlistID == "" {
				return Link{}, false
			}
			return Link{
				Type:         domain.LinkTypePlaylist,
				PlaylistID:   playlistID,
				CanonicalURL: fmt.Sprintf("https://www.youtube.com/playlist?list=%s", playlistID),
			}, true
		}
	}

	return Link{}, false
}

func videoLink(videoID, playlistID string) (Link, bool) {
	if !videoIDPattern.MatchString(videoID) {
		return Link{}, false
	}
	canonicalURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	if playlistID != "" {
		canonicalURL += "&list=" + playlistID
	}
	return Link{
		Type:         domain.LinkTypeVideo,
		VideoID:      videoID,
		PlaylistID:   playlistID,
		CanonicalURL: canonicalURL,
	}, true
}

func firstSegment(path string) string {
	if i := strings.Index(path, "/"); i >= 0 {
		return path[:i]
	}
	return path
}
