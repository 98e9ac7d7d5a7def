package canonicalize

import (
	"testing"

	"github.com/nishisuratia/Email-Driven-YouTube-Learning-Link-Intelligence/core/domain"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantOK     bool
		wantType   domain.LinkType
		wantVideo  string
		wantPlay   string
		wantCanon  string
	}{
		{
			name:      "watch url with v param",
			input:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
			wantOK:    true,
			wantType:  domain.LinkTypeVideo,
			wantVideo: "dQw4w9WgXcQ",
			wantCanon: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:      "watch url with tracking params stripped",
			input:     "http://youtube.com/watch?v=dQw4w9WgXcQ&feature=share&utm_source=newsletter",
			wantOK:    true,
			wantType:  domain.LinkTypeVideo,
			wantVideo: "dQw4w9WgXcQ",
			wantCanon: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:      "watch url with playlist param kept",
			input:     "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL12345",
			wantOK:    true,
			wantType:  domain.LinkTypeVideo,
			wantVideo: "dQw4w9WgXcQ",
			wantPlay:  "PL12345",
			wantCanon: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PL12345",
		},
		{
			name:      "youtu.be short link",
			input:     "https://youtu.be/dQw4w9WgXcQ",
			wantOK:    true,
			wantType:  domain.LinkTypeVideo,
			wantVideo: "dQw4w9WgXcQ",
			wantCanon: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:      "youtu.be short link with trailing query",
			input:     "https://youtu.be/dQw4w9WgXcQ?t=30",
			wantOK:    true,
			wantType:  domain.LinkTypeVideo,
			wantVideo: "dQw4w9WgXcQ",
			wantCanon: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:      "embed url",
			input:     "https://www.youtube.com/embed/dQw4w9WgXcQ",
			wantOK:    true,
			wantType:  domain.LinkTypeVideo,
			wantVideo: "dQw4w9WgXcQ",
			wantCanon: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:      "legacy /v/ url",
			input:     "https://www.youtube.com/v/dQw4w9WgXcQ",
			wantOK:    true,
			wantType:  domain.LinkTypeVideo,
			wantVideo: "dQw4w9WgXcQ",
			wantCanon: "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		},
		{
			name:     "playlist-only url",
			input:    "https://www.youtube.com/playlist?list=PLabc123",
			wantOK:   true,
			wantType: domain.LinkTypePlaylist,
			wantPlay: "PLabc123",
			wantCanon: "https://www.youtube.com/playlist?list=PLabc123",
		},
		{
			name:   "video id too short is discarded",
			input:  "https://www.youtube.com/watch?v=short",
			wantOK: false,
		},
		{
			name:   "unrelated domain is discarded",
			input:  "https://example.com/watch?v=dQw4w9WgXcQ",
			wantOK: false,
		},
		{
			name:   "malformed url is discarded",
			input:  "https://www.youtube.com/embed/%zz",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Canonicalize(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("Canonicalize(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if !tt.wantOK {
				return
			}
			if got.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", got.Type, tt.wantType)
			}
			if got.VideoID != tt.wantVideo {
				t.Errorf("VideoID = %q, want %q", got.VideoID, tt.wantVideo)
			}
			if got.PlaylistID != tt.wantPlay {
				t.Errorf("PlaylistID = %q, want %q", got.PlaylistID, tt.wantPlay)
			}
			if got.CanonicalURL != tt.wantCanon {
				t.Errorf("CanonicalURL = %q, want %q", got.CanonicalURL, tt.wantCanon)
			}
		})
	}
}

func TestExtractLinksDedupesWithinMessage(t *testing.T) {
	text := `Check out this video: https://www.youtube.com/watch?v=dQw4w9WgXcQ
	and again here: https://youtu.be/dQw4w9WgXcQ
	plus a different one: https://www.youtube.com/watch?v=abcdefghijk`

	links := ExtractLinks(text)
	if len(links) != 2 {
		t.Fatalf("ExtractLinks returned %d links, want 2 (duplicate video id collapsed): %+v", len(links), links)
	}
	if links[0].VideoID != "dQw4w9WgXcQ" {
		t.Errorf("first link VideoID = %q, want dQw4w9WgXcQ", links[0].VideoID)
	}
	if links[1].VideoID != "abcdefghijk" {
		t.Errorf("second link VideoID = %q, want abcdefghijk", links[1].VideoID)
	}
}

func TestExtractLinksIgnoresUnrelatedURLs(t *testing.T) {
	text := "Visit https://example.com/page and https://golang.org for more."
	links := ExtractLinks(text)
	if len(links) != 0 {
		t.Fatalf("ExtractLinks returned %d links, want 0", len(links))
	}
}
