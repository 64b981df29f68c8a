package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pkg/errors"
)

const podcastRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Norsk Podkast</title>
  <item>
    <title>Episode 3: Fjellet</title>
    <pubDate>Mon, 06 May 2024 06:00:00 +0000</pubDate>
    <description>Vi går på tur.</description>
    <enclosure url="https://cdn.example.com/ep3.mp3" length="52428800" type="audio/mpeg"/>
  </item>
  <item>
    <title>Bonus video</title>
    <enclosure url="https://cdn.example.com/bonus.mp4" length="1000" type="video/mp4"/>
  </item>
  <item>
    <title>Episode 2: Havet</title>
    <pubDate>Mon, 29 Apr 2024 06:00:00 +0000</pubDate>
    <description>Om havet.</description>
    <enclosure url="https://cdn.example.com/ep2.m4a" length="1024" type="audio/x-m4a"/>
  </item>
</channel>
</rss>`

const videoOnlyRSS = `<?xml version="1.0"?>
<rss version="2.0"><channel><title>Video</title>
<item><title>Clip</title><enclosure url="https://cdn.example.com/a.mp4" type="video/mp4" length="1"/></item>
</channel></rss>`

const emptyRSS = `<?xml version="1.0"?><rss version="2.0"><channel><title>Empty</title></channel></rss>`

func TestParseStringSelectsAudioEpisodes(t *testing.T) {
	f, err := ParseString(podcastRSS)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	if f.Title != "Norsk Podkast" {
		t.Fatalf("unexpected title %q", f.Title)
	}
	if len(f.Episodes) != 2 {
		t.Fatalf("expected 2 audio episodes, got %d", len(f.Episodes))
	}
	ep := f.Episodes[1]
	if ep.Index != 1 || ep.Title != "Episode 2: Havet" || ep.AudioURL != "https://cdn.example.com/ep2.m4a" {
		t.Fatalf("unexpected episode %+v", ep)
	}
	if f.Episodes[0].SizeBytes != 52428800 {
		t.Fatalf("unexpected enclosure length %d", f.Episodes[0].SizeBytes)
	}
	if f.Episodes[0].PublishedAt == nil {
		t.Fatal("expected parsed publish date")
	}
}

func TestParseStringErrors(t *testing.T) {
	if _, err := ParseString(videoOnlyRSS); !errors.Is(err, ErrNoAudio) {
		t.Fatalf("expected ErrNoAudio, got %v", err)
	}
	if _, err := ParseString(emptyRSS); !errors.Is(err, ErrNoEpisodes) {
		t.Fatalf("expected ErrNoEpisodes, got %v", err)
	}
	if _, err := ParseString("this is not xml"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSelectOutOfRange(t *testing.T) {
	f, err := ParseString(podcastRSS)
	if err != nil {
		t.Fatalf("ParseString: %v", err)
	}
	for _, idx := range []int{-1, 2, 10} {
		if _, err := f.Select(idx); !errors.Is(err, ErrEpisodeIndex) {
			t.Fatalf("index %d: expected ErrEpisodeIndex, got %v", idx, err)
		}
	}
}

func TestClientEpisodeOverHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(podcastRSS))
	}))
	defer srv.Close()

	c := NewClient(srv.Client())
	ep, err := c.Episode(context.Background(), srv.URL, 0)
	if err != nil {
		t.Fatalf("Episode: %v", err)
	}
	if ep.AudioURL != "https://cdn.example.com/ep3.mp3" {
		t.Fatalf("unexpected audio url %s", ep.AudioURL)
	}
	eps, err := c.Episodes(context.Background(), srv.URL)
	if err != nil || len(eps) != 2 {
		t.Fatalf("Episodes: %v (%d)", err, len(eps))
	}
}

func TestClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := NewClient(srv.Client()).Episodes(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for 404 feed")
	}
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("æ", 250)
	got := Truncate(long, DescriptionLimit)
	if !strings.HasSuffix(got, "...") || len([]rune(got)) != DescriptionLimit+3 {
		t.Fatalf("unexpected truncation length %d", len([]rune(got)))
	}
	if Truncate("kort", DescriptionLimit) != "kort" {
		t.Fatal("short text must be unchanged")
	}
}
