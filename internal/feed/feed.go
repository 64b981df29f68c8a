package feed

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
)

var (
	ErrNoEpisodes   = errors.New("no episodes found in RSS feed")
	ErrNoAudio      = errors.New("no audio episodes found in RSS feed")
	ErrEpisodeIndex = errors.New("episode index out of range")
)

// DescriptionLimit is the number of characters kept by Summary.
const DescriptionLimit = 200

// Episode is a feed entry carrying an audio enclosure.
type Episode struct {
	Index       int        `json:"index"`
	Title       string     `json:"title"`
	Published   string     `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	AudioURL    string     `json:"audio_url"`
	AudioType   string     `json:"audio_type,omitempty"`
	SizeBytes   int64      `json:"size_bytes,omitempty"`
	Description string     `json:"description"`
}

// Summary returns the description cut to limit characters with "..." appended
// when it was longer.
func (e Episode) Summary(limit int) string {
	return Truncate(e.Description, limit)
}

// Feed is a parsed podcast feed reduced to its audio episodes.
type Feed struct {
	Title    string
	Episodes []Episode
}

// Client fetches and parses RSS feeds.
type Client struct {
	parser *gofeed.Parser
}

// NewClient returns a Client using httpClient for fetches. A nil client uses
// a default with a one minute timeout.
func NewClient(httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: time.Minute}
	}
	parser := gofeed.NewParser()
	parser.Client = httpClient
	parser.UserAgent = "podscribe/1.0"
	return &Client{parser: parser}
}

// Fetch downloads and parses the feed at url.
func (c *Client) Fetch(ctx context.Context, url string) (*Feed, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, errors.New("rss url is required")
	}
	parsed, err := c.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "parse feed %s", url)
	}
	return fromParsed(parsed)
}

// Episodes lists the audio episodes of the feed, most recent first as
// ordered by the publisher.
func (c *Client) Episodes(ctx context.Context, url string) ([]Episode, error) {
	f, err := c.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	return f.Episodes, nil
}

// Episode returns the audio episode at index.
func (c *Client) Episode(ctx context.Context, url string, index int) (Episode, error) {
	f, err := c.Fetch(ctx, url)
	if err != nil {
		return Episode{}, err
	}
	return f.Select(index)
}

// Select returns the audio episode at index.
func (f *Feed) Select(index int) (Episode, error) {
	if index < 0 || index >= len(f.Episodes) {
		return Episode{}, errors.Wrapf(ErrEpisodeIndex, "index %d, feed has %d audio episodes", index, len(f.Episodes))
	}
	return f.Episodes[index], nil
}

// ParseString parses feed XML without fetching it.
func ParseString(data string) (*Feed, error) {
	parsed, err := gofeed.NewParser().ParseString(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse feed")
	}
	return fromParsed(parsed)
}

func fromParsed(parsed *gofeed.Feed) (*Feed, error) {
	if len(parsed.Items) == 0 {
		return nil, ErrNoEpisodes
	}
	f := &Feed{Title: strings.TrimSpace(parsed.Title)}
	for _, item := range parsed.Items {
		enc := audioEnclosure(item)
		if enc == nil {
			continue
		}
		ep := Episode{
			Index:       len(f.Episodes),
			Title:       strings.TrimSpace(item.Title),
			Published:   item.Published,
			PublishedAt: item.PublishedParsed,
			AudioURL:    strings.TrimSpace(enc.URL),
			AudioType:   enc.Type,
			Description: strings.TrimSpace(item.Description),
		}
		if n, err := strconv.ParseInt(strings.TrimSpace(enc.Length), 10, 64); err == nil && n > 0 {
			ep.SizeBytes = n
		}
		if ep.Title == "" {
			ep.Title = "Untitled episode"
		}
		f.Episodes = append(f.Episodes, ep)
	}
	if len(f.Episodes) == 0 {
		return nil, ErrNoAudio
	}
	return f, nil
}

func audioEnclosure(item *gofeed.Item) *gofeed.Enclosure {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(strings.ToLower(enc.Type), "audio/") {
			return enc
		}
	}
	return nil
}

// Truncate cuts s to limit runes, appending "..." when anything was cut.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}
