package source

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

const (
	mirrorTimeout     = 30 * time.Second
	mirrorUserAgent   = "Mozilla/5.0 (compatible; xsync/1.0)"
	mirrorReplyPrefix = "R to @"
)

var (
	statusIDRe   = regexp.MustCompile(`/status(?:es)?/(\d+)`)
	htmlTagRe    = regexp.MustCompile(`<[^>]*>`)
	whitespaceRe = regexp.MustCompile(`[ \t]{2,}`)
)

// FeedMirror reads account timelines from an RSS mirror that serves
// <base>/<handle>/rss, as Nitter-style front ends do.
type FeedMirror struct {
	baseURL string
	client  *http.Client
}

// NewFeedMirror creates a mirror reader rooted at baseURL.
func NewFeedMirror(baseURL string) (*FeedMirror, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("mirror: base url is required")
	}
	return &FeedMirror{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   mirrorTimeout,
			Transport: &mirrorTransport{base: http.DefaultTransport},
		},
	}, nil
}

// mirrorTransport injects a User-Agent header into every request.
type mirrorTransport struct {
	base http.RoundTripper
}

func (t *mirrorTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", mirrorUserAgent)
	return t.base.RoundTrip(req)
}

// Timeline returns the posts of handle created at or after since.
func (m *FeedMirror) Timeline(ctx context.Context, handle string, since time.Time) ([]Post, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	feedURL := fmt.Sprintf("%s/%s/rss", m.baseURL, handle)

	fp := gofeed.NewParser()
	fp.Client = m.client
	feed, err := fp.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("mirror @%s: %w", handle, err)
	}
	return postsFromFeed(feed, handle, since), nil
}

func postsFromFeed(feed *gofeed.Feed, handle string, since time.Time) []Post {
	var posts []Post
	for _, item := range feed.Items {
		id := statusID(item.Link)
		if id == "" {
			id = statusID(item.GUID)
		}
		if id == "" || item.PublishedParsed == nil {
			continue
		}
		createdAt := item.PublishedParsed.UTC()
		if createdAt.Before(since) {
			continue
		}

		var replyTo string
		if rest, ok := strings.CutPrefix(item.Title, mirrorReplyPrefix); ok {
			replyTo, _, _ = strings.Cut(rest, ":")
		}

		text := stripHTML(item.Description)
		if text == "" {
			text = strings.TrimSpace(item.Title)
		}

		posts = append(posts, Post{
			ID:        id,
			Author:    handle,
			ReplyTo:   strings.TrimSpace(replyTo),
			Text:      text,
			URL:       postURL(handle, id),
			CreatedAt: createdAt,
			Origin:    MirrorOrigin(handle),
		})
	}
	return posts
}

// statusID extracts the numeric post id from a status link.
func statusID(link string) string {
	m := statusIDRe.FindStringSubmatch(link)
	if m == nil {
		return ""
	}
	return m[1]
}

func stripHTML(s string) string {
	s = strings.ReplaceAll(s, "<br>", "\n")
	s = htmlTagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Mirrored serves account timelines from a feed mirror and everything else
// from the wrapped fetcher.
type Mirrored struct {
	Fetcher
	Mirror *FeedMirror
}

func (m *Mirrored) UserPosts(ctx context.Context, user User, since time.Time) ([]Post, error) {
	return m.Mirror.Timeline(ctx, user.Handle, since)
}
