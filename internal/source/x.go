package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	xBaseURL         = "https://api.x.com"
	xPostBaseURL     = "https://x.com"
	xTimeout         = 30 * time.Second
	xUserAgent       = "xsync/1.0"
	xPageSize        = 100
	xDefaultMaxPages = 5
	xSearchWindow    = 7 * 24 * time.Hour
	xSearchMargin    = time.Minute
	xTweetFields     = "created_at,author_id,in_reply_to_user_id"
	xExpansions      = "author_id,in_reply_to_user_id"
	xUserFields      = "username"
)

var (
	ErrUnauthorized = errors.New("x api: unauthorized")
	ErrNotFound     = errors.New("x api: not found")
	ErrRateLimited  = errors.New("x api: rate limited")
)

// XClient reads account timelines and hashtag searches from the X API v2.
type XClient struct {
	token    string
	baseURL  string
	client   *http.Client
	limiter  *rate.Limiter
	maxPages int
	now      func() time.Time
}

// XOption configures an XClient.
type XOption func(*XClient)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) XOption {
	return func(c *XClient) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) XOption {
	return func(c *XClient) { c.client = hc }
}

// WithLimiter paces requests with the given limiter.
func WithLimiter(l *rate.Limiter) XOption {
	return func(c *XClient) { c.limiter = l }
}

// WithMaxPages caps how many result pages a single fetch follows.
func WithMaxPages(n int) XOption {
	return func(c *XClient) {
		if n > 0 {
			c.maxPages = n
		}
	}
}

// NewX creates an X API client authenticated with a bearer token.
func NewX(token string, opts ...XOption) (*XClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("x: bearer token is required")
	}
	c := &XClient{
		token:    strings.TrimSpace(token),
		baseURL:  xBaseURL,
		client:   &http.Client{Timeout: xTimeout},
		limiter:  rate.NewLimiter(rate.Every(time.Second), 1),
		maxPages: xDefaultMaxPages,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *XClient) ResolveUser(ctx context.Context, handle string) (User, error) {
	handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
	if handle == "" {
		return User{}, errors.New("x: handle is required")
	}

	endpoint := fmt.Sprintf("%s/2/users/by/username/%s", c.baseURL, url.PathEscape(handle))

	var resp xUserResponse
	if err := c.get(ctx, endpoint, nil, &resp); err != nil {
		return User{}, fmt.Errorf("resolve @%s: %w", handle, err)
	}
	if resp.Data.ID == "" {
		detail := "no such user"
		if len(resp.Errors) > 0 && resp.Errors[0].Detail != "" {
			detail = resp.Errors[0].Detail
		}
		return User{}, fmt.Errorf("resolve @%s: %w: %s", handle, ErrNotFound, detail)
	}

	resolved := resp.Data.Username
	if resolved == "" {
		resolved = handle
	}
	return User{ID: resp.Data.ID, Handle: resolved}, nil
}

func (c *XClient) UserPosts(ctx context.Context, user User, since time.Time) ([]Post, error) {
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets", c.baseURL, url.PathEscape(user.ID))
	params := c.baseParams(since)

	posts, err := c.paginate(ctx, endpoint, params, "pagination_token", UserOrigin(user.Handle), since)
	if err != nil {
		return nil, fmt.Errorf("timeline @%s: %w", user.Handle, err)
	}
	for i := range posts {
		if posts[i].Author == "" {
			posts[i].Author = user.Handle
			posts[i].URL = postURL(user.Handle, posts[i].ID)
		}
	}
	return posts, nil
}

func (c *XClient) HashtagPosts(ctx context.Context, tag string, since time.Time) ([]Post, error) {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	endpoint := c.baseURL + "/2/tweets/search/recent"

	// Recent search only accepts start times inside its seven day window.
	floor := c.now().Add(-xSearchWindow + xSearchMargin)
	if since.Before(floor) {
		since = floor
	}

	params := c.baseParams(since)
	params.Set("query", "#"+tag)

	posts, err := c.paginate(ctx, endpoint, params, "next_token", HashtagOrigin(tag), since)
	if err != nil {
		return nil, fmt.Errorf("search #%s: %w", tag, err)
	}
	return posts, nil
}

func (c *XClient) baseParams(since time.Time) url.Values {
	params := url.Values{}
	params.Set("max_results", strconv.Itoa(xPageSize))
	params.Set("tweet.fields", xTweetFields)
	params.Set("expansions", xExpansions)
	params.Set("user.fields", xUserFields)
	if !since.IsZero() {
		params.Set("start_time", since.UTC().Format(time.RFC3339))
	}
	return params
}

func (c *XClient) paginate(ctx context.Context, endpoint string, params url.Values, tokenParam, origin string, since time.Time) ([]Post, error) {
	var posts []Post
	for page := 0; page < c.maxPages; page++ {
		var resp xTweetsResponse
		if err := c.get(ctx, endpoint, params, &resp); err != nil {
			return nil, err
		}

		posts = append(posts, postsFromResponse(resp, origin, since)...)

		if resp.Meta.NextToken == "" {
			break
		}
		params.Set(tokenParam, resp.Meta.NextToken)
	}
	return posts, nil
}

func (c *XClient) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", xUserAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func statusError(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w (status %d): check the bearer token", ErrUnauthorized, status)
	case http.StatusNotFound:
		return fmt.Errorf("%w (status %d)", ErrNotFound, status)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w (status %d)", ErrRateLimited, status)
	default:
		return fmt.Errorf("x api: status %d", status)
	}
}

func postsFromResponse(resp xTweetsResponse, origin string, since time.Time) []Post {
	handles := make(map[string]string, len(resp.Includes.Users))
	for _, u := range resp.Includes.Users {
		handles[u.ID] = u.Username
	}

	posts := make([]Post, 0, len(resp.Data))
	for _, tw := range resp.Data {
		createdAt, err := time.Parse(time.RFC3339Nano, tw.CreatedAt)
		if err != nil || createdAt.Before(since) {
			continue
		}

		author := handles[tw.AuthorID]
		var link string
		if author != "" {
			link = postURL(author, tw.ID)
		}

		posts = append(posts, Post{
			ID:        tw.ID,
			Author:    author,
			ReplyTo:   handles[tw.InReplyToUserID],
			Text:      tw.Text,
			URL:       link,
			CreatedAt: createdAt.UTC(),
			Origin:    origin,
		})
	}
	return posts
}

func postURL(handle, id string) string {
	return fmt.Sprintf("%s/%s/status/%s", xPostBaseURL, handle, id)
}

type xUserResponse struct {
	Data   xUser    `json:"data"`
	Errors []xError `json:"errors"`
}

type xUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type xError struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
}

type xTweetsResponse struct {
	Data     []xTweet `json:"data"`
	Includes struct {
		Users []xUser `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

type xTweet struct {
	ID              string `json:"id"`
	Text            string `json:"text"`
	AuthorID        string `json:"author_id"`
	InReplyToUserID string `json:"in_reply_to_user_id"`
	CreatedAt       string `json:"created_at"`
}
