package source

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal json: %v", err)
	}
	return string(b)
}

func newTestX(t *testing.T, handler http.HandlerFunc, opts ...XOption) *XClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	opts = append([]XOption{
		WithBaseURL(srv.URL),
		WithLimiter(rate.NewLimiter(rate.Inf, 1)),
	}, opts...)
	c, err := NewX("test-token", opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewX_RequiresToken(t *testing.T) {
	if _, err := NewX("  "); err == nil {
		t.Fatal("expected error for blank token")
	}
}

func TestResolveUser(t *testing.T) {
	c := newTestX(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("authorization = %q", got)
		}
		if r.URL.Path != "/2/users/by/username/alice" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"data":{"id":"42","name":"Alice","username":"Alice"}}`))
	})

	user, err := c.ResolveUser(context.Background(), "@alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ID != "42" || user.Handle != "Alice" {
		t.Errorf("user = %+v", user)
	}
}

func TestResolveUser_NotFound(t *testing.T) {
	c := newTestX(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"title":"Not Found Error","detail":"Could not find user with username: [ghost]."}]}`))
	})

	_, err := c.ResolveUser(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
	if !strings.Contains(err.Error(), "Could not find user") {
		t.Errorf("error should carry api detail, got %v", err)
	}
}

func TestUserPosts_PaginatesAndMapsReplies(t *testing.T) {
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var calls atomic.Int32

	c := newTestX(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/users/42/tweets" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("start_time") != "2024-01-01T00:00:00Z" {
			t.Errorf("start_time = %q", q.Get("start_time"))
		}
		if q.Get("expansions") != xExpansions {
			t.Errorf("expansions = %q", q.Get("expansions"))
		}

		switch calls.Add(1) {
		case 1:
			if q.Get("pagination_token") != "" {
				t.Errorf("first page should have no token")
			}
			_, _ = w.Write([]byte(mustJSON(t, map[string]any{
				"data": []map[string]any{
					{"id": "1", "text": "hello", "author_id": "42", "created_at": "2024-01-02T10:00:00.000Z"},
					{"id": "2", "text": "@bob sure", "author_id": "42", "in_reply_to_user_id": "7", "created_at": "2024-01-03T10:00:00.000Z"},
				},
				"includes": map[string]any{"users": []map[string]any{
					{"id": "42", "username": "alice"},
					{"id": "7", "username": "bob"},
				}},
				"meta": map[string]any{"next_token": "page2"},
			})))
		default:
			if q.Get("pagination_token") != "page2" {
				t.Errorf("pagination_token = %q, want page2", q.Get("pagination_token"))
			}
			_, _ = w.Write([]byte(mustJSON(t, map[string]any{
				"data": []map[string]any{
					{"id": "3", "text": "old", "author_id": "42", "created_at": "2023-12-31T10:00:00.000Z"},
					{"id": "4", "text": "no date", "author_id": "42", "created_at": "garbage"},
					{"id": "5", "text": "later", "author_id": "99", "created_at": "2024-01-04T10:00:00.000Z"},
				},
				"meta": map[string]any{},
			})))
		}
	})

	posts, err := c.UserPosts(context.Background(), User{ID: "42", Handle: "alice"}, since)
	if err != nil {
		t.Fatalf("user posts: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
	if len(posts) != 3 {
		t.Fatalf("posts = %d, want 3: %+v", len(posts), posts)
	}

	if posts[0].ID != "1" || posts[0].Author != "alice" || posts[0].ReplyTo != "" {
		t.Errorf("post[0] = %+v", posts[0])
	}
	if posts[1].ReplyTo != "bob" {
		t.Errorf("post[1] reply to = %q, want bob", posts[1].ReplyTo)
	}
	if posts[1].URL != "https://x.com/alice/status/2" {
		t.Errorf("post[1] url = %q", posts[1].URL)
	}
	if posts[2].ID != "5" || posts[2].Author != "alice" {
		t.Errorf("post without included author should fall back to timeline owner: %+v", posts[2])
	}
	for _, p := range posts {
		if p.Origin != "user:alice" {
			t.Errorf("origin = %q", p.Origin)
		}
	}
}

func TestUserPosts_RespectsMaxPages(t *testing.T) {
	var calls atomic.Int32
	c := newTestX(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"data":[],"meta":{"next_token":"more"}}`))
	}, WithMaxPages(2))

	if _, err := c.UserPosts(context.Background(), User{ID: "1", Handle: "a"}, time.Time{}); err != nil {
		t.Fatalf("user posts: %v", err)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestHashtagPosts_ClampsStartToSearchWindow(t *testing.T) {
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

	c := newTestX(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/2/tweets/search/recent" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("query") != "#golang" {
			t.Errorf("query = %q", q.Get("query"))
		}
		if q.Get("start_time") != "2024-06-03T12:01:00Z" {
			t.Errorf("start_time = %q, want clamped 2024-06-03T12:01:00Z", q.Get("start_time"))
		}
		_, _ = w.Write([]byte(`{
			"data":[{"id":"9","text":"go is fun #golang","author_id":"3","created_at":"2024-06-09T08:00:00Z"}],
			"includes":{"users":[{"id":"3","username":"carol"}]},
			"meta":{"result_count":1}
		}`))
	})
	c.now = func() time.Time { return now }

	posts, err := c.HashtagPosts(context.Background(), "#golang", time.Time{})
	if err != nil {
		t.Fatalf("hashtag posts: %v", err)
	}
	if len(posts) != 1 || posts[0].Author != "carol" || posts[0].Origin != "hashtag:golang" {
		t.Errorf("posts = %+v", posts)
	}
}

func TestStatusErrors(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrUnauthorized},
		{http.StatusForbidden, ErrUnauthorized},
		{http.StatusNotFound, ErrNotFound},
		{http.StatusTooManyRequests, ErrRateLimited},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestX(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.HashtagPosts(context.Background(), "x", time.Time{})
			if !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}

	c := newTestX(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := c.HashtagPosts(context.Background(), "x", time.Time{})
	if err == nil || !strings.Contains(err.Error(), "status 502") {
		t.Errorf("error = %v, want status 502", err)
	}
}

func TestGet_DecodeError(t *testing.T) {
	c := newTestX(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	})
	_, err := c.ResolveUser(context.Background(), "alice")
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Errorf("error = %v, want decode error", err)
	}
}
