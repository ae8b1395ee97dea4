package source

import (
	"context"
	"time"
)

// Post is a single post fetched from X. It is never modified after fetching.
type Post struct {
	ID        string    // native post id
	Author    string    // author handle, without "@"
	ReplyTo   string    // handle of the replied-to account, empty when not a reply
	Text      string    // raw body text
	URL       string    // link to the post
	CreatedAt time.Time // creation timestamp
	Origin    string    // fetch source that produced the post, e.g. "user:alice"
}

// User is an account resolved from a handle.
type User struct {
	ID     string
	Handle string
}

// Fetcher retrieves posts from X. Implementations must be safe for concurrent use.
type Fetcher interface {
	// ResolveUser maps a handle to a stable account id.
	ResolveUser(ctx context.Context, handle string) (User, error)

	// UserPosts returns posts authored by the user created at or after since.
	// A zero since means no lower bound.
	UserPosts(ctx context.Context, user User, since time.Time) ([]Post, error)

	// HashtagPosts returns recent posts carrying the hashtag created at or after since.
	HashtagPosts(ctx context.Context, tag string, since time.Time) ([]Post, error)
}

// UserOrigin labels posts fetched from an account timeline.
func UserOrigin(handle string) string { return "user:" + handle }

// HashtagOrigin labels posts fetched from a hashtag search.
func HashtagOrigin(tag string) string { return "hashtag:" + tag }

// MirrorOrigin labels posts fetched from a feed mirror of an account timeline.
func MirrorOrigin(handle string) string { return "mirror:" + handle }
