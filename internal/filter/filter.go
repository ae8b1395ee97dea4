// Package filter decides which fetched posts survive the configured criteria.
package filter

import (
	"strings"
	"time"

	"github.com/ppiankov/xsync/internal/source"
)

// Criteria holds the optional bounds a post must satisfy. Zero values disable a rule.
type Criteria struct {
	StartDate  time.Time     // earliest accepted creation time
	MaxAge     time.Duration // oldest accepted age relative to now
	DirtyWords []string      // lower-case forbidden substrings, see NewCriteria
}

// NewCriteria builds criteria with dirty words lower-cased and blanks dropped.
func NewCriteria(startDate time.Time, maxAge time.Duration, dirtyWords []string) Criteria {
	words := make([]string, 0, len(dirtyWords))
	for _, w := range dirtyWords {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			words = append(words, w)
		}
	}
	return Criteria{StartDate: startDate, MaxAge: maxAge, DirtyWords: words}
}

// Match reports whether post passes every configured rule. The start date and
// max age are checked independently of each other.
func Match(post source.Post, c Criteria, now time.Time) bool {
	if !c.StartDate.IsZero() && post.CreatedAt.Before(c.StartDate) {
		return false
	}
	if c.MaxAge > 0 && now.Sub(post.CreatedAt) > c.MaxAge {
		return false
	}
	if len(c.DirtyWords) > 0 && containsAny(strings.ToLower(post.Text), c.DirtyWords) {
		return false
	}
	return true
}

// Apply returns the posts that match, preserving input order.
func Apply(posts []source.Post, c Criteria, now time.Time) []source.Post {
	kept := make([]source.Post, 0, len(posts))
	for _, p := range posts {
		if Match(p, c, now) {
			kept = append(kept, p)
		}
	}
	return kept
}

func containsAny(textLower string, words []string) bool {
	for _, w := range words {
		if strings.Contains(textLower, w) {
			return true
		}
	}
	return false
}

// WindowStart returns the earliest creation time worth fetching: the later of
// the start date and now minus max age. Zero means unbounded.
func WindowStart(c Criteria, now time.Time) time.Time {
	start := c.StartDate
	if c.MaxAge > 0 {
		if cutoff := now.Add(-c.MaxAge); cutoff.After(start) {
			start = cutoff
		}
	}
	return start
}
