package connector

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/xsync/internal/source"
)

const maxConcurrentFetches = 4

// Outcome is the result of one fetch source. Exactly one of Posts or Err is meaningful.
type Outcome struct {
	Source string
	Posts  []source.Post
	Err    error
}

// fetchAll queries every account and hashtag concurrently. A failing source
// yields an error outcome and never cancels its siblings. Outcomes are
// returned in completion order.
func fetchAll(ctx context.Context, s *session, since time.Time) []Outcome {
	total := len(s.users) + len(s.hashtags)
	results := make(chan Outcome, total)

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for _, user := range s.users {
		g.Go(func() error {
			results <- fetchOne(source.UserOrigin(user.Handle), func() ([]source.Post, error) {
				return s.fetcher.UserPosts(ctx, user, since)
			})
			return nil
		})
	}
	for _, tag := range s.hashtags {
		g.Go(func() error {
			results <- fetchOne(source.HashtagOrigin(tag), func() ([]source.Post, error) {
				return s.fetcher.HashtagPosts(ctx, tag, since)
			})
			return nil
		})
	}

	_ = g.Wait()
	close(results)

	outcomes := make([]Outcome, 0, total)
	for o := range results {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func fetchOne(label string, fetch func() ([]source.Post, error)) (o Outcome) {
	o.Source = label
	defer func() {
		if r := recover(); r != nil {
			o.Posts = nil
			o.Err = fmt.Errorf("panic: %v", r)
		}
	}()
	o.Posts, o.Err = fetch()
	return o
}
