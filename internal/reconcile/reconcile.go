// Package reconcile merges fetch results and diffs them against what the host
// already stores, producing the add/delete set returned from an update.
package reconcile

import (
	"strings"

	"github.com/ppiankov/xsync/internal/source"
)

// IDPrefix is prepended to native post ids to form content identifiers.
const IDPrefix = "x-post-"

// ContentID returns the stable content identifier for a native post id.
func ContentID(postID string) string {
	return IDPrefix + postID
}

// PostID strips the content prefix. ok is false for identifiers this
// connector did not produce.
func PostID(contentID string) (string, bool) {
	return strings.CutPrefix(contentID, IDPrefix)
}

// Action is what the host should do with a content identifier.
type Action string

const (
	ActionAdd    Action = "add"
	ActionDelete Action = "delete"
)

// Update is one entry of an UpdateMap. Content is set only for adds.
type Update struct {
	Action  Action `json:"action"`
	Content string `json:"content,omitempty"`
}

// UpdateMap maps content identifiers to the action the host should apply.
type UpdateMap map[string]Update

// Existing maps content identifiers to the epoch milliseconds they were last written.
type Existing map[string]int64

// Item is a formatted survivor ready to be diffed.
type Item struct {
	ID      string // content identifier
	Content string
}

// Dedup flattens the batches into one slice holding each post id once.
// The first occurrence wins, by batch order and then position.
func Dedup(batches ...[]source.Post) []source.Post {
	seen := make(map[string]struct{})
	out := make([]source.Post, 0)
	for _, batch := range batches {
		for _, p := range batch {
			if _, ok := seen[p.ID]; ok {
				continue
			}
			seen[p.ID] = struct{}{}
			out = append(out, p)
		}
	}
	return out
}

// Diff compares survivors with existing content.
//
// Unknown survivors are added; known survivors are left alone. Unless
// noDelete is set, existing ids missing from survivors are deleted only when
// they were written after lastUsed: older content has scrolled out of the
// fetch window and is kept.
func Diff(survivors []Item, existing Existing, lastUsed int64, noDelete bool) UpdateMap {
	updates := make(UpdateMap)
	current := make(map[string]struct{}, len(survivors))

	for _, item := range survivors {
		current[item.ID] = struct{}{}
		if _, known := existing[item.ID]; known {
			continue
		}
		if _, dup := updates[item.ID]; dup {
			continue
		}
		updates[item.ID] = Update{Action: ActionAdd, Content: item.Content}
	}

	if noDelete {
		return updates
	}

	for id, writtenAt := range existing {
		if _, ok := current[id]; ok {
			continue
		}
		if writtenAt > lastUsed {
			updates[id] = Update{Action: ActionDelete}
		}
	}

	return updates
}
