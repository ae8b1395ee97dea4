// Package content renders fetched posts into the text blobs handed to the host.
package content

import (
	"strings"

	"github.com/ppiankov/xsync/internal/source"
)

const (
	sourceLabel = "X"
	dateLayout  = "2006-01-02"
	endSentinel = "[end of post]"
)

// Render returns the post body, or with includeHeader a block of
// attribution, optional reply context, date, body and end sentinel lines.
func Render(p source.Post, includeHeader bool) string {
	if !includeHeader {
		return p.Text
	}

	var b strings.Builder
	b.WriteString(sourceLabel + " Post by @" + p.Author + ":\n")
	if p.ReplyTo != "" {
		b.WriteString("In reply to @" + p.ReplyTo + "\n")
	}
	b.WriteString("Date: " + p.CreatedAt.UTC().Format(dateLayout) + "\n")
	b.WriteString(p.Text + "\n")
	b.WriteString(endSentinel)
	return b.String()
}
