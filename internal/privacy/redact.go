// Package privacy masks sensitive substrings in post bodies before they leave the connector.
package privacy

import (
	"fmt"
	"regexp"
)

const placeholder = "[REDACTED]"

// Redactor replaces every match of its patterns with a placeholder.
// A nil or empty Redactor leaves text unchanged.
type Redactor struct {
	patterns []*regexp.Regexp
}

// NewRedactor compiles the patterns. An invalid pattern is a configuration error.
func NewRedactor(patterns []string) (*Redactor, error) {
	r := &Redactor{patterns: make([]*regexp.Regexp, 0, len(patterns))}
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		r.patterns = append(r.patterns, re)
	}
	return r, nil
}

// Apply returns text with all matches masked.
func (r *Redactor) Apply(text string) string {
	if r == nil {
		return text
	}
	for _, re := range r.patterns {
		text = re.ReplaceAllString(text, placeholder)
	}
	return text
}

// Enabled reports whether any pattern is configured.
func (r *Redactor) Enabled() bool {
	return r != nil && len(r.patterns) > 0
}
