// Package htmlsanitize strips unsafe HTML from user-supplied content.
//
// Room descriptions may carry light formatting (paragraphs, emphasis,
// links); scripts, event handlers, and javascript: URLs are removed
// before storage.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var policy = bluemonday.UGCPolicy()

// Sanitize returns s with unsafe HTML removed.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return policy.Sanitize(s)
}
