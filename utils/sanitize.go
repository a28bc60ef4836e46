package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	contentPolicy = bluemonday.UGCPolicy()
	plainPolicy   = bluemonday.StrictPolicy()
)

// SanitizeContent keeps the safe HTML subset of user generated content.
// Input without any '<' cannot carry markup and is kept verbatim, so plain
// prose such as "a & b" is not entity-escaped.
func SanitizeContent(input string) string {
	if !strings.Contains(input, "<") {
		return input
	}
	return contentPolicy.Sanitize(input)
}

// SanitizePlain strips all markup, for single-line fields such as titles.
// The result is plain text, not HTML: entities produced by the policy are
// decoded again, and callers must escape it when rendering.
func SanitizePlain(input string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy.Sanitize(input)))
}
