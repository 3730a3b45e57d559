// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var tableElements = []string{"table", "thead", "tbody", "tfoot", "tr", "th", "td"}

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func ugc() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowAttrs("class").OnElements(tableElements...)
		p.AllowStyles("width", "text-align").OnElements(tableElements...)
		policy = p
	})
	return policy
}

// Sanitize strips scripts, event handlers, unsafe URLs and unknown
// elements from user-authored HTML.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return ugc().Sanitize(s)
}

// IsPlainText reports whether s contains no markup.
func IsPlainText(s string) bool {
	return !(strings.Contains(s, "<") && strings.Contains(s, ">"))
}

// Clean prepares a post or event body for storage. Plain text is kept
// verbatim; anything that looks like markup is sanitized.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	if IsPlainText(s) {
		return s
	}
	return Sanitize(s)
}
