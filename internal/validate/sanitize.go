package validate

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var inputPolicy = bluemonday.UGCPolicy()

// maxSanitizePasses bounds the sanitize/unescape loop in SanitizeInput.
const maxSanitizePasses = 4

// SanitizeInput trims s and strips scripts and event handler attributes
// while leaving plain text readable. Entity-encoded markup is decoded and
// sanitized again until the text stops changing. Input still changing
// after the last pass is returned in its sanitized, escaped form.
func SanitizeInput(s string) string {
	out := strings.TrimSpace(s)
	for range maxSanitizePasses {
		next := strings.TrimSpace(html.UnescapeString(inputPolicy.Sanitize(out)))
		if next == out {
			return out
		}
		out = next
	}
	return strings.TrimSpace(inputPolicy.Sanitize(out))
}

// SanitizeFields applies SanitizeInput to each field in place.
func SanitizeFields(fields ...*string) {
	for _, f := range fields {
		if f != nil {
			*f = SanitizeInput(*f)
		}
	}
}
