package services

import (
	"strings"

	"github.com/gosimple/slug"
)

var handleSeparators = strings.NewReplacer("-", "", "_", "")

// NormalizeHandle lowercases, transliterates and strips a handle down to [a-z0-9].
// "John Doe" becomes "johndoe".
func NormalizeHandle(raw string) string {
	return handleSeparators.Replace(slug.Make(raw))
}
