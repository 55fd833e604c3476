package model

import (
	"regexp"
	"strings"
)

var (
	slugSpaces  = regexp.MustCompile(`\s+`)
	slugInvalid = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slugify derives a URL slug the same way the admin forms always have:
// lowercase, whitespace runs become "-", anything outside [a-z0-9-] is
// dropped.
func Slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = slugSpaces.ReplaceAllString(slug, "-")
	return slugInvalid.ReplaceAllString(slug, "")
}
