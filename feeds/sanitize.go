package feeds

import "regexp"

// Anything between angle brackets, shortest match first, and the bare
// "nbsp" left behind by entities such as &nbsp;
var tagPattern = regexp.MustCompile(`<.*?>|nbsp`)

// StripMarkup replaces every tag-like substring and every "nbsp" token with
// a single space. The result is meant for display only and still has to be
// escaped by whatever renders it.
func StripMarkup(raw string) string {
	return tagPattern.ReplaceAllLiteralString(raw, " ")
}
