package stats

import "regexp"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	slashRun      = regexp.MustCompile(`/+`)
	disallowed    = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// NormalizeKey converts a raw metric key into the flat string form used
// to index every accumulator map: runs of whitespace become "_", runs of
// "/" become "-", and every remaining character outside
// [A-Za-z0-9._-] is dropped. Applied once at ingest; idempotent.
func NormalizeKey(key string) string {
	key = whitespaceRun.ReplaceAllString(key, "_")
	key = slashRun.ReplaceAllString(key, "-")
	key = disallowed.ReplaceAllString(key, "")
	return key
}
