package models

import (
	"crypto/sha1"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ItemID derives the deduplication key for an entry. It is a pure
// function of (title, feed URL, publish time): re-fetching an unchanged
// entry always yields the same ID, without relying on server-assigned
// GUIDs (plenty of feeds omit them).
//
// Shape: {title-slug}_{url-digest}_{publish-nanos}, the final segment
// omitted when the feed gave no timestamp.
func ItemID(title, feedURL string, published *time.Time) string {
	digest := sha1.Sum([]byte(feedURL))
	urlHash := fmt.Sprintf("%x", digest[:8])

	slug := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, title)

	if published != nil {
		return fmt.Sprintf("%s_%s_%d", slug, urlHash, published.UnixNano())
	}
	return fmt.Sprintf("%s_%s", slug, urlHash)
}
