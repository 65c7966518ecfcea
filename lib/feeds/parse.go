// Package feeds turns raw HTTP response bodies into normalized items.
//
// A body is tried against an ordered list of decoders (RSS first, then
// Atom). "Wrong format" is an expected outcome, not an exception: each
// decoder either claims the document or passes it along.
package feeds

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/feedwatch/lib/models"
	"github.com/mmcdole/gofeed/atom"
	"github.com/mmcdole/gofeed/rss"
)

// ErrUnsupportedFormat reports that every decoder rejected the body.
var ErrUnsupportedFormat = errors.New("document is neither valid RSS nor Atom")

// Document is a decoded feed: its own title plus normalized entries.
type Document struct {
	Title string
	Items models.Items
}

// Decoder is one candidate wire format.
type Decoder struct {
	Name   string
	Decode func(body []byte, src models.Source) (*Document, error)
}

// Decoders returns the candidate formats in probe order.
func Decoders() []Decoder {
	return []Decoder{
		{Name: "rss", Decode: decodeRSS},
		{Name: "atom", Decode: decodeAtom},
	}
}

// Decode runs the body through each decoder in order and returns the
// first success. All decoders failing yields ErrUnsupportedFormat.
func Decode(body []byte, src models.Source) (*Document, error) {
	for _, dec := range Decoders() {
		if doc, err := dec.Decode(body, src); err == nil {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("%w (source %s)", ErrUnsupportedFormat, src.URL)
}

func decodeRSS(body []byte, src models.Source) (*Document, error) {
	parsed, err := (&rss.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	doc := &Document{Title: parsed.Title}
	for _, entry := range parsed.Items {
		title := entry.Title
		if title == "" {
			title = "No title"
		}
		description := entry.Description
		if description == "" {
			description = "No description"
		}

		doc.Items = append(doc.Items, newItem(title, description, entry.Link, copyTime(entry.PubDateParsed), src))
	}
	return doc, nil
}

func decodeAtom(body []byte, src models.Source) (*Document, error) {
	parsed, err := (&atom.Parser{}).Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	doc := &Document{Title: parsed.Title}
	for _, entry := range parsed.Entries {
		title := entry.Title
		if title == "" {
			title = "No title"
		}

		description := entry.Summary
		if entry.Content != nil && entry.Content.Value != "" {
			description = entry.Content.Value
		}
		if description == "" {
			description = "No description"
		}

		var link string
		if len(entry.Links) > 0 {
			link = entry.Links[0].Href
		}

		published := copyTime(entry.PublishedParsed)
		if published == nil {
			published = copyTime(entry.UpdatedParsed)
		}

		doc.Items = append(doc.Items, newItem(title, description, link, published, src))
	}
	return doc, nil
}

// newItem normalizes one entry. The display title carries the feed title
// as a suffix; the identity is derived from the raw entry title so it
// stays stable if the subscription is ever renamed.
func newItem(title, description, link string, published *time.Time, src models.Source) models.Item {
	return models.Item{
		Title:       fmt.Sprintf("%s | %s", title, src.Title),
		Description: PlainText(description),
		Link:        link,
		Published:   published,
		ID:          models.ItemID(title, src.URL, published),
		FeedURL:     src.URL,
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	clone := *t
	return &clone
}
