// ABOUTME: Item model representing one uploaded image known to the client
// ABOUTME: Wire field names follow the remote imageUploader service (_id, image, link)

package models

import "strings"

// DisplayIDLength is how many characters of an id are shown in listings.
const DisplayIDLength = 8

// Item represents a single uploaded image record.
type Item struct {
	ID      string `json:"_id" yaml:"id"`       // Opaque unique identifier, stable across fetches
	Label   string `json:"image" yaml:"label"`  // User-supplied display name, may be empty
	Locator string `json:"link" yaml:"locator"` // URL or data URI pointing at the image bytes
}

// NewItem creates an Item with the given id, label and locator.
func NewItem(id, label, locator string) Item {
	return Item{ID: id, Label: label, Locator: locator}
}

// DisplayName returns the label, or the id when the label is blank.
func (i Item) DisplayName() string {
	if label := strings.TrimSpace(i.Label); label != "" {
		return label
	}
	return i.ID
}

// ShortID returns the id truncated for compact display.
func (i Item) ShortID() string {
	if len(i.ID) > DisplayIDLength {
		return i.ID[:DisplayIDLength]
	}
	return i.ID
}

// Valid reports whether the item carries an id. Items without one cannot be
// deduplicated and are dropped by the feed.
func (i Item) Valid() bool {
	return strings.TrimSpace(i.ID) != ""
}
