// Package models defines the domain types for Taxon.
package models

import "time"

// Vocabulary is a named namespace for a restricted set of tags.
type Vocabulary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"-"`
}

// Tag is a label. A nil VocabularyID marks a free tag.
type Tag struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	VocabularyID *string `json:"vocabulary_id"`
}

// IsFree reports whether the tag belongs to no vocabulary.
func (t Tag) IsFree() bool {
	return t.VocabularyID == nil
}

// TagRef identifies a stored tag returned by find-or-create lookups.
type TagRef struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created bool   `json:"-"`
}

// TagEntry is one element of the tag list carried by a form while it is
// being validated. It is the typed form of the (tags, n, field) keys.
type TagEntry struct {
	Name         string  `json:"name"`
	VocabularyID *string `json:"vocabulary_id"`
	DisplayName  string  `json:"display_name,omitempty"`
}

// Dataset is a tagged record.
type Dataset struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Tags      []Tag     `json:"tags"`
	CreatedAt time.Time `json:"metadata_created"`
}

// StringPtr returns a pointer to s, or nil when s is empty.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Change describes a committed write. Vocabulary names the vocabulary the
// change belongs to and is empty for free tags and datasets.
type Change struct {
	Kind       string `json:"-"`
	Name       string `json:"name"`
	Vocabulary string `json:"vocabulary,omitempty"`
}
