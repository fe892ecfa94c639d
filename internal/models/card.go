// Package models defines the domain types for sage.
package models

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Section describes one region of a document: a page range for PDFs or a
// heading name for markdown.
type Section struct {
	Loc  string `json:"loc"`
	Desc string `json:"desc"`
}

// Card is the structured metadata for one document, produced by the
// synthesizer and persisted in the card cache. Mtime records the source
// file's modification time (Unix nanoseconds) at synthesis time and is
// internal to the staleness check.
type Card struct {
	Path          string    `json:"path"`
	Title         string    `json:"title"`
	Type          string    `json:"type"`
	Topics        []string  `json:"topics"`
	Summary       string    `json:"summary"`
	Sections      []Section `json:"sections"`
	KeyTerms      []string  `json:"key_terms,omitempty"`
	Prerequisites []string  `json:"prerequisites,omitempty"`
	KeyResults    []string  `json:"key_results,omitempty"`
	Mtime         int64     `json:"_mtime,omitempty"`
}

// cardTypes lists the document types the synthesizer is allowed to emit.
var cardTypes = []interface{}{
	"paper", "chapter", "notes", "article", "other",
	"research_paper", "textbook_chapter", "lecture_notes", "tutorial",
}

// Validate checks the card against the synthesis schema. A card failing
// validation is rejected at the synthesizer boundary and treated as stale
// when read back from the cache.
func (c Card) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Title, validation.Required),
		validation.Field(&c.Type, validation.Required, validation.In(cardTypes...)),
		validation.Field(&c.Topics, validation.Required),
		validation.Field(&c.Summary, validation.Required),
	)
}

// HasTopic reports whether any of the card's topics contains the given
// string, case-insensitively.
func (c Card) HasTopic(topic string) bool {
	needle := strings.ToLower(topic)
	for _, t := range c.Topics {
		if strings.Contains(strings.ToLower(t), needle) {
			return true
		}
	}
	return false
}
