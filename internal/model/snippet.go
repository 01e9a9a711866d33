// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Snippet defaults applied when a draft leaves the field empty.
const (
	DefaultLanguage = "python"
	DefaultStyle    = "friendly"
)

// Snippet represents a saved code snippet.
//
// Highlighted is derived: the snippet service recomputes it from Code,
// Language, Style, LineNos and Title on every save and nothing else writes it.
// It is never part of the JSON representation; clients fetch it from the
// highlight endpoint instead.
type Snippet struct {
	ID            string    `json:"id"`
	Created       time.Time `json:"created"`
	Title         string    `json:"title"`
	Code          string    `json:"code"`
	LineNos       bool      `json:"linenos"`
	Language      string    `json:"language"`
	Style         string    `json:"style"`
	OwnerID       string    `json:"-"`
	OwnerUsername string    `json:"owner"`
	Highlighted   string    `json:"-"`
}

// OwnedBy reports the id of the user that created the snippet.
// Ownership never transfers.
func (s *Snippet) OwnedBy() string {
	return s.OwnerID
}
