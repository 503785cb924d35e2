package model

import "time"

// Profile is a persisted professional profile, keyed by its normalized URL.
type Profile struct {
	ID              int64     `json:"id"`
	NormalizedURL   string    `json:"normalized_url"`
	RawURL          string    `json:"raw_url"`
	FullName        string    `json:"full_name"`
	LastName        string    `json:"last_name"`
	Headline        string    `json:"headline"`
	Location        string    `json:"location"`
	Picture         string    `json:"picture"`
	ExternalID      string    `json:"external_id"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	ContactVerified bool      `json:"contact_verified"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// HasContact reports whether the profile carries an email address.
func (p Profile) HasContact() bool {
	return p.Email != ""
}

// RawRecord is a single profile as returned by the scraping provider or a
// spreadsheet import. Email and Phone are optional.
type RawRecord struct {
	URL        string `json:"url"`
	FullName   string `json:"full_name"`
	LastName   string `json:"last_name"`
	Headline   string `json:"headline"`
	Location   string `json:"location"`
	Picture    string `json:"picture"`
	ExternalID string `json:"external_id"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
}

// ContactResult is one entry returned by the contact-lookup provider.
type ContactResult struct {
	URL   string `json:"url"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ProfileStats summarizes the enrichment state of the profile table.
type ProfileStats struct {
	Total      int `json:"total"`
	WithEmail  int `json:"with_email"`
	Verified   int `json:"verified"`
	Unverified int `json:"unverified"`
	WithURL    int `json:"with_url"`
}
