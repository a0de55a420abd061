package models

import (
	"errors"
	"strings"
	"time"
)

// Validate checks if the post meets all validation requirements. Every
// failing field is reported, not just the first.
func (p *Post) Validate() error {
	return validate.Struct(p)
}

// Publish stamps a new post with its owner and publication date.
func (p *Post) Publish(owner UserID) {
	p.CreatedBy = owner
	p.Touch()
}

// Touch refreshes the publication date. It runs on every write of the post
// record; votes are stored separately and never touch it.
func (p *Post) Touch() {
	p.PubDate = time.Now().UTC()
}

// Normalize trims surrounding whitespace from the editable fields.
func (p *Post) Normalize() {
	p.Title = strings.TrimSpace(p.Title)
	p.Content = strings.TrimSpace(p.Content)
}

// OwnedBy reports whether user created the post.
func (p *Post) OwnedBy(user UserID) bool {
	return p.CreatedBy == user
}

// WithTally attaches the counts computed at read time.
func (p *Post) WithTally(t Tally) *Post {
	p.Tally = t
	return p
}

// Valid reports whether c is one of the supported choices.
func (c Choice) Valid() bool {
	return c == Like || c == Dislike
}

// Validate checks the vote record before it is written.
func (v *Vote) Validate() error {
	if v == nil {
		return errors.New("vote cannot be nil")
	}
	return validate.Struct(v)
}

// Add counts one vote of the given choice.
func (t *Tally) Add(c Choice) {
	switch c {
	case Like:
		t.Likes++
	case Dislike:
		t.Dislikes++
	}
}

// Validate checks the account fields. The password is validated by the
// signup flow since only its hash is stored here.
func (u *User) Validate() error {
	return validate.Struct(u)
}

// Identity returns the caller identity for the account.
func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Username: u.Username}
}
