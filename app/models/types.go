package models

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// validate is shared by every model; validator caches struct metadata per type.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their JSON names so errors line up with request bodies.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// usernamePattern allows letters, digits and @ . + - _ in account names.
var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// UserID identifies an account. The zero value is the anonymous user.
type UserID int

// Anonymous is the identity of an unauthenticated caller.
const Anonymous UserID = 0

// Identity is the authenticated caller handed to every service call.
type Identity struct {
	ID       UserID
	Username string
}

// IsAnonymous reports whether the identity carries no account.
func (i Identity) IsAnonymous() bool {
	return i.ID == Anonymous
}

// Post represents a blog post. Likes and dislikes live in Tally and are
// computed from votes on read; they are never stored with the post.
type Post struct {
	ID        int       `json:"id" gorm:"primaryKey"`
	Title     string    `json:"title" gorm:"size:64;not null" validate:"required,max=64"`
	Content   string    `json:"content" gorm:"type:text;not null" validate:"required"`
	CreatedBy UserID    `json:"created_by" gorm:"not null;index" validate:"required"`
	PubDate   time.Time `json:"pub_date" gorm:"not null"`
	Tally     Tally     `json:"-" gorm:"-"`
}

// Choice is the direction of a vote.
type Choice string

const (
	Like    Choice = "like"
	Dislike Choice = "dislike"
)

// Vote is one user's like or dislike on a post. At most one vote exists per
// (PostID, VotedBy) pair.
type Vote struct {
	ID      int    `json:"id" gorm:"primaryKey"`
	Choice  Choice `json:"choice" gorm:"size:7;not null" validate:"required,oneof=like dislike"`
	PostID  int    `json:"post_id" gorm:"not null;uniqueIndex:idx_vote_post_user" validate:"required"`
	VotedBy UserID `json:"voted_by" gorm:"not null;uniqueIndex:idx_vote_post_user" validate:"required"`
	Post    *Post  `json:"-" gorm:"constraint:OnDelete:CASCADE;" validate:"-"`
}

// Tally is the pair of vote counts for a post.
type Tally struct {
	Likes    int `json:"likes"`
	Dislikes int `json:"dislikes"`
}

// User is an account able to post and vote.
type User struct {
	ID           UserID    `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"size:150;uniqueIndex;not null" validate:"required,min=3,max=150,username"`
	Email        string    `json:"email" gorm:"size:254;uniqueIndex;not null" validate:"required,email,max=254"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"created_at"`
}
