package repositories

import (
	"context"

	"postvote/app/models"
)

// PostRepository defines the interface for post data access
type PostRepository interface {
	Create(post *models.Post) error
	GetByID(id int) (*models.Post, error)
	List(limit, offset int) ([]*models.Post, error)
	Update(post *models.Post) error
	Delete(id int) error
}

// VoteRepository defines the interface for vote data access. The store
// enforces at most one vote per (post, voter) and reports a second one as
// ErrConflict.
type VoteRepository interface {
	// Find looks up the voter's vote on a post. found is false when the
	// voter has not voted yet; that is not an error.
	Find(postID int, voter models.UserID) (vote models.Vote, found bool, err error)
	Create(vote *models.Vote) error
	UpdateChoice(vote *models.Vote) error
	Tally(postID int) (models.Tally, error)
	ListByPost(postID int) ([]*models.Vote, error)
	DeleteByPost(postID int) error
}

// UserRepository defines the interface for account data access
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id models.UserID) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	ExistsUsername(username string) (bool, error)
	ExistsEmail(email string) (bool, error)
}

// Repos groups the repositories bound to one unit of work.
type Repos struct {
	Posts PostRepository
	Votes VoteRepository
	Users UserRepository
}

// Store is the persistence boundary used by the services.
type Store interface {
	// View runs fn against a consistent read-only view of the store.
	View(ctx context.Context, fn func(r Repos) error) error
	// Atomic runs fn in a single read-write transaction. Either every write
	// made through r is committed or none is. When the store detects a
	// conflicting concurrent transaction fn is run again from scratch, up
	// to MaxConflictRetries times.
	Atomic(ctx context.Context, fn func(r Repos) error) error
	Close() error
}
