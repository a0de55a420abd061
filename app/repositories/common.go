package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"postvote/app/models"
)

var (
	ErrNotFound = errors.New("record not found")

	// ErrConflict reports a unique constraint violation or a transaction
	// that lost a race against a concurrent writer.
	ErrConflict = errors.New("conflicting write")

	// ErrUnavailable reports that the store could not serve the request in
	// time or at all. Callers may retry later.
	ErrUnavailable = errors.New("store unavailable")
)

// MaxConflictRetries bounds how often Atomic replays a transaction that lost
// a race.
const MaxConflictRetries = 3

const (
	// Key prefixes for different entity types
	PostKeyPrefix      = "post:"
	VoteKeyPrefix      = "vote:"
	UserKeyPrefix      = "user:"
	UsernameKeyPrefix  = "uname:"
	UserEmailKeyPrefix = "uemail:"
	PasswordKeyPrefix  = "upass:"

	// Sequence keys for auto-incrementing IDs
	PostSeqKey = "seq:post"
	VoteSeqKey = "seq:vote"
	UserSeqKey = "seq:user"
)

// Fixed-width ids keep prefix iteration in id order.
func postKey(id int) []byte {
	return []byte(fmt.Sprintf("%s%010d", PostKeyPrefix, id))
}

func votePrefix(postID int) []byte {
	return []byte(fmt.Sprintf("%s%010d:", VoteKeyPrefix, postID))
}

// voteKey doubles as the (post, voter) unique index.
func voteKey(postID int, voter models.UserID) []byte {
	return []byte(fmt.Sprintf("%s%010d:%010d", VoteKeyPrefix, postID, int(voter)))
}

func userKey(id models.UserID) []byte {
	return []byte(fmt.Sprintf("%s%010d", UserKeyPrefix, int(id)))
}

func passwordKey(id models.UserID) []byte {
	return []byte(fmt.Sprintf("%s%010d", PasswordKeyPrefix, int(id)))
}

func usernameKey(username string) []byte {
	return []byte(UsernameKeyPrefix + username)
}

func userEmailKey(email string) []byte {
	return []byte(UserEmailKeyPrefix + email)
}

// marshalEntity marshals an entity to JSON
func marshalEntity(entity interface{}) ([]byte, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal entity: %w", err)
	}
	return data, nil
}

// unmarshalEntity unmarshals JSON data into an entity
func unmarshalEntity(data []byte, entity interface{}) error {
	if err := json.Unmarshal(data, entity); err != nil {
		return fmt.Errorf("failed to unmarshal entity: %w", err)
	}
	return nil
}

// RetryOnConflict runs fn until it succeeds, fails with something other than
// ErrConflict, or has been tried attempts+1 times.
func RetryOnConflict(ctx context.Context, attempts int, fn func() error) error {
	var err error
	for i := 0; i <= attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Unavailable(ctxErr)
		}
		err = fn()
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}

// Unavailable wraps an infrastructure failure as ErrUnavailable, keeping the
// cause in the message.
func Unavailable(cause error) error {
	if cause == nil || errors.Is(cause, ErrUnavailable) {
		return cause
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, cause)
}
