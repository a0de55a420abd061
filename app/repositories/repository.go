package repositories

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dgraph-io/badger/v4"
)

// sequenceBandwidth is how many ids a Badger sequence leases at a time.
const sequenceBandwidth = 100

// Repository is the BadgerDB backed Store.
type Repository struct {
	db      *badger.DB
	dbPath  string
	postSeq *badger.Sequence
	voteSeq *badger.Sequence
	userSeq *badger.Sequence
}

var _ Store = (*Repository)(nil)

// NewRepository opens the Badger database at path. An empty path opens an
// in-memory database, which is what the tests use.
func NewRepository(path string) (*Repository, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithNumVersionsToKeep(1)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", path, err)
	}
	return NewRepositoryWithDB(db, path)
}

// NewRepositoryWithDB wraps an already opened Badger database.
func NewRepositoryWithDB(db *badger.DB, path string) (*Repository, error) {
	r := &Repository{db: db, dbPath: path}
	var err error
	if r.postSeq, err = db.GetSequence([]byte(PostSeqKey), sequenceBandwidth); err != nil {
		return nil, err
	}
	if r.voteSeq, err = db.GetSequence([]byte(VoteSeqKey), sequenceBandwidth); err != nil {
		return nil, err
	}
	if r.userSeq, err = db.GetSequence([]byte(UserSeqKey), sequenceBandwidth); err != nil {
		return nil, err
	}
	return r, nil
}

// Close releases the leased sequences and closes the database.
func (r *Repository) Close() error {
	var errs []error
	for _, seq := range []*badger.Sequence{r.postSeq, r.voteSeq, r.userSeq} {
		if seq != nil {
			errs = append(errs, seq.Release())
		}
	}
	errs = append(errs, r.db.Close())
	return errors.Join(errs...)
}

// View runs fn in a read-only Badger transaction.
func (r *Repository) View(ctx context.Context, fn func(Repos) error) error {
	if err := ctx.Err(); err != nil {
		return Unavailable(err)
	}
	err := r.db.View(func(txn *badger.Txn) error {
		return fn(r.bind(txn))
	})
	return translateBadgerError(ctx, err)
}

// Atomic runs fn in a read-write Badger transaction. Badger detects
// read-write conflicts at commit time; the losing transaction is replayed so
// it observes the winner's writes.
func (r *Repository) Atomic(ctx context.Context, fn func(Repos) error) error {
	return RetryOnConflict(ctx, MaxConflictRetries, func() error {
		err := r.db.Update(func(txn *badger.Txn) error {
			return fn(r.bind(txn))
		})
		return translateBadgerError(ctx, err)
	})
}

// Clear drops every key. Used by the CLI clean command and tests.
func (r *Repository) Clear() error {
	return r.db.DropAll()
}

// Backup writes a full backup of the database to w.
func (r *Repository) Backup(w io.Writer) error {
	_, err := r.db.Backup(w, 0)
	return err
}

// Load restores a backup previously written by Backup.
func (r *Repository) Load(rd io.Reader) error {
	return r.db.Load(rd, 16)
}

func (r *Repository) bind(txn *badger.Txn) Repos {
	return Repos{
		Posts: &BadgerPostRepository{txn: txn, seq: r.postSeq},
		Votes: &BadgerVoteRepository{txn: txn, seq: r.voteSeq},
		Users: &BadgerUserRepository{txn: txn, seq: r.userSeq},
	}
}

// translateBadgerError maps Badger failures onto the store errors and leaves
// every other error, including those returned by callbacks, untouched.
func translateBadgerError(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrConflict):
		return ErrConflict
	case errors.Is(err, badger.ErrDBClosed), errors.Is(err, badger.ErrBlockedWrites):
		return Unavailable(err)
	case ctx.Err() != nil:
		return Unavailable(ctx.Err())
	default:
		return err
	}
}

// nextID turns a Badger sequence value into a positive id.
func nextID(seq *badger.Sequence) (int, error) {
	n, err := seq.Next()
	if err != nil {
		return 0, err
	}
	return int(n) + 1, nil
}
