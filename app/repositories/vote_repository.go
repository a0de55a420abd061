package repositories

import (
	"postvote/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerVoteRepository implements VoteRepository on a Badger transaction.
// Votes live under vote:<post>:<voter>, so the key is the unique index and
// a post's votes share one prefix.
type BadgerVoteRepository struct {
	txn *badger.Txn
	seq *badger.Sequence
}

// Find looks up the voter's vote on a post
func (r *BadgerVoteRepository) Find(postID int, voter models.UserID) (models.Vote, bool, error) {
	var vote models.Vote
	item, err := r.txn.Get(voteKey(postID, voter))
	if err == badger.ErrKeyNotFound {
		return vote, false, nil
	}
	if err != nil {
		return vote, false, err
	}
	if err := item.Value(func(val []byte) error {
		return unmarshalEntity(val, &vote)
	}); err != nil {
		return vote, false, err
	}
	return vote, true, nil
}

// Create stores a first vote. A vote already present for the pair is
// reported as ErrConflict; a concurrent insert of the same key surfaces as a
// commit conflict.
func (r *BadgerVoteRepository) Create(vote *models.Vote) error {
	key := voteKey(vote.PostID, vote.VotedBy)
	if _, err := r.txn.Get(key); err == nil {
		return ErrConflict
	} else if err != badger.ErrKeyNotFound {
		return err
	}

	id, err := nextID(r.seq)
	if err != nil {
		return err
	}
	vote.ID = id

	data, err := marshalEntity(vote)
	if err != nil {
		return err
	}
	return r.txn.Set(key, data)
}

// UpdateChoice rewrites the choice of an existing vote in place
func (r *BadgerVoteRepository) UpdateChoice(vote *models.Vote) error {
	existing, found, err := r.Find(vote.PostID, vote.VotedBy)
	if err != nil {
		return err
	}
	if !found {
		return ErrNotFound
	}
	existing.Choice = vote.Choice

	data, err := marshalEntity(existing)
	if err != nil {
		return err
	}
	if err := r.txn.Set(voteKey(existing.PostID, existing.VotedBy), data); err != nil {
		return err
	}
	*vote = existing
	return nil
}

// Tally counts the post's votes by choice
func (r *BadgerVoteRepository) Tally(postID int) (models.Tally, error) {
	var tally models.Tally
	err := r.each(postID, func(v *models.Vote) {
		tally.Add(v.Choice)
	})
	return tally, err
}

// ListByPost returns every vote cast on the post
func (r *BadgerVoteRepository) ListByPost(postID int) ([]*models.Vote, error) {
	votes := []*models.Vote{}
	err := r.each(postID, func(v *models.Vote) {
		votes = append(votes, v)
	})
	return votes, err
}

// DeleteByPost removes every vote cast on the post
func (r *BadgerVoteRepository) DeleteByPost(postID int) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := r.txn.NewIterator(opts)

	var keys [][]byte
	prefix := votePrefix(postID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range keys {
		if err := r.txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (r *BadgerVoteRepository) each(postID int, fn func(*models.Vote)) error {
	it := r.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	prefix := votePrefix(postID)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var vote models.Vote
		if err := it.Item().Value(func(val []byte) error {
			return unmarshalEntity(val, &vote)
		}); err != nil {
			return err
		}
		fn(&vote)
	}
	return nil
}
