package repositories

import (
	"fmt"

	"postvote/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerPostRepository implements PostRepository on a Badger transaction
type BadgerPostRepository struct {
	txn *badger.Txn
	seq *badger.Sequence
}

// Create creates a new post
func (r *BadgerPostRepository) Create(post *models.Post) error {
	id, err := nextID(r.seq)
	if err != nil {
		return err
	}
	post.ID = id

	data, err := marshalEntity(post)
	if err != nil {
		return err
	}
	return r.txn.Set(postKey(post.ID), data)
}

// GetByID retrieves a post by ID
func (r *BadgerPostRepository) GetByID(id int) (*models.Post, error) {
	item, err := r.txn.Get(postKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var post models.Post
	if err := item.Value(func(val []byte) error {
		return unmarshalEntity(val, &post)
	}); err != nil {
		return nil, err
	}
	return &post, nil
}

// List retrieves a page of posts in id order
func (r *BadgerPostRepository) List(limit, offset int) ([]*models.Post, error) {
	posts := []*models.Post{}
	it := r.txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	count := 0
	prefix := []byte(PostKeyPrefix)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if count < offset {
			count++
			continue
		}
		if count >= offset+limit {
			break
		}

		var post models.Post
		if err := it.Item().Value(func(val []byte) error {
			return unmarshalEntity(val, &post)
		}); err != nil {
			return nil, fmt.Errorf("failed to unmarshal post: %w", err)
		}
		posts = append(posts, &post)
		count++
	}
	return posts, nil
}

// Update updates an existing post
func (r *BadgerPostRepository) Update(post *models.Post) error {
	key := postKey(post.ID)
	if _, err := r.txn.Get(key); err == badger.ErrKeyNotFound {
		return ErrNotFound
	} else if err != nil {
		return err
	}

	data, err := marshalEntity(post)
	if err != nil {
		return err
	}
	return r.txn.Set(key, data)
}

// Delete deletes a post by ID. Votes are removed separately through
// VoteRepository.DeleteByPost in the same transaction.
func (r *BadgerPostRepository) Delete(id int) error {
	key := postKey(id)
	if _, err := r.txn.Get(key); err == badger.ErrKeyNotFound {
		return ErrNotFound
	} else if err != nil {
		return err
	}
	return r.txn.Delete(key)
}
