package repositories

import (
	"strconv"

	"postvote/app/models"

	"github.com/dgraph-io/badger/v4"
)

// BadgerUserRepository implements UserRepository on a Badger transaction.
// Username and email index keys point at the user id and keep both unique.
type BadgerUserRepository struct {
	txn *badger.Txn
	seq *badger.Sequence
}

// Create stores a new account, failing with ErrConflict when the username or
// email is taken.
func (r *BadgerUserRepository) Create(user *models.User) error {
	for _, key := range [][]byte{usernameKey(user.Username), userEmailKey(user.Email)} {
		if _, err := r.txn.Get(key); err == nil {
			return ErrConflict
		} else if err != badger.ErrKeyNotFound {
			return err
		}
	}

	id, err := nextID(r.seq)
	if err != nil {
		return err
	}
	user.ID = models.UserID(id)

	data, err := marshalEntity(user)
	if err != nil {
		return err
	}
	// PasswordHash is excluded from JSON, so it is stored under its own key.
	idBytes := []byte(strconv.Itoa(id))
	if err := r.txn.Set(userKey(user.ID), data); err != nil {
		return err
	}
	if err := r.txn.Set(passwordKey(user.ID), []byte(user.PasswordHash)); err != nil {
		return err
	}
	if err := r.txn.Set(usernameKey(user.Username), idBytes); err != nil {
		return err
	}
	return r.txn.Set(userEmailKey(user.Email), idBytes)
}

// GetByID retrieves an account by id
func (r *BadgerUserRepository) GetByID(id models.UserID) (*models.User, error) {
	item, err := r.txn.Get(userKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var user models.User
	if err := item.Value(func(val []byte) error {
		return unmarshalEntity(val, &user)
	}); err != nil {
		return nil, err
	}

	item, err = r.txn.Get(passwordKey(id))
	if err != nil && err != badger.ErrKeyNotFound {
		return nil, err
	}
	if err == nil {
		hash, err := item.ValueCopy(nil)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = string(hash)
	}
	return &user, nil
}

// GetByUsername retrieves an account through the username index
func (r *BadgerUserRepository) GetByUsername(username string) (*models.User, error) {
	item, err := r.txn.Get(usernameKey(username))
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, err
	}
	id, err := strconv.Atoi(string(raw))
	if err != nil {
		return nil, err
	}
	return r.GetByID(models.UserID(id))
}

// ExistsUsername reports whether the username is taken
func (r *BadgerUserRepository) ExistsUsername(username string) (bool, error) {
	return r.exists(usernameKey(username))
}

// ExistsEmail reports whether the email is taken
func (r *BadgerUserRepository) ExistsEmail(email string) (bool, error) {
	return r.exists(userEmailKey(email))
}

func (r *BadgerUserRepository) exists(key []byte) (bool, error) {
	_, err := r.txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	return err == nil, err
}
