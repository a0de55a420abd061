package sqlstore

import (
	"context"
	"errors"
	"testing"

	"postvote/app/models"
	"postvote/app/repositories"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open("sqlite", ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedPost(t *testing.T, store *Store, owner models.UserID) *models.Post {
	t.Helper()
	post := &models.Post{Title: "Test Post", Content: "This is post of testing"}
	post.Publish(owner)
	require.NoError(t, store.Atomic(context.Background(), func(r repositories.Repos) error {
		return r.Posts.Create(post)
	}))
	return post
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open("oracle", "", nil)
	assert.Error(t, err)
}

func TestPostRepository(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	post := seedPost(t, store, 1)
	assert.NotZero(t, post.ID)

	t.Run("get", func(t *testing.T) {
		require.NoError(t, store.View(ctx, func(r repositories.Repos) error {
			got, err := r.Posts.GetByID(post.ID)
			require.NoError(t, err)
			assert.Equal(t, "Test Post", got.Title)
			assert.Equal(t, models.UserID(1), got.CreatedBy)
			return nil
		}))
	})

	t.Run("update", func(t *testing.T) {
		post.Title = "Updated Title"
		post.Touch()
		require.NoError(t, store.Atomic(ctx, func(r repositories.Repos) error {
			return r.Posts.Update(post)
		}))
		require.NoError(t, store.View(ctx, func(r repositories.Repos) error {
			got, err := r.Posts.GetByID(post.ID)
			require.NoError(t, err)
			assert.Equal(t, "Updated Title", got.Title)
			return nil
		}))
	})

	t.Run("missing", func(t *testing.T) {
		err := store.View(ctx, func(r repositories.Repos) error {
			_, err := r.Posts.GetByID(9999)
			return err
		})
		assert.ErrorIs(t, err, repositories.ErrNotFound)

		err = store.Atomic(ctx, func(r repositories.Repos) error {
			return r.Posts.Delete(9999)
		})
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("list", func(t *testing.T) {
		seedPost(t, store, 1)
		seedPost(t, store, 2)
		require.NoError(t, store.View(ctx, func(r repositories.Repos) error {
			posts, err := r.Posts.List(2, 0)
			require.NoError(t, err)
			assert.Len(t, posts, 2)

			posts, err = r.Posts.List(2, 2)
			require.NoError(t, err)
			assert.Len(t, posts, 1)
			return nil
		}))
	})
}

func TestVoteRepository(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	post := seedPost(t, store, 1)

	require.NoError(t, store.Atomic(ctx, func(r repositories.Repos) error {
		_, found, err := r.Votes.Find(post.ID, 2)
		assert.False(t, found)
		if err != nil {
			return err
		}
		return r.Votes.Create(&models.Vote{Choice: models.Like, PostID: post.ID, VotedBy: 2})
	}))

	t.Run("unique per post and voter", func(t *testing.T) {
		err := store.Atomic(ctx, func(r repositories.Repos) error {
			return r.Votes.Create(&models.Vote{Choice: models.Dislike, PostID: post.ID, VotedBy: 2})
		})
		assert.ErrorIs(t, err, repositories.ErrConflict)
	})

	t.Run("switch choice in place", func(t *testing.T) {
		vote := &models.Vote{Choice: models.Dislike, PostID: post.ID, VotedBy: 2}
		require.NoError(t, store.Atomic(ctx, func(r repositories.Repos) error {
			return r.Votes.UpdateChoice(vote)
		}))
		assert.NotZero(t, vote.ID)

		require.NoError(t, store.View(ctx, func(r repositories.Repos) error {
			tally, err := r.Votes.Tally(post.ID)
			require.NoError(t, err)
			assert.Equal(t, models.Tally{Dislikes: 1}, tally)

			votes, err := r.Votes.ListByPost(post.ID)
			require.NoError(t, err)
			assert.Len(t, votes, 1)
			return nil
		}))
	})

	t.Run("update without a vote", func(t *testing.T) {
		err := store.Atomic(ctx, func(r repositories.Repos) error {
			return r.Votes.UpdateChoice(&models.Vote{Choice: models.Like, PostID: post.ID, VotedBy: 42})
		})
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})

	t.Run("cascade in one transaction", func(t *testing.T) {
		require.NoError(t, store.Atomic(ctx, func(r repositories.Repos) error {
			if err := r.Votes.DeleteByPost(post.ID); err != nil {
				return err
			}
			return r.Posts.Delete(post.ID)
		}))
		require.NoError(t, store.View(ctx, func(r repositories.Repos) error {
			votes, err := r.Votes.ListByPost(post.ID)
			require.NoError(t, err)
			assert.Empty(t, votes)
			return nil
		}))
	})
}

func TestAtomicRollsBack(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	post := seedPost(t, store, 1)

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(r repositories.Repos) error {
		if err := r.Votes.DeleteByPost(post.ID); err != nil {
			return err
		}
		if err := r.Posts.Delete(post.ID); err != nil {
			return err
		}
		return boom
	})
	assert.Equal(t, boom, err)

	require.NoError(t, store.View(ctx, func(r repositories.Repos) error {
		_, err := r.Posts.GetByID(post.ID)
		return err
	}))
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	user := &models.User{Username: "second_poster", Email: "second_poster@posts.com", PasswordHash: "hash"}
	require.NoError(t, store.Atomic(ctx, func(r repositories.Repos) error {
		return r.Users.Create(user)
	}))
	assert.NotZero(t, user.ID)

	require.NoError(t, store.View(ctx, func(r repositories.Repos) error {
		got, err := r.Users.GetByUsername("second_poster")
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)

		got, err = r.Users.GetByID(user.ID)
		require.NoError(t, err)
		assert.Equal(t, "second_poster@posts.com", got.Email)

		taken, err := r.Users.ExistsEmail("second_poster@posts.com")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = r.Users.ExistsUsername("nobody")
		require.NoError(t, err)
		assert.False(t, taken)
		return nil
	}))

	err := store.Atomic(ctx, func(r repositories.Repos) error {
		return r.Users.Create(&models.User{Username: "second_poster", Email: "other@posts.com", PasswordHash: "x"})
	})
	assert.ErrorIs(t, err, repositories.ErrConflict)
}

func TestCancelledContext(t *testing.T) {
	store := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.View(ctx, func(r repositories.Repos) error { return nil })
	assert.ErrorIs(t, err, repositories.ErrUnavailable)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	post := seedPost(t, store, 1)
	require.NoError(t, store.Atomic(ctx, func(r repositories.Repos) error {
		if err := r.Users.Create(&models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x"}); err != nil {
			return err
		}
		return r.Votes.Create(&models.Vote{PostID: post.ID, VotedBy: 2, Choice: models.Like})
	}))

	require.NoError(t, store.Reset())

	err := store.View(ctx, func(r repositories.Repos) error {
		posts, err := r.Posts.List(10, 0)
		require.NoError(t, err)
		assert.Empty(t, posts)
		exists, err := r.Users.ExistsUsername("bob")
		require.NoError(t, err)
		assert.False(t, exists)
		tally, err := r.Votes.Tally(post.ID)
		require.NoError(t, err)
		assert.Equal(t, models.Tally{}, tally)
		return nil
	})
	require.NoError(t, err)
}
