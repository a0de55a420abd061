package repositories

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"postvote/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository("")
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func createPost(t *testing.T, repo *Repository, owner models.UserID) *models.Post {
	t.Helper()
	post := &models.Post{Title: "Test Post", Content: "This is post of testing"}
	post.Publish(owner)
	require.NoError(t, repo.Atomic(context.Background(), func(r Repos) error {
		return r.Posts.Create(post)
	}))
	return post
}

func TestPostRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	t.Run("create and get post", func(t *testing.T) {
		post := createPost(t, repo, 1)
		assert.Greater(t, post.ID, 0)

		var got *models.Post
		err := repo.View(ctx, func(r Repos) error {
			var err error
			got, err = r.Posts.GetByID(post.ID)
			return err
		})
		require.NoError(t, err)
		assert.Equal(t, post.Title, got.Title)
		assert.Equal(t, post.Content, got.Content)
		assert.Equal(t, models.UserID(1), got.CreatedBy)
	})

	t.Run("update post", func(t *testing.T) {
		post := createPost(t, repo, 1)
		post.Title = "Updated Title"
		require.NoError(t, repo.Atomic(ctx, func(r Repos) error {
			return r.Posts.Update(post)
		}))

		err := repo.View(ctx, func(r Repos) error {
			got, err := r.Posts.GetByID(post.ID)
			require.NoError(t, err)
			assert.Equal(t, "Updated Title", got.Title)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("update missing post", func(t *testing.T) {
		err := repo.Atomic(ctx, func(r Repos) error {
			return r.Posts.Update(&models.Post{ID: 9999, Title: "x", Content: "y"})
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete post", func(t *testing.T) {
		post := createPost(t, repo, 1)
		require.NoError(t, repo.Atomic(ctx, func(r Repos) error {
			return r.Posts.Delete(post.ID)
		}))

		err := repo.View(ctx, func(r Repos) error {
			_, err := r.Posts.GetByID(post.ID)
			return err
		})
		assert.ErrorIs(t, err, ErrNotFound)

		err = repo.Atomic(ctx, func(r Repos) error {
			return r.Posts.Delete(post.ID)
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("list posts", func(t *testing.T) {
		require.NoError(t, repo.Clear())
		for i := 0; i < 5; i++ {
			createPost(t, repo, 1)
		}

		err := repo.View(ctx, func(r Repos) error {
			page, err := r.Posts.List(3, 0)
			require.NoError(t, err)
			assert.Len(t, page, 3)
			assert.Less(t, page[0].ID, page[1].ID)

			page, err = r.Posts.List(3, 3)
			require.NoError(t, err)
			assert.Len(t, page, 2)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestVoteRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	post := createPost(t, repo, 1)

	t.Run("find before voting", func(t *testing.T) {
		err := repo.View(ctx, func(r Repos) error {
			_, found, err := r.Votes.Find(post.ID, 2)
			assert.False(t, found)
			return err
		})
		require.NoError(t, err)
	})

	t.Run("create, update and tally", func(t *testing.T) {
		require.NoError(t, repo.Atomic(ctx, func(r Repos) error {
			return r.Votes.Create(&models.Vote{Choice: models.Like, PostID: post.ID, VotedBy: 2})
		}))
		require.NoError(t, repo.Atomic(ctx, func(r Repos) error {
			return r.Votes.Create(&models.Vote{Choice: models.Dislike, PostID: post.ID, VotedBy: 3})
		}))

		err := repo.View(ctx, func(r Repos) error {
			tally, err := r.Votes.Tally(post.ID)
			require.NoError(t, err)
			assert.Equal(t, models.Tally{Likes: 1, Dislikes: 1}, tally)
			return nil
		})
		require.NoError(t, err)

		vote := &models.Vote{Choice: models.Dislike, PostID: post.ID, VotedBy: 2}
		require.NoError(t, repo.Atomic(ctx, func(r Repos) error {
			return r.Votes.UpdateChoice(vote)
		}))
		assert.NotZero(t, vote.ID)

		err = repo.View(ctx, func(r Repos) error {
			tally, err := r.Votes.Tally(post.ID)
			require.NoError(t, err)
			assert.Equal(t, models.Tally{Likes: 0, Dislikes: 2}, tally)

			votes, err := r.Votes.ListByPost(post.ID)
			require.NoError(t, err)
			assert.Len(t, votes, 2)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("second vote for the same pair conflicts", func(t *testing.T) {
		err := repo.Atomic(ctx, func(r Repos) error {
			return r.Votes.Create(&models.Vote{Choice: models.Like, PostID: post.ID, VotedBy: 2})
		})
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("update without a vote", func(t *testing.T) {
		err := repo.Atomic(ctx, func(r Repos) error {
			return r.Votes.UpdateChoice(&models.Vote{Choice: models.Like, PostID: post.ID, VotedBy: 99})
		})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("delete by post leaves other posts alone", func(t *testing.T) {
		other := createPost(t, repo, 1)
		require.NoError(t, repo.Atomic(ctx, func(r Repos) error {
			return r.Votes.Create(&models.Vote{Choice: models.Like, PostID: other.ID, VotedBy: 2})
		}))

		require.NoError(t, repo.Atomic(ctx, func(r Repos) error {
			if err := r.Votes.DeleteByPost(post.ID); err != nil {
				return err
			}
			return r.Posts.Delete(post.ID)
		}))

		err := repo.View(ctx, func(r Repos) error {
			votes, err := r.Votes.ListByPost(post.ID)
			require.NoError(t, err)
			assert.Empty(t, votes)

			votes, err = r.Votes.ListByPost(other.ID)
			require.NoError(t, err)
			assert.Len(t, votes, 1)
			return nil
		})
		require.NoError(t, err)
	})
}

func TestAtomicRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	post := createPost(t, repo, 1)

	err := repo.Atomic(ctx, func(r Repos) error {
		if err := r.Votes.Create(&models.Vote{Choice: models.Like, PostID: post.ID, VotedBy: 2}); err != nil {
			return err
		}
		return ErrNotFound
	})
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.View(ctx, func(r Repos) error {
		_, found, err := r.Votes.Find(post.ID, 2)
		assert.False(t, found)
		return err
	}))
}

func TestConcurrentFirstVotesKeepOneRow(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)
	post := createPost(t, repo, 1)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	created, rejected := 0, 0
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			err := repo.Atomic(ctx, func(r Repos) error {
				_, found, err := r.Votes.Find(post.ID, 2)
				if err != nil {
					return err
				}
				if found {
					return ErrConflict
				}
				return r.Votes.Create(&models.Vote{Choice: models.Like, PostID: post.ID, VotedBy: 2})
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if assert.ErrorIs(t, err, ErrConflict) {
				rejected++
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, rejected)
	require.NoError(t, repo.View(ctx, func(r Repos) error {
		votes, err := r.Votes.ListByPost(post.ID)
		assert.Len(t, votes, 1)
		return err
	}))
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	user := &models.User{Username: "first_poster", Email: "first_poster@posts.com", PasswordHash: "hash"}
	require.NoError(t, repo.Atomic(ctx, func(r Repos) error {
		return r.Users.Create(user)
	}))
	assert.NotZero(t, user.ID)

	require.NoError(t, repo.View(ctx, func(r Repos) error {
		got, err := r.Users.GetByUsername("first_poster")
		require.NoError(t, err)
		assert.Equal(t, user.ID, got.ID)
		assert.Equal(t, "hash", got.PasswordHash)

		taken, err := r.Users.ExistsUsername("first_poster")
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = r.Users.ExistsEmail("nobody@posts.com")
		require.NoError(t, err)
		assert.False(t, taken)

		_, err = r.Users.GetByUsername("nobody")
		assert.ErrorIs(t, err, ErrNotFound)
		return nil
	}))

	err := repo.Atomic(ctx, func(r Repos) error {
		return r.Users.Create(&models.User{Username: "other", Email: "first_poster@posts.com"})
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestBackupAndLoad(t *testing.T) {
	ctx := context.Background()
	src := newTestRepository(t)
	post := createPost(t, src, 1)

	var buf bytes.Buffer
	require.NoError(t, src.Backup(&buf))

	dst := newTestRepository(t)
	require.NoError(t, dst.Load(&buf))
	require.NoError(t, dst.View(ctx, func(r Repos) error {
		got, err := r.Posts.GetByID(post.ID)
		require.NoError(t, err)
		assert.Equal(t, post.Title, got.Title)
		return nil
	}))
}

func TestClosedStoreIsUnavailable(t *testing.T) {
	repo, err := NewRepository("")
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	err = repo.View(context.Background(), func(r Repos) error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
}
