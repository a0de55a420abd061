package repositories

import (
	"context"
	"errors"
	"testing"

	"postvote/app/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "post:0000000007", string(postKey(7)))
	assert.Equal(t, "vote:0000000007:", string(votePrefix(7)))
	assert.Equal(t, "vote:0000000007:0000000003", string(voteKey(7, 3)))
	assert.Equal(t, "user:0000000003", string(userKey(3)))
	assert.Equal(t, "uname:first_poster", string(usernameKey("first_poster")))

	// A post's vote prefix must not match a post whose id merely starts
	// with the same digits.
	assert.NotContains(t, string(voteKey(70, 3)), string(votePrefix(7)))
}

func TestMarshalEntity(t *testing.T) {
	t.Run("marshal and unmarshal vote", func(t *testing.T) {
		vote := &models.Vote{ID: 1, Choice: models.Like, PostID: 2, VotedBy: 3}
		data, err := marshalEntity(vote)
		require.NoError(t, err)

		var out models.Vote
		require.NoError(t, unmarshalEntity(data, &out))
		assert.Equal(t, *vote, out)
	})

	t.Run("unmarshal garbage", func(t *testing.T) {
		var out models.Vote
		assert.Error(t, unmarshalEntity([]byte("{"), &out))
	})
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after conflicts", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 3, func() error {
			calls++
			if calls < 3 {
				return ErrConflict
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		calls := 0
		err := RetryOnConflict(ctx, 2, func() error {
			calls++
			return ErrConflict
		})
		assert.ErrorIs(t, err, ErrConflict)
		assert.Equal(t, 3, calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		calls := 0
		boom := errors.New("boom")
		err := RetryOnConflict(ctx, 3, func() error {
			calls++
			return boom
		})
		assert.Equal(t, boom, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		err := RetryOnConflict(cctx, 3, func() error { return nil })
		assert.ErrorIs(t, err, ErrUnavailable)
	})
}

func TestUnavailable(t *testing.T) {
	assert.Nil(t, Unavailable(nil))
	err := Unavailable(context.DeadlineExceeded)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "deadline exceeded")
	assert.Equal(t, err, Unavailable(err))
}
