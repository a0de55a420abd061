// Package mock provides an in-memory repositories.Store for service and
// controller tests.
package mock

import (
	"context"
	"sort"
	"sync"

	"postvote/app/models"
	"postvote/app/repositories"
)

type votePair struct {
	postID int
	voter  models.UserID
}

type state struct {
	posts    map[int]models.Post
	votes    map[votePair]models.Vote
	users    map[models.UserID]models.User
	nextPost int
	nextVote int
	nextUser int
}

func (s *state) clone() *state {
	c := &state{
		posts:    make(map[int]models.Post, len(s.posts)),
		votes:    make(map[votePair]models.Vote, len(s.votes)),
		users:    make(map[models.UserID]models.User, len(s.users)),
		nextPost: s.nextPost,
		nextVote: s.nextVote,
		nextUser: s.nextUser,
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	for k, v := range s.votes {
		c.votes[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// Store keeps everything in maps guarded by one mutex. Atomic works on a
// copy and swaps it in only when fn succeeds.
type Store struct {
	mutex   sync.RWMutex
	data    *state
	failure error
	closed  bool
}

var _ repositories.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{data: &state{
		posts:    make(map[int]models.Post),
		votes:    make(map[votePair]models.Vote),
		users:    make(map[models.UserID]models.User),
		nextPost: 1,
		nextVote: 1,
		nextUser: 1,
	}}
}

// FailWith makes every following View and Atomic report the store as
// unavailable with cause err. A nil err heals the store.
func (m *Store) FailWith(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.failure = err
}

func (m *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return repositories.Unavailable(err)
	}
	if m.closed {
		return repositories.Unavailable(repositories.ErrUnavailable)
	}
	return repositories.Unavailable(m.failure)
}

func (m *Store) View(ctx context.Context, fn func(repositories.Repos) error) error {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	return fn(bind(m.data))
}

func (m *Store) Atomic(ctx context.Context, fn func(repositories.Repos) error) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if err := m.check(ctx); err != nil {
		return err
	}
	work := m.data.clone()
	if err := fn(bind(work)); err != nil {
		return err
	}
	m.data = work
	return nil
}

func (m *Store) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}

// Clear drops all data.
func (m *Store) Clear() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.data = NewStore().data
}

func bind(s *state) repositories.Repos {
	return repositories.Repos{
		Posts: &PostRepository{s: s},
		Votes: &VoteRepository{s: s},
		Users: &UserRepository{s: s},
	}
}

type PostRepository struct {
	s *state
}

func (m *PostRepository) Create(post *models.Post) error {
	post.ID = m.s.nextPost
	m.s.nextPost++
	m.s.posts[post.ID] = *post
	return nil
}

func (m *PostRepository) GetByID(id int) (*models.Post, error) {
	post, exists := m.s.posts[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return &post, nil
}

func (m *PostRepository) Update(post *models.Post) error {
	if _, exists := m.s.posts[post.ID]; !exists {
		return repositories.ErrNotFound
	}
	m.s.posts[post.ID] = *post
	return nil
}

func (m *PostRepository) Delete(id int) error {
	if _, exists := m.s.posts[id]; !exists {
		return repositories.ErrNotFound
	}
	delete(m.s.posts, id)
	return nil
}

func (m *PostRepository) List(limit, offset int) ([]*models.Post, error) {
	ids := make([]int, 0, len(m.s.posts))
	for id := range m.s.posts {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	posts := []*models.Post{}
	for i, id := range ids {
		if i < offset {
			continue
		}
		if len(posts) >= limit {
			break
		}
		post := m.s.posts[id]
		posts = append(posts, &post)
	}
	return posts, nil
}

type VoteRepository struct {
	s *state
}

func (m *VoteRepository) Find(postID int, voter models.UserID) (models.Vote, bool, error) {
	vote, found := m.s.votes[votePair{postID, voter}]
	return vote, found, nil
}

func (m *VoteRepository) Create(vote *models.Vote) error {
	key := votePair{vote.PostID, vote.VotedBy}
	if _, exists := m.s.votes[key]; exists {
		return repositories.ErrConflict
	}
	vote.ID = m.s.nextVote
	m.s.nextVote++
	m.s.votes[key] = *vote
	return nil
}

func (m *VoteRepository) UpdateChoice(vote *models.Vote) error {
	key := votePair{vote.PostID, vote.VotedBy}
	existing, exists := m.s.votes[key]
	if !exists {
		return repositories.ErrNotFound
	}
	existing.Choice = vote.Choice
	m.s.votes[key] = existing
	*vote = existing
	return nil
}

func (m *VoteRepository) Tally(postID int) (models.Tally, error) {
	var tally models.Tally
	for key, vote := range m.s.votes {
		if key.postID == postID {
			tally.Add(vote.Choice)
		}
	}
	return tally, nil
}

func (m *VoteRepository) ListByPost(postID int) ([]*models.Vote, error) {
	votes := []*models.Vote{}
	for key, vote := range m.s.votes {
		if key.postID == postID {
			v := vote
			votes = append(votes, &v)
		}
	}
	sort.Slice(votes, func(i, j int) bool { return votes[i].ID < votes[j].ID })
	return votes, nil
}

func (m *VoteRepository) DeleteByPost(postID int) error {
	for key := range m.s.votes {
		if key.postID == postID {
			delete(m.s.votes, key)
		}
	}
	return nil
}

type UserRepository struct {
	s *state
}

func (m *UserRepository) Create(user *models.User) error {
	for _, existing := range m.s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	user.ID = models.UserID(m.s.nextUser)
	m.s.nextUser++
	m.s.users[user.ID] = *user
	return nil
}

func (m *UserRepository) GetByID(id models.UserID) (*models.User, error) {
	user, exists := m.s.users[id]
	if !exists {
		return nil, repositories.ErrNotFound
	}
	return &user, nil
}

func (m *UserRepository) GetByUsername(username string) (*models.User, error) {
	for _, user := range m.s.users {
		if user.Username == username {
			u := user
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *UserRepository) ExistsUsername(username string) (bool, error) {
	_, err := m.GetByUsername(username)
	return err == nil, nil
}

func (m *UserRepository) ExistsEmail(email string) (bool, error) {
	for _, user := range m.s.users {
		if user.Email == email {
			return true, nil
		}
	}
	return false, nil
}
