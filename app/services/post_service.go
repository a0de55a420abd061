package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"postvote/app/models"
	"postvote/app/repositories"
)

// DefaultStoreTimeout bounds every store call when no timeout is configured.
const DefaultStoreTimeout = 5 * time.Second

// DefaultPerPage is the page size used when the caller gives none.
const DefaultPerPage = 10

// PostService handles business logic for posts and their votes
type PostService struct {
	store   repositories.Store
	timeout time.Duration
	logger  *slog.Logger
}

// NewPostService creates a new PostService. A zero timeout selects
// DefaultStoreTimeout.
func NewPostService(store repositories.Store, timeout time.Duration, logger *slog.Logger) *PostService {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &PostService{
		store:   store,
		timeout: timeout,
		logger:  logger,
	}
}

// CreatePost publishes a new post owned by identity.
func (s *PostService) CreatePost(ctx context.Context, identity models.Identity, title, content string) (*models.Post, error) {
	if err := CanCreate(identity); err != nil {
		return nil, err
	}

	post := &models.Post{}
	if err := s.fill(post, title, content); err != nil {
		return nil, err
	}
	post.Publish(identity.ID)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.store.Atomic(ctx, func(r repositories.Repos) error {
		return r.Posts.Create(post)
	})
	if err != nil {
		return nil, s.fail("create post", err)
	}

	s.logger.Info("post created", "post_id", post.ID, "user_id", identity.ID)
	return post, nil
}

// GetPost returns a post with its current tally.
func (s *PostService) GetPost(ctx context.Context, identity models.Identity, id int) (*models.Post, error) {
	if identity.IsAnonymous() {
		return nil, ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var post *models.Post
	err := s.store.View(ctx, func(r repositories.Repos) error {
		var err error
		post, err = s.load(r, id)
		return err
	})
	if err != nil {
		return nil, s.fail(fmt.Sprintf("post %d", id), err)
	}
	return post, nil
}

// ListPosts returns one page of posts in creation order, each with its
// tally.
func (s *PostService) ListPosts(ctx context.Context, identity models.Identity, page, perPage int) ([]*models.Post, error) {
	if identity.IsAnonymous() {
		return nil, ErrUnauthorized
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	if page-1 > math.MaxInt/perPage {
		// No store can hold that many posts.
		return []*models.Post{}, nil
	}
	offset := (page - 1) * perPage

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var posts []*models.Post
	err := s.store.View(ctx, func(r repositories.Repos) error {
		var err error
		posts, err = r.Posts.List(perPage, offset)
		if err != nil {
			return err
		}
		for _, post := range posts {
			t, err := tally(r, post.ID)
			if err != nil {
				return fmt.Errorf("tally post %d: %w", post.ID, err)
			}
			post.WithTally(t)
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("list posts", err)
	}
	return posts, nil
}

// UpdatePost replaces title and content. Only the owner may edit.
func (s *PostService) UpdatePost(ctx context.Context, identity models.Identity, id int, title, content string) (*models.Post, error) {
	return s.update(ctx, identity, id, &title, &content)
}

// PatchPost changes only the given fields; a nil field keeps its value.
func (s *PostService) PatchPost(ctx context.Context, identity models.Identity, id int, title, content *string) (*models.Post, error) {
	return s.update(ctx, identity, id, title, content)
}

func (s *PostService) update(ctx context.Context, identity models.Identity, id int, title, content *string) (*models.Post, error) {
	if identity.IsAnonymous() {
		return nil, ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var post *models.Post
	err := s.store.Atomic(ctx, func(r repositories.Repos) error {
		var err error
		post, err = r.Posts.GetByID(id)
		if err != nil {
			return err
		}
		if err := CanUpdate(post, identity); err != nil {
			return err
		}
		newTitle, newContent := post.Title, post.Content
		if title != nil {
			newTitle = *title
		}
		if content != nil {
			newContent = *content
		}
		if err := s.fill(post, newTitle, newContent); err != nil {
			return err
		}
		post.Touch()
		if err := r.Posts.Update(post); err != nil {
			return err
		}
		t, err := tally(r, post.ID)
		post.WithTally(t)
		return err
	})
	if err != nil {
		return nil, s.fail(fmt.Sprintf("post %d", id), err)
	}

	s.logger.Info("post updated", "post_id", id, "user_id", identity.ID)
	return post, nil
}

// DeletePost removes a post and every vote on it in one unit.
func (s *PostService) DeletePost(ctx context.Context, identity models.Identity, id int) error {
	if identity.IsAnonymous() {
		return ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.store.Atomic(ctx, func(r repositories.Repos) error {
		post, err := r.Posts.GetByID(id)
		if err != nil {
			return err
		}
		if err := CanDelete(post, identity); err != nil {
			return err
		}
		if err := r.Votes.DeleteByPost(id); err != nil {
			return err
		}
		return r.Posts.Delete(id)
	})
	if err != nil {
		return s.fail(fmt.Sprintf("post %d", id), err)
	}

	s.logger.Info("post deleted", "post_id", id, "user_id", identity.ID)
	return nil
}

// Vote casts identity's choice on a post and returns the post with its
// tally after the vote committed.
func (s *PostService) Vote(ctx context.Context, identity models.Identity, id int, choice models.Choice) (*models.Post, error) {
	if identity.IsAnonymous() {
		return nil, ErrUnauthorized
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var post *models.Post
	err := s.store.Atomic(ctx, func(r repositories.Repos) error {
		var err error
		post, err = r.Posts.GetByID(id)
		if err != nil {
			return err
		}
		if err := CanVote(post, identity); err != nil {
			return err
		}
		return castVote(r, post, identity.ID, choice)
	})
	if errors.Is(err, repositories.ErrConflict) {
		// Every replay lost the race to an identical vote.
		err = duplicateVote(choice)
	}
	if err != nil {
		return nil, s.fail(fmt.Sprintf("post %d", id), err)
	}

	err = s.store.View(ctx, func(r repositories.Repos) error {
		t, err := tally(r, id)
		post.WithTally(t)
		return err
	})
	if err != nil {
		return nil, s.fail(fmt.Sprintf("post %d", id), err)
	}

	s.logger.Info("vote recorded", "post_id", id, "user_id", identity.ID, "choice", choice)
	return post, nil
}

func (s *PostService) Like(ctx context.Context, identity models.Identity, id int) (*models.Post, error) {
	return s.Vote(ctx, identity, id, models.Like)
}

func (s *PostService) Dislike(ctx context.Context, identity models.Identity, id int) (*models.Post, error) {
	return s.Vote(ctx, identity, id, models.Dislike)
}

func (s *PostService) load(r repositories.Repos, id int) (*models.Post, error) {
	post, err := r.Posts.GetByID(id)
	if err != nil {
		return nil, err
	}
	t, err := tally(r, id)
	if err != nil {
		return nil, err
	}
	return post.WithTally(t), nil
}

// fill validates and sets the editable fields of post. The text is kept as
// submitted apart from surrounding whitespace.
func (s *PostService) fill(post *models.Post, title, content string) error {
	post.Title = title
	post.Content = content
	post.Normalize()

	if err := post.Validate(); err != nil {
		problems := models.FieldProblems(err)
		if problems == nil {
			return err
		}
		// created_by is set by the service, never by the caller.
		delete(problems, "created_by")
		if len(problems) == 0 {
			return nil
		}
		return &ValidationError{Fields: problems}
	}
	return nil
}

// fail converts err into a service error, prefixes it with what, and logs
// infrastructure failures.
func (s *PostService) fail(what string, err error) error {
	err = fromStore(err)
	if errors.Is(err, ErrStoreUnavailable) {
		s.logger.Error("store failure", "op", what, "error", err)
	}
	return fmt.Errorf("%s: %w", what, err)
}
