package sqlstore

import (
	"postvote/app/models"
	"postvote/app/repositories"

	"gorm.io/gorm"
)

type postRepository struct {
	db *gorm.DB
}

func (r *postRepository) Create(post *models.Post) error {
	return dbErr(r.db.Create(post).Error)
}

func (r *postRepository) GetByID(id int) (*models.Post, error) {
	var post models.Post
	if err := r.db.First(&post, id).Error; err != nil {
		return nil, dbErr(err)
	}
	return &post, nil
}

func (r *postRepository) List(limit, offset int) ([]*models.Post, error) {
	posts := []*models.Post{}
	err := r.db.Order("id asc").Limit(limit).Offset(offset).Find(&posts).Error
	return posts, dbErr(err)
}

func (r *postRepository) Update(post *models.Post) error {
	res := r.db.Model(&models.Post{}).Where("id = ?", post.ID).Updates(map[string]interface{}{
		"title":    post.Title,
		"content":  post.Content,
		"pub_date": post.PubDate,
	})
	if res.Error != nil {
		return dbErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (r *postRepository) Delete(id int) error {
	res := r.db.Delete(&models.Post{}, id)
	if res.Error != nil {
		return dbErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

type voteRepository struct {
	db *gorm.DB
}

func (r *voteRepository) Find(postID int, voter models.UserID) (models.Vote, bool, error) {
	var votes []models.Vote
	err := r.db.Where("post_id = ? AND voted_by = ?", postID, voter).Limit(1).Find(&votes).Error
	if err != nil {
		return models.Vote{}, false, dbErr(err)
	}
	if len(votes) == 0 {
		return models.Vote{}, false, nil
	}
	return votes[0], true, nil
}

// Create relies on idx_vote_post_user to reject a second vote for the pair.
func (r *voteRepository) Create(vote *models.Vote) error {
	return dbErr(r.db.Omit("Post").Create(vote).Error)
}

func (r *voteRepository) UpdateChoice(vote *models.Vote) error {
	res := r.db.Model(&models.Vote{}).
		Where("post_id = ? AND voted_by = ?", vote.PostID, vote.VotedBy).
		Update("choice", vote.Choice)
	if res.Error != nil {
		return dbErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	updated, _, err := r.Find(vote.PostID, vote.VotedBy)
	if err != nil {
		return err
	}
	*vote = updated
	return nil
}

func (r *voteRepository) Tally(postID int) (models.Tally, error) {
	var rows []struct {
		Choice models.Choice
		N      int
	}
	err := r.db.Model(&models.Vote{}).
		Select("choice, count(*) as n").
		Where("post_id = ?", postID).
		Group("choice").
		Scan(&rows).Error
	if err != nil {
		return models.Tally{}, dbErr(err)
	}

	var tally models.Tally
	for _, row := range rows {
		switch row.Choice {
		case models.Like:
			tally.Likes = row.N
		case models.Dislike:
			tally.Dislikes = row.N
		}
	}
	return tally, nil
}

func (r *voteRepository) ListByPost(postID int) ([]*models.Vote, error) {
	votes := []*models.Vote{}
	err := r.db.Where("post_id = ?", postID).Order("id asc").Find(&votes).Error
	return votes, dbErr(err)
}

func (r *voteRepository) DeleteByPost(postID int) error {
	return dbErr(r.db.Where("post_id = ?", postID).Delete(&models.Vote{}).Error)
}

type userRepository struct {
	db *gorm.DB
}

func (r *userRepository) Create(user *models.User) error {
	return dbErr(r.db.Create(user).Error)
}

func (r *userRepository) GetByID(id models.UserID) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, int(id)).Error; err != nil {
		return nil, dbErr(err)
	}
	return &user, nil
}

func (r *userRepository) GetByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.Where("username = ?", username).First(&user).Error; err != nil {
		return nil, dbErr(err)
	}
	return &user, nil
}

func (r *userRepository) ExistsUsername(username string) (bool, error) {
	return r.exists("username = ?", username)
}

func (r *userRepository) ExistsEmail(email string) (bool, error) {
	return r.exists("email = ?", email)
}

func (r *userRepository) exists(cond string, arg interface{}) (bool, error) {
	var n int64
	if err := r.db.Model(&models.User{}).Where(cond, arg).Count(&n).Error; err != nil {
		return false, dbErr(err)
	}
	return n > 0, nil
}
