package services

import (
	"fmt"

	"postvote/app/models"
	"postvote/app/repositories"
)

// castVote records voter's choice on post. It must run inside an Atomic
// unit so the lookup and the write see the same state.
//
//   - no vote yet: a vote is created
//   - same choice again: the vote is rejected as a duplicate
//   - other choice: the existing vote is switched in place
//
// A unique-index rejection surfaces as repositories.ErrConflict so the
// store can replay the unit against the winner's vote.
func castVote(r repositories.Repos, post *models.Post, voter models.UserID, choice models.Choice) error {
	if !choice.Valid() {
		return invalid("choice", fmt.Sprintf("must be one of: %s %s", models.Like, models.Dislike))
	}

	existing, found, err := r.Votes.Find(post.ID, voter)
	if err != nil {
		return err
	}

	if !found {
		vote := &models.Vote{Choice: choice, PostID: post.ID, VotedBy: voter}
		if err := vote.Validate(); err != nil {
			return fieldErrors(err)
		}
		return r.Votes.Create(vote)
	}

	if existing.Choice == choice {
		return duplicateVote(choice)
	}
	existing.Choice = choice
	return r.Votes.UpdateChoice(&existing)
}

func tally(r repositories.Repos, postID int) (models.Tally, error) {
	return r.Votes.Tally(postID)
}
