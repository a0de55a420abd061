package services

import "postvote/app/models"

// The guard functions decide whether an identity may act on a post. They
// touch no state and run before any mutation.

func CanCreate(identity models.Identity) error {
	if identity.IsAnonymous() {
		return ErrUnauthorized
	}
	return nil
}

func CanDelete(post *models.Post, identity models.Identity) error {
	if !post.OwnedBy(identity.ID) {
		return forbidden("you cannot delete this post")
	}
	return nil
}

func CanUpdate(post *models.Post, identity models.Identity) error {
	if !post.OwnedBy(identity.ID) {
		return forbidden("you cannot edit this post")
	}
	return nil
}

func CanVote(post *models.Post, identity models.Identity) error {
	if post.OwnedBy(identity.ID) {
		return forbidden("you cannot vote your own post")
	}
	return nil
}
