// Package engagement implements the per-user like toggle and the comment
// thread append on top of the store abstraction.
//
// # Like toggle
//
// SetLike keeps two representations of the same fact consistent: the
// denormalized pair on the artifact (reaction_count plus the liked_by
// entries) and the normalized membership records. The artifact pair is
// written first through a compare-and-set on the artifact revision, then the
// membership record is reconciled to match. A crash between the two writes
// leaves a torn pair; because the membership reconcile also runs on no-op
// toggles, the next call for that (artifact, user) heals it.
//
// A lost compare-and-set means another toggle landed between our read and
// write. The engine re-reads and recomputes rather than blindly re-applying
// a delta, so a toggle that became a no-op after the interleaving (the other
// writer already put the user in the target state) stays a no-op. After
// maxSetLikeAttempts lost races the call gives up with ErrConflict.
//
// # Comments
//
// AddComment validates and stamps the comment, then delegates to the store's
// atomic create-or-append upsert. The engine never does a read-then-write on
// the thread, so there is no window in which a comment can be lost.
package engagement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/relicarium/relicarium/pkg/models"
	"github.com/relicarium/relicarium/pkg/store"
)

// maxSetLikeAttempts bounds the compare-and-set retry loop. Each attempt is
// a fresh read-modify-write; when all of them lose the race the caller gets
// ErrConflict and decides whether to retry.
const maxSetLikeAttempts = 3

// Service carries the engagement operations for a single store backend.
type Service struct {
	store store.Store
	log   zerolog.Logger
}

// NewService creates an engagement service on top of a store.
func NewService(s store.Store, log zerolog.Logger) *Service {
	return &Service{store: s, log: log}
}

// LikeResult is the outcome of a toggle: the counter after the write and the
// user's state as this call left it.
type LikeResult struct {
	ReactionCount int  `json:"reaction_count"`
	Liked         bool `json:"liked"`
}

// SetLike sets the user's like state on an artifact to liked.
//
// The operation is idempotent: repeating a call with the state the user is
// already in changes nothing and returns the current counter. The counter
// never goes below zero; an unlike against a corrupted negative counter
// clamps it to zero instead of decrementing further.
func (s *Service) SetLike(ctx context.Context, artifactID models.ArtifactID, userID models.UserID, liked bool) (*LikeResult, error) {
	if artifactID.IsZero() {
		return nil, fmt.Errorf("artifact id: %w", store.ErrInvalidArgument)
	}
	if userID.IsZero() {
		return nil, fmt.Errorf("user id: %w", store.ErrInvalidArgument)
	}

	for attempt := 0; attempt < maxSetLikeAttempts; attempt++ {
		artifact, err := s.store.GetArtifact(ctx, artifactID)
		if err != nil {
			return nil, err
		}
		if artifact == nil {
			return nil, fmt.Errorf("artifact %s: %w", artifactID, store.ErrNotFound)
		}

		if artifact.ReactionCount < 0 {
			s.log.Warn().
				Stringer("artifact", artifactID).
				Int("reaction_count", artifact.ReactionCount).
				Msg("negative reaction count, clamping to zero")
		}

		likedBy, count, changed := applyToggle(artifact, userID, liked)

		if !changed {
			// Already in the target state. Still reconcile the membership
			// record so a torn pair from an earlier crash gets healed.
			if err := s.reconcileMembership(ctx, artifactID, userID, liked); err != nil {
				return nil, err
			}
			return &LikeResult{ReactionCount: count, Liked: liked}, nil
		}

		matched, err := s.store.UpdateArtifactEngagement(ctx, artifactID, artifact.Revision, likedBy, count)
		if err != nil {
			return nil, err
		}
		if !matched {
			s.log.Debug().
				Stringer("artifact", artifactID).
				Stringer("user", userID).
				Int("attempt", attempt+1).
				Msg("like toggle lost revision race, retrying")
			continue
		}

		if err := s.reconcileMembership(ctx, artifactID, userID, liked); err != nil {
			return nil, err
		}
		return &LikeResult{ReactionCount: count, Liked: liked}, nil
	}

	return nil, fmt.Errorf("like toggle on %s contended %d times: %w",
		artifactID, maxSetLikeAttempts, store.ErrConflict)
}

// applyToggle computes the artifact's engagement fields after setting the
// user's state to liked. It returns the new liked_by entries, the new
// counter, and whether anything actually changed.
func applyToggle(artifact *models.Artifact, userID models.UserID, liked bool) (models.LikeEntries, int, bool) {
	count := artifact.ReactionCount
	if count < 0 {
		// Corrupted counter, clamp before computing the delta so an unlike
		// cannot push it further down.
		count = 0
	}

	likedBy := append(models.LikeEntries{}, artifact.LikedBy...)
	idx := -1
	for i := range likedBy {
		if likedBy[i].UserID == userID {
			idx = i
			break
		}
	}

	switch {
	case idx == -1 && liked:
		likedBy = append(likedBy, models.LikeEntry{UserID: userID, Liked: true})
		return likedBy, count + 1, true
	case idx == -1 && !liked:
		// Unlike by a user with no entry: nothing to do, counter untouched.
		return likedBy, count, count != artifact.ReactionCount
	case likedBy[idx].Liked == liked:
		return likedBy, count, count != artifact.ReactionCount
	case liked:
		likedBy[idx].Liked = true
		return likedBy, count + 1, true
	default:
		likedBy[idx].Liked = false
		if count > 0 {
			count--
		}
		return likedBy, count, true
	}
}

// reconcileMembership makes the normalized membership collection agree with
// the user's like state on the artifact.
func (s *Service) reconcileMembership(ctx context.Context, artifactID models.ArtifactID, userID models.UserID, liked bool) error {
	if liked {
		return s.store.PutLikeMembership(ctx, &models.LikeMembership{
			ID:         models.MembershipIDFor(artifactID, userID),
			ArtifactID: artifactID,
			UserID:     userID,
		})
	}
	return s.store.DeleteLikeMembership(ctx, artifactID, userID)
}

// AddComment appends a comment to the artifact's thread, creating the thread
// on first comment. Returns whether a new thread was created.
func (s *Service) AddComment(ctx context.Context, artifactID models.ArtifactID, comment models.Comment) (bool, error) {
	if artifactID.IsZero() {
		return false, fmt.Errorf("artifact id: %w", store.ErrInvalidArgument)
	}
	if strings.TrimSpace(comment.Author) == "" {
		return false, fmt.Errorf("comment author: %w", store.ErrInvalidArgument)
	}
	if strings.TrimSpace(comment.Text) == "" {
		return false, fmt.Errorf("comment text: %w", store.ErrInvalidArgument)
	}

	artifact, err := s.store.GetArtifact(ctx, artifactID)
	if err != nil {
		return false, err
	}
	if artifact == nil {
		return false, fmt.Errorf("artifact %s: %w", artifactID, store.ErrNotFound)
	}

	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
	}

	created, err := s.store.AppendComment(ctx, artifactID, comment)
	if err != nil {
		return false, err
	}
	if created {
		s.log.Debug().Stringer("artifact", artifactID).Msg("comment thread created")
	}
	return created, nil
}

// GetThread returns the artifact's comments in append order. An artifact
// with no comments yet yields an empty slice, not an error, as long as the
// artifact itself exists.
func (s *Service) GetThread(ctx context.Context, artifactID models.ArtifactID) ([]models.Comment, error) {
	if artifactID.IsZero() {
		return nil, fmt.Errorf("artifact id: %w", store.ErrInvalidArgument)
	}

	artifact, err := s.store.GetArtifact(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if artifact == nil {
		return nil, fmt.Errorf("artifact %s: %w", artifactID, store.ErrNotFound)
	}

	thread, err := s.store.GetCommentThread(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return []models.Comment{}, nil
	}
	return thread.Comments, nil
}
