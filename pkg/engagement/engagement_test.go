package engagement

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relicarium/relicarium/pkg/models"
	"github.com/relicarium/relicarium/pkg/store"
	"github.com/relicarium/relicarium/pkg/store/memory"
)

func newTestService(t *testing.T) (*Service, *memory.MemoryStore, models.ArtifactID) {
	t.Helper()
	st := memory.New()
	svc := NewService(st, zerolog.Nop())

	artifact := &models.Artifact{Name: "Antikythera Mechanism"}
	require.NoError(t, st.CreateArtifact(context.Background(), artifact))
	return svc, st, artifact.ID
}

func TestSetLikeAddsReaction(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()
	user := models.NewUserID()

	result, err := svc.SetLike(ctx, artifactID, user, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ReactionCount)
	assert.True(t, result.Liked)

	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, 1, artifact.ReactionCount)
	assert.True(t, artifact.LikeStateFor(user))
	assert.True(t, st.HasMembership(artifactID, user))
}

func TestSetLikeIsIdempotent(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()
	user := models.NewUserID()

	for i := 0; i < 3; i++ {
		result, err := svc.SetLike(ctx, artifactID, user, true)
		require.NoError(t, err)
		assert.Equal(t, 1, result.ReactionCount)
	}

	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, 1, artifact.ReactionCount)
	assert.Len(t, artifact.LikedBy, 1)
}

func TestSetLikeToggleIsSymmetric(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()
	user := models.NewUserID()

	_, err := svc.SetLike(ctx, artifactID, user, true)
	require.NoError(t, err)

	result, err := svc.SetLike(ctx, artifactID, user, false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ReactionCount)
	assert.False(t, result.Liked)

	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, 0, artifact.ReactionCount)
	assert.False(t, artifact.LikeStateFor(user))
	assert.False(t, st.HasMembership(artifactID, user))

	// The entry stays behind as an explicit unliked marker.
	assert.Len(t, artifact.LikedBy, 1)
}

func TestSetLikeUnlikeWithoutPriorLikeIsNoop(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()

	result, err := svc.SetLike(ctx, artifactID, models.NewUserID(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ReactionCount)

	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, 0, artifact.ReactionCount)
	assert.Empty(t, artifact.LikedBy)
}

func TestSetLikeNeverUnderflows(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()
	user := models.NewUserID()

	_, err := svc.SetLike(ctx, artifactID, user, true)
	require.NoError(t, err)

	// Unlike twice; the second unlike must not take the counter below zero.
	for i := 0; i < 2; i++ {
		result, err := svc.SetLike(ctx, artifactID, user, false)
		require.NoError(t, err)
		assert.Equal(t, 0, result.ReactionCount)
	}

	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, 0, artifact.ReactionCount)
}

func TestSetLikeDistinctUsersScenario(t *testing.T) {
	// Fixed walk-through: u1 likes, u1 repeats, u2 likes, u1 unlikes.
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()

	u1 := models.NewUserIDFromUUID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	u2 := models.NewUserIDFromUUID(uuid.MustParse("22222222-2222-2222-2222-222222222222"))

	result, err := svc.SetLike(ctx, artifactID, u1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ReactionCount)

	result, err = svc.SetLike(ctx, artifactID, u1, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ReactionCount)

	result, err = svc.SetLike(ctx, artifactID, u2, true)
	require.NoError(t, err)
	assert.Equal(t, 2, result.ReactionCount)

	result, err = svc.SetLike(ctx, artifactID, u1, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ReactionCount)

	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.False(t, artifact.LikeStateFor(u1))
	assert.True(t, artifact.LikeStateFor(u2))
	assert.False(t, st.HasMembership(artifactID, u1))
	assert.True(t, st.HasMembership(artifactID, u2))
}

func TestSetLikeConcurrentDistinctUsers(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := models.NewUserID()
			// Every goroutine retries on conflict until its like lands;
			// the engine's internal budget only bounds one call.
			for {
				_, err := svc.SetLike(ctx, artifactID, user, true)
				if err == nil {
					return
				}
				if !errors.Is(err, store.ErrConflict) {
					assert.NoError(t, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, n, artifact.ReactionCount)
	assert.Len(t, artifact.LikedBy, n)
}

func TestSetLikeConcurrentSameUser(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()
	user := models.NewUserID()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				_, err := svc.SetLike(ctx, artifactID, user, true)
				if err == nil {
					return
				}
				if !errors.Is(err, store.ErrConflict) {
					assert.NoError(t, err)
					return
				}
			}
		}()
	}
	wg.Wait()

	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, 1, artifact.ReactionCount)
	assert.Len(t, artifact.LikedBy, 1)
	assert.True(t, st.HasMembership(artifactID, user))
}

func TestSetLikeValidation(t *testing.T) {
	svc, _, artifactID := newTestService(t)
	ctx := context.Background()

	_, err := svc.SetLike(ctx, models.ArtifactID{}, models.NewUserID(), true)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = svc.SetLike(ctx, artifactID, models.UserID{}, true)
	assert.ErrorIs(t, err, store.ErrInvalidArgument)
}

func TestSetLikeMissingArtifact(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.SetLike(context.Background(), models.NewArtifactID(), models.NewUserID(), true)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// contendedStore reports a lost compare-and-set on every engagement write,
// simulating an artifact that is toggled faster than we can catch up.
type contendedStore struct {
	*memory.MemoryStore
	attempts int
}

func (s *contendedStore) UpdateArtifactEngagement(ctx context.Context, id models.ArtifactID, revision int64, likedBy models.LikeEntries, reactionCount int) (bool, error) {
	s.attempts++
	return false, nil
}

func TestSetLikeGivesUpAfterRetryBudget(t *testing.T) {
	st := &contendedStore{MemoryStore: memory.New()}
	svc := NewService(st, zerolog.Nop())
	ctx := context.Background()

	artifact := &models.Artifact{Name: "Rosetta Stone"}
	require.NoError(t, st.CreateArtifact(ctx, artifact))

	_, err := svc.SetLike(ctx, artifact.ID, models.NewUserID(), true)
	require.ErrorIs(t, err, store.ErrConflict)
	assert.Equal(t, maxSetLikeAttempts, st.attempts)
}

func TestSetLikeClampsCorruptedCounter(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()

	// Corrupt the counter directly through the engagement write.
	artifact, err := st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	matched, err := st.UpdateArtifactEngagement(ctx, artifactID, artifact.Revision, models.LikeEntries{}, -3)
	require.NoError(t, err)
	require.True(t, matched)

	result, err := svc.SetLike(ctx, artifactID, models.NewUserID(), false)
	require.NoError(t, err)
	assert.Equal(t, 0, result.ReactionCount)

	artifact, err = st.GetArtifact(ctx, artifactID)
	require.NoError(t, err)
	assert.Equal(t, 0, artifact.ReactionCount)
}

func TestAddCommentCreatesThreadOnFirstComment(t *testing.T) {
	svc, _, artifactID := newTestService(t)
	ctx := context.Background()

	created, err := svc.AddComment(ctx, artifactID, models.Comment{Author: "ada", Text: "remarkable gearing"})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.AddComment(ctx, artifactID, models.Comment{Author: "carl", Text: "agreed"})
	require.NoError(t, err)
	assert.False(t, created)

	comments, err := svc.GetThread(ctx, artifactID)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "ada", comments[0].Author)
	assert.Equal(t, "carl", comments[1].Author)
	assert.False(t, comments[0].CreatedAt.IsZero())
}

func TestAddCommentConcurrentSingleThread(t *testing.T) {
	svc, st, artifactID := newTestService(t)
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddComment(ctx, artifactID, models.Comment{Author: "bot", Text: "hello"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	thread, err := st.GetCommentThread(ctx, artifactID)
	require.NoError(t, err)
	require.NotNil(t, thread)
	assert.Len(t, thread.Comments, n)
	assert.Equal(t, models.ThreadIDForArtifact(artifactID), thread.ID)
}

func TestAddCommentValidation(t *testing.T) {
	svc, _, artifactID := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddComment(ctx, artifactID, models.Comment{Author: "", Text: "hi"})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = svc.AddComment(ctx, artifactID, models.Comment{Author: "ada", Text: "   "})
	assert.ErrorIs(t, err, store.ErrInvalidArgument)

	_, err = svc.AddComment(ctx, models.NewArtifactID(), models.Comment{Author: "ada", Text: "hi"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetThreadEmptyForUncommentedArtifact(t *testing.T) {
	svc, _, artifactID := newTestService(t)

	comments, err := svc.GetThread(context.Background(), artifactID)
	require.NoError(t, err)
	assert.NotNil(t, comments)
	assert.Empty(t, comments)
}

func TestGetThreadMissingArtifact(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.GetThread(context.Background(), models.NewArtifactID())
	assert.ErrorIs(t, err, store.ErrNotFound)
}
