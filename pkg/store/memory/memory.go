// Package memory provides an in-process implementation of the
// [github.com/relicarium/relicarium/pkg/store.Store] interface.
//
// It exists for unit tests and for running the service without external
// dependencies. The semantics match the database backends: the engagement
// write is a compare-and-set on the artifact revision, the comment upsert is
// atomic, and every read hands out a deep copy so no caller ever holds a
// live reference into the store between requests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/relicarium/relicarium/pkg/models"
	"github.com/relicarium/relicarium/pkg/store"
)

// MemoryStore keeps all three collections in maps behind a single mutex.
// Per-document atomicity falls out of the lock; there are no multi-document
// transactions, same as the database backends.
type MemoryStore struct {
	mu          sync.Mutex
	artifacts   map[models.ArtifactID]*models.Artifact
	memberships map[models.MembershipID]*models.LikeMembership
	threads     map[models.ArtifactID]*models.CommentThread
}

// New creates an empty in-memory store.
func New() *MemoryStore {
	return &MemoryStore{
		artifacts:   make(map[models.ArtifactID]*models.Artifact),
		memberships: make(map[models.MembershipID]*models.LikeMembership),
		threads:     make(map[models.ArtifactID]*models.CommentThread),
	}
}

func (s *MemoryStore) CreateArtifact(ctx context.Context, artifact *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if artifact.ID.IsZero() {
		artifact.ID = models.NewArtifactID()
	}
	now := time.Now()
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = now
	}
	artifact.UpdatedAt = now

	// Engagement fields are engine-owned; start from a clean slate.
	artifact.ReactionCount = 0
	artifact.LikedBy = models.LikeEntries{}
	artifact.Revision = 0

	s.artifacts[artifact.ID] = cloneArtifact(artifact)
	return nil
}

func (s *MemoryStore) GetArtifact(ctx context.Context, id models.ArtifactID) (*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, ok := s.artifacts[id]
	if !ok {
		return nil, nil
	}
	return cloneArtifact(artifact), nil
}

func (s *MemoryStore) UpdateArtifact(ctx context.Context, artifact *models.Artifact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.artifacts[artifact.ID]
	if !ok {
		return store.ErrNotFound
	}

	// Descriptive fields only; engagement fields stay engine-owned.
	existing.Name = artifact.Name
	existing.Type = artifact.Type
	existing.Image = artifact.Image
	existing.HistoricalContext = artifact.HistoricalContext
	existing.Discoverer = artifact.Discoverer
	existing.Location = artifact.Location
	existing.DiscoveredAt = artifact.DiscoveredAt
	existing.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) DeleteArtifact(ctx context.Context, id models.ArtifactID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.artifacts, id)
	delete(s.threads, id)
	for mid, m := range s.memberships {
		if m.ArtifactID == id {
			delete(s.memberships, mid)
		}
	}
	return nil
}

func (s *MemoryStore) ListArtifacts(ctx context.Context, name string) ([]*models.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	needle := strings.ToLower(name)
	artifacts := make([]*models.Artifact, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		if needle != "" && !strings.Contains(strings.ToLower(a.Name), needle) {
			continue
		}
		artifacts = append(artifacts, cloneArtifact(a))
	}
	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.Before(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

func (s *MemoryStore) UpdateArtifactEngagement(ctx context.Context, id models.ArtifactID, revision int64, likedBy models.LikeEntries, reactionCount int) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	artifact, ok := s.artifacts[id]
	if !ok {
		return false, nil
	}
	if artifact.Revision != revision {
		return false, nil
	}

	artifact.LikedBy = append(models.LikeEntries{}, likedBy...)
	artifact.ReactionCount = reactionCount
	artifact.Revision = revision + 1
	artifact.UpdatedAt = time.Now()
	return true, nil
}

func (s *MemoryStore) PutLikeMembership(ctx context.Context, membership *models.LikeMembership) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.memberships[membership.ID]; exists {
		return nil
	}
	m := *membership
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	s.memberships[m.ID] = &m
	return nil
}

func (s *MemoryStore) DeleteLikeMembership(ctx context.Context, artifactID models.ArtifactID, userID models.UserID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.memberships, models.MembershipIDFor(artifactID, userID))
	return nil
}

func (s *MemoryStore) AppendComment(ctx context.Context, artifactID models.ArtifactID, comment models.Comment) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	thread, ok := s.threads[artifactID]
	if !ok {
		s.threads[artifactID] = &models.CommentThread{
			ID:         models.ThreadIDForArtifact(artifactID),
			ArtifactID: artifactID,
			Comments:   models.Comments{comment},
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		return true, nil
	}
	thread.Comments = append(thread.Comments, comment)
	thread.UpdatedAt = now
	return false, nil
}

func (s *MemoryStore) GetCommentThread(ctx context.Context, artifactID models.ArtifactID) (*models.CommentThread, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	thread, ok := s.threads[artifactID]
	if !ok {
		return nil, nil
	}
	return cloneThread(thread), nil
}

// Migrate is a no-op for the in-memory backend.
func (s *MemoryStore) Migrate(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory backend.
func (s *MemoryStore) Close() error { return nil }

// HasMembership reports whether a membership record exists for the pair.
// Only tests use this; the membership collection is write-only for every
// other component.
func (s *MemoryStore) HasMembership(artifactID models.ArtifactID, userID models.UserID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.memberships[models.MembershipIDFor(artifactID, userID)]
	return ok
}

func cloneArtifact(a *models.Artifact) *models.Artifact {
	clone := *a
	clone.LikedBy = append(models.LikeEntries{}, a.LikedBy...)
	if a.DiscoveredAt != nil {
		t := *a.DiscoveredAt
		clone.DiscoveredAt = &t
	}
	return &clone
}

func cloneThread(t *models.CommentThread) *models.CommentThread {
	clone := *t
	clone.Comments = append(models.Comments{}, t.Comments...)
	return &clone
}
