// Package store provides the data persistence layer abstraction for the
// relicarium catalog service.
//
// The package defines the [Store] interface over three logical collections
// (artifacts, like_memberships and comment_threads) together with the error
// taxonomy every implementation maps its failures onto. Three backends
// implement it:
//
//   - [github.com/relicarium/relicarium/pkg/store/surrealdb.SurrealStore]:
//     SurrealDB via native SurrealQL with the surrealcbor codec
//   - [github.com/relicarium/relicarium/pkg/store/postgres.PostgresStore]:
//     PostgreSQL via GORM with JSONB columns for the embedded collections
//   - [github.com/relicarium/relicarium/pkg/store/memory.MemoryStore]:
//     in-process maps behind a mutex, used by tests and the memory run mode
//
// # Consistency primitives
//
// Besides plain CRUD the interface carries the two primitives the engagement
// engine is built on:
//
//   - UpdateArtifactEngagement is a compare-and-set write: it replaces the
//     artifact's engagement fields only if the revision the caller read is
//     still current, and reports whether it matched. The engine retries from
//     a fresh read when it did not.
//   - AppendComment is an atomic create-or-append upsert on the thread
//     keyed by the artifact. Implementations must guarantee that two
//     concurrent first comments cannot produce two thread documents; the
//     losing insert becomes an append.
//
// The store provides per-document atomicity only. No multi-document
// transaction is assumed, which is why the engine orders the counter write
// before the membership write and heals a torn pair on the next toggle.
package store

import (
	"context"

	"github.com/relicarium/relicarium/pkg/models"
)

// Store is the document store adapter consumed by the HTTP layer and the
// engagement engine.
//
// Get methods return nil without error for missing documents. List methods
// return empty slices for no results, never nil. All methods accept a
// context and respect its deadline; a deadline expiry aborts the single
// store call without partial internal retries.
type Store interface {
	// CreateArtifact persists a new artifact. A zero ID is assigned; the
	// engagement fields are initialized (count 0, empty liked_by,
	// revision 0) regardless of what the caller supplied, since those
	// fields are owned by the like toggle engine.
	CreateArtifact(ctx context.Context, artifact *models.Artifact) error

	// GetArtifact retrieves an artifact by ID, or nil if absent.
	GetArtifact(ctx context.Context, id models.ArtifactID) (*models.Artifact, error)

	// UpdateArtifact replaces the artifact's descriptive fields. The
	// engagement-owned fields (reaction_count, liked_by, revision) are
	// never touched by this method.
	UpdateArtifact(ctx context.Context, artifact *models.Artifact) error

	// DeleteArtifact removes an artifact along with its comment thread and
	// like memberships.
	DeleteArtifact(ctx context.Context, id models.ArtifactID) error

	// ListArtifacts returns artifacts ordered by creation time. When name
	// is non-empty only artifacts whose name contains it
	// (case-insensitive) are returned.
	ListArtifacts(ctx context.Context, name string) ([]*models.Artifact, error)

	// UpdateArtifactEngagement conditionally writes the engagement fields.
	// The write applies only when the stored revision still equals
	// revision; on success the stored revision is incremented. Returns
	// whether the conditional matched. A non-match is not an error; it is
	// the signal to re-read and retry.
	UpdateArtifactEngagement(ctx context.Context, id models.ArtifactID, revision int64, likedBy models.LikeEntries, reactionCount int) (bool, error)

	// PutLikeMembership idempotently upserts a membership record. A
	// pre-existing record for the same (artifact, user) pair is left
	// untouched.
	PutLikeMembership(ctx context.Context, membership *models.LikeMembership) error

	// DeleteLikeMembership removes the membership record for the pair.
	// Deleting an absent record is not an error.
	DeleteLikeMembership(ctx context.Context, artifactID models.ArtifactID, userID models.UserID) error

	// AppendComment appends a comment to the artifact's thread, creating
	// the thread if this is the first comment. The create-or-append is
	// atomic with respect to concurrent calls for the same artifact.
	// Returns true when a new thread document was created.
	AppendComment(ctx context.Context, artifactID models.ArtifactID, comment models.Comment) (created bool, err error)

	// GetCommentThread retrieves the thread for an artifact, or nil when no
	// comment has been added yet.
	GetCommentThread(ctx context.Context, artifactID models.ArtifactID) (*models.CommentThread, error)

	// Migrate initializes or updates the backend schema. Idempotent.
	Migrate(ctx context.Context) error

	// Close releases backend connections. Safe to call more than once.
	Close() error
}
