// Package surrealdb provides the SurrealDB implementation of the
// [github.com/relicarium/relicarium/pkg/store.Store] interface using native
// SurrealQL.
//
// # Marshaling
//
// The connection is configured with the surrealcbor codec so time.Time and
// the typed IDs marshal into SurrealDB's CBOR wire format. Typed IDs carry
// MarshalCBOR implementations that produce RecordIDs (CBOR tag 8), which
// means models can be passed to Create/Update/Query directly and foreign-key
// fields land as record links.
//
// # Consistency
//
// SurrealDB executes each statement atomically, and the two engagement
// primitives lean on that:
//
//   - UpdateArtifactEngagement is one conditional UPDATE guarded by the
//     revision token. A stale revision matches zero records; the caller
//     re-reads and retries.
//   - AppendComment is one UPSERT on the deterministic thread record ID,
//     appending to the comments array. Two concurrent first comments address
//     the same record, so the losing writer appends instead of creating a
//     second thread.
//
// All queries are parameterized ($param syntax); no user-provided value is
// ever interpolated into a query string.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/relicarium/relicarium/pkg/models"
	"github.com/relicarium/relicarium/pkg/store"
)

// SurrealStore implements the Store interface against a SurrealDB instance.
type SurrealStore struct {
	db       *surrealdb.DB
	ns       string
	database string
}

// New connects to SurrealDB at wsURL with the surrealcbor codec, signs in
// when credentials are provided, and selects the namespace/database pair.
func New(wsURL, namespace, database, username, password string) (*SurrealStore, error) {
	ctx := context.Background()

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)

	// The default codec mishandles time.Time and RecordID round-trips;
	// surrealcbor matches SurrealDB's internal CBOR format.
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	conn := gorillaws.New(conf)

	db, err := surrealdb.FromConnection(ctx, conn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if username != "" && password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": username,
			"pass": password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, namespace, database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealStore{db: db, ns: namespace, database: database}, nil
}

// Migrate defines the uniqueness index on comment_threads.artifact_id.
// Tables themselves are created implicitly on first insert; the index is the
// only schema element the engagement guarantees rely on, and DEFINE INDEX is
// idempotent with OVERWRITE.
func (s *SurrealStore) Migrate(ctx context.Context) error {
	stmt := "DEFINE INDEX OVERWRITE thread_artifact ON TABLE comment_threads COLUMNS artifact_id UNIQUE"
	if _, err := surrealdb.Query[any](ctx, s.db, stmt, nil); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

// Close closes the database connection
func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// handleNotFound maps the driver's "no result" errors to an absent document.
func handleNotFound(err error) error {
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "Expected a single or multiple results but got 0") ||
			strings.Contains(errStr, "cannot unmarshal array into Go value") {
			return nil
		}
	}
	return err
}

// unavailable wraps a driver failure into the store taxonomy. Anything the
// driver reports on a well-formed statement is a transport or server
// problem, which callers treat as transient.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
}

func (s *SurrealStore) CreateArtifact(ctx context.Context, artifact *models.Artifact) error {
	if artifact.ID.IsZero() {
		artifact.ID = models.NewArtifactID()
	}
	now := time.Now()
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = now
	}
	artifact.UpdatedAt = now
	artifact.ReactionCount = 0
	artifact.LikedBy = models.LikeEntries{}
	artifact.Revision = 0

	if _, err := surrealdb.Create[models.Artifact](ctx, s.db, artifact.ID.RecordID(), artifact); err != nil {
		return unavailable("create artifact", err)
	}
	return nil
}

func (s *SurrealStore) GetArtifact(ctx context.Context, id models.ArtifactID) (*models.Artifact, error) {
	artifact, err := surrealdb.Select[models.Artifact](ctx, s.db, id.RecordID())
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, unavailable("get artifact", err)
	}
	return artifact, nil
}

func (s *SurrealStore) UpdateArtifact(ctx context.Context, artifact *models.Artifact) error {
	existing, err := s.GetArtifact(ctx, artifact.ID)
	if err != nil {
		return err
	}
	if existing == nil {
		return store.ErrNotFound
	}

	// Descriptive fields only so a concurrent like toggle is never clobbered
	// by a metadata edit.
	query := `UPDATE $artifact SET
		name = $name,
		type = $type,
		image = $image,
		historical_context = $historical_context,
		discoverer = $discoverer,
		location = $location,
		discovered_at = $discovered_at,
		updated_at = $now`
	params := map[string]any{
		"artifact":           artifact.ID.RecordID(),
		"name":               artifact.Name,
		"type":               artifact.Type,
		"image":              artifact.Image,
		"historical_context": artifact.HistoricalContext,
		"discoverer":         artifact.Discoverer,
		"location":           artifact.Location,
		"discovered_at":      artifact.DiscoveredAt,
		"now":                time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return unavailable("update artifact", err)
	}
	return nil
}

func (s *SurrealStore) DeleteArtifact(ctx context.Context, id models.ArtifactID) error {
	if _, err := surrealdb.Delete[models.Artifact](ctx, s.db, id.RecordID()); err != nil {
		return unavailable("delete artifact", err)
	}
	// Engagement documents are cascaded here, not by the engine: the thread
	// and memberships have no meaning once the artifact is gone.
	cleanup := "DELETE like_memberships WHERE artifact_id = $artifact; DELETE $thread"
	params := map[string]any{
		"artifact": id.RecordID(),
		"thread":   models.ThreadIDForArtifact(id).RecordID(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, cleanup, params); err != nil {
		return unavailable("delete artifact engagement", err)
	}
	return nil
}

func (s *SurrealStore) ListArtifacts(ctx context.Context, name string) ([]*models.Artifact, error) {
	query := "SELECT * FROM artifacts ORDER BY created_at"
	params := map[string]any{}
	if name != "" {
		query = "SELECT * FROM artifacts WHERE string::contains(string::lowercase(name), string::lowercase($name)) ORDER BY created_at"
		params["name"] = name
	}

	result, err := surrealdb.Query[[]models.Artifact](ctx, s.db, query, params)
	if err != nil {
		return nil, unavailable("list artifacts", err)
	}

	artifacts := []*models.Artifact{}
	if result != nil && len(*result) > 0 {
		for i := range (*result)[0].Result {
			artifacts = append(artifacts, &(*result)[0].Result[i])
		}
	}
	return artifacts, nil
}

func (s *SurrealStore) UpdateArtifactEngagement(ctx context.Context, id models.ArtifactID, revision int64, likedBy models.LikeEntries, reactionCount int) (bool, error) {
	// Single conditional statement: the WHERE clause is the optimistic
	// concurrency check, RETURN AFTER tells us whether it matched.
	query := `UPDATE $artifact SET
		liked_by = $liked_by,
		reaction_count = $reaction_count,
		revision = revision + 1,
		updated_at = $now
	WHERE revision = $revision RETURN AFTER`
	params := map[string]any{
		"artifact":       id.RecordID(),
		"liked_by":       likedBy,
		"reaction_count": reactionCount,
		"revision":       revision,
		"now":            time.Now(),
	}

	result, err := surrealdb.Query[[]models.Artifact](ctx, s.db, query, params)
	if err != nil {
		return false, unavailable("update engagement", err)
	}
	matched := result != nil && len(*result) > 0 && len((*result)[0].Result) > 0
	return matched, nil
}

func (s *SurrealStore) PutLikeMembership(ctx context.Context, membership *models.LikeMembership) error {
	// UPSERT on the deterministic membership ID; ??= keeps the original
	// created_at when the record already exists.
	query := `UPSERT $membership SET
		artifact_id = $artifact,
		user_id = $user,
		created_at ??= $now`
	params := map[string]any{
		"membership": membership.ID.RecordID(),
		"artifact":   membership.ArtifactID.RecordID(),
		"user":       membership.UserID.RecordID(),
		"now":        time.Now(),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
		return unavailable("put membership", err)
	}
	return nil
}

func (s *SurrealStore) DeleteLikeMembership(ctx context.Context, artifactID models.ArtifactID, userID models.UserID) error {
	rid := models.MembershipIDFor(artifactID, userID).RecordID()
	if _, err := surrealdb.Delete[models.LikeMembership](ctx, s.db, rid); err != nil {
		return unavailable("delete membership", err)
	}
	return nil
}

func (s *SurrealStore) AppendComment(ctx context.Context, artifactID models.ArtifactID, comment models.Comment) (bool, error) {
	// One atomic UPSERT resolves the create-or-append race: both writers
	// address the same deterministic record, so the loser appends.
	query := `UPSERT $thread SET
		artifact_id = $artifact,
		comments += $comment,
		created_at ??= $now,
		updated_at = $now
	RETURN AFTER`
	params := map[string]any{
		"thread":   models.ThreadIDForArtifact(artifactID).RecordID(),
		"artifact": artifactID.RecordID(),
		"comment":  comment,
		"now":      time.Now(),
	}

	result, err := surrealdb.Query[[]models.CommentThread](ctx, s.db, query, params)
	if err != nil {
		return false, unavailable("append comment", err)
	}
	if result == nil || len(*result) == 0 || len((*result)[0].Result) == 0 {
		return false, unavailable("append comment", fmt.Errorf("upsert returned no document"))
	}
	return len((*result)[0].Result[0].Comments) == 1, nil
}

func (s *SurrealStore) GetCommentThread(ctx context.Context, artifactID models.ArtifactID) (*models.CommentThread, error) {
	rid := models.ThreadIDForArtifact(artifactID).RecordID()
	thread, err := surrealdb.Select[models.CommentThread](ctx, s.db, rid)
	if err != nil {
		if handleNotFound(err) == nil {
			return nil, nil
		}
		return nil, unavailable("get thread", err)
	}
	return thread, nil
}
