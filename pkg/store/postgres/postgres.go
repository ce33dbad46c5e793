// Package postgres provides the PostgreSQL implementation of the
// [github.com/relicarium/relicarium/pkg/store.Store] interface using GORM.
//
// The embedded collections (liked_by, comments) are stored as JSONB columns;
// the like membership and comment thread documents map to their own tables.
// The engagement guarantees are carried by plain relational building blocks:
//
//   - UpdateArtifactEngagement issues an UPDATE guarded by
//     "WHERE revision = ?" and checks RowsAffected, giving compare-and-set
//     semantics without explicit locking.
//   - AppendComment runs in a transaction that takes a row lock on the
//     thread (SELECT ... FOR UPDATE). First comments insert with
//     ON CONFLICT DO NOTHING against the unique artifact_id index; a losing
//     concurrent insert reloads the winner's row and appends.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/relicarium/relicarium/pkg/models"
	"github.com/relicarium/relicarium/pkg/store"
)

// PostgresStore implements the Store interface using PostgreSQL with GORM.
type PostgresStore struct {
	db *gorm.DB
}

// New opens a PostgreSQL connection from a DSN.
func New(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Migrate creates or updates the artifacts, like_memberships and
// comment_threads tables, including the unique indexes the engagement
// guarantees rely on. Safe to run repeatedly.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(
		&models.Artifact{},
		&models.LikeMembership{},
		&models.CommentThread{},
	)
	if err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, store.ErrUnavailable, err)
}

func (s *PostgresStore) CreateArtifact(ctx context.Context, artifact *models.Artifact) error {
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

	if err := s.db.WithContext(ctx).Create(artifact).Error; err != nil {
		return unavailable("create artifact", err)
	}
	return nil
}

func (s *PostgresStore) GetArtifact(ctx context.Context, id models.ArtifactID) (*models.Artifact, error) {
	var artifact models.Artifact
	err := s.db.WithContext(ctx).First(&artifact, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get artifact", err)
	}
	return &artifact, nil
}

func (s *PostgresStore) UpdateArtifact(ctx context.Context, artifact *models.Artifact) error {
	// Descriptive columns only; the engagement columns belong to the like
	// toggle engine and its revision guard.
	res := s.db.WithContext(ctx).Model(&models.Artifact{}).
		Where("id = ?", artifact.ID).
		Updates(map[string]any{
			"name":               artifact.Name,
			"type":               artifact.Type,
			"image":              artifact.Image,
			"historical_context": artifact.HistoricalContext,
			"discoverer":         artifact.Discoverer,
			"location":           artifact.Location,
			"discovered_at":      artifact.DiscoveredAt,
			"updated_at":         time.Now(),
		})
	if res.Error != nil {
		return unavailable("update artifact", res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteArtifact(ctx context.Context, id models.ArtifactID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.Artifact{}, "id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.LikeMembership{}, "artifact_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.CommentThread{}, "artifact_id = ?", id).Error
	})
	if err != nil {
		return unavailable("delete artifact", err)
	}
	return nil
}

func (s *PostgresStore) ListArtifacts(ctx context.Context, name string) ([]*models.Artifact, error) {
	q := s.db.WithContext(ctx).Model(&models.Artifact{}).Order("created_at")
	if name != "" {
		q = q.Where("name ILIKE ?", "%"+name+"%")
	}
	artifacts := []*models.Artifact{}
	if err := q.Find(&artifacts).Error; err != nil {
		return nil, unavailable("list artifacts", err)
	}
	return artifacts, nil
}

func (s *PostgresStore) UpdateArtifactEngagement(ctx context.Context, id models.ArtifactID, revision int64, likedBy models.LikeEntries, reactionCount int) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Artifact{}).
		Where("id = ? AND revision = ?", id, revision).
		Updates(map[string]any{
			"liked_by":       likedBy,
			"reaction_count": reactionCount,
			"revision":       revision + 1,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return false, unavailable("update engagement", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *PostgresStore) PutLikeMembership(ctx context.Context, membership *models.LikeMembership) error {
	m := *membership
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	// Deterministic primary key makes this an idempotent insert.
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&m).Error
	if err != nil {
		return unavailable("put membership", err)
	}
	return nil
}

func (s *PostgresStore) DeleteLikeMembership(ctx context.Context, artifactID models.ArtifactID, userID models.UserID) error {
	err := s.db.WithContext(ctx).
		Delete(&models.LikeMembership{}, "artifact_id = ? AND user_id = ?", artifactID, userID).Error
	if err != nil {
		return unavailable("delete membership", err)
	}
	return nil
}

func (s *PostgresStore) AppendComment(ctx context.Context, artifactID models.ArtifactID, comment models.Comment) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		var thread models.CommentThread
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&thread, "artifact_id = ?", artifactID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			thread = models.CommentThread{
				ID:         models.ThreadIDForArtifact(artifactID),
				ArtifactID: artifactID,
				Comments:   models.Comments{comment},
				CreatedAt:  now,
				UpdatedAt:  now,
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&thread)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				created = true
				return nil
			}
			// Lost the insert race; the winner's row exists now, so lock
			// it and fall through to the append path.
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				First(&thread, "artifact_id = ?", artifactID).Error; err != nil {
				return err
			}
			thread.Comments = append(thread.Comments, comment)
		} else if err != nil {
			return err
		} else {
			thread.Comments = append(thread.Comments, comment)
		}

		return tx.Model(&models.CommentThread{}).
			Where("id = ?", thread.ID).
			Updates(map[string]any{
				"comments":   thread.Comments,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return false, unavailable("append comment", err)
	}
	return created, nil
}

func (s *PostgresStore) GetCommentThread(ctx context.Context, artifactID models.ArtifactID) (*models.CommentThread, error) {
	var thread models.CommentThread
	err := s.db.WithContext(ctx).First(&thread, "artifact_id = ?", artifactID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, unavailable("get thread", err)
	}
	return &thread, nil
}
