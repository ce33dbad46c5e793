package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// LikeEntry records one user's current like state on an artifact. Entries are
// unique by UserID within an artifact's LikedBy collection; an entry with
// Liked == false is an explicit "was liked, then unliked" marker rather than
// a deleted row, which keeps the toggle history auditable.
type LikeEntry struct {
	UserID UserID `json:"user_id"`
	Liked  bool   `json:"liked"`
}

// LikeEntries is the LikedBy collection. It carries its own SQL marshaling so
// PostgreSQL can store it as a JSONB column while SurrealDB stores it as a
// native array.
type LikeEntries []LikeEntry

// Value implements the driver.Valuer interface for database storage
func (e LikeEntries) Value() (driver.Value, error) {
	if e == nil {
		return json.Marshal(LikeEntries{})
	}
	return json.Marshal(e)
}

// Scan implements the sql.Scanner interface for database retrieval
func (e *LikeEntries) Scan(value any) error {
	if value == nil {
		*e = LikeEntries{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("cannot scan type %T into LikeEntries", value)
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, e)
}

func (LikeEntries) GormDataType() string { return "jsonb" }

// Artifact is a catalog record for a historical item. The descriptive fields
// are owned by the CRUD layer and treated as opaque by the engagement engine;
// ReactionCount, LikedBy and Revision are owned exclusively by the like
// toggle engine.
//
// Invariant: ReactionCount equals the number of LikedBy entries with
// Liked == true. The invariant is maintained by guarding every engagement
// write with Revision, an optimistic concurrency token that is bumped on each
// successful engagement update and compared on write.
type Artifact struct {
	ID                ArtifactID  `gorm:"type:uuid;primary_key" json:"id"`
	Name              string      `gorm:"not null;index" json:"name"`
	Type              string      `json:"type,omitempty"`
	Image             string      `json:"image,omitempty"`
	HistoricalContext string      `json:"historical_context,omitempty"`
	Discoverer        string      `json:"discoverer,omitempty"`
	Location          string      `json:"location,omitempty"`
	DiscoveredAt      *time.Time  `json:"discovered_at,omitempty"`
	ReactionCount     int         `gorm:"not null;default:0" json:"reaction_count"`
	LikedBy           LikeEntries `gorm:"type:jsonb" json:"liked_by"`
	Revision          int64       `gorm:"not null;default:0" json:"revision"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// LikeStateFor reports the current liked state recorded for a user.
func (a *Artifact) LikeStateFor(userID UserID) bool {
	for _, e := range a.LikedBy {
		if e.UserID == userID {
			return e.Liked
		}
	}
	return false
}

// LikeMembership asserts that a specific user currently likes a specific
// artifact. Existence of the record is authoritative. The ID is derived from
// the (artifact, user) pair via MembershipIDFor, so repeated inserts for the
// same pair are idempotent. Written only by the like toggle engine.
type LikeMembership struct {
	ID         MembershipID `gorm:"type:uuid;primary_key" json:"id"`
	ArtifactID ArtifactID   `gorm:"type:uuid;not null;index:idx_membership_pair,unique" json:"artifact_id"`
	UserID     UserID       `gorm:"type:uuid;not null;index:idx_membership_pair,unique" json:"user_id"`
	CreatedAt  time.Time    `json:"created_at"`
}

// Comment is one entry in an artifact's comment thread. The payload is
// validated for presence only; author and text carry whatever the caller
// submitted.
type Comment struct {
	Author    string    `json:"author"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// Comments is the ordered, append-only comment log. Like LikeEntries it
// marshals to JSONB for PostgreSQL.
type Comments []Comment

// Value implements the driver.Valuer interface for database storage
func (c Comments) Value() (driver.Value, error) {
	if c == nil {
		return json.Marshal(Comments{})
	}
	return json.Marshal(c)
}

// Scan implements the sql.Scanner interface for database retrieval
func (c *Comments) Scan(value any) error {
	if value == nil {
		*c = Comments{}
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("cannot scan type %T into Comments", value)
		}
		bytes = []byte(s)
	}
	return json.Unmarshal(bytes, c)
}

func (Comments) GormDataType() string { return "jsonb" }

// CommentThread is the ordered append-only log of comments for one artifact.
// At most one thread exists per artifact: the thread ID is derived from the
// artifact ID (ThreadIDForArtifact) and the ArtifactID column carries a
// unique index. Threads are created lazily on the first comment and are never
// deleted by the engagement engine.
type CommentThread struct {
	ID         ThreadID   `gorm:"type:uuid;primary_key" json:"id"`
	ArtifactID ArtifactID `gorm:"type:uuid;not null;uniqueIndex" json:"artifact_id"`
	Comments   Comments   `gorm:"type:jsonb" json:"comments"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
