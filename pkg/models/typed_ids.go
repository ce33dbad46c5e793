package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Table names for the three logical collections plus the user identity space.
const (
	tableArtifacts       = "artifacts"
	tableUsers           = "users"
	tableLikeMemberships = "like_memberships"
	tableCommentThreads  = "comment_threads"
)

// ArtifactID is a typed ID for artifacts
type ArtifactID struct {
	uuid uuid.UUID
}

func NewArtifactID() ArtifactID {
	return ArtifactID{uuid: uuid.New()}
}

func NewArtifactIDFromUUID(id uuid.UUID) ArtifactID {
	return ArtifactID{uuid: id}
}

func ParseArtifactID(s string) (ArtifactID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ArtifactID{}, fmt.Errorf("invalid artifact ID: %w", err)
	}
	return ArtifactID{uuid: id}, nil
}

func (a ArtifactID) UUID() uuid.UUID { return a.uuid }
func (a ArtifactID) String() string  { return a.uuid.String() }
func (a ArtifactID) IsZero() bool    { return a.uuid == uuid.Nil }

func (a ArtifactID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: tableArtifacts,
		ID:    a.uuid.String(),
	}
}

func (a ArtifactID) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.uuid.String())
}

func (a *ArtifactID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	a.uuid = id
	return nil
}

func (a ArtifactID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{tableArtifacts, a.uuid.String()},
	})
}

func (a *ArtifactID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, tableArtifacts, &a.uuid)
}

func (a ArtifactID) Value() (driver.Value, error) {
	if a.IsZero() {
		return nil, nil
	}
	return a.uuid.String(), nil
}

func (a *ArtifactID) Scan(value any) error {
	return scanUUID(value, &a.uuid)
}

func (ArtifactID) GormDataType() string { return "uuid" }

// UserID is a typed ID for the users referenced by like memberships and
// comments. Users themselves are managed outside this service; the ID is the
// only part of the identity the engagement engine ever sees.
type UserID struct {
	uuid uuid.UUID
}

func NewUserID() UserID {
	return UserID{uuid: uuid.New()}
}

func NewUserIDFromUUID(id uuid.UUID) UserID {
	return UserID{uuid: id}
}

func ParseUserID(s string) (UserID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return UserID{}, fmt.Errorf("invalid user ID: %w", err)
	}
	return UserID{uuid: id}, nil
}

func (u UserID) UUID() uuid.UUID { return u.uuid }
func (u UserID) String() string  { return u.uuid.String() }
func (u UserID) IsZero() bool    { return u.uuid == uuid.Nil }

func (u UserID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: tableUsers,
		ID:    u.uuid.String(),
	}
}

func (u UserID) MarshalJSON() ([]byte, error) {
	return json.Marshal(u.uuid.String())
}

func (u *UserID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	u.uuid = id
	return nil
}

func (u UserID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{tableUsers, u.uuid.String()},
	})
}

func (u *UserID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, tableUsers, &u.uuid)
}

func (u UserID) Value() (driver.Value, error) {
	if u.IsZero() {
		return nil, nil
	}
	return u.uuid.String(), nil
}

func (u *UserID) Scan(value any) error {
	return scanUUID(value, &u.uuid)
}

func (UserID) GormDataType() string { return "uuid" }

// MembershipID is a typed ID for like membership records.
//
// Membership IDs are derived deterministically from the (artifact, user)
// pair, so inserting the membership for the same pair twice addresses the
// same record. That is what makes the membership upsert idempotent at the
// store level.
type MembershipID struct {
	uuid uuid.UUID
}

// MembershipIDFor derives the membership ID for an (artifact, user) pair.
// The derivation is a v5 UUID over both identifiers; the same pair always
// yields the same ID.
func MembershipIDFor(artifactID ArtifactID, userID UserID) MembershipID {
	name := artifactID.String() + "/" + userID.String()
	return MembershipID{uuid: uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))}
}

func ParseMembershipID(s string) (MembershipID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return MembershipID{}, fmt.Errorf("invalid membership ID: %w", err)
	}
	return MembershipID{uuid: id}, nil
}

func (m MembershipID) UUID() uuid.UUID { return m.uuid }
func (m MembershipID) String() string  { return m.uuid.String() }
func (m MembershipID) IsZero() bool    { return m.uuid == uuid.Nil }

func (m MembershipID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: tableLikeMemberships,
		ID:    m.uuid.String(),
	}
}

func (m MembershipID) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.uuid.String())
}

func (m *MembershipID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	m.uuid = id
	return nil
}

func (m MembershipID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{tableLikeMemberships, m.uuid.String()},
	})
}

func (m *MembershipID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, tableLikeMemberships, &m.uuid)
}

func (m MembershipID) Value() (driver.Value, error) {
	if m.IsZero() {
		return nil, nil
	}
	return m.uuid.String(), nil
}

func (m *MembershipID) Scan(value any) error {
	return scanUUID(value, &m.uuid)
}

func (MembershipID) GormDataType() string { return "uuid" }

// ThreadID is a typed ID for comment thread documents.
//
// A thread ID is the artifact's UUID reused in the comment_threads table.
// Two concurrent "first comment" writes therefore address the same record,
// which is what lets the store resolve the create-or-append race with a
// single upsert instead of risking two thread documents per artifact.
type ThreadID struct {
	uuid uuid.UUID
}

// ThreadIDForArtifact derives the one thread ID an artifact can ever have.
func ThreadIDForArtifact(artifactID ArtifactID) ThreadID {
	return ThreadID{uuid: artifactID.UUID()}
}

func ParseThreadID(s string) (ThreadID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return ThreadID{}, fmt.Errorf("invalid thread ID: %w", err)
	}
	return ThreadID{uuid: id}, nil
}

func (t ThreadID) UUID() uuid.UUID { return t.uuid }
func (t ThreadID) String() string  { return t.uuid.String() }
func (t ThreadID) IsZero() bool    { return t.uuid == uuid.Nil }

func (t ThreadID) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: tableCommentThreads,
		ID:    t.uuid.String(),
	}
}

func (t ThreadID) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.uuid.String())
}

func (t *ThreadID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	t.uuid = id
	return nil
}

func (t ThreadID) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{tableCommentThreads, t.uuid.String()},
	})
}

func (t *ThreadID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, tableCommentThreads, &t.uuid)
}

func (t ThreadID) Value() (driver.Value, error) {
	if t.IsZero() {
		return nil, nil
	}
	return t.uuid.String(), nil
}

func (t *ThreadID) Scan(value any) error {
	return scanUUID(value, &t.uuid)
}

func (ThreadID) GormDataType() string { return "uuid" }

// Helper functions

// scanUUID is a helper for implementing sql.Scanner interface for PostgreSQL/GORM
func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID is a helper for unmarshaling SurrealDB RecordID from CBOR.
// SurrealDB uses CBOR tag 8 to identify RecordID types in its binary protocol.
// The RecordID is encoded as [table_name, id_string] within the tag.
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	// Check if this is a CBOR tag (major type 6)
	majorType := data[0] >> 5
	if majorType != 6 {
		return fmt.Errorf("expected CBOR tag for RecordID, got major type %d", majorType)
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}

	// SurrealDB uses tag 8 for RecordID
	if tag.Number != 8 {
		return fmt.Errorf("expected RecordID tag (8), got %d", tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}

	table, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}

	if table != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, table)
	}

	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}

	parsedUUID, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid UUID in RecordID: %w", err)
	}

	*target = parsedUUID
	return nil
}
