package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	surrealdb_models "github.com/surrealdb/surrealdb.go/pkg/models"
)

// table binds an ID to the table its records live in.
type table interface {
	tableName() string
	label() string
}

type (
	readerTable       struct{}
	publicationTable  struct{}
	attributionTable  struct{}
	noteTable         struct{}
	tagTable          struct{}
	notebookTable     struct{}
	documentTable     struct{}
	collaboratorTable struct{}
	readActivityTable struct{}
	activityTable     struct{}
)

func (readerTable) tableName() string       { return "readers" }
func (readerTable) label() string           { return "reader" }
func (publicationTable) tableName() string  { return "publications" }
func (publicationTable) label() string      { return "publication" }
func (attributionTable) tableName() string  { return "attributions" }
func (attributionTable) label() string      { return "attribution" }
func (noteTable) tableName() string         { return "notes" }
func (noteTable) label() string             { return "note" }
func (tagTable) tableName() string          { return "tags" }
func (tagTable) label() string              { return "tag" }
func (notebookTable) tableName() string     { return "notebooks" }
func (notebookTable) label() string         { return "notebook" }
func (documentTable) tableName() string     { return "documents" }
func (documentTable) label() string         { return "document" }
func (collaboratorTable) tableName() string { return "collaborators" }
func (collaboratorTable) label() string     { return "collaborator" }
func (readActivityTable) tableName() string { return "read_activities" }
func (readActivityTable) label() string     { return "read activity" }
func (activityTable) tableName() string     { return "activities" }
func (activityTable) label() string         { return "activity" }

// ID is a UUID that knows, at compile time, which table it points into.
//
// The same value works as a PostgreSQL uuid column (driver.Valuer / sql.Scanner),
// as a SurrealDB RecordID (CBOR tag 8) and as a plain string in JSON.
type ID[T table] struct {
	uuid uuid.UUID
}

type (
	ReaderID       = ID[readerTable]
	PublicationID  = ID[publicationTable]
	AttributionID  = ID[attributionTable]
	NoteID         = ID[noteTable]
	TagID          = ID[tagTable]
	NotebookID     = ID[notebookTable]
	DocumentID     = ID[documentTable]
	CollaboratorID = ID[collaboratorTable]
	ReadActivityID = ID[readActivityTable]
	ActivityID     = ID[activityTable]
)

func newID[T table]() ID[T] {
	return ID[T]{uuid: uuid.New()}
}

func parseID[T table](s string) (ID[T], error) {
	id, err := uuid.Parse(s)
	if err != nil {
		var t T
		return ID[T]{}, fmt.Errorf("invalid %s ID: %w", t.label(), err)
	}
	return ID[T]{uuid: id}, nil
}

func NewReaderID() ReaderID             { return newID[readerTable]() }
func NewPublicationID() PublicationID   { return newID[publicationTable]() }
func NewAttributionID() AttributionID   { return newID[attributionTable]() }
func NewNoteID() NoteID                 { return newID[noteTable]() }
func NewTagID() TagID                   { return newID[tagTable]() }
func NewNotebookID() NotebookID         { return newID[notebookTable]() }
func NewDocumentID() DocumentID         { return newID[documentTable]() }
func NewCollaboratorID() CollaboratorID { return newID[collaboratorTable]() }
func NewReadActivityID() ReadActivityID { return newID[readActivityTable]() }
func NewActivityID() ActivityID         { return newID[activityTable]() }

func ParseReaderID(s string) (ReaderID, error)             { return parseID[readerTable](s) }
func ParsePublicationID(s string) (PublicationID, error)   { return parseID[publicationTable](s) }
func ParseNoteID(s string) (NoteID, error)                 { return parseID[noteTable](s) }
func ParseTagID(s string) (TagID, error)                   { return parseID[tagTable](s) }
func ParseNotebookID(s string) (NotebookID, error)         { return parseID[notebookTable](s) }
func ParseDocumentID(s string) (DocumentID, error)         { return parseID[documentTable](s) }
func ParseCollaboratorID(s string) (CollaboratorID, error) { return parseID[collaboratorTable](s) }
func ParseReadActivityID(s string) (ReadActivityID, error) { return parseID[readActivityTable](s) }
func ParseActivityID(s string) (ActivityID, error)         { return parseID[activityTable](s) }

func (i ID[T]) UUID() uuid.UUID { return i.uuid }
func (i ID[T]) String() string  { return i.uuid.String() }
func (i ID[T]) IsZero() bool    { return i.uuid == uuid.Nil }

// Table returns the table name the ID belongs to.
func (i ID[T]) Table() string {
	var t T
	return t.tableName()
}

func (i ID[T]) RecordID() surrealdb_models.RecordID {
	return surrealdb_models.RecordID{
		Table: i.Table(),
		ID:    i.uuid.String(),
	}
}

func (i ID[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.uuid.String())
}

func (i *ID[T]) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		i.uuid = uuid.Nil
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	i.uuid = id
	return nil
}

func (i ID[T]) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(cbor.Tag{
		Number:  8,
		Content: []any{i.Table(), i.uuid.String()},
	})
}

func (i *ID[T]) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, i.Table(), &i.uuid)
}

func (i ID[T]) Value() (driver.Value, error) {
	if i.IsZero() {
		return nil, nil
	}
	return i.uuid.String(), nil
}

func (i *ID[T]) Scan(value any) error {
	return scanUUID(value, &i.uuid)
}

func (ID[T]) GormDataType() string { return "uuid" }

// scanUUID implements sql.Scanner for uuid columns.
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
	case [16]byte:
		*target = uuid.UUID(v)
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// unmarshalCBORID decodes a SurrealDB RecordID (CBOR tag 8 wrapping
// [table, id]) and checks that it points into the expected table.
func unmarshalCBORID(data []byte, expectedTable string, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	if majorType := data[0] >> 5; majorType != 6 {
		return fmt.Errorf("expected CBOR tag for RecordID, got major type %d", majorType)
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != 8 {
		return fmt.Errorf("expected RecordID tag (8), got %d", tag.Number)
	}

	arr, ok := tag.Content.([]any)
	if !ok || len(arr) != 2 {
		return fmt.Errorf("invalid RecordID format: expected [table, id] array")
	}
	tableName, ok := arr[0].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: table name must be string")
	}
	if tableName != expectedTable {
		return fmt.Errorf("expected table %s, got %s", expectedTable, tableName)
	}
	idStr, ok := arr[1].(string)
	if !ok {
		return fmt.Errorf("invalid RecordID format: ID must be string")
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("invalid UUID in RecordID: %w", err)
	}
	*target = parsed
	return nil
}
