package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RelationKind names a many-to-many join between two resource kinds.
// The name doubles as the resource type reported when a pair is missing.
type RelationKind string

const (
	PublicationTag      RelationKind = "Publication_Tag"
	NoteTag             RelationKind = "Note_Tag"
	NotebookTag         RelationKind = "Notebook_Tag"
	NotebookPublication RelationKind = "Notebook_Publication"
	NotebookNote        RelationKind = "Notebook_Note"
	NotebookSource      RelationKind = "Notebook_Source"
)

// RelationKinds lists every join kind; stores migrate one table per kind.
var RelationKinds = []RelationKind{
	PublicationTag, NoteTag, NotebookTag,
	NotebookPublication, NotebookNote, NotebookSource,
}

// TableName returns the table backing the relation kind, e.g. "publication_tag".
func (k RelationKind) TableName() string {
	return strings.ToLower(string(k))
}

// Relation is one join row. Left is the container side (the command target),
// Right is the attached side (the command object). A pair exists at most once.
type Relation struct {
	Kind      RelationKind `gorm:"-" json:"kind"`
	LeftID    uuid.UUID    `gorm:"type:uuid;primaryKey" json:"leftId"`
	RightID   uuid.UUID    `gorm:"type:uuid;primaryKey" json:"rightId"`
	ReaderID  ReaderID     `gorm:"type:uuid;not null;index" json:"readerId"`
	CreatedAt time.Time    `json:"published"`
}

// Key identifies the pair within its kind.
func (r Relation) Key() string {
	return string(r.Kind) + ":" + r.LeftID.String() + ":" + r.RightID.String()
}
