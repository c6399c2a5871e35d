package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// JSONMap is a free-form object stored as jsonb in PostgreSQL and as a nested
// object in SurrealDB. It carries client-owned blobs (the "json" field of most
// resources), note selectors and activity snapshots.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	return scanJSON(value, j)
}

func scanJSON(value any, target any) error {
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, target)
	case string:
		return json.Unmarshal([]byte(v), target)
	default:
		return fmt.Errorf("cannot scan type %T into JSON", value)
	}
}

// Link is one entry of a publication's readingOrder, links or resources.
type Link struct {
	URL            string `json:"url"`
	Name           string `json:"name,omitempty"`
	EncodingFormat string `json:"encodingFormat,omitempty"`
	Rel            string `json:"rel,omitempty"`
}

// Links is a jsonb list of [Link].
type Links []Link

func (l Links) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

func (l *Links) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	return scanJSON(value, l)
}

// AttributionRole names the part a person or organization played in a publication.
type AttributionRole string

const (
	RoleAuthor      AttributionRole = "author"
	RoleEditor      AttributionRole = "editor"
	RoleContributor AttributionRole = "contributor"
	RoleCreator     AttributionRole = "creator"
	RoleIllustrator AttributionRole = "illustrator"
	RolePublisher   AttributionRole = "publisher"
	RoleTranslator  AttributionRole = "translator"
)

// AttributionRoles lists every role in the order payload fields are read.
var AttributionRoles = []AttributionRole{
	RoleAuthor, RoleEditor, RoleContributor, RoleCreator,
	RoleIllustrator, RolePublisher, RoleTranslator,
}

// NoteMotivations lists the accepted values of a note body's motivation.
var NoteMotivations = []string{
	"bookmarking", "commenting", "describing", "editing",
	"highlighting", "linking", "replying", "test",
}

// Reader is the identity every other resource hangs off.
// Readers are provisioned by the authentication layer.
type Reader struct {
	ID        ReaderID       `gorm:"type:uuid;primary_key" json:"id"`
	Name      string         `gorm:"not null" json:"name"`
	Profile   JSONMap        `gorm:"type:jsonb" json:"profile,omitempty"`
	CreatedAt time.Time      `json:"published"`
	UpdatedAt time.Time      `json:"updated"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (r *Reader) BeforeCreate(tx *gorm.DB) error {
	if r.ID.IsZero() {
		r.ID = NewReaderID()
	}
	return nil
}

// MaxPages bounds Publication.NumberOfPages so it fits a PostgreSQL integer.
const MaxPages = 1<<31 - 1

// Publication is a reader-owned book or article made of an ordered list of links.
type Publication struct {
	ID             PublicationID  `gorm:"type:uuid;primary_key" json:"id"`
	ReaderID       ReaderID       `gorm:"type:uuid;not null;index" json:"readerId"`
	Name           string         `gorm:"not null" json:"name"`
	Description    string         `json:"description,omitempty"`
	BookFormat     string         `json:"bookFormat,omitempty"`
	DatePublished  string         `json:"datePublished,omitempty"`
	URL            string         `json:"url,omitempty"`
	EncodingFormat string         `json:"encodingFormat,omitempty"`
	NumberOfPages  int            `json:"numberOfPages,omitempty"`
	InLanguage     pq.StringArray `gorm:"type:text[]" json:"inLanguage,omitempty"`
	Keywords       pq.StringArray `gorm:"type:text[]" json:"keywords,omitempty"`
	ReadingOrder   Links          `gorm:"type:jsonb;not null" json:"readingOrder"`
	Links          Links          `gorm:"type:jsonb" json:"links,omitempty"`
	Resources      Links          `gorm:"type:jsonb" json:"resources,omitempty"`
	Attributions   []Attribution  `gorm:"foreignKey:PublicationID;constraint:OnDelete:CASCADE" json:"attributions,omitempty"`
	JSON           JSONMap        `gorm:"type:jsonb" json:"json,omitempty"`
	CreatedAt      time.Time      `json:"published"`
	UpdatedAt      time.Time      `json:"updated"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Publication) BeforeCreate(tx *gorm.DB) error {
	if p.ID.IsZero() {
		p.ID = NewPublicationID()
	}
	return nil
}

// Attribution credits a person or organization with a role on a publication.
type Attribution struct {
	ID            AttributionID   `gorm:"type:uuid;primary_key" json:"-"`
	PublicationID PublicationID   `gorm:"type:uuid;not null;index" json:"-"`
	ReaderID      ReaderID        `gorm:"type:uuid;not null" json:"-"`
	Role          AttributionRole `gorm:"not null" json:"role"`
	Name          string          `gorm:"not null" json:"name"`
	Type          string          `gorm:"not null" json:"type"`
	CreatedAt     time.Time       `json:"-"`
}

func (a *Attribution) BeforeCreate(tx *gorm.DB) error {
	if a.ID.IsZero() {
		a.ID = NewAttributionID()
	}
	return nil
}

// NoteBody is one body item of a note: what the reader wrote and why.
type NoteBody struct {
	Content    string `json:"content,omitempty"`
	Motivation string `json:"motivation"`
	Language   string `json:"language,omitempty"`
}

// NoteBodies is a jsonb list of [NoteBody].
type NoteBodies []NoteBody

func (b NoteBodies) Value() (driver.Value, error) {
	if b == nil {
		return nil, nil
	}
	return json.Marshal(b)
}

func (b *NoteBodies) Scan(value any) error {
	if value == nil {
		*b = nil
		return nil
	}
	return scanJSON(value, b)
}

// Note is an annotation, optionally anchored in a publication and replying
// to a document. NoteType, Context, PublicationID and DocumentID never change
// after creation.
type Note struct {
	ID            NoteID         `gorm:"type:uuid;primary_key" json:"id"`
	ReaderID      ReaderID       `gorm:"type:uuid;not null;index" json:"readerId"`
	NoteType      string         `gorm:"size:255;not null" json:"noteType"`
	Body          NoteBodies     `gorm:"type:jsonb" json:"body,omitempty"`
	Target        JSONMap        `gorm:"type:jsonb" json:"target,omitempty"`
	Canonical     string         `json:"canonical,omitempty"`
	Context       string         `json:"context,omitempty"`
	PublicationID *PublicationID `gorm:"type:uuid;index" json:"publicationId,omitempty"`
	DocumentID    *DocumentID    `gorm:"type:uuid" json:"inReplyTo,omitempty"`
	JSON          JSONMap        `gorm:"type:jsonb" json:"json,omitempty"`
	CreatedAt     time.Time      `json:"published"`
	UpdatedAt     time.Time      `json:"updated"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (n *Note) BeforeCreate(tx *gorm.DB) error {
	if n.ID.IsZero() {
		n.ID = NewNoteID()
	}
	return nil
}

// Tag is a reader-scoped label. A reader cannot own two tags with the same name.
type Tag struct {
	ID        TagID     `gorm:"type:uuid;primary_key" json:"id"`
	ReaderID  ReaderID  `gorm:"type:uuid;not null;uniqueIndex:idx_tags_reader_name" json:"readerId"`
	Name      string    `gorm:"not null;uniqueIndex:idx_tags_reader_name" json:"name"`
	TagType   string    `gorm:"not null" json:"tagType"`
	JSON      JSONMap   `gorm:"type:jsonb" json:"json,omitempty"`
	CreatedAt time.Time `json:"published"`
	UpdatedAt time.Time `json:"updated"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) error {
	if t.ID.IsZero() {
		t.ID = NewTagID()
	}
	return nil
}

// NotebookStatus is the lifecycle state of a notebook.
type NotebookStatus string

const (
	NotebookActive   NotebookStatus = "active"
	NotebookArchived NotebookStatus = "archived"
)

// Notebook groups publications, notes, tags and source documents.
type Notebook struct {
	ID          NotebookID     `gorm:"type:uuid;primary_key" json:"id"`
	ReaderID    ReaderID       `gorm:"type:uuid;not null;index" json:"readerId"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description,omitempty"`
	Status      NotebookStatus `gorm:"not null" json:"status"`
	Settings    JSONMap        `gorm:"type:jsonb" json:"settings,omitempty"`
	CreatedAt   time.Time      `json:"published"`
	UpdatedAt   time.Time      `json:"updated"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (n *Notebook) BeforeCreate(tx *gorm.DB) error {
	if n.ID.IsZero() {
		n.ID = NewNotebookID()
	}
	return nil
}

// Document is a file of a publication. The upload itself happens elsewhere;
// this is the record that relates the stored file to its publication.
type Document struct {
	ID            DocumentID     `gorm:"type:uuid;primary_key" json:"id"`
	ReaderID      ReaderID       `gorm:"type:uuid;not null;index" json:"readerId"`
	PublicationID PublicationID  `gorm:"type:uuid;not null;index" json:"publicationId"`
	DocumentPath  string         `gorm:"not null" json:"documentPath"`
	MediaType     string         `gorm:"not null" json:"mediaType"`
	URL           string         `json:"url,omitempty"`
	JSON          JSONMap        `gorm:"type:jsonb" json:"json,omitempty"`
	CreatedAt     time.Time      `json:"published"`
	UpdatedAt     time.Time      `json:"updated"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID.IsZero() {
		d.ID = NewDocumentID()
	}
	return nil
}

// CollaboratorStatus tracks an invitation to a notebook.
type CollaboratorStatus string

const (
	CollaboratorPending  CollaboratorStatus = "pending"
	CollaboratorAccepted CollaboratorStatus = "accepted"
	CollaboratorRefused  CollaboratorStatus = "refused"
)

// Permission is what a collaborator may do in a notebook.
type Permission struct {
	Read    bool `json:"read"`
	Comment bool `json:"comment"`
}

func (p Permission) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *Permission) Scan(value any) error {
	if value == nil {
		*p = Permission{}
		return nil
	}
	return scanJSON(value, p)
}

// Collaborator gives another reader (the member) access to a notebook.
// ReaderID is the notebook owner that created the invitation.
type Collaborator struct {
	ID         CollaboratorID     `gorm:"type:uuid;primary_key" json:"id"`
	ReaderID   ReaderID           `gorm:"type:uuid;not null;index" json:"readerId"`
	NotebookID NotebookID         `gorm:"type:uuid;not null;uniqueIndex:idx_collaborators_pair" json:"notebookId"`
	MemberID   ReaderID           `gorm:"type:uuid;not null;uniqueIndex:idx_collaborators_pair" json:"memberId"`
	Status     CollaboratorStatus `gorm:"not null" json:"status"`
	Permission Permission         `gorm:"type:jsonb" json:"permission"`
	CreatedAt  time.Time          `json:"published"`
	UpdatedAt  time.Time          `json:"updated"`
}

func (c *Collaborator) BeforeCreate(tx *gorm.DB) error {
	if c.ID.IsZero() {
		c.ID = NewCollaboratorID()
	}
	return nil
}

// ReadActivity records a reading position. Rows are only ever appended.
type ReadActivity struct {
	ID            ReadActivityID `gorm:"type:uuid;primary_key" json:"id"`
	ReaderID      ReaderID       `gorm:"type:uuid;not null;index" json:"readerId"`
	PublicationID PublicationID  `gorm:"type:uuid;not null;index" json:"publicationId"`
	Selector      JSONMap        `gorm:"type:jsonb;not null" json:"selector"`
	JSON          JSONMap        `gorm:"type:jsonb" json:"json,omitempty"`
	CreatedAt     time.Time      `json:"published"`
}

func (r *ReadActivity) BeforeCreate(tx *gorm.DB) error {
	if r.ID.IsZero() {
		r.ID = NewReadActivityID()
	}
	return nil
}
