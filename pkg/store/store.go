package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/marginalia-app/marginalia/pkg/models"
)

// Store is the persistence collaborator of the activity engine.
//
// Conventions shared by every implementation:
//
//   - Get methods return (nil, nil) for missing or soft-deleted rows.
//   - Create methods generate the ID when it is zero and return a [*ConflictError]
//     when a uniqueness rule is violated (tag name per reader, collaborator pair,
//     relation pair).
//   - Update and Delete methods return a [*NotFoundError] when the row is gone,
//     which lets callers detect a delete that raced with them.
//   - List methods return an empty slice, never nil, for no results.
//
// WithinTx runs fn against a transactional view of the store. If fn returns an
// error nothing it wrote is kept.
type Store interface {
	// Readers are provisioned by the authentication layer, not by commands.
	CreateReader(ctx context.Context, reader *models.Reader) error
	GetReader(ctx context.Context, id models.ReaderID) (*models.Reader, error)

	CreatePublication(ctx context.Context, publication *models.Publication) error
	GetPublication(ctx context.Context, id models.PublicationID) (*models.Publication, error)
	UpdatePublication(ctx context.Context, publication *models.Publication) error
	// DeletePublication soft-deletes the publication together with its notes,
	// documents, attributions and every relation row that references it.
	DeletePublication(ctx context.Context, id models.PublicationID) error

	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, id models.NoteID) (*models.Note, error)
	UpdateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, id models.NoteID) error

	CreateTag(ctx context.Context, tag *models.Tag) error
	GetTag(ctx context.Context, id models.TagID) (*models.Tag, error)
	UpdateTag(ctx context.Context, tag *models.Tag) error
	DeleteTag(ctx context.Context, id models.TagID) error

	CreateNotebook(ctx context.Context, notebook *models.Notebook) error
	GetNotebook(ctx context.Context, id models.NotebookID) (*models.Notebook, error)
	UpdateNotebook(ctx context.Context, notebook *models.Notebook) error
	DeleteNotebook(ctx context.Context, id models.NotebookID) error

	CreateDocument(ctx context.Context, document *models.Document) error
	GetDocument(ctx context.Context, id models.DocumentID) (*models.Document, error)
	DeleteDocument(ctx context.Context, id models.DocumentID) error

	CreateCollaborator(ctx context.Context, collaborator *models.Collaborator) error
	GetCollaborator(ctx context.Context, id models.CollaboratorID) (*models.Collaborator, error)
	UpdateCollaborator(ctx context.Context, collaborator *models.Collaborator) error
	DeleteCollaborator(ctx context.Context, id models.CollaboratorID) error

	// Read activities are only ever appended.
	CreateReadActivity(ctx context.Context, activity *models.ReadActivity) error
	ListReadActivities(ctx context.Context, publicationID models.PublicationID) ([]*models.ReadActivity, error)

	AddRelation(ctx context.Context, relation *models.Relation) error
	RemoveRelation(ctx context.Context, kind models.RelationKind, leftID, rightID uuid.UUID) error
	HasRelation(ctx context.Context, kind models.RelationKind, leftID, rightID uuid.UUID) (bool, error)
	CountRelations(ctx context.Context, kind models.RelationKind) (int, error)

	AppendActivity(ctx context.Context, activity *models.Activity) error
	GetActivity(ctx context.Context, id models.ActivityID) (*models.Activity, error)
	// ListActivities returns the reader's outbox, newest first. A limit <= 0 means no limit.
	ListActivities(ctx context.Context, readerID models.ReaderID, limit int) ([]*models.Activity, error)

	WithinTx(ctx context.Context, fn func(tx Store) error) error
	Migrate(ctx context.Context) error
	Close() error
}

// PartialWriter is implemented by stores whose WithinTx cannot roll back a
// failed callback. Writes made before the failure stay in place.
type PartialWriter interface {
	PartialWrites() bool
}

// HasPartialWrites reports whether st may keep part of a failed transaction.
func HasPartialWrites(st Store) bool {
	pw, ok := st.(PartialWriter)
	return ok && pw.PartialWrites()
}
