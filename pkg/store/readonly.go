package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/marginalia-app/marginalia/pkg/models"
)

// ReadOnlyStore wraps a Store and rejects write operations while isReadOnly
// reports true. Reads always pass through.
//
// The application uses it twice: as a maintenance switch that can be flipped
// at runtime, and with a constant predicate to hand resource probes a view of
// the store they cannot mutate.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

// NewReadOnlyStore creates a new read-only wrapper for a store
func NewReadOnlyStore(store Store, isReadOnly func() bool) Store {
	return &ReadOnlyStore{
		Store:      store,
		isReadOnly: isReadOnly,
	}
}

// ReadOnly returns a view of store that rejects every write.
func ReadOnly(store Store) Store {
	return NewReadOnlyStore(store, func() bool { return true })
}

// Unwrap returns the underlying store
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

// checkReadOnly returns an error if the store is in read-only mode
func (r *ReadOnlyStore) checkReadOnly(op string) error {
	if r.isReadOnly() {
		return fmt.Errorf("%s: %w", op, ErrReadOnly)
	}
	return nil
}

// WithinTx keeps the read-only guard on the transactional view.
func (r *ReadOnlyStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return r.Store.WithinTx(ctx, func(tx Store) error {
		return fn(NewReadOnlyStore(tx, r.isReadOnly))
	})
}

func (r *ReadOnlyStore) CreateReader(ctx context.Context, reader *models.Reader) error {
	if err := r.checkReadOnly("create reader"); err != nil {
		return err
	}
	return r.Store.CreateReader(ctx, reader)
}

func (r *ReadOnlyStore) CreatePublication(ctx context.Context, publication *models.Publication) error {
	if err := r.checkReadOnly("create publication"); err != nil {
		return err
	}
	return r.Store.CreatePublication(ctx, publication)
}

func (r *ReadOnlyStore) UpdatePublication(ctx context.Context, publication *models.Publication) error {
	if err := r.checkReadOnly("update publication"); err != nil {
		return err
	}
	return r.Store.UpdatePublication(ctx, publication)
}

func (r *ReadOnlyStore) DeletePublication(ctx context.Context, id models.PublicationID) error {
	if err := r.checkReadOnly("delete publication"); err != nil {
		return err
	}
	return r.Store.DeletePublication(ctx, id)
}

func (r *ReadOnlyStore) CreateNote(ctx context.Context, note *models.Note) error {
	if err := r.checkReadOnly("create note"); err != nil {
		return err
	}
	return r.Store.CreateNote(ctx, note)
}

func (r *ReadOnlyStore) UpdateNote(ctx context.Context, note *models.Note) error {
	if err := r.checkReadOnly("update note"); err != nil {
		return err
	}
	return r.Store.UpdateNote(ctx, note)
}

func (r *ReadOnlyStore) DeleteNote(ctx context.Context, id models.NoteID) error {
	if err := r.checkReadOnly("delete note"); err != nil {
		return err
	}
	return r.Store.DeleteNote(ctx, id)
}

func (r *ReadOnlyStore) CreateTag(ctx context.Context, tag *models.Tag) error {
	if err := r.checkReadOnly("create tag"); err != nil {
		return err
	}
	return r.Store.CreateTag(ctx, tag)
}

func (r *ReadOnlyStore) UpdateTag(ctx context.Context, tag *models.Tag) error {
	if err := r.checkReadOnly("update tag"); err != nil {
		return err
	}
	return r.Store.UpdateTag(ctx, tag)
}

func (r *ReadOnlyStore) DeleteTag(ctx context.Context, id models.TagID) error {
	if err := r.checkReadOnly("delete tag"); err != nil {
		return err
	}
	return r.Store.DeleteTag(ctx, id)
}

func (r *ReadOnlyStore) CreateNotebook(ctx context.Context, notebook *models.Notebook) error {
	if err := r.checkReadOnly("create notebook"); err != nil {
		return err
	}
	return r.Store.CreateNotebook(ctx, notebook)
}

func (r *ReadOnlyStore) UpdateNotebook(ctx context.Context, notebook *models.Notebook) error {
	if err := r.checkReadOnly("update notebook"); err != nil {
		return err
	}
	return r.Store.UpdateNotebook(ctx, notebook)
}

func (r *ReadOnlyStore) DeleteNotebook(ctx context.Context, id models.NotebookID) error {
	if err := r.checkReadOnly("delete notebook"); err != nil {
		return err
	}
	return r.Store.DeleteNotebook(ctx, id)
}

func (r *ReadOnlyStore) CreateDocument(ctx context.Context, document *models.Document) error {
	if err := r.checkReadOnly("create document"); err != nil {
		return err
	}
	return r.Store.CreateDocument(ctx, document)
}

func (r *ReadOnlyStore) DeleteDocument(ctx context.Context, id models.DocumentID) error {
	if err := r.checkReadOnly("delete document"); err != nil {
		return err
	}
	return r.Store.DeleteDocument(ctx, id)
}

func (r *ReadOnlyStore) CreateCollaborator(ctx context.Context, collaborator *models.Collaborator) error {
	if err := r.checkReadOnly("create collaborator"); err != nil {
		return err
	}
	return r.Store.CreateCollaborator(ctx, collaborator)
}

func (r *ReadOnlyStore) UpdateCollaborator(ctx context.Context, collaborator *models.Collaborator) error {
	if err := r.checkReadOnly("update collaborator"); err != nil {
		return err
	}
	return r.Store.UpdateCollaborator(ctx, collaborator)
}

func (r *ReadOnlyStore) DeleteCollaborator(ctx context.Context, id models.CollaboratorID) error {
	if err := r.checkReadOnly("delete collaborator"); err != nil {
		return err
	}
	return r.Store.DeleteCollaborator(ctx, id)
}

func (r *ReadOnlyStore) CreateReadActivity(ctx context.Context, activity *models.ReadActivity) error {
	if err := r.checkReadOnly("create read activity"); err != nil {
		return err
	}
	return r.Store.CreateReadActivity(ctx, activity)
}

func (r *ReadOnlyStore) AddRelation(ctx context.Context, relation *models.Relation) error {
	if err := r.checkReadOnly("add relation"); err != nil {
		return err
	}
	return r.Store.AddRelation(ctx, relation)
}

func (r *ReadOnlyStore) RemoveRelation(ctx context.Context, kind models.RelationKind, leftID, rightID uuid.UUID) error {
	if err := r.checkReadOnly("remove relation"); err != nil {
		return err
	}
	return r.Store.RemoveRelation(ctx, kind, leftID, rightID)
}

func (r *ReadOnlyStore) AppendActivity(ctx context.Context, activity *models.Activity) error {
	if err := r.checkReadOnly("append activity"); err != nil {
		return err
	}
	return r.Store.AppendActivity(ctx, activity)
}
