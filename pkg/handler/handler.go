// Package handler implements the per-resource side of command processing.
//
// Each resource kind exposes a [Resource] with read-only probes (does it
// exist, who owns it) and a set of [Operation] values. An operation runs in two
// steps: Prepare normalizes the payload without side effects (coercing loose
// client input into the stored shape), and Execute performs the mutation
// through the store and returns snapshots for the activity log.
//
// Execute re-checks what it loads. A resource deleted between the engine's
// probe and the mutation surfaces as a [*store.NotFoundError], never as a panic
// or a half-applied write.
package handler

import (
	"context"
	"fmt"

	"github.com/marginalia-app/marginalia/pkg/authz"
	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// Resource probes one resource kind. Probes never write.
type Resource interface {
	Exists(ctx context.Context, st store.Store, id string) (bool, error)
	OwnedBy(ctx context.Context, st store.Store, id string, reader models.ReaderID) (bool, error)
	// Load returns the entity, or nil when it does not exist.
	Load(ctx context.Context, st store.Store, id string) (any, error)
}

// Snapshot is a resource as it looked right after a command ran.
type Snapshot struct {
	Type  string
	Value any
}

// Result is what an executed operation hands to the activity log.
type Result struct {
	Object Snapshot
	Target *Snapshot
}

// Operation is a prepared-then-executed mutation.
type Operation interface {
	// Prepare is pure. It returns a *schema.ValidationError for payloads the
	// generic shape check accepted but the resource cannot use.
	Prepare(cmd command.Command, actor models.ReaderID) (any, error)
	Execute(ctx context.Context, st store.Store, intent any) (Result, error)
}

// op adapts typed prepare/execute functions to Operation.
type op[I any] struct {
	prepare func(cmd command.Command, actor models.ReaderID) (I, error)
	execute func(ctx context.Context, st store.Store, in I) (Result, error)
}

func (o op[I]) Prepare(cmd command.Command, actor models.ReaderID) (any, error) {
	return o.prepare(cmd, actor)
}

func (o op[I]) Execute(ctx context.Context, st store.Store, intent any) (Result, error) {
	in, ok := intent.(I)
	if !ok {
		return Result{}, fmt.Errorf("unexpected intent %T", intent)
	}
	return o.execute(ctx, st, in)
}

// resource implements Resource for an entity addressed by a typed ID.
type resource[I any, E any] struct {
	typ   command.ResourceType
	parse func(string) (I, error)
	get   func(ctx context.Context, st store.Store, id I) (*E, error)
	owner func(*E) models.ReaderID
}

func (r resource[I, E]) load(ctx context.Context, st store.Store, raw string) (*E, error) {
	id, err := r.parse(raw)
	if err != nil {
		// a malformed id can never exist
		return nil, nil
	}
	return r.get(ctx, st, id)
}

func (r resource[I, E]) Exists(ctx context.Context, st store.Store, id string) (bool, error) {
	e, err := r.load(ctx, st, id)
	return e != nil, err
}

func (r resource[I, E]) OwnedBy(ctx context.Context, st store.Store, id string, reader models.ReaderID) (bool, error) {
	e, err := r.load(ctx, st, id)
	if err != nil || e == nil {
		return false, err
	}
	return authz.Check(reader, r.owner(e)).Allowed(), nil
}

func (r resource[I, E]) Load(ctx context.Context, st store.Store, id string) (any, error) {
	e, err := r.load(ctx, st, id)
	if err != nil || e == nil {
		return nil, err
	}
	return e, nil
}

// mustLoad loads the entity for an operation, reporting a missing row as
// *store.NotFoundError.
func (r resource[I, E]) mustLoad(ctx context.Context, st store.Store, id I) (*E, error) {
	e, err := r.get(ctx, st, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", r.typ, err)
	}
	if e == nil {
		return nil, &store.NotFoundError{Type: string(r.typ), ID: fmt.Sprint(id)}
	}
	return e, nil
}

var (
	publications = resource[models.PublicationID, models.Publication]{
		typ:   command.Publication,
		parse: models.ParsePublicationID,
		get: func(ctx context.Context, st store.Store, id models.PublicationID) (*models.Publication, error) {
			return st.GetPublication(ctx, id)
		},
		owner: func(p *models.Publication) models.ReaderID { return p.ReaderID },
	}
	notes = resource[models.NoteID, models.Note]{
		typ:   command.Note,
		parse: models.ParseNoteID,
		get: func(ctx context.Context, st store.Store, id models.NoteID) (*models.Note, error) {
			return st.GetNote(ctx, id)
		},
		owner: func(n *models.Note) models.ReaderID { return n.ReaderID },
	}
	tags = resource[models.TagID, models.Tag]{
		typ:   command.Tag,
		parse: models.ParseTagID,
		get: func(ctx context.Context, st store.Store, id models.TagID) (*models.Tag, error) {
			return st.GetTag(ctx, id)
		},
		owner: func(t *models.Tag) models.ReaderID { return t.ReaderID },
	}
	notebooks = resource[models.NotebookID, models.Notebook]{
		typ:   command.Notebook,
		parse: models.ParseNotebookID,
		get: func(ctx context.Context, st store.Store, id models.NotebookID) (*models.Notebook, error) {
			return st.GetNotebook(ctx, id)
		},
		owner: func(n *models.Notebook) models.ReaderID { return n.ReaderID },
	}
	documents = resource[models.DocumentID, models.Document]{
		typ:   command.Document,
		parse: models.ParseDocumentID,
		get: func(ctx context.Context, st store.Store, id models.DocumentID) (*models.Document, error) {
			return st.GetDocument(ctx, id)
		},
		owner: func(d *models.Document) models.ReaderID { return d.ReaderID },
	}
	collaborators = resource[models.CollaboratorID, models.Collaborator]{
		typ:   command.Collaborator,
		parse: models.ParseCollaboratorID,
		get: func(ctx context.Context, st store.Store, id models.CollaboratorID) (*models.Collaborator, error) {
			return st.GetCollaborator(ctx, id)
		},
		owner: func(c *models.Collaborator) models.ReaderID { return c.ReaderID },
	}
)

// ResourceFor returns the probes for a resource type. Read activities are
// append-only and never addressed by id, so they have none.
func ResourceFor(t command.ResourceType) (Resource, bool) {
	switch t {
	case command.Publication:
		return publications, true
	case command.Note:
		return notes, true
	case command.Tag:
		return tags, true
	case command.Notebook:
		return notebooks, true
	case command.Document:
		return documents, true
	case command.Collaborator:
		return collaborators, true
	}
	return nil, false
}

// notFound reports an id that can never resolve, such as a malformed uuid.
func notFound(t command.ResourceType, id string) error {
	return &store.NotFoundError{Type: string(t), ID: id}
}

func snapshot(t command.ResourceType, v any) Snapshot {
	return Snapshot{Type: string(t), Value: v}
}

func snapshotPtr(t command.ResourceType, v any) *Snapshot {
	s := snapshot(t, v)
	return &s
}
