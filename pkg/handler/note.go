package handler

import (
	"context"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/schema"
	"github.com/marginalia-app/marginalia/pkg/store"
)

type notePatch struct {
	ID        models.NoteID
	Body      models.NoteBodies
	Target    models.JSONMap
	Canonical *string
	JSON      models.JSONMap

	hasBody, hasTarget, hasJSON bool
}

func prepareNotePatch(fields map[string]any, errs *schema.ValidationError) notePatch {
	var p notePatch
	if v, ok := fields["body"]; ok {
		p.Body, p.hasBody = coerceBody(v, errs), true
	}
	p.Target, p.hasTarget = mapValue(fields, "target")
	p.JSON, p.hasJSON = mapValue(fields, "json")
	if s, ok := stringValue(fields, "canonical"); ok {
		p.Canonical = &s
	}
	return p
}

func (p notePatch) apply(n *models.Note) {
	if p.hasBody {
		n.Body = p.Body
	}
	if p.hasTarget {
		n.Target = p.Target
	}
	if p.hasJSON {
		n.JSON = p.JSON
	}
	setString(&n.Canonical, p.Canonical)
}

// CreateNote stores a new note. A publicationId or inReplyTo that does not
// resolve fails with NotFound.
func CreateNote() Operation {
	return op[*models.Note]{
		prepare: func(cmd command.Command, actor models.ReaderID) (*models.Note, error) {
			fields := cmd.Object.Fields
			errs := &schema.ValidationError{}
			p := prepareNotePatch(fields, errs)
			if err := errs.Err(); err != nil {
				return nil, err
			}

			note := &models.Note{ReaderID: actor}
			note.NoteType, _ = stringValue(fields, "noteType")
			note.Context, _ = stringValue(fields, "context")
			p.apply(note)

			if raw, ok := stringValue(fields, "publicationId"); ok && raw != "" {
				id, err := models.ParsePublicationID(raw)
				if err != nil {
					return nil, notFound(command.Publication, raw)
				}
				note.PublicationID = &id
			}
			if raw, ok := stringValue(fields, "inReplyTo"); ok && raw != "" {
				id, err := models.ParseDocumentID(raw)
				if err != nil {
					return nil, notFound(command.Document, raw)
				}
				note.DocumentID = &id
			}
			return note, nil
		},
		execute: func(ctx context.Context, st store.Store, note *models.Note) (Result, error) {
			// intents may be executed more than once
			n := *note
			if err := st.CreateNote(ctx, &n); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Note, &n)}, nil
		},
	}
}

// UpdateNote merges body, target, canonical and json. Everything else on a
// note is fixed at creation.
func UpdateNote() Operation {
	return op[notePatch]{
		prepare: func(cmd command.Command, _ models.ReaderID) (notePatch, error) {
			errs := &schema.ValidationError{}
			p := prepareNotePatch(cmd.Object.Fields, errs)
			if err := errs.Err(); err != nil {
				return p, err
			}
			id, err := models.ParseNoteID(cmd.Object.ID)
			if err != nil {
				return p, notFound(command.Note, cmd.Object.ID)
			}
			p.ID = id
			return p, nil
		},
		execute: func(ctx context.Context, st store.Store, p notePatch) (Result, error) {
			note, err := notes.mustLoad(ctx, st, p.ID)
			if err != nil {
				return Result{}, err
			}
			p.apply(note)
			if err := st.UpdateNote(ctx, note); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Note, note)}, nil
		},
	}
}

// DeleteNote soft-deletes a note and detaches it from tags and notebooks.
func DeleteNote() Operation {
	return op[models.NoteID]{
		prepare: func(cmd command.Command, _ models.ReaderID) (models.NoteID, error) {
			id, err := models.ParseNoteID(cmd.Object.ID)
			if err != nil {
				return id, notFound(command.Note, cmd.Object.ID)
			}
			return id, nil
		},
		execute: func(ctx context.Context, st store.Store, id models.NoteID) (Result, error) {
			note, err := notes.mustLoad(ctx, st, id)
			if err != nil {
				return Result{}, err
			}
			if err := st.DeleteNote(ctx, id); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Note, note)}, nil
		},
	}
}
