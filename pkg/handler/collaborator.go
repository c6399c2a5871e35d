package handler

import (
	"context"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/schema"
	"github.com/marginalia-app/marginalia/pkg/store"
)

type collaboratorPatch struct {
	ID            models.CollaboratorID
	ReaderID      models.ReaderID
	NotebookID    models.NotebookID
	MemberID      models.ReaderID
	Status        *string
	Permission    models.Permission
	hasPermission bool
}

func prepareCollaborator(fields map[string]any) (collaboratorPatch, error) {
	var p collaboratorPatch
	if s, ok := stringValue(fields, "status"); ok {
		p.Status = &s
	}
	if m, ok := mapValue(fields, "permission"); ok {
		if err := decode(m, &p.Permission); err != nil {
			errs := &schema.ValidationError{}
			errs.Add("permission", "type", map[string]any{"type": "object"})
			return p, errs
		}
		p.hasPermission = true
	}
	return p, nil
}

func (p collaboratorPatch) apply(c *models.Collaborator) {
	if p.Status != nil {
		c.Status = models.CollaboratorStatus(*p.Status)
	}
	if p.hasPermission {
		c.Permission = p.Permission
	}
}

// CreateCollaborator invites memberId to the target notebook. The invitation
// starts out pending; inviting the same member twice is a Conflict.
func CreateCollaborator() Operation {
	return op[collaboratorPatch]{
		prepare: func(cmd command.Command, actor models.ReaderID) (collaboratorPatch, error) {
			p, err := prepareCollaborator(cmd.Object.Fields)
			if err != nil {
				return p, err
			}
			p.ReaderID = actor
			if p.NotebookID, err = models.ParseNotebookID(cmd.Target.ID); err != nil {
				return p, notFound(command.Notebook, cmd.Target.ID)
			}
			raw, _ := stringValue(cmd.Object.Fields, "memberId")
			if p.MemberID, err = models.ParseReaderID(raw); err != nil {
				return p, &store.NotFoundError{Type: "Reader", ID: raw}
			}
			return p, nil
		},
		execute: func(ctx context.Context, st store.Store, p collaboratorPatch) (Result, error) {
			nb, err := notebooks.mustLoad(ctx, st, p.NotebookID)
			if err != nil {
				return Result{}, err
			}
			c := &models.Collaborator{
				ReaderID:   p.ReaderID,
				NotebookID: p.NotebookID,
				MemberID:   p.MemberID,
				Status:     models.CollaboratorPending,
				Permission: models.Permission{Read: true},
			}
			p.apply(c)
			if err := st.CreateCollaborator(ctx, c); err != nil {
				return Result{}, err
			}
			return Result{
				Object: snapshot(command.Collaborator, c),
				Target: snapshotPtr(command.Notebook, nb),
			}, nil
		},
	}
}

func UpdateCollaborator() Operation {
	return op[collaboratorPatch]{
		prepare: func(cmd command.Command, _ models.ReaderID) (collaboratorPatch, error) {
			p, err := prepareCollaborator(cmd.Object.Fields)
			if err != nil {
				return p, err
			}
			if p.ID, err = models.ParseCollaboratorID(cmd.Object.ID); err != nil {
				return p, notFound(command.Collaborator, cmd.Object.ID)
			}
			return p, nil
		},
		execute: func(ctx context.Context, st store.Store, p collaboratorPatch) (Result, error) {
			c, err := collaborators.mustLoad(ctx, st, p.ID)
			if err != nil {
				return Result{}, err
			}
			p.apply(c)
			if err := st.UpdateCollaborator(ctx, c); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Collaborator, c)}, nil
		},
	}
}

func DeleteCollaborator() Operation {
	return op[models.CollaboratorID]{
		prepare: func(cmd command.Command, _ models.ReaderID) (models.CollaboratorID, error) {
			id, err := models.ParseCollaboratorID(cmd.Object.ID)
			if err != nil {
				return id, notFound(command.Collaborator, cmd.Object.ID)
			}
			return id, nil
		},
		execute: func(ctx context.Context, st store.Store, id models.CollaboratorID) (Result, error) {
			c, err := collaborators.mustLoad(ctx, st, id)
			if err != nil {
				return Result{}, err
			}
			if err := st.DeleteCollaborator(ctx, id); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Collaborator, c)}, nil
		},
	}
}
