package handler

import (
	"context"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

type notebookPatch struct {
	ID          models.NotebookID
	ReaderID    models.ReaderID
	Name        *string
	Description *string
	Status      *string
	Settings    models.JSONMap
	hasSettings bool
}

func prepareNotebook(fields map[string]any) notebookPatch {
	var p notebookPatch
	if s, ok := stringValue(fields, "name"); ok {
		p.Name = &s
	}
	if s, ok := stringValue(fields, "description"); ok {
		p.Description = &s
	}
	if s, ok := stringValue(fields, "status"); ok {
		p.Status = &s
	}
	p.Settings, p.hasSettings = mapValue(fields, "settings")
	return p
}

func (p notebookPatch) apply(n *models.Notebook) {
	setString(&n.Name, p.Name)
	setString(&n.Description, p.Description)
	if p.Status != nil {
		n.Status = models.NotebookStatus(*p.Status)
	}
	if p.hasSettings {
		n.Settings = p.Settings
	}
}

// CreateNotebook stores a notebook; status defaults to active.
func CreateNotebook() Operation {
	return op[notebookPatch]{
		prepare: func(cmd command.Command, actor models.ReaderID) (notebookPatch, error) {
			p := prepareNotebook(cmd.Object.Fields)
			p.ReaderID = actor
			return p, nil
		},
		execute: func(ctx context.Context, st store.Store, p notebookPatch) (Result, error) {
			nb := &models.Notebook{ReaderID: p.ReaderID, Status: models.NotebookActive}
			p.apply(nb)
			if err := st.CreateNotebook(ctx, nb); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Notebook, nb)}, nil
		},
	}
}

func UpdateNotebook() Operation {
	return op[notebookPatch]{
		prepare: func(cmd command.Command, _ models.ReaderID) (notebookPatch, error) {
			p := prepareNotebook(cmd.Object.Fields)
			id, err := models.ParseNotebookID(cmd.Object.ID)
			if err != nil {
				return p, notFound(command.Notebook, cmd.Object.ID)
			}
			p.ID = id
			return p, nil
		},
		execute: func(ctx context.Context, st store.Store, p notebookPatch) (Result, error) {
			nb, err := notebooks.mustLoad(ctx, st, p.ID)
			if err != nil {
				return Result{}, err
			}
			p.apply(nb)
			if err := st.UpdateNotebook(ctx, nb); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Notebook, nb)}, nil
		},
	}
}

// DeleteNotebook soft-deletes a notebook, its relation rows and its collaborators.
func DeleteNotebook() Operation {
	return op[models.NotebookID]{
		prepare: func(cmd command.Command, _ models.ReaderID) (models.NotebookID, error) {
			id, err := models.ParseNotebookID(cmd.Object.ID)
			if err != nil {
				return id, notFound(command.Notebook, cmd.Object.ID)
			}
			return id, nil
		},
		execute: func(ctx context.Context, st store.Store, id models.NotebookID) (Result, error) {
			nb, err := notebooks.mustLoad(ctx, st, id)
			if err != nil {
				return Result{}, err
			}
			if err := st.DeleteNotebook(ctx, id); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Notebook, nb)}, nil
		},
	}
}
