package handler

import (
	"context"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// RecordRead appends a read activity for a publication. Every call appends a
// new row, so reading the same position twice is logged twice.
func RecordRead() Operation {
	return op[*models.ReadActivity]{
		prepare: func(cmd command.Command, actor models.ReaderID) (*models.ReadActivity, error) {
			id, err := models.ParsePublicationID(cmd.Object.ID)
			if err != nil {
				return nil, notFound(command.Publication, cmd.Object.ID)
			}
			ra := &models.ReadActivity{ReaderID: actor, PublicationID: id}
			ra.Selector, _ = mapValue(cmd.Object.Fields, "selector")
			ra.JSON, _ = mapValue(cmd.Object.Fields, "json")
			return ra, nil
		},
		execute: func(ctx context.Context, st store.Store, in *models.ReadActivity) (Result, error) {
			pub, err := publications.mustLoad(ctx, st, in.PublicationID)
			if err != nil {
				return Result{}, err
			}
			ra := *in
			if err := st.CreateReadActivity(ctx, &ra); err != nil {
				return Result{}, err
			}
			return Result{
				Object: snapshot(command.ReadActivity, &ra),
				Target: snapshotPtr(command.Publication, pub),
			}, nil
		},
	}
}

// Arrive notes that the reader opened a publication. It writes nothing but
// the activity itself.
func Arrive() Operation {
	return op[models.PublicationID]{
		prepare: func(cmd command.Command, _ models.ReaderID) (models.PublicationID, error) {
			id, err := models.ParsePublicationID(cmd.Object.ID)
			if err != nil {
				return id, notFound(command.Publication, cmd.Object.ID)
			}
			return id, nil
		},
		execute: func(ctx context.Context, st store.Store, id models.PublicationID) (Result, error) {
			pub, err := publications.mustLoad(ctx, st, id)
			if err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Publication, pub)}, nil
		},
	}
}
