package handler

import (
	"context"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// CreateDocument records a file of the target publication.
func CreateDocument() Operation {
	return op[*models.Document]{
		prepare: func(cmd command.Command, actor models.ReaderID) (*models.Document, error) {
			pubID, err := models.ParsePublicationID(cmd.Target.ID)
			if err != nil {
				return nil, notFound(command.Publication, cmd.Target.ID)
			}
			doc := &models.Document{ReaderID: actor, PublicationID: pubID}
			fields := cmd.Object.Fields
			doc.DocumentPath, _ = stringValue(fields, "documentPath")
			doc.MediaType, _ = stringValue(fields, "mediaType")
			doc.URL, _ = stringValue(fields, "url")
			doc.JSON, _ = mapValue(fields, "json")
			return doc, nil
		},
		execute: func(ctx context.Context, st store.Store, in *models.Document) (Result, error) {
			pub, err := publications.mustLoad(ctx, st, in.PublicationID)
			if err != nil {
				return Result{}, err
			}
			doc := *in
			if err := st.CreateDocument(ctx, &doc); err != nil {
				return Result{}, err
			}
			return Result{
				Object: snapshot(command.Document, &doc),
				Target: snapshotPtr(command.Publication, pub),
			}, nil
		},
	}
}

func DeleteDocument() Operation {
	return op[models.DocumentID]{
		prepare: func(cmd command.Command, _ models.ReaderID) (models.DocumentID, error) {
			id, err := models.ParseDocumentID(cmd.Object.ID)
			if err != nil {
				return id, notFound(command.Document, cmd.Object.ID)
			}
			return id, nil
		},
		execute: func(ctx context.Context, st store.Store, id models.DocumentID) (Result, error) {
			doc, err := documents.mustLoad(ctx, st, id)
			if err != nil {
				return Result{}, err
			}
			if err := st.DeleteDocument(ctx, id); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Document, doc)}, nil
		},
	}
}
