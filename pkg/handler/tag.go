package handler

import (
	"context"
	"strings"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

const defaultTagType = "reader:Tag"

type tagPatch struct {
	ID       models.TagID
	ReaderID models.ReaderID
	Name     *string
	TagType  *string
	JSON     models.JSONMap
	hasJSON  bool
}

func prepareTag(fields map[string]any) tagPatch {
	var p tagPatch
	if s, ok := stringValue(fields, "name"); ok {
		s = strings.TrimSpace(s)
		p.Name = &s
	}
	if s, ok := stringValue(fields, "tagType"); ok {
		p.TagType = &s
	}
	p.JSON, p.hasJSON = mapValue(fields, "json")
	return p
}

func (p tagPatch) apply(t *models.Tag) {
	setString(&t.Name, p.Name)
	setString(&t.TagType, p.TagType)
	if p.hasJSON {
		t.JSON = p.JSON
	}
}

// CreateTag stores a tag. A second tag with the same name for the same
// reader is a Conflict.
func CreateTag() Operation {
	return op[tagPatch]{
		prepare: func(cmd command.Command, actor models.ReaderID) (tagPatch, error) {
			p := prepareTag(cmd.Object.Fields)
			p.ReaderID = actor
			return p, nil
		},
		execute: func(ctx context.Context, st store.Store, p tagPatch) (Result, error) {
			tag := &models.Tag{ReaderID: p.ReaderID, TagType: defaultTagType}
			p.apply(tag)
			if err := st.CreateTag(ctx, tag); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Tag, tag)}, nil
		},
	}
}

// UpdateTag renames or retypes a tag. Renaming onto an existing name is a Conflict.
func UpdateTag() Operation {
	return op[tagPatch]{
		prepare: func(cmd command.Command, _ models.ReaderID) (tagPatch, error) {
			p := prepareTag(cmd.Object.Fields)
			id, err := models.ParseTagID(cmd.Object.ID)
			if err != nil {
				return p, notFound(command.Tag, cmd.Object.ID)
			}
			p.ID = id
			return p, nil
		},
		execute: func(ctx context.Context, st store.Store, p tagPatch) (Result, error) {
			tag, err := tags.mustLoad(ctx, st, p.ID)
			if err != nil {
				return Result{}, err
			}
			p.apply(tag)
			if err := st.UpdateTag(ctx, tag); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Tag, tag)}, nil
		},
	}
}

// DeleteTag removes a tag and every relation that uses it.
func DeleteTag() Operation {
	return op[models.TagID]{
		prepare: func(cmd command.Command, _ models.ReaderID) (models.TagID, error) {
			id, err := models.ParseTagID(cmd.Object.ID)
			if err != nil {
				return id, notFound(command.Tag, cmd.Object.ID)
			}
			return id, nil
		},
		execute: func(ctx context.Context, st store.Store, id models.TagID) (Result, error) {
			tag, err := tags.mustLoad(ctx, st, id)
			if err != nil {
				return Result{}, err
			}
			if err := st.DeleteTag(ctx, id); err != nil {
				return Result{}, err
			}
			return Result{Object: snapshot(command.Tag, tag)}, nil
		},
	}
}
