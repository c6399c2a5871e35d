package handler

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

type relationIntent struct {
	kind     models.RelationKind
	object   command.Ref
	target   command.Ref
	left     uuid.UUID
	right    uuid.UUID
	readerID models.ReaderID
}

func prepareRelation(kind models.RelationKind, cmd command.Command, actor models.ReaderID) (relationIntent, error) {
	in := relationIntent{kind: kind, object: cmd.Object.Ref(), readerID: actor}
	if cmd.Target == nil {
		return in, fmt.Errorf("%s needs a target", kind)
	}
	in.target = *cmd.Target

	var err error
	if in.left, err = uuid.Parse(in.target.ID); err != nil {
		return in, notFound(in.target.Type, in.target.ID)
	}
	if in.right, err = uuid.Parse(in.object.ID); err != nil {
		return in, notFound(in.object.Type, in.object.ID)
	}
	return in, nil
}

// loadPair loads both ends of a relation, target first.
func loadPair(ctx context.Context, st store.Store, in relationIntent) (object, target Snapshot, err error) {
	for _, side := range []struct {
		ref command.Ref
		dst *Snapshot
	}{{in.target, &target}, {in.object, &object}} {
		res, ok := ResourceFor(side.ref.Type)
		if !ok {
			return object, target, fmt.Errorf("%s cannot be related", side.ref.Type)
		}
		v, err := res.Load(ctx, st, side.ref.ID)
		if err != nil {
			return object, target, fmt.Errorf("failed to load %s: %w", side.ref, err)
		}
		if v == nil {
			return object, target, notFound(side.ref.Type, side.ref.ID)
		}
		*side.dst = snapshot(side.ref.Type, v)
	}
	return object, target, nil
}

// AddRelation attaches the object to the target. Adding a pair that already
// exists is a Conflict.
func AddRelation(kind models.RelationKind) Operation {
	return op[relationIntent]{
		prepare: func(cmd command.Command, actor models.ReaderID) (relationIntent, error) {
			return prepareRelation(kind, cmd, actor)
		},
		execute: func(ctx context.Context, st store.Store, in relationIntent) (Result, error) {
			object, target, err := loadPair(ctx, st, in)
			if err != nil {
				return Result{}, err
			}
			rel := &models.Relation{Kind: in.kind, LeftID: in.left, RightID: in.right, ReaderID: in.readerID}
			if err := st.AddRelation(ctx, rel); err != nil {
				return Result{}, err
			}
			return Result{Object: object, Target: &target}, nil
		},
	}
}

// RemoveRelation detaches the object from the target. Removing a pair that
// does not exist is NotFound, reported with the relation kind as its type.
func RemoveRelation(kind models.RelationKind) Operation {
	return op[relationIntent]{
		prepare: func(cmd command.Command, actor models.ReaderID) (relationIntent, error) {
			return prepareRelation(kind, cmd, actor)
		},
		execute: func(ctx context.Context, st store.Store, in relationIntent) (Result, error) {
			object, target, err := loadPair(ctx, st, in)
			if err != nil {
				return Result{}, err
			}
			if err := st.RemoveRelation(ctx, in.kind, in.left, in.right); err != nil {
				return Result{}, err
			}
			return Result{Object: object, Target: &target}, nil
		},
	}
}
