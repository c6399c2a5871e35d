// Package dispatch maps a (verb, object type, target type) triple to the
// operation that serves it.
//
// The table is a closed switch: every combination that is not listed below
// resolves to [ErrUnsupportedCombination].
package dispatch

import (
	"errors"
	"fmt"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/handler"
	"github.com/marginalia-app/marginalia/pkg/models"
)

// ErrUnsupportedCombination is returned for a triple no route serves.
var ErrUnsupportedCombination = errors.New("unsupported combination")

// Probe names a reference the engine checks before executing. When Owned is
// set the actor must own the referenced resource.
type Probe struct {
	Ref   command.Ref
	Owned bool
}

// Route is a resolved command.
type Route struct {
	// Activity is the human-readable name, e.g. "Add Tag to Note".
	Activity string
	Op       handler.Operation
}

// Probes lists the references to check for cmd: target first, then object,
// then references carried in the payload.
func Probes(cmd command.Command) []Probe {
	var probes []Probe
	if cmd.Target != nil {
		probes = append(probes, Probe{Ref: *cmd.Target, Owned: true})
	}
	if cmd.Verb != command.Create && cmd.Object.ID != "" {
		probes = append(probes, Probe{Ref: cmd.Object.Ref(), Owned: true})
	}
	if cmd.Verb == command.Create && cmd.Object.Type == command.Note {
		if id, ok := cmd.Object.Fields["publicationId"].(string); ok && id != "" {
			probes = append(probes, Probe{Ref: command.Ref{Type: command.Publication, ID: id}, Owned: true})
		}
		if id, ok := cmd.Object.Fields["inReplyTo"].(string); ok && id != "" {
			probes = append(probes, Probe{Ref: command.Ref{Type: command.Document, ID: id}})
		}
	}
	return probes
}

// ActivityName names the activity for a triple whether or not it is routed,
// so failures of unsupported commands still carry a name.
func ActivityName(verb command.Verb, object, target command.ResourceType) string {
	switch {
	case target == "":
		return fmt.Sprintf("%s %s", verb, object)
	case verb == command.Remove:
		return fmt.Sprintf("%s %s from %s", verb, object, target)
	case verb == command.Add:
		return fmt.Sprintf("%s %s to %s", verb, object, target)
	default:
		return fmt.Sprintf("%s %s in %s", verb, object, target)
	}
}

// Resolve returns the route for a triple. target is "" when the command has
// no target.
func Resolve(verb command.Verb, object, target command.ResourceType) (Route, error) {
	op, err := resolve(verb, object, target)
	if err != nil {
		return Route{}, fmt.Errorf("%s: %w", ActivityName(verb, object, target), err)
	}
	return Route{Activity: ActivityName(verb, object, target), Op: op}, nil
}

func resolve(verb command.Verb, object, target command.ResourceType) (handler.Operation, error) {
	switch verb {
	case command.Create:
		switch {
		case object == command.Publication && target == "":
			return handler.CreatePublication(), nil
		case object == command.Note && target == "":
			return handler.CreateNote(), nil
		case object == command.Tag && target == "":
			return handler.CreateTag(), nil
		case object == command.Notebook && target == "":
			return handler.CreateNotebook(), nil
		case object == command.Collaborator && target == command.Notebook:
			return handler.CreateCollaborator(), nil
		case object == command.Document && target == command.Publication:
			return handler.CreateDocument(), nil
		}

	case command.Update:
		if target != "" {
			break
		}
		switch object {
		case command.Publication:
			return handler.UpdatePublication(), nil
		case command.Note:
			return handler.UpdateNote(), nil
		case command.Tag:
			return handler.UpdateTag(), nil
		case command.Notebook:
			return handler.UpdateNotebook(), nil
		case command.Collaborator:
			return handler.UpdateCollaborator(), nil
		}

	case command.Delete:
		if target != "" {
			break
		}
		switch object {
		case command.Publication:
			return handler.DeletePublication(), nil
		case command.Note:
			return handler.DeleteNote(), nil
		case command.Tag:
			return handler.DeleteTag(), nil
		case command.Notebook:
			return handler.DeleteNotebook(), nil
		case command.Collaborator:
			return handler.DeleteCollaborator(), nil
		case command.Document:
			return handler.DeleteDocument(), nil
		}

	case command.Add:
		if kind, ok := relationKind(object, target); ok {
			return handler.AddRelation(kind), nil
		}

	case command.Remove:
		if kind, ok := relationKind(object, target); ok {
			return handler.RemoveRelation(kind), nil
		}

	case command.Read:
		if object == command.Publication && target == "" {
			return handler.RecordRead(), nil
		}

	case command.Arrive:
		if object == command.Publication && target == "" {
			return handler.Arrive(), nil
		}
	}
	return nil, ErrUnsupportedCombination
}

// relationKind returns the join an (object, target) pair writes to.
func relationKind(object, target command.ResourceType) (models.RelationKind, bool) {
	switch {
	case object == command.Tag && target == command.Publication:
		return models.PublicationTag, true
	case object == command.Tag && target == command.Note:
		return models.NoteTag, true
	case object == command.Tag && target == command.Notebook:
		return models.NotebookTag, true
	case object == command.Publication && target == command.Notebook:
		return models.NotebookPublication, true
	case object == command.Note && target == command.Notebook:
		return models.NotebookNote, true
	case object == command.Document && target == command.Notebook:
		return models.NotebookSource, true
	}
	return "", false
}
