package schema

import (
	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
)

var (
	str     = Field{Types: []Kind{String}}
	object  = Field{Types: []Kind{Object}}
	integer = Field{Types: []Kind{Integer}}
	// list fields accept a single value that prepare turns into a list.
	list = Field{Types: []Kind{String, Array}, Items: []Kind{String}}
	link = Field{Types: []Kind{Array}, Items: []Kind{String, Object}}
)

func required(f Field) Field {
	f.Required = true
	f.NonEmpty = true
	return f
}

func maxLength(f Field, n int) Field {
	f.MaxLength = n
	return f
}

func between(f Field, lo, hi float64) Field {
	f.Minimum, f.Maximum = &lo, &hi
	return f
}

func enum(values ...string) Field {
	return Field{Types: []Kind{String}, Enum: values}
}

func publicationFields(create bool) map[string]Field {
	attribution := Field{Types: []Kind{String, Object, Array}, Items: []Kind{String, Object}}
	readingOrder := Field{Types: []Kind{Array}, Items: []Kind{String, Object}, NonEmpty: true}
	name := maxLength(str, 1000)
	if create {
		readingOrder = required(readingOrder)
		name = required(name)
	} else {
		name.NonEmpty = true
	}

	fields := map[string]Field{
		"name":           name,
		"readingOrder":   readingOrder,
		"description":    str,
		"datePublished":  str,
		"url":            str,
		"bookFormat":     str,
		"encodingFormat": str,
		"numberOfPages":  between(integer, 0, models.MaxPages),
		"keywords":       list,
		"inLanguage":     list,
		"links":          link,
		"resources":      link,
		"json":           object,
	}
	for _, role := range models.AttributionRoles {
		fields[string(role)] = attribution
	}
	return fields
}

var notebookStatuses = []string{string(models.NotebookActive), string(models.NotebookArchived)}

var collaboratorStatuses = []string{
	string(models.CollaboratorPending),
	string(models.CollaboratorAccepted),
	string(models.CollaboratorRefused),
}

// Default returns the registry of every payload shape the engine accepts.
func Default() *Registry {
	r := NewRegistry()
	must := func(verb command.Verb, typ command.ResourceType, fields map[string]Field) {
		if err := r.Register(verb, typ, Shape{Fields: fields}); err != nil {
			panic(err)
		}
	}

	must(command.Create, command.Publication, publicationFields(true))
	must(command.Update, command.Publication, publicationFields(false))

	must(command.Create, command.Note, map[string]Field{
		"noteType":      required(maxLength(str, 255)),
		"body":          Field{Types: []Kind{Object, Array}, Items: []Kind{Object}},
		"target":        object,
		"canonical":     str,
		"context":       str,
		"publicationId": str,
		"inReplyTo":     str,
		"json":          object,
	})
	// noteType, context and inReplyTo are frozen after creation and ignored here.
	must(command.Update, command.Note, map[string]Field{
		"body":      Field{Types: []Kind{Object, Array}, Items: []Kind{Object}},
		"target":    object,
		"canonical": str,
		"json":      object,
	})

	must(command.Create, command.Tag, map[string]Field{
		"name":    required(maxLength(str, 255)),
		"tagType": maxLength(str, 255),
		"json":    object,
	})
	must(command.Update, command.Tag, map[string]Field{
		"name":    Field{Types: []Kind{String}, NonEmpty: true, MaxLength: 255},
		"tagType": maxLength(str, 255),
		"json":    object,
	})

	must(command.Create, command.Notebook, map[string]Field{
		"name":        required(maxLength(str, 255)),
		"description": str,
		"status":      enum(notebookStatuses...),
		"settings":    object,
	})
	must(command.Update, command.Notebook, map[string]Field{
		"name":        Field{Types: []Kind{String}, NonEmpty: true, MaxLength: 255},
		"description": str,
		"status":      enum(notebookStatuses...),
		"settings":    object,
	})

	must(command.Create, command.Collaborator, map[string]Field{
		"memberId":   required(str),
		"status":     enum(collaboratorStatuses...),
		"permission": object,
	})
	must(command.Update, command.Collaborator, map[string]Field{
		"status":     enum(collaboratorStatuses...),
		"permission": object,
	})

	must(command.Create, command.Document, map[string]Field{
		"documentPath": required(str),
		"mediaType":    required(str),
		"url":          str,
		"json":         object,
	})

	must(command.Read, command.Publication, map[string]Field{
		"selector": required(object),
		"json":     object,
	})

	must(command.Arrive, command.Publication, map[string]Field{
		"selector": object,
	})

	return r
}
