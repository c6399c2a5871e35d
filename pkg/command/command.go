// Package command defines the command envelope and its structural parser.
//
// A client sends an [Envelope]: a verb plus a typed object and, for some verbs,
// a typed target. [Parse] checks the shape of the envelope without touching
// storage and returns the canonical [Command] used by the rest of the engine.
package command

import (
	"fmt"
	"strings"
)

// Verb is the action keyword of a command.
type Verb string

const (
	Create Verb = "Create"
	Update Verb = "Update"
	Delete Verb = "Delete"
	Add    Verb = "Add"
	Remove Verb = "Remove"
	Read   Verb = "Read"
	Arrive Verb = "Arrive"
)

// Verbs lists every accepted verb.
var Verbs = []Verb{Create, Update, Delete, Add, Remove, Read, Arrive}

// ParseVerb reports whether s names a known verb.
func ParseVerb(s string) (Verb, bool) {
	for _, v := range Verbs {
		if string(v) == s {
			return v, true
		}
	}
	return "", false
}

// ResourceType is the type tag of a command object or target.
type ResourceType string

const (
	Publication  ResourceType = "Publication"
	Note         ResourceType = "Note"
	Tag          ResourceType = "Tag"
	Notebook     ResourceType = "Notebook"
	Document     ResourceType = "Document"
	Collaborator ResourceType = "Collaborator"
	ReadActivity ResourceType = "ReadActivity"
)

// ResourceTypes lists every resource type a command may name.
var ResourceTypes = []ResourceType{Publication, Note, Tag, Notebook, Document, Collaborator, ReadActivity}

// ParseResourceType reports whether s names a known resource type.
func ParseResourceType(s string) (ResourceType, bool) {
	for _, t := range ResourceTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Envelope is the inbound command as decoded from JSON.
type Envelope struct {
	// Actor is optional. When present it is either a reader id or an object
	// carrying one under "id", and must match the authenticated reader.
	Actor  any            `json:"actor,omitempty"`
	Type   string         `json:"type"`
	Object map[string]any `json:"object"`
	Target map[string]any `json:"target,omitempty"`
}

// Ref points at an existing resource.
type Ref struct {
	Type ResourceType `json:"type"`
	ID   string       `json:"id"`
}

func (r Ref) String() string {
	return fmt.Sprintf("%s %s", r.Type, r.ID)
}

// Payload is the command object: a typed reference plus the remaining fields.
// Fields never contains "type" or "id".
type Payload struct {
	Type   ResourceType
	ID     string
	Fields map[string]any
}

// Ref returns the object as a reference.
func (p Payload) Ref() Ref {
	return Ref{Type: p.Type, ID: p.ID}
}

// Command is the canonical, structurally valid form of an envelope.
type Command struct {
	// Actor is the reader id named in the envelope, empty when absent.
	Actor  string
	Verb   Verb
	Object Payload
	Target *Ref
}

// TargetType returns the target's type, or "" when the command has no target.
func (c Command) TargetType() ResourceType {
	if c.Target == nil {
		return ""
	}
	return c.Target.Type
}

// Reason classifies an envelope error.
type Reason string

const (
	UnsupportedVerb       Reason = "UnsupportedVerb"
	UnsupportedObjectType Reason = "UnsupportedObjectType"
	MissingField          Reason = "MissingField"
	// InvalidField marks a field that is present with the wrong JSON type.
	InvalidField Reason = "InvalidField"
)

// EnvelopeError collects every structural problem found in one envelope.
// Params are envelope paths such as "body.type", "object.type" or "target".
type EnvelopeError struct {
	Reason        Reason
	MissingParams []string
	BadParams     []string
}

func (e *EnvelopeError) Error() string {
	var parts []string
	if len(e.MissingParams) > 0 {
		parts = append(parts, "missing "+strings.Join(e.MissingParams, ", "))
	}
	if len(e.BadParams) > 0 {
		parts = append(parts, "bad "+strings.Join(e.BadParams, ", "))
	}
	return fmt.Sprintf("bad envelope (%s): %s", e.Reason, strings.Join(parts, "; "))
}

func (e *EnvelopeError) missing(path string) {
	e.MissingParams = append(e.MissingParams, path)
	e.setReason(MissingField)
}

func (e *EnvelopeError) bad(path string, reason Reason) {
	e.BadParams = append(e.BadParams, path)
	e.setReason(reason)
}

// setReason keeps the most specific reason: an unknown verb outranks an
// unknown type, then an invalid field, then a missing one.
func (e *EnvelopeError) setReason(r Reason) {
	rank := map[Reason]int{"": 0, MissingField: 1, InvalidField: 2, UnsupportedObjectType: 3, UnsupportedVerb: 4}
	if rank[r] > rank[e.Reason] {
		e.Reason = r
	}
}

func (e *EnvelopeError) empty() bool {
	return len(e.MissingParams) == 0 && len(e.BadParams) == 0
}
