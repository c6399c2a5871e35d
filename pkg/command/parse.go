package command

import (
	"strings"
)

// objectIDRequired lists verbs that act on an existing object.
var objectIDRequired = map[Verb]bool{
	Update: true,
	Delete: true,
	Add:    true,
	Remove: true,
	Read:   true,
	Arrive: true,
}

// targetRequired reports whether the command cannot be routed without a target.
func targetRequired(verb Verb, object ResourceType) bool {
	switch verb {
	case Add, Remove:
		return true
	case Create:
		return object == Collaborator || object == Document
	}
	return false
}

// Parse checks the structure of env and returns the canonical command.
// Every problem found is reported in a single *EnvelopeError.
func Parse(env Envelope) (Command, error) {
	var (
		cmd     Command
		errs    EnvelopeError
		verbOK  bool
		objType ResourceType
	)

	switch verb := strings.TrimSpace(env.Type); {
	case verb == "":
		errs.missing("body.type")
	default:
		cmd.Verb, verbOK = ParseVerb(verb)
		if !verbOK {
			errs.bad("body.type", UnsupportedVerb)
		}
	}

	actor, ok := actorID(env.Actor)
	if !ok {
		errs.bad("actor", InvalidField)
	}
	cmd.Actor = actor

	if env.Object == nil {
		errs.missing("object")
	} else {
		objType = parseType(env.Object, "object", &errs)
		cmd.Object = Payload{Type: objType, Fields: fields(env.Object)}

		id, present, ok := stringField(env.Object, "id")
		switch {
		case !ok:
			errs.bad("object.id", InvalidField)
		case !present && verbOK && objectIDRequired[cmd.Verb]:
			errs.missing("object.id")
		default:
			cmd.Object.ID = id
		}
	}

	switch {
	case env.Target != nil:
		target := Ref{Type: parseType(env.Target, "target", &errs)}
		id, present, ok := stringField(env.Target, "id")
		switch {
		case !ok:
			errs.bad("target.id", InvalidField)
		case !present:
			errs.missing("target.id")
		default:
			target.ID = id
		}
		cmd.Target = &target
	case verbOK && targetRequired(cmd.Verb, objType):
		errs.missing("target")
	}

	if !errs.empty() {
		return Command{}, &errs
	}
	return cmd, nil
}

// parseType reads the "type" tag of an object or target.
func parseType(m map[string]any, side string, errs *EnvelopeError) ResourceType {
	s, present, ok := stringField(m, "type")
	if !present && ok {
		errs.missing(side + ".type")
		return ""
	}
	t, known := ParseResourceType(s)
	if !ok || !known {
		errs.bad(side+".type", UnsupportedObjectType)
		return ""
	}
	return t
}

// stringField returns m[key] as a trimmed string. present is false for a
// missing, null or blank value; ok is false when the value is not a string.
func stringField(m map[string]any, key string) (s string, present, ok bool) {
	v, exists := m[key]
	if !exists || v == nil {
		return "", false, true
	}
	s, ok = v.(string)
	if !ok {
		return "", true, false
	}
	s = strings.TrimSpace(s)
	return s, s != "", true
}

// fields copies the payload without its type and id.
func fields(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if k == "type" || k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}

// actorID accepts a bare reader id or an object carrying one under "id".
func actorID(v any) (string, bool) {
	switch a := v.(type) {
	case nil:
		return "", true
	case string:
		return strings.TrimSpace(a), true
	case map[string]any:
		id, _, ok := stringField(a, "id")
		return id, ok
	default:
		return "", false
	}
}
