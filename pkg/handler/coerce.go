package handler

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/schema"
)

// Coercion rules applied by Prepare:
//
//   - an attribution given as a string becomes {name, type: "Person"}
//   - a link given as a string becomes {url}
//   - a single keywords or inLanguage string becomes a one-element list
//   - a single note body object becomes a one-element list

// asList wraps a single value into a list and passes lists through.
func asList(v any) []any {
	switch x := v.(type) {
	case nil:
		return nil
	case []any:
		return x
	default:
		return []any{x}
	}
}

// coerceStrings turns a string or a list of strings into a []string.
func coerceStrings(v any) []string {
	items := asList(v)
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// coerceLinks turns bare URL strings into link objects.
func coerceLinks(path string, v any, errs *schema.ValidationError) models.Links {
	items := asList(v)
	links := make(models.Links, 0, len(items))
	for i, item := range items {
		switch x := item.(type) {
		case string:
			links = append(links, models.Link{URL: x})
		case map[string]any:
			var link models.Link
			if err := decode(x, &link); err != nil || link.URL == "" {
				errs.Add(path+"."+strconv.Itoa(i)+".url", "required", map[string]any{"missingProperty": "url"})
				continue
			}
			links = append(links, link)
		}
	}
	return links
}

var attributionTypes = []string{"Person", "Organization"}

// coerceAttributions reads every role field of the payload. sent holds the
// roles present in the payload, so updates replace those roles only and an
// empty list clears a role.
func coerceAttributions(fields map[string]any, errs *schema.ValidationError) (attributions []models.Attribution, sent map[models.AttributionRole]bool) {
	sent = map[models.AttributionRole]bool{}
	for _, role := range models.AttributionRoles {
		v, ok := fields[string(role)]
		if !ok {
			continue
		}
		sent[role] = true
		for i, item := range asList(v) {
			path := string(role) + "." + strconv.Itoa(i)
			switch x := item.(type) {
			case string:
				name := strings.TrimSpace(x)
				if name == "" {
					errs.Add(path, "required", map[string]any{"missingProperty": "name"})
					continue
				}
				attributions = append(attributions, models.Attribution{Role: role, Name: name, Type: "Person"})
			case map[string]any:
				name, _ := x["name"].(string)
				if strings.TrimSpace(name) == "" {
					errs.Add(path+".name", "required", map[string]any{"missingProperty": "name"})
					continue
				}
				typ, _ := x["type"].(string)
				if typ == "" {
					typ = "Person"
				}
				if !oneOf(attributionTypes, typ) {
					errs.Add(path+".type", "enum", map[string]any{"allowedValues": attributionTypes})
					continue
				}
				attributions = append(attributions, models.Attribution{Role: role, Name: strings.TrimSpace(name), Type: typ})
			}
		}
	}
	return attributions, sent
}

// coerceBody turns a note body object or list into validated body items.
func coerceBody(v any, errs *schema.ValidationError) models.NoteBodies {
	items := asList(v)
	bodies := make(models.NoteBodies, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		path := "body." + strconv.Itoa(i)
		var body models.NoteBody
		if err := decode(m, &body); err != nil {
			errs.Add(path, "type", map[string]any{"type": "object"})
			continue
		}
		switch {
		case body.Motivation == "":
			errs.Add(path+".motivation", "required", map[string]any{"missingProperty": "motivation"})
		case !oneOf(models.NoteMotivations, body.Motivation):
			errs.Add(path+".motivation", "enum", map[string]any{"allowedValues": models.NoteMotivations})
		default:
			bodies = append(bodies, body)
		}
	}
	return bodies
}

// decode converts a loosely typed payload into dst through its JSON tags.
func decode(src any, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, dst)
}

func stringValue(fields map[string]any, key string) (string, bool) {
	s, ok := fields[key].(string)
	return s, ok
}

func mapValue(fields map[string]any, key string) (models.JSONMap, bool) {
	m, ok := fields[key].(map[string]any)
	return models.JSONMap(m), ok
}

func oneOf(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
