// Package schema validates command payloads against declarative shapes.
//
// A [Registry] maps (verb, object type) to a [Shape]. Validation failures are
// collected per field path into a [*ValidationError] whose entries carry a
// keyword (required, type, maxLength, enum) and the parameters of the broken
// rule, ready to be returned to clients as is. Fields a shape does not declare
// are ignored.
package schema

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/marginalia-app/marginalia/pkg/command"
)

// Kind is a JSON value type.
type Kind string

const (
	String  Kind = "string"
	Integer Kind = "integer"
	Number  Kind = "number"
	Boolean Kind = "boolean"
	Object  Kind = "object"
	Array   Kind = "array"
)

// Field holds the rules for one payload field.
type Field struct {
	// Types lists the accepted kinds; empty accepts anything.
	Types    []Kind
	Required bool
	// NonEmpty treats "" and [] as missing when the field is present.
	NonEmpty  bool
	MaxLength int
	Enum      []string
	// Minimum and Maximum bound numeric values when set.
	Minimum, Maximum *float64
	// Items restricts the kinds of array elements.
	Items []Kind
}

// Shape is the set of field rules for one (verb, object type) pair.
type Shape struct {
	Fields map[string]Field
}

// Violation is one broken rule.
type Violation struct {
	Keyword string         `json:"keyword"`
	Params  map[string]any `json:"params,omitempty"`
}

// ValidationError maps field paths to their violations.
type ValidationError struct {
	Fields map[string][]Violation
}

func (e *ValidationError) Error() string {
	paths := make([]string, 0, len(e.Fields))
	for p := range e.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	parts := make([]string, 0, len(paths))
	for _, p := range paths {
		keywords := make([]string, 0, len(e.Fields[p]))
		for _, v := range e.Fields[p] {
			keywords = append(keywords, v.Keyword)
		}
		parts = append(parts, fmt.Sprintf("%s (%s)", p, strings.Join(keywords, ", ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a violation for path.
func (e *ValidationError) Add(path, keyword string, params map[string]any) {
	if e.Fields == nil {
		e.Fields = map[string][]Violation{}
	}
	e.Fields[path] = append(e.Fields[path], Violation{Keyword: keyword, Params: params})
}

// Err returns e, or nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

type key struct {
	verb command.Verb
	typ  command.ResourceType
}

// Registry stores payload shapes.
type Registry struct {
	shapes map[key]Shape
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{shapes: make(map[key]Shape)}
}

// Register adds the shape for (verb, typ).
func (r *Registry) Register(verb command.Verb, typ command.ResourceType, shape Shape) error {
	k := key{verb: verb, typ: typ}
	if _, exists := r.shapes[k]; exists {
		return fmt.Errorf("shape already registered: %s %s", verb, typ)
	}
	r.shapes[k] = shape
	return nil
}

// Shape returns the shape registered for (verb, typ).
func (r *Registry) Shape(verb command.Verb, typ command.ResourceType) (Shape, bool) {
	s, ok := r.shapes[key{verb: verb, typ: typ}]
	return s, ok
}

// Validate checks the command object against its shape. Pairs without a
// registered shape accept any payload.
func (r *Registry) Validate(cmd command.Command) error {
	shape, ok := r.Shape(cmd.Verb, cmd.Object.Type)
	if !ok {
		return nil
	}
	return shape.Validate(cmd.Object.Fields)
}

// Validate checks fields against the shape.
func (s Shape) Validate(fields map[string]any) error {
	names := make([]string, 0, len(s.Fields))
	for name := range s.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	errs := &ValidationError{}
	for _, name := range names {
		s.Fields[name].check(name, fields[name], errs)
	}
	return errs.Err()
}

func (f Field) check(path string, v any, errs *ValidationError) {
	if v == nil {
		if f.Required {
			errs.Add(path, "required", map[string]any{"missingProperty": path})
		}
		return
	}

	kind := kindOf(v)
	if len(f.Types) > 0 && !accepts(f.Types, kind) {
		errs.Add(path, "type", map[string]any{"type": joinKinds(f.Types)})
		return
	}

	if f.NonEmpty && isEmpty(v) {
		errs.Add(path, "required", map[string]any{"missingProperty": path})
		return
	}

	if s, ok := v.(string); ok {
		if f.MaxLength > 0 && len([]rune(s)) > f.MaxLength {
			errs.Add(path, "maxLength", map[string]any{"limit": f.MaxLength})
		}
		if len(f.Enum) > 0 && !contains(f.Enum, s) {
			errs.Add(path, "enum", map[string]any{"allowedValues": f.Enum})
		}
	}

	if n, ok := number(v); ok {
		if f.Minimum != nil && n < *f.Minimum {
			errs.Add(path, "minimum", map[string]any{"comparison": ">=", "limit": *f.Minimum})
		}
		if f.Maximum != nil && n > *f.Maximum {
			errs.Add(path, "maximum", map[string]any{"comparison": "<=", "limit": *f.Maximum})
		}
	}

	if items, ok := v.([]any); ok && len(f.Items) > 0 {
		for i, item := range items {
			if !accepts(f.Items, kindOf(item)) {
				errs.Add(path+"."+strconv.Itoa(i), "type", map[string]any{"type": joinKinds(f.Items)})
			}
		}
	}
}

func kindOf(v any) Kind {
	switch n := v.(type) {
	case string:
		return String
	case bool:
		return Boolean
	case float64:
		if n == math.Trunc(n) {
			return Integer
		}
		return Number
	case float32:
		return Number
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Integer
	case map[string]any:
		return Object
	case []any:
		return Array
	}
	return ""
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func accepts(kinds []Kind, k Kind) bool {
	for _, want := range kinds {
		if want == k || (want == Number && k == Integer) {
			return true
		}
	}
	return false
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x) == ""
	case []any:
		return len(x) == 0
	}
	return false
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func joinKinds(kinds []Kind) string {
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}
