package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginalia-app/marginalia/pkg/command"
)

func validate(t *testing.T, verb command.Verb, typ command.ResourceType, fields map[string]any) *ValidationError {
	t.Helper()
	err := Default().Validate(command.Command{
		Verb:   verb,
		Object: command.Payload{Type: typ, Fields: fields},
	})
	if err == nil {
		return nil
	}
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	return verr
}

func TestCreatePublication(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		verr := validate(t, command.Create, command.Publication, map[string]any{
			"name":         "Dune",
			"readingOrder": []any{"chapter1.html", map[string]any{"url": "chapter2.html"}},
			"author":       "Frank Herbert",
			"keywords":     "scifi",
			"unknownField": true,
		})
		assert.Nil(t, verr)
	})

	t.Run("empty reading order is required", func(t *testing.T) {
		verr := validate(t, command.Create, command.Publication, map[string]any{
			"name":         "Dune",
			"readingOrder": []any{},
		})
		require.NotNil(t, verr)
		require.Len(t, verr.Fields["readingOrder"], 1)
		assert.Equal(t, "required", verr.Fields["readingOrder"][0].Keyword)
	})

	t.Run("missing name and reading order", func(t *testing.T) {
		verr := validate(t, command.Create, command.Publication, map[string]any{})
		require.NotNil(t, verr)
		assert.Equal(t, "required", verr.Fields["name"][0].Keyword)
		assert.Equal(t, "required", verr.Fields["readingOrder"][0].Keyword)
	})

	t.Run("wrong types", func(t *testing.T) {
		verr := validate(t, command.Create, command.Publication, map[string]any{
			"name":          42.0,
			"readingOrder":  []any{"a.html", 7.0},
			"numberOfPages": 12.5,
		})
		require.NotNil(t, verr)
		assert.Equal(t, Violation{Keyword: "type", Params: map[string]any{"type": "string"}}, verr.Fields["name"][0])
		assert.Equal(t, "type", verr.Fields["readingOrder.1"][0].Keyword)
		assert.Equal(t, "type", verr.Fields["numberOfPages"][0].Keyword)
	})
}

func TestUpdatePublicationAllowsPartialPayload(t *testing.T) {
	assert.Nil(t, validate(t, command.Update, command.Publication, map[string]any{"description": "new"}))

	verr := validate(t, command.Update, command.Publication, map[string]any{"readingOrder": []any{}})
	require.NotNil(t, verr)
	assert.Equal(t, "required", verr.Fields["readingOrder"][0].Keyword)
}

func TestNoteShapes(t *testing.T) {
	verr := validate(t, command.Create, command.Note, map[string]any{"noteType": strings.Repeat("x", 256)})
	require.NotNil(t, verr)
	assert.Equal(t, Violation{Keyword: "maxLength", Params: map[string]any{"limit": 255}}, verr.Fields["noteType"][0])

	verr = validate(t, command.Create, command.Note, map[string]any{"body": map[string]any{"motivation": "test"}})
	require.NotNil(t, verr)
	assert.Equal(t, "required", verr.Fields["noteType"][0].Keyword)

	// noteType is frozen after creation: an update carrying it is not an error.
	assert.Nil(t, validate(t, command.Update, command.Note, map[string]any{"noteType": "changed"}))
}

func TestEnum(t *testing.T) {
	verr := validate(t, command.Create, command.Notebook, map[string]any{"name": "n", "status": "deleted"})
	require.NotNil(t, verr)
	assert.Equal(t, "enum", verr.Fields["status"][0].Keyword)
	assert.Equal(t, []string{"active", "archived"}, verr.Fields["status"][0].Params["allowedValues"])
}

func TestReadRequiresSelector(t *testing.T) {
	verr := validate(t, command.Read, command.Publication, map[string]any{})
	require.NotNil(t, verr)
	assert.Equal(t, "required", verr.Fields["selector"][0].Keyword)

	assert.Nil(t, validate(t, command.Read, command.Publication, map[string]any{"selector": map[string]any{"type": "XPathSelector"}}))
}

func TestUnregisteredPairAcceptsAnything(t *testing.T) {
	assert.Nil(t, validate(t, command.Delete, command.Tag, map[string]any{"whatever": 1.0}))
	assert.Nil(t, validate(t, command.Add, command.Tag, nil))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(command.Create, command.Tag, Shape{}))
	assert.Error(t, r.Register(command.Create, command.Tag, Shape{}))
}

func TestValidationErrorMessage(t *testing.T) {
	verr := &ValidationError{}
	assert.NoError(t, verr.Err())

	verr.Add("name", "required", nil)
	verr.Add("name", "type", nil)
	verr.Add("body.0.motivation", "enum", nil)
	assert.EqualError(t, verr.Err(), "validation failed: body.0.motivation (enum); name (required, type)")
}

func TestPageCountBounds(t *testing.T) {
	verr := validate(t, command.Update, command.Publication, map[string]any{"numberOfPages": -1.0})
	require.NotNil(t, verr)
	assert.Equal(t, "minimum", verr.Fields["numberOfPages"][0].Keyword)

	verr = validate(t, command.Update, command.Publication, map[string]any{"numberOfPages": 1e300})
	require.NotNil(t, verr)
	assert.Equal(t, "maximum", verr.Fields["numberOfPages"][0].Keyword)

	assert.Nil(t, validate(t, command.Update, command.Publication, map[string]any{"numberOfPages": 320.0}))
}
