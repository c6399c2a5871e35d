package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		env         Envelope
		wantReason  Reason
		wantMissing []string
		wantBad     []string
	}{
		{
			name: "create publication",
			env: Envelope{
				Type:   "Create",
				Object: map[string]any{"type": "Publication", "name": "Dune"},
			},
		},
		{
			name:        "missing verb",
			env:         Envelope{Object: map[string]any{"type": "Publication"}},
			wantReason:  MissingField,
			wantMissing: []string{"body.type"},
		},
		{
			name:       "unknown verb",
			env:        Envelope{Type: "Like", Object: map[string]any{"type": "Publication"}},
			wantReason: UnsupportedVerb,
			wantBad:    []string{"body.type"},
		},
		{
			name:        "missing object",
			env:         Envelope{Type: "Create"},
			wantReason:  MissingField,
			wantMissing: []string{"object"},
		},
		{
			name:        "missing object type",
			env:         Envelope{Type: "Create", Object: map[string]any{"name": "x"}},
			wantReason:  MissingField,
			wantMissing: []string{"object.type"},
		},
		{
			name:       "unknown object type",
			env:        Envelope{Type: "Create", Object: map[string]any{"type": "Reader"}},
			wantReason: UnsupportedObjectType,
			wantBad:    []string{"object.type"},
		},
		{
			name:       "object type is not a string",
			env:        Envelope{Type: "Create", Object: map[string]any{"type": 3}},
			wantReason: UnsupportedObjectType,
			wantBad:    []string{"object.type"},
		},
		{
			name:        "update needs object id",
			env:         Envelope{Type: "Update", Object: map[string]any{"type": "Note"}},
			wantReason:  MissingField,
			wantMissing: []string{"object.id"},
		},
		{
			name:        "add without target",
			env:         Envelope{Type: "Add", Object: map[string]any{"type": "Tag", "id": "t"}},
			wantReason:  MissingField,
			wantMissing: []string{"target"},
		},
		{
			name: "remove reports every missing side",
			env: Envelope{
				Type:   "Remove",
				Object: map[string]any{"type": "Tag"},
				Target: map[string]any{"id": "p"},
			},
			wantReason:  MissingField,
			wantMissing: []string{"object.id", "target.type"},
		},
		{
			name: "target without id",
			env: Envelope{
				Type:   "Add",
				Object: map[string]any{"type": "Tag", "id": "t"},
				Target: map[string]any{"type": "Publication"},
			},
			wantReason:  MissingField,
			wantMissing: []string{"target.id"},
		},
		{
			name:        "create collaborator needs a notebook target",
			env:         Envelope{Type: "Create", Object: map[string]any{"type": "Collaborator", "memberId": "r"}},
			wantReason:  MissingField,
			wantMissing: []string{"target"},
		},
		{
			name:       "object id is not a string",
			env:        Envelope{Type: "Delete", Object: map[string]any{"type": "Note", "id": 42.0}},
			wantReason: InvalidField,
			wantBad:    []string{"object.id"},
		},
		{
			name: "invalid target id and actor",
			env: Envelope{
				Actor:  true,
				Type:   "Add",
				Object: map[string]any{"type": "Tag", "id": "t"},
				Target: map[string]any{"type": "Publication", "id": []any{"p"}},
			},
			wantReason: InvalidField,
			wantBad:    []string{"actor", "target.id"},
		},
		{
			name: "invalid field outranks missing fields",
			env: Envelope{
				Type:   "Remove",
				Object: map[string]any{"type": "Tag", "id": 7.0},
			},
			wantReason:  InvalidField,
			wantMissing: []string{"target"},
			wantBad:     []string{"object.id"},
		},
		{
			name: "unknown verb outranks missing fields",
			env: Envelope{
				Type:   "Share",
				Object: map[string]any{"name": "x"},
			},
			wantReason:  UnsupportedVerb,
			wantMissing: []string{"object.type"},
			wantBad:     []string{"body.type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := Parse(tt.env)
			if tt.wantReason == "" {
				require.NoError(t, err)
				assert.NotEmpty(t, cmd.Verb)
				return
			}

			var envErr *EnvelopeError
			require.ErrorAs(t, err, &envErr)
			assert.Equal(t, tt.wantReason, envErr.Reason)
			assert.ElementsMatch(t, tt.wantMissing, envErr.MissingParams)
			assert.ElementsMatch(t, tt.wantBad, envErr.BadParams)
		})
	}
}

func TestParseCanonicalCommand(t *testing.T) {
	cmd, err := Parse(Envelope{
		Actor:  map[string]any{"id": "reader-1"},
		Type:   " Add ",
		Object: map[string]any{"type": "Tag", "id": "tag-1", "name": "ignored but kept"},
		Target: map[string]any{"type": "Note", "id": "note-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "reader-1", cmd.Actor)
	assert.Equal(t, Add, cmd.Verb)
	assert.Equal(t, Ref{Type: Tag, ID: "tag-1"}, cmd.Object.Ref())
	assert.Equal(t, map[string]any{"name": "ignored but kept"}, cmd.Object.Fields)
	require.NotNil(t, cmd.Target)
	assert.Equal(t, Note, cmd.TargetType())
	assert.Equal(t, "note-1", cmd.Target.ID)
}

func TestParseActor(t *testing.T) {
	cmd, err := Parse(Envelope{Actor: "reader-2", Type: "Create", Object: map[string]any{"type": "Tag"}})
	require.NoError(t, err)
	assert.Equal(t, "reader-2", cmd.Actor)

	_, err = Parse(Envelope{Actor: 42, Type: "Create", Object: map[string]any{"type": "Tag"}})
	var envErr *EnvelopeError
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, []string{"actor"}, envErr.BadParams)
}
