package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginalia-app/marginalia/pkg/command"
	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/schema"
	"github.com/marginalia-app/marginalia/pkg/store"
	"github.com/marginalia-app/marginalia/pkg/store/memory"
)

func setup(t *testing.T) (*memory.Store, models.ReaderID) {
	t.Helper()
	st := memory.New()
	r := &models.Reader{Name: "reader"}
	require.NoError(t, st.CreateReader(context.Background(), r))
	return st, r.ID
}

func run(t *testing.T, st store.Store, o Operation, cmd command.Command, actor models.ReaderID) (Result, error) {
	t.Helper()
	intent, err := o.Prepare(cmd, actor)
	if err != nil {
		return Result{}, err
	}
	return o.Execute(context.Background(), st, intent)
}

func createPublication(t *testing.T, st store.Store, actor models.ReaderID) *models.Publication {
	t.Helper()
	res, err := run(t, st, CreatePublication(), command.Command{
		Verb: command.Create,
		Object: command.Payload{Type: command.Publication, Fields: map[string]any{
			"name":         "Moby Dick",
			"readingOrder": []any{"chapter1.html"},
		}},
	}, actor)
	require.NoError(t, err)
	return res.Object.Value.(*models.Publication)
}

func createTag(t *testing.T, st store.Store, actor models.ReaderID, name string) *models.Tag {
	t.Helper()
	res, err := run(t, st, CreateTag(), command.Command{
		Verb:   command.Create,
		Object: command.Payload{Type: command.Tag, Fields: map[string]any{"name": name}},
	}, actor)
	require.NoError(t, err)
	return res.Object.Value.(*models.Tag)
}

func TestCreatePublicationCoercesLooseInput(t *testing.T) {
	st, actor := setup(t)

	res, err := run(t, st, CreatePublication(), command.Command{
		Verb: command.Create,
		Object: command.Payload{Type: command.Publication, Fields: map[string]any{
			"name":         "Moby Dick",
			"readingOrder": []any{"chapter1.html", map[string]any{"url": "chapter2.html", "name": "Two"}},
			"author":       "Herman Melville",
			"publisher":    map[string]any{"name": "Harper", "type": "Organization"},
			"keywords":     "whales",
			"inLanguage":   []any{"en"},
		}},
	}, actor)
	require.NoError(t, err)

	pub := res.Object.Value.(*models.Publication)
	assert.Equal(t, "Publication", res.Object.Type)
	assert.Equal(t, actor, pub.ReaderID)
	assert.False(t, pub.ID.IsZero())
	assert.Equal(t, []string{"whales"}, []string(pub.Keywords))
	assert.Equal(t, []string{"en"}, []string(pub.InLanguage))
	require.Len(t, pub.ReadingOrder, 2)
	assert.Equal(t, "chapter1.html", pub.ReadingOrder[0].URL)
	assert.Equal(t, "Two", pub.ReadingOrder[1].Name)

	require.Len(t, pub.Attributions, 2)
	byRole := map[models.AttributionRole]models.Attribution{}
	for _, a := range pub.Attributions {
		byRole[a.Role] = a
	}
	assert.Equal(t, "Person", byRole["author"].Type)
	assert.Equal(t, "Herman Melville", byRole["author"].Name)
	assert.Equal(t, "Organization", byRole["publisher"].Type)
}

func TestPrepareRejectsBadAttributionsAndBodies(t *testing.T) {
	tests := []struct {
		name string
		op   Operation
		cmd  command.Command
		path string
	}{
		{
			name: "attribution without name",
			op:   CreatePublication(),
			cmd: command.Command{Verb: command.Create, Object: command.Payload{Type: command.Publication, Fields: map[string]any{
				"name": "x", "readingOrder": []any{"a"}, "author": []any{map[string]any{"type": "Person"}},
			}}},
			path: "author.0.name",
		},
		{
			name: "attribution with unknown type",
			op:   CreatePublication(),
			cmd: command.Command{Verb: command.Create, Object: command.Payload{Type: command.Publication, Fields: map[string]any{
				"name": "x", "readingOrder": []any{"a"}, "editor": map[string]any{"name": "Ed", "type": "Robot"},
			}}},
			path: "editor.0.type",
		},
		{
			name: "negative page count",
			op:   CreatePublication(),
			cmd: command.Command{Verb: command.Create, Object: command.Payload{Type: command.Publication, Fields: map[string]any{
				"name": "x", "readingOrder": []any{"a"}, "numberOfPages": -3.0,
			}}},
			path: "numberOfPages",
		},
		{
			name: "page count beyond range",
			op:   UpdatePublication(),
			cmd: command.Command{Verb: command.Update, Object: command.Payload{Type: command.Publication, Fields: map[string]any{
				"numberOfPages": 1e300,
			}}},
			path: "numberOfPages",
		},
		{
			name: "body without motivation",
			op:   CreateNote(),
			cmd: command.Command{Verb: command.Create, Object: command.Payload{Type: command.Note, Fields: map[string]any{
				"noteType": "reader:Note", "body": map[string]any{"content": "hi"},
			}}},
			path: "body.0.motivation",
		},
		{
			name: "body with unknown motivation",
			op:   CreateNote(),
			cmd: command.Command{Verb: command.Create, Object: command.Payload{Type: command.Note, Fields: map[string]any{
				"noteType": "reader:Note", "body": []any{map[string]any{"motivation": "singing"}},
			}}},
			path: "body.0.motivation",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op.Prepare(tt.cmd, models.NewReaderID())
			var verr *schema.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Contains(t, verr.Fields, tt.path)
		})
	}
}

func TestUpdatePublicationReplacesSentRolesOnly(t *testing.T) {
	st, actor := setup(t)
	ctx := context.Background()

	res, err := run(t, st, CreatePublication(), command.Command{
		Verb: command.Create,
		Object: command.Payload{Type: command.Publication, Fields: map[string]any{
			"name":         "Moby Dick",
			"readingOrder": []any{"chapter1.html"},
			"author":       "Herman Melville",
			"translator":   "Jean Giono",
		}},
	}, actor)
	require.NoError(t, err)
	pub := res.Object.Value.(*models.Publication)

	update := func(fields map[string]any) *models.Publication {
		t.Helper()
		_, err := run(t, st, UpdatePublication(), command.Command{
			Verb:   command.Update,
			Object: command.Payload{Type: command.Publication, ID: pub.ID.String(), Fields: fields},
		}, actor)
		require.NoError(t, err)
		got, err := st.GetPublication(ctx, pub.ID)
		require.NoError(t, err)
		return got
	}
	names := func(p *models.Publication) map[models.AttributionRole][]string {
		out := map[models.AttributionRole][]string{}
		for _, a := range p.Attributions {
			out[a.Role] = append(out[a.Role], a.Name)
		}
		return out
	}

	got := update(map[string]any{"editor": "Ed Itor"})
	assert.Equal(t, map[models.AttributionRole][]string{
		"author":     {"Herman Melville"},
		"translator": {"Jean Giono"},
		"editor":     {"Ed Itor"},
	}, names(got))

	got = update(map[string]any{"author": []any{"A", "B"}, "translator": []any{}})
	assert.Equal(t, map[models.AttributionRole][]string{
		"author": {"A", "B"},
		"editor": {"Ed Itor"},
	}, names(got))

	got = update(map[string]any{"name": "Moby-Dick"})
	assert.Equal(t, "Moby-Dick", got.Name)
	assert.Len(t, got.Attributions, 3)
}

func TestPageCountWithinRange(t *testing.T) {
	p, err := preparePublication(map[string]any{"numberOfPages": 635.0})
	require.NoError(t, err)
	require.NotNil(t, p.NumberOfPages)
	assert.Equal(t, 635, *p.NumberOfPages)
}

func TestUpdateNoteKeepsFrozenFields(t *testing.T) {
	st, actor := setup(t)
	pub := createPublication(t, st, actor)

	res, err := run(t, st, CreateNote(), command.Command{
		Verb: command.Create,
		Object: command.Payload{Type: command.Note, Fields: map[string]any{
			"noteType":      "reader:Note",
			"publicationId": pub.ID.String(),
			"body":          map[string]any{"content": "first", "motivation": "commenting"},
		}},
	}, actor)
	require.NoError(t, err)
	note := res.Object.Value.(*models.Note)
	require.NotNil(t, note.PublicationID)

	res, err = run(t, st, UpdateNote(), command.Command{
		Verb: command.Update,
		Object: command.Payload{Type: command.Note, ID: note.ID.String(), Fields: map[string]any{
			"noteType": "reader:Other",
			"body":     []any{map[string]any{"content": "second", "motivation": "highlighting"}},
		}},
	}, actor)
	require.NoError(t, err)

	updated := res.Object.Value.(*models.Note)
	assert.Equal(t, "reader:Note", updated.NoteType)
	assert.Equal(t, pub.ID, *updated.PublicationID)
	require.Len(t, updated.Body, 1)
	assert.Equal(t, "second", updated.Body[0].Content)
}

func TestCreateNoteWithMissingPublication(t *testing.T) {
	st, actor := setup(t)

	_, err := run(t, st, CreateNote(), command.Command{
		Verb: command.Create,
		Object: command.Payload{Type: command.Note, Fields: map[string]any{
			"noteType": "reader:Note", "publicationId": "not-a-uuid",
		}},
	}, actor)
	var nf *store.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Publication", nf.Type)
	assert.Equal(t, "not-a-uuid", nf.ID)
}

func TestCreateTagTwiceConflicts(t *testing.T) {
	st, actor := setup(t)
	createTag(t, st, actor, "whales")

	_, err := run(t, st, CreateTag(), command.Command{
		Verb:   command.Create,
		Object: command.Payload{Type: command.Tag, Fields: map[string]any{"name": "whales"}},
	}, actor)
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestRelations(t *testing.T) {
	st, actor := setup(t)
	pub := createPublication(t, st, actor)
	tag := createTag(t, st, actor, "whales")

	cmd := command.Command{
		Verb:   command.Add,
		Object: command.Payload{Type: command.Tag, ID: tag.ID.String()},
		Target: &command.Ref{Type: command.Publication, ID: pub.ID.String()},
	}

	res, err := run(t, st, AddRelation(models.PublicationTag), cmd, actor)
	require.NoError(t, err)
	assert.Equal(t, "Tag", res.Object.Type)
	require.NotNil(t, res.Target)
	assert.Equal(t, "Publication", res.Target.Type)

	ok, err := st.HasRelation(context.Background(), models.PublicationTag, pub.ID.UUID(), tag.ID.UUID())
	require.NoError(t, err)
	assert.True(t, ok)

	t.Run("duplicate add conflicts", func(t *testing.T) {
		_, err := run(t, st, AddRelation(models.PublicationTag), cmd, actor)
		assert.True(t, errors.Is(err, store.ErrConflict))
	})

	t.Run("remove then remove again", func(t *testing.T) {
		cmd := cmd
		cmd.Verb = command.Remove
		_, err := run(t, st, RemoveRelation(models.PublicationTag), cmd, actor)
		require.NoError(t, err)

		_, err = run(t, st, RemoveRelation(models.PublicationTag), cmd, actor)
		var nf *store.NotFoundError
		require.ErrorAs(t, err, &nf)
		assert.Equal(t, "Publication_Tag", nf.Type)
	})
}

func TestExecuteAfterConcurrentDelete(t *testing.T) {
	st, actor := setup(t)
	pub := createPublication(t, st, actor)
	tag := createTag(t, st, actor, "whales")

	add := AddRelation(models.PublicationTag)
	intent, err := add.Prepare(command.Command{
		Verb:   command.Add,
		Object: command.Payload{Type: command.Tag, ID: tag.ID.String()},
		Target: &command.Ref{Type: command.Publication, ID: pub.ID.String()},
	}, actor)
	require.NoError(t, err)

	require.NoError(t, st.DeletePublication(context.Background(), pub.ID))

	_, err = add.Execute(context.Background(), st, intent)
	var nf *store.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "Publication", nf.Type)
	assert.Equal(t, pub.ID.String(), nf.ID)
}

func TestRecordReadAppendsEveryTime(t *testing.T) {
	st, actor := setup(t)
	pub := createPublication(t, st, actor)

	cmd := command.Command{
		Verb: command.Read,
		Object: command.Payload{Type: command.Publication, ID: pub.ID.String(), Fields: map[string]any{
			"selector": map[string]any{"type": "XPathSelector", "value": "/html/body/p[2]"},
		}},
	}
	first, err := run(t, st, RecordRead(), cmd, actor)
	require.NoError(t, err)
	second, err := run(t, st, RecordRead(), cmd, actor)
	require.NoError(t, err)

	assert.Equal(t, "ReadActivity", first.Object.Type)
	assert.NotEqual(t,
		first.Object.Value.(*models.ReadActivity).ID,
		second.Object.Value.(*models.ReadActivity).ID)

	reads, err := st.ListReadActivities(context.Background(), pub.ID)
	require.NoError(t, err)
	assert.Len(t, reads, 2)
}

func TestCreateCollaborator(t *testing.T) {
	st, actor := setup(t)
	member := &models.Reader{Name: "member"}
	require.NoError(t, st.CreateReader(context.Background(), member))

	res, err := run(t, st, CreateNotebook(), command.Command{
		Verb:   command.Create,
		Object: command.Payload{Type: command.Notebook, Fields: map[string]any{"name": "Whaling"}},
	}, actor)
	require.NoError(t, err)
	nb := res.Object.Value.(*models.Notebook)
	assert.Equal(t, models.NotebookActive, nb.Status)

	cmd := command.Command{
		Verb:   command.Create,
		Object: command.Payload{Type: command.Collaborator, Fields: map[string]any{"memberId": member.ID.String()}},
		Target: &command.Ref{Type: command.Notebook, ID: nb.ID.String()},
	}
	res, err = run(t, st, CreateCollaborator(), cmd, actor)
	require.NoError(t, err)

	c := res.Object.Value.(*models.Collaborator)
	assert.Equal(t, models.CollaboratorPending, c.Status)
	assert.Equal(t, member.ID, c.MemberID)
	require.NotNil(t, res.Target)
	assert.Equal(t, "Notebook", res.Target.Type)

	_, err = run(t, st, CreateCollaborator(), cmd, actor)
	assert.True(t, errors.Is(err, store.ErrConflict))
}

func TestResourceProbes(t *testing.T) {
	st, actor := setup(t)
	pub := createPublication(t, st, actor)
	res, ok := ResourceFor(command.Publication)
	require.True(t, ok)
	ctx := context.Background()

	exists, err := res.Exists(ctx, st, pub.ID.String())
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = res.Exists(ctx, st, "garbage")
	require.NoError(t, err)
	assert.False(t, exists)

	owned, err := res.OwnedBy(ctx, st, pub.ID.String(), actor)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = res.OwnedBy(ctx, st, pub.ID.String(), models.NewReaderID())
	require.NoError(t, err)
	assert.False(t, owned)

	_, ok = ResourceFor(command.ReadActivity)
	assert.False(t, ok)
}
