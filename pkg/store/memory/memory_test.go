package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

func newReader(t *testing.T, s *Store) models.ReaderID {
	t.Helper()
	r := &models.Reader{Name: "reader"}
	require.NoError(t, s.CreateReader(context.Background(), r))
	return r.ID
}

func TestGetMissingReturnsNil(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, err := s.GetPublication(ctx, models.NewPublicationID())
	require.NoError(t, err)
	assert.Nil(t, p)

	tag, err := s.GetTag(ctx, models.NewTagID())
	require.NoError(t, err)
	assert.Nil(t, tag)
}

func TestTagNameUniquePerReader(t *testing.T) {
	s := New()
	ctx := context.Background()
	alice := newReader(t, s)
	bob := newReader(t, s)

	require.NoError(t, s.CreateTag(ctx, &models.Tag{ReaderID: alice, Name: "to-read"}))

	err := s.CreateTag(ctx, &models.Tag{ReaderID: alice, Name: "to-read"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, store.ErrConflict))

	// another reader may reuse the name
	require.NoError(t, s.CreateTag(ctx, &models.Tag{ReaderID: bob, Name: "to-read"}))
}

func TestRelations(t *testing.T) {
	s := New()
	ctx := context.Background()
	reader := newReader(t, s)
	left, right := models.NewPublicationID().UUID(), models.NewTagID().UUID()

	rel := &models.Relation{Kind: models.PublicationTag, LeftID: left, RightID: right, ReaderID: reader}
	require.NoError(t, s.AddRelation(ctx, rel))

	err := s.AddRelation(ctx, &models.Relation{Kind: models.PublicationTag, LeftID: left, RightID: right, ReaderID: reader})
	var conflict *store.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Publication_Tag", conflict.Type)

	// same ids under a different kind are a different pair
	require.NoError(t, s.AddRelation(ctx, &models.Relation{Kind: models.NoteTag, LeftID: left, RightID: right, ReaderID: reader}))

	ok, err := s.HasRelation(ctx, models.PublicationTag, left, right)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.RemoveRelation(ctx, models.PublicationTag, left, right))
	err = s.RemoveRelation(ctx, models.PublicationTag, left, right)
	var notFound *store.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "Publication_Tag", notFound.Type)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	reader := newReader(t, s)
	boom := errors.New("boom")

	var created models.PublicationID
	err := s.WithinTx(ctx, func(tx store.Store) error {
		p := &models.Publication{ReaderID: reader, Name: "Dune"}
		require.NoError(t, tx.CreatePublication(ctx, p))
		created = p.ID

		got, err := tx.GetPublication(ctx, p.ID)
		require.NoError(t, err)
		require.NotNil(t, got, "writes are visible inside the transaction")

		require.NoError(t, tx.AppendActivity(ctx, &models.Activity{Type: "Create", ActorID: reader, ReaderID: reader}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.GetPublication(ctx, created)
	require.NoError(t, err)
	assert.Nil(t, got)

	activities, err := s.ListActivities(ctx, reader, 0)
	require.NoError(t, err)
	assert.Empty(t, activities)
}

func TestWithinTxCommits(t *testing.T) {
	s := New()
	ctx := context.Background()
	reader := newReader(t, s)

	var created models.TagID
	require.NoError(t, s.WithinTx(ctx, func(tx store.Store) error {
		tag := &models.Tag{ReaderID: reader, Name: "fiction"}
		if err := tx.CreateTag(ctx, tag); err != nil {
			return err
		}
		created = tag.ID
		return nil
	}))

	got, err := s.GetTag(ctx, created)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fiction", got.Name)
}

func TestDeletePublicationCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	reader := newReader(t, s)

	pub := &models.Publication{ReaderID: reader, Name: "Dune"}
	require.NoError(t, s.CreatePublication(ctx, pub))
	note := &models.Note{ReaderID: reader, NoteType: "test", PublicationID: &pub.ID}
	require.NoError(t, s.CreateNote(ctx, note))
	tag := &models.Tag{ReaderID: reader, Name: "scifi"}
	require.NoError(t, s.CreateTag(ctx, tag))
	require.NoError(t, s.AddRelation(ctx, &models.Relation{Kind: models.PublicationTag, LeftID: pub.ID.UUID(), RightID: tag.ID.UUID(), ReaderID: reader}))
	require.NoError(t, s.AddRelation(ctx, &models.Relation{Kind: models.NoteTag, LeftID: note.ID.UUID(), RightID: tag.ID.UUID(), ReaderID: reader}))

	require.NoError(t, s.DeletePublication(ctx, pub.ID))

	gotPub, err := s.GetPublication(ctx, pub.ID)
	require.NoError(t, err)
	assert.Nil(t, gotPub)

	gotNote, err := s.GetNote(ctx, note.ID)
	require.NoError(t, err)
	assert.Nil(t, gotNote)

	gotTag, err := s.GetTag(ctx, tag.ID)
	require.NoError(t, err)
	assert.NotNil(t, gotTag, "tags outlive the publications they label")

	for _, kind := range []models.RelationKind{models.PublicationTag, models.NoteTag} {
		n, err := s.CountRelations(ctx, kind)
		require.NoError(t, err)
		assert.Zero(t, n, kind)
	}

	err = s.DeletePublication(ctx, pub.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestListActivitiesNewestFirst(t *testing.T) {
	s := New()
	ctx := context.Background()
	reader := newReader(t, s)
	other := newReader(t, s)

	for _, typ := range []string{"Create", "Update", "Delete"} {
		require.NoError(t, s.AppendActivity(ctx, &models.Activity{Type: typ, ActorID: reader, ReaderID: reader}))
	}
	require.NoError(t, s.AppendActivity(ctx, &models.Activity{Type: "Create", ActorID: other, ReaderID: other}))

	all, err := s.ListActivities(ctx, reader, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Delete", all[0].Type)
	assert.Equal(t, "Create", all[2].Type)

	limited, err := s.ListActivities(ctx, reader, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestConcurrentAddRelation(t *testing.T) {
	s := New()
	ctx := context.Background()
	reader := newReader(t, s)
	left, right := models.NewNotebookID().UUID(), models.NewNoteID().UUID()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.WithinTx(ctx, func(tx store.Store) error {
				return tx.AddRelation(ctx, &models.Relation{Kind: models.NotebookNote, LeftID: left, RightID: right, ReaderID: reader})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, store.ErrConflict):
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)
	n, err := s.CountRelations(ctx, models.NotebookNote)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
