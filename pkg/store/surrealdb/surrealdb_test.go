package surrealdb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

func TestRelationRecordIDIsDeterministic(t *testing.T) {
	left, right := models.NewNotebookID().UUID(), models.NewNoteID().UUID()

	a := relationRecordID(models.NotebookNote, left, right)
	b := relationRecordID(models.NotebookNote, left, right)
	assert.Equal(t, a, b)
	assert.Equal(t, "notebook_note", a.Table)

	swapped := relationRecordID(models.NotebookNote, right, left)
	assert.NotEqual(t, a.ID, swapped.ID)
}

func TestReportsPartialWrites(t *testing.T) {
	assert.True(t, store.HasPartialWrites(&SurrealStore{}))
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		msg      string
		notFound bool
		conflict bool
	}{
		{msg: "Expected a single or multiple results but got 0", notFound: true},
		{msg: "Database record `notebook_note:x` already exists", conflict: true},
		{msg: "Database index `tags_reader_name` already contains ['r', 'fiction']", conflict: true},
		{msg: "connection closed"},
	}
	for _, tt := range tests {
		err := errors.New(tt.msg)
		assert.Equal(t, tt.notFound, isNotFound(err), tt.msg)
		assert.Equal(t, tt.conflict, isConflict(err), tt.msg)
	}
}
