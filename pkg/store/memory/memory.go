// Package memory provides an in-process implementation of [store.Store].
//
// State lives in value maps guarded by a single mutex. WithinTx holds the write
// lock for the whole callback and runs it against a cloned state that replaces
// the live one only when the callback succeeds, so transactions are fully
// serialized and a failed callback leaves no trace. This makes the memory store
// the uniqueness authority in tests and single-node deployments.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

type memoryState struct {
	readers        map[models.ReaderID]models.Reader
	publications   map[models.PublicationID]models.Publication
	notes          map[models.NoteID]models.Note
	tags           map[models.TagID]models.Tag
	notebooks      map[models.NotebookID]models.Notebook
	documents      map[models.DocumentID]models.Document
	collaborators  map[models.CollaboratorID]models.Collaborator
	readActivities []models.ReadActivity
	relations      map[string]models.Relation
	activities     []models.Activity
}

func newMemoryState() *memoryState {
	return &memoryState{
		readers:       map[models.ReaderID]models.Reader{},
		publications:  map[models.PublicationID]models.Publication{},
		notes:         map[models.NoteID]models.Note{},
		tags:          map[models.TagID]models.Tag{},
		notebooks:     map[models.NotebookID]models.Notebook{},
		documents:     map[models.DocumentID]models.Document{},
		collaborators: map[models.CollaboratorID]models.Collaborator{},
		relations:     map[string]models.Relation{},
	}
}

// clone copies every table. Entities are stored by value and replaced
// wholesale on update, so copying the maps is enough.
func (s *memoryState) clone() *memoryState {
	return &memoryState{
		readers:        maps.Clone(s.readers),
		publications:   maps.Clone(s.publications),
		notes:          maps.Clone(s.notes),
		tags:           maps.Clone(s.tags),
		notebooks:      maps.Clone(s.notebooks),
		documents:      maps.Clone(s.documents),
		collaborators:  maps.Clone(s.collaborators),
		readActivities: append([]models.ReadActivity(nil), s.readActivities...),
		relations:      maps.Clone(s.relations),
		activities:     append([]models.Activity(nil), s.activities...),
	}
}

// Store implements store.Store in memory.
type Store struct {
	mu    *sync.RWMutex
	state **memoryState
	// tx is set on the view handed to a WithinTx callback; the lock is
	// already held by the enclosing transaction.
	tx  bool
	now func() time.Time
}

// New creates an empty memory store.
func New() *Store {
	st := newMemoryState()
	return &Store{
		mu:    &sync.RWMutex{},
		state: &st,
		now:   time.Now,
	}
}

func (s *Store) read() (*memoryState, func()) {
	if s.tx {
		return *s.state, func() {}
	}
	s.mu.RLock()
	return *s.state, s.mu.RUnlock
}

func (s *Store) write() (*memoryState, func()) {
	if s.tx {
		return *s.state, func() {}
	}
	s.mu.Lock()
	return *s.state, s.mu.Unlock
}

// WithinTx runs fn against a private copy of the state and publishes the
// copy only if fn returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	if s.tx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := (*s.state).clone()
	tx := &Store{mu: s.mu, state: &draft, tx: true, now: s.now}
	if err := fn(tx); err != nil {
		return err
	}
	*s.state = draft
	return nil
}

// Migrate is a no-op; there is no schema to create.
func (s *Store) Migrate(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) CreateReader(ctx context.Context, reader *models.Reader) error {
	st, unlock := s.write()
	defer unlock()

	if reader.ID.IsZero() {
		reader.ID = models.NewReaderID()
	}
	if _, ok := st.readers[reader.ID]; ok {
		return store.Conflict("Reader", reader.ID)
	}
	reader.CreatedAt, reader.UpdatedAt = s.stamp(reader.CreatedAt)
	st.readers[reader.ID] = *reader
	return nil
}

func (s *Store) GetReader(ctx context.Context, id models.ReaderID) (*models.Reader, error) {
	st, unlock := s.read()
	defer unlock()

	r, ok := st.readers[id]
	if !ok || r.DeletedAt.Valid {
		return nil, nil
	}
	return &r, nil
}

func (s *Store) CreatePublication(ctx context.Context, publication *models.Publication) error {
	st, unlock := s.write()
	defer unlock()

	if publication.ID.IsZero() {
		publication.ID = models.NewPublicationID()
	}
	if _, ok := st.publications[publication.ID]; ok {
		return store.Conflict("Publication", publication.ID)
	}
	publication.CreatedAt, publication.UpdatedAt = s.stamp(publication.CreatedAt)
	for i := range publication.Attributions {
		a := &publication.Attributions[i]
		if a.ID.IsZero() {
			a.ID = models.NewAttributionID()
		}
		a.PublicationID = publication.ID
		a.ReaderID = publication.ReaderID
		a.CreatedAt = publication.CreatedAt
	}
	st.publications[publication.ID] = *publication
	return nil
}

func (s *Store) GetPublication(ctx context.Context, id models.PublicationID) (*models.Publication, error) {
	st, unlock := s.read()
	defer unlock()

	p, ok := st.publications[id]
	if !ok || p.DeletedAt.Valid {
		return nil, nil
	}
	return &p, nil
}

func (s *Store) UpdatePublication(ctx context.Context, publication *models.Publication) error {
	st, unlock := s.write()
	defer unlock()

	current, ok := st.publications[publication.ID]
	if !ok || current.DeletedAt.Valid {
		return store.NotFound("Publication", publication.ID)
	}
	publication.CreatedAt = current.CreatedAt
	publication.ReaderID = current.ReaderID
	publication.UpdatedAt = s.now()
	for i := range publication.Attributions {
		a := &publication.Attributions[i]
		if a.ID.IsZero() {
			a.ID = models.NewAttributionID()
		}
		a.PublicationID = publication.ID
		a.ReaderID = publication.ReaderID
	}
	st.publications[publication.ID] = *publication
	return nil
}

func (s *Store) DeletePublication(ctx context.Context, id models.PublicationID) error {
	st, unlock := s.write()
	defer unlock()

	p, ok := st.publications[id]
	if !ok || p.DeletedAt.Valid {
		return store.NotFound("Publication", id)
	}
	deleted := s.deletedAt()
	p.DeletedAt = deleted
	st.publications[id] = p
	st.dropRelationsOf(id.UUID())

	for noteID, n := range st.notes {
		if n.PublicationID != nil && *n.PublicationID == id && !n.DeletedAt.Valid {
			n.DeletedAt = deleted
			st.notes[noteID] = n
			st.dropRelationsOf(noteID.UUID())
		}
	}
	for docID, d := range st.documents {
		if d.PublicationID == id && !d.DeletedAt.Valid {
			d.DeletedAt = deleted
			st.documents[docID] = d
			st.dropRelationsOf(docID.UUID())
		}
	}
	return nil
}

func (s *Store) CreateNote(ctx context.Context, note *models.Note) error {
	st, unlock := s.write()
	defer unlock()

	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	if _, ok := st.notes[note.ID]; ok {
		return store.Conflict("Note", note.ID)
	}
	if note.PublicationID != nil {
		if p, ok := st.publications[*note.PublicationID]; !ok || p.DeletedAt.Valid {
			return store.NotFound("Publication", *note.PublicationID)
		}
	}
	if note.DocumentID != nil {
		if d, ok := st.documents[*note.DocumentID]; !ok || d.DeletedAt.Valid {
			return store.NotFound("Document", *note.DocumentID)
		}
	}
	note.CreatedAt, note.UpdatedAt = s.stamp(note.CreatedAt)
	st.notes[note.ID] = *note
	return nil
}

func (s *Store) GetNote(ctx context.Context, id models.NoteID) (*models.Note, error) {
	st, unlock := s.read()
	defer unlock()

	n, ok := st.notes[id]
	if !ok || n.DeletedAt.Valid {
		return nil, nil
	}
	return &n, nil
}

func (s *Store) UpdateNote(ctx context.Context, note *models.Note) error {
	st, unlock := s.write()
	defer unlock()

	current, ok := st.notes[note.ID]
	if !ok || current.DeletedAt.Valid {
		return store.NotFound("Note", note.ID)
	}
	note.CreatedAt = current.CreatedAt
	note.ReaderID = current.ReaderID
	note.UpdatedAt = s.now()
	st.notes[note.ID] = *note
	return nil
}

func (s *Store) DeleteNote(ctx context.Context, id models.NoteID) error {
	st, unlock := s.write()
	defer unlock()

	n, ok := st.notes[id]
	if !ok || n.DeletedAt.Valid {
		return store.NotFound("Note", id)
	}
	n.DeletedAt = s.deletedAt()
	st.notes[id] = n
	st.dropRelationsOf(id.UUID())
	return nil
}

func (s *Store) CreateTag(ctx context.Context, tag *models.Tag) error {
	st, unlock := s.write()
	defer unlock()

	if tag.ID.IsZero() {
		tag.ID = models.NewTagID()
	}
	if _, ok := st.tags[tag.ID]; ok {
		return store.Conflict("Tag", tag.ID)
	}
	if st.tagNameTaken(tag) {
		return &store.ConflictError{Type: "Tag", ID: tag.Name}
	}
	tag.CreatedAt, tag.UpdatedAt = s.stamp(tag.CreatedAt)
	st.tags[tag.ID] = *tag
	return nil
}

func (s *Store) GetTag(ctx context.Context, id models.TagID) (*models.Tag, error) {
	st, unlock := s.read()
	defer unlock()

	t, ok := st.tags[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (s *Store) UpdateTag(ctx context.Context, tag *models.Tag) error {
	st, unlock := s.write()
	defer unlock()

	current, ok := st.tags[tag.ID]
	if !ok {
		return store.NotFound("Tag", tag.ID)
	}
	tag.ReaderID = current.ReaderID
	if st.tagNameTaken(tag) {
		return &store.ConflictError{Type: "Tag", ID: tag.Name}
	}
	tag.CreatedAt = current.CreatedAt
	tag.UpdatedAt = s.now()
	st.tags[tag.ID] = *tag
	return nil
}

func (s *Store) DeleteTag(ctx context.Context, id models.TagID) error {
	st, unlock := s.write()
	defer unlock()

	if _, ok := st.tags[id]; !ok {
		return store.NotFound("Tag", id)
	}
	delete(st.tags, id)
	st.dropRelationsOf(id.UUID())
	return nil
}

func (s *memoryState) tagNameTaken(tag *models.Tag) bool {
	for id, t := range s.tags {
		if id != tag.ID && t.ReaderID == tag.ReaderID && t.Name == tag.Name {
			return true
		}
	}
	return false
}

func (s *Store) CreateNotebook(ctx context.Context, notebook *models.Notebook) error {
	st, unlock := s.write()
	defer unlock()

	if notebook.ID.IsZero() {
		notebook.ID = models.NewNotebookID()
	}
	if _, ok := st.notebooks[notebook.ID]; ok {
		return store.Conflict("Notebook", notebook.ID)
	}
	notebook.CreatedAt, notebook.UpdatedAt = s.stamp(notebook.CreatedAt)
	st.notebooks[notebook.ID] = *notebook
	return nil
}

func (s *Store) GetNotebook(ctx context.Context, id models.NotebookID) (*models.Notebook, error) {
	st, unlock := s.read()
	defer unlock()

	n, ok := st.notebooks[id]
	if !ok || n.DeletedAt.Valid {
		return nil, nil
	}
	return &n, nil
}

func (s *Store) UpdateNotebook(ctx context.Context, notebook *models.Notebook) error {
	st, unlock := s.write()
	defer unlock()

	current, ok := st.notebooks[notebook.ID]
	if !ok || current.DeletedAt.Valid {
		return store.NotFound("Notebook", notebook.ID)
	}
	notebook.CreatedAt = current.CreatedAt
	notebook.ReaderID = current.ReaderID
	notebook.UpdatedAt = s.now()
	st.notebooks[notebook.ID] = *notebook
	return nil
}

func (s *Store) DeleteNotebook(ctx context.Context, id models.NotebookID) error {
	st, unlock := s.write()
	defer unlock()

	n, ok := st.notebooks[id]
	if !ok || n.DeletedAt.Valid {
		return store.NotFound("Notebook", id)
	}
	n.DeletedAt = s.deletedAt()
	st.notebooks[id] = n
	st.dropRelationsOf(id.UUID())
	for cid, c := range st.collaborators {
		if c.NotebookID == id {
			delete(st.collaborators, cid)
		}
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, document *models.Document) error {
	st, unlock := s.write()
	defer unlock()

	if document.ID.IsZero() {
		document.ID = models.NewDocumentID()
	}
	if _, ok := st.documents[document.ID]; ok {
		return store.Conflict("Document", document.ID)
	}
	if p, ok := st.publications[document.PublicationID]; !ok || p.DeletedAt.Valid {
		return store.NotFound("Publication", document.PublicationID)
	}
	document.CreatedAt, document.UpdatedAt = s.stamp(document.CreatedAt)
	st.documents[document.ID] = *document
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id models.DocumentID) (*models.Document, error) {
	st, unlock := s.read()
	defer unlock()

	d, ok := st.documents[id]
	if !ok || d.DeletedAt.Valid {
		return nil, nil
	}
	return &d, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id models.DocumentID) error {
	st, unlock := s.write()
	defer unlock()

	d, ok := st.documents[id]
	if !ok || d.DeletedAt.Valid {
		return store.NotFound("Document", id)
	}
	d.DeletedAt = s.deletedAt()
	st.documents[id] = d
	st.dropRelationsOf(id.UUID())
	return nil
}

func (s *Store) CreateCollaborator(ctx context.Context, collaborator *models.Collaborator) error {
	st, unlock := s.write()
	defer unlock()

	if collaborator.ID.IsZero() {
		collaborator.ID = models.NewCollaboratorID()
	}
	if _, ok := st.collaborators[collaborator.ID]; ok {
		return store.Conflict("Collaborator", collaborator.ID)
	}
	if nb, ok := st.notebooks[collaborator.NotebookID]; !ok || nb.DeletedAt.Valid {
		return store.NotFound("Notebook", collaborator.NotebookID)
	}
	if _, ok := st.readers[collaborator.MemberID]; !ok {
		return store.NotFound("Reader", collaborator.MemberID)
	}
	for _, c := range st.collaborators {
		if c.NotebookID == collaborator.NotebookID && c.MemberID == collaborator.MemberID {
			return store.Conflict("Collaborator", collaborator.MemberID)
		}
	}
	collaborator.CreatedAt, collaborator.UpdatedAt = s.stamp(collaborator.CreatedAt)
	st.collaborators[collaborator.ID] = *collaborator
	return nil
}

func (s *Store) GetCollaborator(ctx context.Context, id models.CollaboratorID) (*models.Collaborator, error) {
	st, unlock := s.read()
	defer unlock()

	c, ok := st.collaborators[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) UpdateCollaborator(ctx context.Context, collaborator *models.Collaborator) error {
	st, unlock := s.write()
	defer unlock()

	current, ok := st.collaborators[collaborator.ID]
	if !ok {
		return store.NotFound("Collaborator", collaborator.ID)
	}
	collaborator.ReaderID = current.ReaderID
	collaborator.NotebookID = current.NotebookID
	collaborator.MemberID = current.MemberID
	collaborator.CreatedAt = current.CreatedAt
	collaborator.UpdatedAt = s.now()
	st.collaborators[collaborator.ID] = *collaborator
	return nil
}

func (s *Store) DeleteCollaborator(ctx context.Context, id models.CollaboratorID) error {
	st, unlock := s.write()
	defer unlock()

	if _, ok := st.collaborators[id]; !ok {
		return store.NotFound("Collaborator", id)
	}
	delete(st.collaborators, id)
	return nil
}

func (s *Store) CreateReadActivity(ctx context.Context, activity *models.ReadActivity) error {
	st, unlock := s.write()
	defer unlock()

	if activity.ID.IsZero() {
		activity.ID = models.NewReadActivityID()
	}
	if p, ok := st.publications[activity.PublicationID]; !ok || p.DeletedAt.Valid {
		return store.NotFound("Publication", activity.PublicationID)
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = s.now()
	}
	st.readActivities = append(st.readActivities, *activity)
	return nil
}

func (s *Store) ListReadActivities(ctx context.Context, publicationID models.PublicationID) ([]*models.ReadActivity, error) {
	st, unlock := s.read()
	defer unlock()

	out := []*models.ReadActivity{}
	for i := len(st.readActivities) - 1; i >= 0; i-- {
		if ra := st.readActivities[i]; ra.PublicationID == publicationID {
			out = append(out, &ra)
		}
	}
	return out, nil
}

func (s *Store) AddRelation(ctx context.Context, relation *models.Relation) error {
	st, unlock := s.write()
	defer unlock()

	key := relation.Key()
	if _, ok := st.relations[key]; ok {
		return store.Conflict(string(relation.Kind), nil)
	}
	if relation.CreatedAt.IsZero() {
		relation.CreatedAt = s.now()
	}
	st.relations[key] = *relation
	return nil
}

func (s *Store) RemoveRelation(ctx context.Context, kind models.RelationKind, leftID, rightID uuid.UUID) error {
	st, unlock := s.write()
	defer unlock()

	key := models.Relation{Kind: kind, LeftID: leftID, RightID: rightID}.Key()
	if _, ok := st.relations[key]; !ok {
		return store.NotFound(string(kind), nil)
	}
	delete(st.relations, key)
	return nil
}

func (s *Store) HasRelation(ctx context.Context, kind models.RelationKind, leftID, rightID uuid.UUID) (bool, error) {
	st, unlock := s.read()
	defer unlock()

	_, ok := st.relations[models.Relation{Kind: kind, LeftID: leftID, RightID: rightID}.Key()]
	return ok, nil
}

func (s *Store) CountRelations(ctx context.Context, kind models.RelationKind) (int, error) {
	st, unlock := s.read()
	defer unlock()

	n := 0
	for _, r := range st.relations {
		if r.Kind == kind {
			n++
		}
	}
	return n, nil
}

// dropRelationsOf removes every join row that references id on either side.
func (s *memoryState) dropRelationsOf(id uuid.UUID) {
	for key, r := range s.relations {
		if r.LeftID == id || r.RightID == id {
			delete(s.relations, key)
		}
	}
}

func (s *Store) AppendActivity(ctx context.Context, activity *models.Activity) error {
	st, unlock := s.write()
	defer unlock()

	if activity.ID.IsZero() {
		activity.ID = models.NewActivityID()
	}
	if activity.Published.IsZero() {
		activity.Published = s.now()
	}
	st.activities = append(st.activities, *activity)
	return nil
}

func (s *Store) GetActivity(ctx context.Context, id models.ActivityID) (*models.Activity, error) {
	st, unlock := s.read()
	defer unlock()

	for _, a := range st.activities {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

func (s *Store) ListActivities(ctx context.Context, readerID models.ReaderID, limit int) ([]*models.Activity, error) {
	st, unlock := s.read()
	defer unlock()

	out := []*models.Activity{}
	for i := len(st.activities) - 1; i >= 0; i-- {
		if a := st.activities[i]; a.ReaderID == readerID {
			out = append(out, &a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Published.After(out[j].Published)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) stamp(created time.Time) (time.Time, time.Time) {
	now := s.now()
	if created.IsZero() {
		created = now
	}
	return created, now
}

func (s *Store) deletedAt() gorm.DeletedAt {
	return gorm.DeletedAt{Time: s.now(), Valid: true}
}

var _ store.Store = (*Store)(nil)
