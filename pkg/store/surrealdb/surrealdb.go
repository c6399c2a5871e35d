// Package surrealdb provides the SurrealDB implementation of [store.Store] using native SurrealQL.
//
// Models are written as they are: typed IDs marshal to SurrealDB RecordIDs
// through CBOR, so the same structs serve PostgreSQL and SurrealDB. The
// connection uses the surrealcbor codec for correct time.Time handling.
//
// # Differences from the PostgreSQL store
//
//   - Deletes remove records instead of soft-deleting them. The historical
//     state stays available through the activity snapshots.
//   - Relation rows use a deterministic record id built from the pair, so a
//     duplicate create fails on the record id itself.
//   - WithinTx runs the callback directly. SurrealDB only offers transactions
//     inside a single query, so a failure in the middle of a command can leave
//     earlier writes of that command in place. Use PostgreSQL or the memory
//     store where all-or-nothing commands are required.
package surrealdb

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/surrealdb/surrealdb.go"
	"github.com/surrealdb/surrealdb.go/pkg/connection"
	"github.com/surrealdb/surrealdb.go/pkg/connection/gorillaws"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
	"github.com/surrealdb/surrealdb.go/surrealcbor"

	"github.com/marginalia-app/marginalia/pkg/models"
	"github.com/marginalia-app/marginalia/pkg/store"
)

// SurrealStore implements the Store interface on SurrealDB.
type SurrealStore struct {
	db *surrealdb.DB
}

// Config holds the connection parameters.
type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// NewSurrealStore connects over WebSocket with the surrealcbor codec, signs in
// when credentials are given and selects the namespace and database.
func NewSurrealStore(ctx context.Context, cfg Config) (store.Store, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	conf := connection.NewConfig(u)
	codec := surrealcbor.New()
	conf.Marshaler = codec
	conf.Unmarshaler = codec

	db, err := surrealdb.FromConnection(ctx, gorillaws.New(conf))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	if cfg.Username != "" && cfg.Password != "" {
		if _, err := db.SignIn(ctx, map[string]any{
			"user": cfg.Username,
			"pass": cfg.Password,
		}); err != nil {
			return nil, fmt.Errorf("failed to authenticate: %w", err)
		}
	}

	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		return nil, fmt.Errorf("failed to use namespace/database: %w", err)
	}

	return &SurrealStore{db: db}, nil
}

// Migrate defines the unique indexes the engine relies on. Tables themselves
// are created on first insert.
func (s *SurrealStore) Migrate(ctx context.Context) error {
	statements := []string{
		"DEFINE INDEX IF NOT EXISTS tags_reader_name ON TABLE tags FIELDS readerId, name UNIQUE",
		"DEFINE INDEX IF NOT EXISTS collaborators_pair ON TABLE collaborators FIELDS notebookId, memberId UNIQUE",
		"DEFINE INDEX IF NOT EXISTS activities_reader ON TABLE activities FIELDS readerId, published",
	}
	for _, stmt := range statements {
		if _, err := surrealdb.Query[any](ctx, s.db, stmt, nil); err != nil {
			return fmt.Errorf("failed to run %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *SurrealStore) Close() error {
	return s.db.Close(context.Background())
}

// WithinTx runs fn against the store itself; see the package documentation.
func (s *SurrealStore) WithinTx(ctx context.Context, fn func(tx store.Store) error) error {
	return fn(s)
}

// PartialWrites is always true: WithinTx does not roll back.
func (s *SurrealStore) PartialWrites() bool { return true }

// isNotFound reports the errors the SDK returns when a select finds nothing.
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Expected a single or multiple results but got 0") ||
		strings.Contains(msg, "cannot unmarshal array into Go value")
}

// isConflict reports a duplicate record id or a unique index violation.
func isConflict(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "already contains")
}

func get[T any](ctx context.Context, db *surrealdb.DB, rid surrealmodels.RecordID) (*T, error) {
	v, err := surrealdb.Select[T](ctx, db, rid)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}

func create[T any](ctx context.Context, db *surrealdb.DB, rid surrealmodels.RecordID, v *T, typ, id string) error {
	if _, err := surrealdb.Create[T](ctx, db, rid, v); err != nil {
		if isConflict(err) {
			return &store.ConflictError{Type: typ, ID: id}
		}
		return fmt.Errorf("failed to create %s: %w", strings.ToLower(typ), err)
	}
	return nil
}

func update[T any](ctx context.Context, db *surrealdb.DB, rid surrealmodels.RecordID, v *T, typ, id string) error {
	current, err := get[T](ctx, db, rid)
	if err != nil {
		return err
	}
	if current == nil {
		return &store.NotFoundError{Type: typ, ID: id}
	}
	if _, err := surrealdb.Update[T](ctx, db, rid, v); err != nil {
		if isConflict(err) {
			return &store.ConflictError{Type: typ, ID: id}
		}
		return fmt.Errorf("failed to update %s: %w", strings.ToLower(typ), err)
	}
	return nil
}

func remove[T any](ctx context.Context, db *surrealdb.DB, rid surrealmodels.RecordID, typ, id string) error {
	current, err := get[T](ctx, db, rid)
	if err != nil {
		return err
	}
	if current == nil {
		return &store.NotFoundError{Type: typ, ID: id}
	}
	if _, err := surrealdb.Delete[T](ctx, db, rid); err != nil {
		return fmt.Errorf("failed to delete %s: %w", strings.ToLower(typ), err)
	}
	return nil
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

// Reader operations
func (s *SurrealStore) CreateReader(ctx context.Context, reader *models.Reader) error {
	if reader.ID.IsZero() {
		reader.ID = models.NewReaderID()
	}
	stamp(&reader.CreatedAt, &reader.UpdatedAt)
	return create(ctx, s.db, reader.ID.RecordID(), reader, "Reader", reader.ID.String())
}

func (s *SurrealStore) GetReader(ctx context.Context, id models.ReaderID) (*models.Reader, error) {
	return get[models.Reader](ctx, s.db, id.RecordID())
}

// Publication operations
func (s *SurrealStore) CreatePublication(ctx context.Context, publication *models.Publication) error {
	if publication.ID.IsZero() {
		publication.ID = models.NewPublicationID()
	}
	stamp(&publication.CreatedAt, &publication.UpdatedAt)
	fillAttributions(publication)
	return create(ctx, s.db, publication.ID.RecordID(), publication, "Publication", publication.ID.String())
}

// fillAttributions links embedded attributions to their publication.
// SurrealDB stores them nested in the publication record.
func fillAttributions(publication *models.Publication) {
	for i := range publication.Attributions {
		a := &publication.Attributions[i]
		if a.ID.IsZero() {
			a.ID = models.NewAttributionID()
		}
		a.PublicationID = publication.ID
		a.ReaderID = publication.ReaderID
	}
}

func (s *SurrealStore) GetPublication(ctx context.Context, id models.PublicationID) (*models.Publication, error) {
	return get[models.Publication](ctx, s.db, id.RecordID())
}

func (s *SurrealStore) UpdatePublication(ctx context.Context, publication *models.Publication) error {
	publication.UpdatedAt = time.Now()
	fillAttributions(publication)
	return update(ctx, s.db, publication.ID.RecordID(), publication, "Publication", publication.ID.String())
}

func (s *SurrealStore) DeletePublication(ctx context.Context, id models.PublicationID) error {
	if err := remove[models.Publication](ctx, s.db, id.RecordID(), "Publication", id.String()); err != nil {
		return err
	}

	type idRow struct {
		ID surrealmodels.RecordID `json:"id"`
	}
	query := "DELETE notes WHERE publicationId = $pub RETURN BEFORE; DELETE documents WHERE publicationId = $pub RETURN BEFORE"
	result, err := surrealdb.Query[[]idRow](ctx, s.db, query, map[string]any{"pub": id.RecordID()})
	if err != nil {
		return fmt.Errorf("failed to delete dependents: %w", err)
	}

	ids := []string{id.String()}
	if result != nil {
		for _, r := range *result {
			for _, row := range r.Result {
				ids = append(ids, fmt.Sprint(row.ID.ID))
			}
		}
	}
	return s.dropRelationsOf(ctx, ids...)
}

// Note operations
func (s *SurrealStore) CreateNote(ctx context.Context, note *models.Note) error {
	if note.PublicationID != nil {
		p, err := s.GetPublication(ctx, *note.PublicationID)
		if err != nil {
			return err
		}
		if p == nil {
			return store.NotFound("Publication", *note.PublicationID)
		}
	}
	if note.DocumentID != nil {
		d, err := s.GetDocument(ctx, *note.DocumentID)
		if err != nil {
			return err
		}
		if d == nil {
			return store.NotFound("Document", *note.DocumentID)
		}
	}
	if note.ID.IsZero() {
		note.ID = models.NewNoteID()
	}
	stamp(&note.CreatedAt, &note.UpdatedAt)
	return create(ctx, s.db, note.ID.RecordID(), note, "Note", note.ID.String())
}

func (s *SurrealStore) GetNote(ctx context.Context, id models.NoteID) (*models.Note, error) {
	return get[models.Note](ctx, s.db, id.RecordID())
}

func (s *SurrealStore) UpdateNote(ctx context.Context, note *models.Note) error {
	note.UpdatedAt = time.Now()
	return update(ctx, s.db, note.ID.RecordID(), note, "Note", note.ID.String())
}

func (s *SurrealStore) DeleteNote(ctx context.Context, id models.NoteID) error {
	if err := remove[models.Note](ctx, s.db, id.RecordID(), "Note", id.String()); err != nil {
		return err
	}
	return s.dropRelationsOf(ctx, id.String())
}

// Tag operations
func (s *SurrealStore) CreateTag(ctx context.Context, tag *models.Tag) error {
	if tag.ID.IsZero() {
		tag.ID = models.NewTagID()
	}
	stamp(&tag.CreatedAt, &tag.UpdatedAt)
	return create(ctx, s.db, tag.ID.RecordID(), tag, "Tag", tag.Name)
}

func (s *SurrealStore) GetTag(ctx context.Context, id models.TagID) (*models.Tag, error) {
	return get[models.Tag](ctx, s.db, id.RecordID())
}

func (s *SurrealStore) UpdateTag(ctx context.Context, tag *models.Tag) error {
	tag.UpdatedAt = time.Now()
	return update(ctx, s.db, tag.ID.RecordID(), tag, "Tag", tag.Name)
}

func (s *SurrealStore) DeleteTag(ctx context.Context, id models.TagID) error {
	if err := remove[models.Tag](ctx, s.db, id.RecordID(), "Tag", id.String()); err != nil {
		return err
	}
	return s.dropRelationsOf(ctx, id.String())
}

// Notebook operations
func (s *SurrealStore) CreateNotebook(ctx context.Context, notebook *models.Notebook) error {
	if notebook.ID.IsZero() {
		notebook.ID = models.NewNotebookID()
	}
	stamp(&notebook.CreatedAt, &notebook.UpdatedAt)
	return create(ctx, s.db, notebook.ID.RecordID(), notebook, "Notebook", notebook.ID.String())
}

func (s *SurrealStore) GetNotebook(ctx context.Context, id models.NotebookID) (*models.Notebook, error) {
	return get[models.Notebook](ctx, s.db, id.RecordID())
}

func (s *SurrealStore) UpdateNotebook(ctx context.Context, notebook *models.Notebook) error {
	notebook.UpdatedAt = time.Now()
	return update(ctx, s.db, notebook.ID.RecordID(), notebook, "Notebook", notebook.ID.String())
}

func (s *SurrealStore) DeleteNotebook(ctx context.Context, id models.NotebookID) error {
	if err := remove[models.Notebook](ctx, s.db, id.RecordID(), "Notebook", id.String()); err != nil {
		return err
	}
	query := "DELETE collaborators WHERE notebookId = $notebook"
	if _, err := surrealdb.Query[any](ctx, s.db, query, map[string]any{"notebook": id.RecordID()}); err != nil {
		return fmt.Errorf("failed to delete collaborators: %w", err)
	}
	return s.dropRelationsOf(ctx, id.String())
}

// Document operations
func (s *SurrealStore) CreateDocument(ctx context.Context, document *models.Document) error {
	p, err := s.GetPublication(ctx, document.PublicationID)
	if err != nil {
		return err
	}
	if p == nil {
		return store.NotFound("Publication", document.PublicationID)
	}
	if document.ID.IsZero() {
		document.ID = models.NewDocumentID()
	}
	stamp(&document.CreatedAt, &document.UpdatedAt)
	return create(ctx, s.db, document.ID.RecordID(), document, "Document", document.ID.String())
}

func (s *SurrealStore) GetDocument(ctx context.Context, id models.DocumentID) (*models.Document, error) {
	return get[models.Document](ctx, s.db, id.RecordID())
}

func (s *SurrealStore) DeleteDocument(ctx context.Context, id models.DocumentID) error {
	if err := remove[models.Document](ctx, s.db, id.RecordID(), "Document", id.String()); err != nil {
		return err
	}
	return s.dropRelationsOf(ctx, id.String())
}

// Collaborator operations
func (s *SurrealStore) CreateCollaborator(ctx context.Context, collaborator *models.Collaborator) error {
	nb, err := s.GetNotebook(ctx, collaborator.NotebookID)
	if err != nil {
		return err
	}
	if nb == nil {
		return store.NotFound("Notebook", collaborator.NotebookID)
	}
	member, err := s.GetReader(ctx, collaborator.MemberID)
	if err != nil {
		return err
	}
	if member == nil {
		return store.NotFound("Reader", collaborator.MemberID)
	}
	if collaborator.ID.IsZero() {
		collaborator.ID = models.NewCollaboratorID()
	}
	stamp(&collaborator.CreatedAt, &collaborator.UpdatedAt)
	return create(ctx, s.db, collaborator.ID.RecordID(), collaborator, "Collaborator", collaborator.MemberID.String())
}

func (s *SurrealStore) GetCollaborator(ctx context.Context, id models.CollaboratorID) (*models.Collaborator, error) {
	return get[models.Collaborator](ctx, s.db, id.RecordID())
}

func (s *SurrealStore) UpdateCollaborator(ctx context.Context, collaborator *models.Collaborator) error {
	collaborator.UpdatedAt = time.Now()
	return update(ctx, s.db, collaborator.ID.RecordID(), collaborator, "Collaborator", collaborator.ID.String())
}

func (s *SurrealStore) DeleteCollaborator(ctx context.Context, id models.CollaboratorID) error {
	return remove[models.Collaborator](ctx, s.db, id.RecordID(), "Collaborator", id.String())
}

// Read activity operations
func (s *SurrealStore) CreateReadActivity(ctx context.Context, activity *models.ReadActivity) error {
	p, err := s.GetPublication(ctx, activity.PublicationID)
	if err != nil {
		return err
	}
	if p == nil {
		return store.NotFound("Publication", activity.PublicationID)
	}
	if activity.ID.IsZero() {
		activity.ID = models.NewReadActivityID()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	return create(ctx, s.db, activity.ID.RecordID(), activity, "ReadActivity", activity.ID.String())
}

func (s *SurrealStore) ListReadActivities(ctx context.Context, publicationID models.PublicationID) ([]*models.ReadActivity, error) {
	query := "SELECT * FROM read_activities WHERE publicationId = $pub ORDER BY published DESC"
	return list[models.ReadActivity](ctx, s.db, query, map[string]any{"pub": publicationID.RecordID()})
}

func list[T any](ctx context.Context, db *surrealdb.DB, query string, params map[string]any) ([]*T, error) {
	result, err := surrealdb.Query[[]*T](ctx, db, query, params)
	if err != nil {
		return nil, err
	}
	out := []*T{}
	if result != nil && len(*result) > 0 {
		out = append(out, (*result)[0].Result...)
	}
	return out, nil
}

// relationRecord is the SurrealDB shape of a join row. The pair is kept as
// strings so it can be matched with IN against plain id lists.
type relationRecord struct {
	ID        *surrealmodels.RecordID `json:"id,omitempty"`
	LeftID    string                  `json:"leftId"`
	RightID   string                  `json:"rightId"`
	ReaderID  models.ReaderID         `json:"readerId"`
	CreatedAt time.Time               `json:"published"`
}

func relationRecordID(kind models.RelationKind, leftID, rightID uuid.UUID) surrealmodels.RecordID {
	return surrealmodels.RecordID{
		Table: kind.TableName(),
		ID:    leftID.String() + "_" + rightID.String(),
	}
}

func (s *SurrealStore) AddRelation(ctx context.Context, relation *models.Relation) error {
	if relation.CreatedAt.IsZero() {
		relation.CreatedAt = time.Now()
	}
	rec := &relationRecord{
		LeftID:    relation.LeftID.String(),
		RightID:   relation.RightID.String(),
		ReaderID:  relation.ReaderID,
		CreatedAt: relation.CreatedAt,
	}
	rid := relationRecordID(relation.Kind, relation.LeftID, relation.RightID)
	return create(ctx, s.db, rid, rec, string(relation.Kind), "")
}

func (s *SurrealStore) RemoveRelation(ctx context.Context, kind models.RelationKind, leftID, rightID uuid.UUID) error {
	return remove[relationRecord](ctx, s.db, relationRecordID(kind, leftID, rightID), string(kind), "")
}

func (s *SurrealStore) HasRelation(ctx context.Context, kind models.RelationKind, leftID, rightID uuid.UUID) (bool, error) {
	rec, err := get[relationRecord](ctx, s.db, relationRecordID(kind, leftID, rightID))
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

func (s *SurrealStore) CountRelations(ctx context.Context, kind models.RelationKind) (int, error) {
	type countRow struct {
		Count int `json:"count"`
	}
	query := "SELECT count() FROM type::table($table) GROUP ALL"
	result, err := surrealdb.Query[[]countRow](ctx, s.db, query, map[string]any{"table": kind.TableName()})
	if err != nil {
		return 0, err
	}
	if result == nil || len(*result) == 0 || len((*result)[0].Result) == 0 {
		return 0, nil
	}
	return (*result)[0].Result[0].Count, nil
}

func (s *SurrealStore) dropRelationsOf(ctx context.Context, ids ...string) error {
	for _, kind := range models.RelationKinds {
		query := "DELETE type::table($table) WHERE leftId IN $ids OR rightId IN $ids"
		params := map[string]any{"table": kind.TableName(), "ids": ids}
		if _, err := surrealdb.Query[any](ctx, s.db, query, params); err != nil {
			return fmt.Errorf("failed to delete %s rows: %w", kind.TableName(), err)
		}
	}
	return nil
}

// Activity operations
func (s *SurrealStore) AppendActivity(ctx context.Context, activity *models.Activity) error {
	if activity.ID.IsZero() {
		activity.ID = models.NewActivityID()
	}
	if activity.Published.IsZero() {
		activity.Published = time.Now()
	}
	return create(ctx, s.db, activity.ID.RecordID(), activity, "Activity", activity.ID.String())
}

func (s *SurrealStore) GetActivity(ctx context.Context, id models.ActivityID) (*models.Activity, error) {
	return get[models.Activity](ctx, s.db, id.RecordID())
}

func (s *SurrealStore) ListActivities(ctx context.Context, readerID models.ReaderID, limit int) ([]*models.Activity, error) {
	query := "SELECT * FROM activities WHERE readerId = $reader ORDER BY published DESC"
	params := map[string]any{"reader": readerID.RecordID()}
	if limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = limit
	}
	return list[models.Activity](ctx, s.db, query, params)
}

var _ store.Store = (*SurrealStore)(nil)
