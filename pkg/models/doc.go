// Package models defines the reader-owned entities recorded by the activity engine.
//
// # Entities
//
//   - [Reader]: the identity every resource belongs to
//   - [Publication]: a book or article with its [Attribution] rows and reading order
//   - [Note]: an annotation, optionally anchored in a publication or replying to a [Document]
//   - [Tag]: a reader-scoped label, unique by name per reader
//   - [Notebook]: a container for publications, notes, tags and source documents
//   - [Document]: a stored file of a publication
//   - [Collaborator]: an invitation of another reader into a notebook
//   - [ReadActivity]: an append-only reading position
//   - [Relation]: a join row of one of the [RelationKinds]
//   - [Activity]: the immutable outbox entry produced for every executed command
//
// Every mutable entity carries a ReaderID that is set at creation and never
// reassigned; ownership checks compare it with the acting reader.
//
// # Typed IDs
//
// Each entity has its own identifier type ([ReaderID], [PublicationID], [NoteID], ...),
// all instances of the generic [ID]. They wrap a UUID and know their table at compile
// time, so the same value stores as a PostgreSQL uuid column, marshals to a SurrealDB
// RecordID through CBOR tag 8, and renders as a plain string in JSON.
//
// # Storage
//
// GORM struct tags describe the PostgreSQL schema. [JSONMap], [Links], [NoteBodies]
// and [Permission] are jsonb columns; keyword and language lists use pq.StringArray.
// The same structs are written to SurrealDB unchanged.
package models
