// Package store defines the persistence collaborator of the activity engine.
//
// The [Store] interface covers every resource a command can touch, the
// relation join rows, and the activity outbox. Three implementations ship with
// the repository:
//
//   - [github.com/marginalia-app/marginalia/pkg/store/memory.Store]: in-process, serialized transactions
//   - [github.com/marginalia-app/marginalia/pkg/store/postgres.PostgresStore]: GORM on PostgreSQL
//   - [github.com/marginalia-app/marginalia/pkg/store/surrealdb.SurrealStore]: native SurrealQL
//
// # Errors
//
// Implementations report missing rows at write time as [*NotFoundError] and
// uniqueness violations as [*ConflictError]. Both match the [ErrNotFound] and
// [ErrConflict] sentinels through errors.Is, so callers can branch on the kind
// and still read the type and id that failed.
//
// # Read-only views
//
// [ReadOnlyStore] blocks writes while a predicate holds. The application uses it
// for a runtime maintenance switch, and the engine hands [ReadOnly] views to
// resource probes so existence and ownership checks cannot mutate anything.
package store
