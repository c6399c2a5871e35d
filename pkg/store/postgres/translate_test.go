package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/marginalia-app/marginalia/pkg/store"
)

func TestTranslate(t *testing.T) {
	other := errors.New("connection reset")

	tests := []struct {
		name         string
		err          error
		wantConflict bool
		wantNotFound bool
	}{
		{
			name:         "unique violation",
			err:          fmt.Errorf("insert: %w", &pgconn.PgError{Code: uniqueViolation, ConstraintName: "idx_tags_reader_name"}),
			wantConflict: true,
		},
		{
			name:         "foreign key violation",
			err:          &pgconn.PgError{Code: foreignKeyViolation},
			wantNotFound: true,
		},
		{
			name:         "gorm duplicated key",
			err:          gorm.ErrDuplicatedKey,
			wantConflict: true,
		},
		{
			name: "other postgres error",
			err:  &pgconn.PgError{Code: "40001"},
		},
		{
			name: "unrelated error",
			err:  other,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translate(tt.err, "Tag", "to-read")
			require.Error(t, got)
			assert.Equal(t, tt.wantConflict, errors.Is(got, store.ErrConflict))
			assert.Equal(t, tt.wantNotFound, errors.Is(got, store.ErrNotFound))

			if tt.wantConflict {
				var conflict *store.ConflictError
				require.ErrorAs(t, got, &conflict)
				assert.Equal(t, "Tag", conflict.Type)
				assert.Equal(t, "to-read", conflict.ID)
			}
		})
	}

	assert.NoError(t, translate(nil, "Tag", ""))
}
