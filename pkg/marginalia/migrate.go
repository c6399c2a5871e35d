package marginalia

import (
	"context"
	"fmt"
)

// Migrate creates or updates the store schema. It is safe to run repeatedly.
func (a *App) Migrate(ctx context.Context, cmd *MigrateCommand) error {
	a.logger.Info().Str("backend", string(a.config.Store.Backend)).Msg("running database migrations")
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	a.logger.Info().Msg("migrations completed successfully")
	return nil
}
