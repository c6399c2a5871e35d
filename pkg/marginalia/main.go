package marginalia

import (
	"context"
	"fmt"

	"github.com/marginalia-app/marginalia/pkg/telemetry"
)

// Main is the entry point of the marginalia binary. It can be called from
// tests without building the binary; cancel ctx to stop a running server.
func Main(ctx context.Context, args []string) error {
	cmd, config, err := Parse(args)
	if err != nil {
		return fmt.Errorf("failed to parse configuration: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, "marginalia", config.Telemetry.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to set up tracing: %w", err)
	}
	defer func() { _ = shutdown(context.Background()) }()

	app, err := New(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}
	defer app.Close()

	switch c := cmd.(type) {
	case *MigrateCommand:
		if err := app.Migrate(ctx, c); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	case *RunCommand:
		if err := app.Run(ctx, c); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	default:
		return fmt.Errorf("unknown command type: %T", cmd)
	}
	return nil
}
