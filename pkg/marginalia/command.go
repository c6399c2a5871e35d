package marginalia

// Command is a subcommand of the marginalia binary.
type Command interface {
	Name() string
}

// RunCommand starts the HTTP server.
type RunCommand struct{}

func (c *RunCommand) Name() string { return "run" }

// MigrateCommand creates or updates the store schema and exits.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }
