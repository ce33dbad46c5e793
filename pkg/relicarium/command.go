package relicarium

// Command represents a discrete application operation. Each implementation
// carries its own options; Parse routes command-line arguments to the right
// one and Main dispatches it against the [App].
type Command interface {
	// Name returns the command identifier used for routing. It matches the
	// CLI sub-command name.
	Name() string
}

// RunCommand starts the HTTP server. All configuration comes from the
// application [Config]; the struct exists so run-specific options have a
// place to live when they appear.
type RunCommand struct{}

func (c *RunCommand) Name() string {
	return "run"
}

// MigrateCommand initializes or updates the backend schema. For PostgreSQL
// this is GORM AutoMigrate over the three tables; for SurrealDB it defines
// the unique index on comment_threads.artifact_id; the in-memory backend has
// nothing to do. Idempotent, safe to run before every deployment.
type MigrateCommand struct{}

func (c *MigrateCommand) Name() string {
	return "migrate"
}
