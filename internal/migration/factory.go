package migration

// NewMigratorFromURL creates a Migrator against an already-assembled
// Postgres DSN, the form store.PostgresStore and `pipeline migrate` both
// consume.
func NewMigratorFromURL(dbURL string) (*DefaultMigrator, error) {
	return NewMigrator(&Config{
		DatabaseURL: dbURL,
		TableName:   "schema_migrations",
	})
}
