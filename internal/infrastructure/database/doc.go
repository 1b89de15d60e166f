// Package database provides SQLite connectivity for the fan presence service.
//
// The database holds the local audit trail of confirmed presence
// transitions. It is never consulted to decide presence: the inventory
// registry stays the only published view, and the service starts from a
// clean slate on every boot.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations loaded from an fs.FS (normally migrations.FS)
//   - Connection pooling and lifecycle management
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
//
// Migrations are additive-only: new columns must be NULLABLE or carry a
// DEFAULT, and each .up.sql has a matching .down.sql.
package database
