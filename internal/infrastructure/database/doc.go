// Package database provides SQLite connectivity for Gray Logic Motion.
//
// The database holds the lighting transition history that backs the
// controller history API. It is opened in WAL mode with a single writer
// connection, and its schema is managed by forward migrations embedded in
// the binary (see the top-level migrations package).
//
// Usage:
//
//	db, err := database.Open(ctx, cfg.Database)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive only: new columns must be nullable or carry a
// default, and every .up.sql has a matching .down.sql.
package database
