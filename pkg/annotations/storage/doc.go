// Package storage provides storage backends for annotation records.
//
//   - SQLite: embedded database for single-node deployments
//   - Memory: in-memory storage for tests and ephemeral runs
//
// Both backends return query results in creation order, which for a single
// session is the order its phases ran.
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{
//	    Path:        "data/annotations.db",
//	    WALMode:     true,
//	    BusyTimeout: 5 * time.Second,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
package storage
