// Package annotations defines timestamped, typed markers that label captured
// telemetry for later retrieval.
//
// An annotation ties a time range and a signal type (traces, metrics, logs)
// to a key/value pair plus provenance: who created it and, optionally, which
// diagnostic session it belongs to. The diagnostics orchestrator emits one at
// every phase boundary and at each capture checkpoint.
//
// # Components
//
//   - Record, Filter: the data model and query filter
//   - Storage: persistence contract, implemented in the storage subpackage
//   - Recorder: the narrow capability consumers depend on (annotate, query,
//     expire), implemented in the recorder subpackage
//
// # Basic Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{Path: "data/annotations.db"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	rec := recorder.New(store, &recorder.Config{CreatedBy: "diagnostics"})
//
//	r := &annotations.Record{Key: "deploy.started", SignalType: annotations.SignalAll}
//	r.SetString("v1.4.2")
//	id, err := rec.Annotate(ctx, r)
package annotations
