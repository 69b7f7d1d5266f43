// Package health serves liveness, readiness and version endpoints for the
// chaoslab daemon.
//
// Readiness aggregates named component checks, run concurrently with a
// per-check timeout:
//
//	checker := health.New(2 * time.Second)
//	checker.RegisterCheck("object_store", health.StoreCheck(store))
//	checker.RegisterCheck("scheduler", health.RunningCheck("retention scheduler", sched.IsRunning))
//	checker.Mount(mux, health.VersionInfo{Version: "0.3.0"})
//
// Endpoints:
//
//   - /healthz: 200 while the process is up
//   - /readyz: 200 when every check passes, 503 otherwise
//   - /version: build information
package health
