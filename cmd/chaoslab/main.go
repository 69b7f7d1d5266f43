// Chaoslab runs diagnostic sessions and manages telemetry retention.
//
// A diagnostic session turns a fault-injection feature flag on, captures
// telemetry for a fixed window and turns the flag off again, recording an
// annotation at every boundary so the captured signals can be correlated
// with the fault. The retention engine deletes continuous and per-session
// telemetry on cron schedules.
//
// Usage:
//
//	# Run the retention scheduler with metrics and health endpoints
//	chaoslab run --config chaoslab.yaml
//
//	# Run a diagnostic session in the foreground
//	chaoslab session run --flag paymentServiceFailure --duration 2m
//
//	# One-off retention and storage reports
//	chaoslab retention cleanup --continuous-days 7
//	chaoslab retention usage --output json
package main

import "os"

func main() {
	os.Exit(Execute())
}
