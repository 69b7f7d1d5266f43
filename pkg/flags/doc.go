// Package flags controls the feature flags used to inject synthetic faults.
//
// The Controller interface is the narrow capability the diagnostics
// orchestrator consumes: enable, disable, read and evaluate a named flag.
// Two implementations are provided:
//
//   - FileController: a flagd-compatible JSON (or JSONC) flag definition
//     file. Writes are atomic and external edits are hot-reloaded through
//     an fsnotify watcher, so a flagd sidecar watching the same file sees
//     every toggle.
//   - MemoryController: an in-process controller with failure injection,
//     intended for tests.
//
// # Flag document
//
//	{
//	  "flags": {
//	    "paymentServiceFailure": {
//	      "state": "ENABLED",
//	      "variants": {"on": true, "off": false},
//	      "defaultVariant": "off",
//	      "targeting": [
//	        {"key": "region", "values": ["eu-west-1"], "variant": "on"}
//	      ]
//	    }
//	  }
//	}
//
// Enable points defaultVariant at "on"; Disable points it at "off".
//
// # Errors
//
// Every failure is an *Error carrying a Category (connection_failure,
// flag_not_found, evaluation_error, invalid_value) and a Retryable bit.
// Only connection failures are retryable.
package flags
