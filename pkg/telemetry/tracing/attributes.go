package tracing

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys use the "chaoslab.*" namespace.
const (
	AttrSessionID   = attribute.Key("chaoslab.session.id")
	AttrSessionName = attribute.Key("chaoslab.session.name")
	AttrFlag        = attribute.Key("chaoslab.flag")
	AttrPhase       = attribute.Key("chaoslab.phase")

	AttrRetentionJob    = attribute.Key("chaoslab.retention.job")
	AttrRetentionPrefix = attribute.Key("chaoslab.retention.prefix")
	AttrDeletedObjects  = attribute.Key("chaoslab.retention.deleted_objects")
	AttrFreedBytes      = attribute.Key("chaoslab.retention.freed_bytes")
	AttrErrorCount      = attribute.Key("chaoslab.retention.errors")
)

// SessionAttributes returns the attributes identifying a diagnostic session.
func SessionAttributes(sessionID, flag, name string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		AttrSessionID.String(sessionID),
		AttrFlag.String(flag),
	}
	if name != "" {
		attrs = append(attrs, AttrSessionName.String(name))
	}
	return attrs
}

// CleanupAttributes returns the attributes describing a finished cleanup.
func CleanupAttributes(job string, deleted int, freed int64, errors int) []attribute.KeyValue {
	return []attribute.KeyValue{
		AttrRetentionJob.String(job),
		AttrDeletedObjects.Int(deleted),
		AttrFreedBytes.Int64(freed),
		AttrErrorCount.Int(errors),
	}
}
