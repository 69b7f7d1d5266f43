package objectstore

import (
	"strings"
	"time"
)

// SessionMetadataFile is the descriptor object stored under each session prefix.
const SessionMetadataFile = "metadata.json"

// SessionDescriptor is the sessions/{id}/metadata.json document.
type SessionDescriptor struct {
	SessionID string     `json:"session_id"`
	Name      string     `json:"name"`
	FlagName  string     `json:"flag_name"`
	Phase     string     `json:"phase"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// Finished reports whether the descriptor records a terminal session.
func (d *SessionDescriptor) Finished() bool {
	return d.EndTime != nil
}

// SessionPrefix returns the key prefix holding all of a session's objects.
func SessionPrefix(sessionID string) string {
	return SessionsPrefix + sessionID + "/"
}

// SessionMetadataKey returns the key of a session's descriptor.
func SessionMetadataKey(sessionID string) string {
	return SessionPrefix(sessionID) + SessionMetadataFile
}

// SessionIDFromMetadataKey extracts the session id from a descriptor key.
// It reports false for any other key.
func SessionIDFromMetadataKey(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, SessionsPrefix)
	if !ok {
		return "", false
	}
	id, ok := strings.CutSuffix(rest, "/"+SessionMetadataFile)
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
