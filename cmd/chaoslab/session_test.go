package main

import (
	"strings"
	"testing"
	"time"

	"mercator-hq/chaoslab/pkg/annotations"
	"mercator-hq/chaoslab/pkg/diagnostics"
)

func TestNewSessionReport(t *testing.T) {
	start := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(1500 * time.Millisecond)
	session := &diagnostics.Session{
		ID:            "s1",
		Phase:         diagnostics.PhaseCompleted,
		StartTime:     start,
		EndTime:       &end,
		AnnotationIDs: []string{"a1", "a2"},
	}

	tests := []struct {
		name     string
		records  []*annotations.Record
		wantKeys []string
	}{
		{
			name:     "no records",
			records:  nil,
			wantKeys: []string{},
		},
		{
			name: "records from other sessions are kept",
			records: []*annotations.Record{
				{Key: "diag.session.started", SessionID: "s1", CreatedAt: start},
				{Key: "diag.session.started", SessionID: "s0", CreatedAt: start.Add(-time.Hour)},
				{Key: "diag.session.completed", SessionID: "s1", CreatedAt: end},
			},
			wantKeys: []string{"diag.session.started", "diag.session.started", "diag.session.completed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report := newSessionReport(session, tt.records)
			if report.Annotations == nil {
				t.Fatal("Annotations is nil")
			}
			if len(report.Annotations) != len(tt.wantKeys) {
				t.Fatalf("annotations = %d, want %d", len(report.Annotations), len(tt.wantKeys))
			}

			rows := report.Rows()
			if len(rows) != len(tt.wantKeys)+1 {
				t.Fatalf("rows = %d, want %d", len(rows), len(tt.wantKeys)+1)
			}
			for i, key := range tt.wantKeys {
				if rows[i][1] != key {
					t.Errorf("row %d key = %q, want %q", i, rows[i][1], key)
				}
			}
			summary := rows[len(rows)-1][1]
			if !strings.Contains(summary, "phase=completed") || !strings.Contains(summary, "duration=1.5s") {
				t.Errorf("summary = %q", summary)
			}
		})
	}
}
