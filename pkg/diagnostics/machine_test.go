package diagnostics

import "testing"

func TestStages_Sequence(t *testing.T) {
	var (
		phases  []Phase
		markers []marker
		effects []effect
	)

	phase := PhaseStarted
	for i := 0; i < len(stages)+1; i++ {
		st, ok := next(phase)
		if !ok {
			t.Fatalf("no stage for phase %s", phase)
		}
		phases = append(phases, phase)
		if st.Annotate != markNone {
			markers = append(markers, st.Annotate)
		}
		if st.Exit != effectNone {
			effects = append(effects, st.Exit)
		}
		if st.Next == "" {
			break
		}
		phase = st.Next
	}

	wantPhases := []Phase{PhaseStarted, PhaseFlagEnabled, PhaseCapturing, PhaseFlagDisabled, PhaseAnalyzing, PhaseCompleted}
	if len(phases) != len(wantPhases) {
		t.Fatalf("phases = %v, want %v", phases, wantPhases)
	}
	for i := range wantPhases {
		if phases[i] != wantPhases[i] {
			t.Errorf("phase[%d] = %s, want %s", i, phases[i], wantPhases[i])
		}
	}

	wantMarkers := []marker{markSessionStarted, markFlagEnabled, markFlagDisabled, markSessionCompleted}
	if len(markers) != len(wantMarkers) {
		t.Fatalf("markers = %v, want %v", markers, wantMarkers)
	}
	for i := range wantMarkers {
		if markers[i] != wantMarkers[i] {
			t.Errorf("marker[%d] = %d, want %d", i, markers[i], wantMarkers[i])
		}
	}

	if len(effects) != 2 || effects[0] != effectEnableFlag || effects[1] != effectDisableFlag {
		t.Errorf("effects = %v, want enable then disable", effects)
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseCreated, PhaseStarted, true},
		{PhaseCreated, PhaseFlagEnabled, false},
		{PhaseCreated, PhaseFailed, true},
		{PhaseStarted, PhaseFlagEnabled, true},
		{PhaseFlagEnabled, PhaseCapturing, true},
		{PhaseCapturing, PhaseFlagDisabled, true},
		{PhaseCapturing, PhaseCompleted, false},
		{PhaseFlagDisabled, PhaseAnalyzing, true},
		{PhaseAnalyzing, PhaseCompleted, true},
		{PhaseAnalyzing, PhaseFailed, true},
		{PhaseCompleted, PhaseFailed, false},
		{PhaseFailed, PhaseCompleted, false},
		{PhaseFlagEnabled, PhaseStarted, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := canTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("canTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestPhase_Predicates(t *testing.T) {
	tests := []struct {
		phase       Phase
		terminal    bool
		flagMayBeOn bool
	}{
		{PhaseCreated, false, false},
		{PhaseStarted, false, false},
		{PhaseFlagEnabled, false, true},
		{PhaseCapturing, false, true},
		{PhaseFlagDisabled, false, false},
		{PhaseAnalyzing, false, false},
		{PhaseCompleted, true, false},
		{PhaseFailed, true, false},
	}

	for _, tt := range tests {
		if got := tt.phase.Terminal(); got != tt.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tt.phase, got, tt.terminal)
		}
		if got := tt.phase.flagMayBeOn(); got != tt.flagMayBeOn {
			t.Errorf("%s.flagMayBeOn() = %v, want %v", tt.phase, got, tt.flagMayBeOn)
		}
	}
}

func TestAnnotationKeys(t *testing.T) {
	if got := FlagEnabledKey("paymentServiceFailure"); got != "test.flag.paymentServiceFailure.enabled" {
		t.Errorf("FlagEnabledKey() = %q", got)
	}
	if got := FlagDisabledKey("paymentServiceFailure"); got != "test.flag.paymentServiceFailure.disabled" {
		t.Errorf("FlagDisabledKey() = %q", got)
	}
}
