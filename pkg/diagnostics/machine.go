package diagnostics

// Annotation keys emitted at phase boundaries.
const (
	KeySessionStarted    = "diag.session.started"
	KeyCaptureCheckpoint = "diag.capture.checkpoint"
	KeySessionCompleted  = "diag.session.completed"
)

// FlagEnabledKey returns the annotation key marking flag activation.
func FlagEnabledKey(flag string) string {
	return "test.flag." + flag + ".enabled"
}

// FlagDisabledKey returns the annotation key marking flag deactivation.
func FlagDisabledKey(flag string) string {
	return "test.flag." + flag + ".disabled"
}

type marker int

const (
	markNone marker = iota
	markSessionStarted
	markFlagEnabled
	markFlagDisabled
	markSessionCompleted
)

type work int

const (
	workNone work = iota
	workWarmup
	workCapture
	workAnalyze
)

type effect int

const (
	effectNone effect = iota
	effectEnableFlag
	effectDisableFlag
)

// stage describes one phase of the orchestration sequence: the annotation
// recorded on entry, the suspension that follows it, and the side effect
// that must succeed before the session moves to Next.
type stage struct {
	Annotate marker
	Work     work
	Exit     effect
	Next     Phase
}

// stages is the orchestration sequence. A stage with an empty Next is
// terminal. created -> started is committed by StartSession itself.
var stages = map[Phase]stage{
	PhaseStarted:      {Annotate: markSessionStarted, Exit: effectEnableFlag, Next: PhaseFlagEnabled},
	PhaseFlagEnabled:  {Annotate: markFlagEnabled, Work: workWarmup, Next: PhaseCapturing},
	PhaseCapturing:    {Work: workCapture, Exit: effectDisableFlag, Next: PhaseFlagDisabled},
	PhaseFlagDisabled: {Annotate: markFlagDisabled, Next: PhaseAnalyzing},
	PhaseAnalyzing:    {Work: workAnalyze, Next: PhaseCompleted},
	PhaseCompleted:    {Annotate: markSessionCompleted},
}

// next returns the stage for phase.
func next(phase Phase) (stage, bool) {
	st, ok := stages[phase]
	return st, ok
}

// canTransition reports whether from -> to is a legal move.
func canTransition(from, to Phase) bool {
	if from.Terminal() {
		return false
	}
	if to == PhaseFailed {
		return true
	}
	if from == PhaseCreated {
		return to == PhaseStarted
	}
	st, ok := next(from)
	return ok && st.Next == to
}
