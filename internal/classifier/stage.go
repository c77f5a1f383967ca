package classifier

import "time"

// Stage is a state of a single classification run.
type Stage int

const (
	StageIdle Stage = iota
	StageEncoding
	StageExtractingObservations
	StageRequestingAdvice
	StageCondensingAdvice
	StageDone
	StageFailed
)

var stageNames = [...]string{
	StageIdle:                   "idle",
	StageEncoding:               "encoding",
	StageExtractingObservations: "extracting_observations",
	StageRequestingAdvice:       "requesting_advice",
	StageCondensingAdvice:       "condensing_advice",
	StageDone:                   "done",
	StageFailed:                 "failed",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return "unknown"
	}
	return stageNames[s]
}

// Working reports whether the stage performs work and may fail.
func (s Stage) Working() bool {
	return s >= StageEncoding && s <= StageCondensingAdvice
}

// Terminal reports whether no transition leaves the stage.
func (s Stage) Terminal() bool {
	return s == StageDone || s == StageFailed
}

// CanTransition reports whether a run may move from one stage to another.
// Runs advance one stage at a time and may fail from any working stage.
func CanTransition(from, to Stage) bool {
	if to == StageFailed {
		return from.Working()
	}
	return from >= StageIdle && from <= StageCondensingAdvice && to == from+1
}

// Observer is notified about the progress of every run. It is shared by
// concurrent runs and must be safe for concurrent use.
type Observer interface {
	// StageFinished is called when a working stage completes, with a nil err on success.
	StageFinished(stage Stage, elapsed time.Duration, err error)
	// RunFinished is called once per run with its terminal stage.
	RunFinished(final Stage, kind ErrorKind, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) StageFinished(Stage, time.Duration, error)   {}
func (nopObserver) RunFinished(Stage, ErrorKind, time.Duration) {}
