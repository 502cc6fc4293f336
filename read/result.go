package read

import (
	"time"
)

type StepKind int

const (
	// Continue means the task made progress and can be stepped again
	// immediately.
	Continue StepKind = iota
	// Backoff means the iterator was temporarily empty; do not step the
	// task again before ResumeAt.
	Backoff
	// Done means the task has completed and must not be stepped again.
	Done
)

func (k StepKind) String() string {
	switch k {
	case Continue:
		return "continue"
	case Backoff:
		return "backoff"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// StepResult is the tri-state signal a step returns to its scheduler.
type StepResult struct {
	Kind StepKind
	// ResumeAt is only meaningful when Kind is Backoff.
	ResumeAt time.Time
}

func stepContinue() StepResult {
	return StepResult{Kind: Continue}
}

func stepBackoff(resumeAt time.Time) StepResult {
	return StepResult{Kind: Backoff, ResumeAt: resumeAt}
}

func stepDone() StepResult {
	return StepResult{Kind: Done}
}
