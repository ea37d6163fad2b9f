package pipeline

import (
	"fmt"
)

// Stage is the position of a job within its pipeline.
type Stage int

const (
	StageAdmitted Stage = iota
	StageCopyingOriginal
	StageNormalizingContainer
	StageRenderingNative
	StageRenderingScaled
	StageCompleted
	StageFailed
)

var stageNames = map[Stage]string{
	StageAdmitted:             "admitted",
	StageCopyingOriginal:      "copying_original",
	StageNormalizingContainer: "normalizing_container",
	StageRenderingNative:      "rendering_native",
	StageRenderingScaled:      "rendering_scaled",
	StageCompleted:            "completed",
	StageFailed:               "failed",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Terminal reports whether no further transitions are possible.
func (s Stage) Terminal() bool {
	return s == StageCompleted || s == StageFailed
}

// WorkStages lists the stages that produce artifacts, in execution order.
func WorkStages() []Stage {
	return []Stage{
		StageCopyingOriginal,
		StageNormalizingContainer,
		StageRenderingNative,
		StageRenderingScaled,
	}
}

var transitions = map[Stage][]Stage{
	StageAdmitted:             {StageCopyingOriginal},
	StageCopyingOriginal:      {StageNormalizingContainer, StageRenderingNative, StageFailed},
	StageNormalizingContainer: {StageRenderingNative, StageFailed},
	StageRenderingNative:      {StageRenderingScaled, StageFailed},
	StageRenderingScaled:      {StageCompleted, StageFailed},
}

func canTransition(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StageError reports the stage at which a job's pipeline stopped.
type StageError struct {
	Identifier string
	Stage      Stage
	Err        error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("job %s: %s failed: %v", e.Identifier, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
