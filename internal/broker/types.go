package broker

import (
	"time"

	"jitc/internal/phasetime"
)

// Stage describes where a task is in the pipeline.
type Stage string

const (
	// StageQueued is used before a worker picks the task up.
	StageQueued Stage = "queued"
	// StageBuildIR is the IR construction stage.
	StageBuildIR Stage = "build ir"
	// StageOptimize is the optimizer stage.
	StageOptimize Stage = "optimize"
	// StageCodegen is the code generation stage.
	StageCodegen Stage = "codegen"
	// StageInstall is the finalize and install stage.
	StageInstall Stage = "install"
)

// StageOf maps a timed phase to its progress stage.
func StageOf(p phasetime.Phase) Stage {
	switch p {
	case phasetime.PhaseBuildIR:
		return StageBuildIR
	case phasetime.PhaseOptimize:
		return StageOptimize
	case phasetime.PhaseCodegen:
		return StageCodegen
	case phasetime.PhaseFinalize:
		return StageInstall
	default:
		return StageQueued
	}
}

// Status captures progress state within a stage.
type Status string

const (
	// StatusQueued indicates the task is waiting to start.
	StatusQueued Status = "queued"
	// StatusWorking indicates the task is currently working.
	StatusWorking Status = "working"
	// StatusDone indicates the task is done.
	StatusDone Status = "done"
	// StatusError indicates the task encountered an error.
	StatusError Status = "error"
)

// Event reports progress for one task.
type Event struct {
	Task    string
	Stage   Stage
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. Implementations must be safe for
// concurrent use.
type ProgressSink interface {
	OnEvent(Event)
}
