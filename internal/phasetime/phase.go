// Package phasetime measures how long compilation phases take.
//
// A Timer is started at phase entry and stopped with defer, so the elapsed
// time is recorded on every exit path:
//
//	t := phasetime.Start(ctx, phasetime.Options{Name: "optimize", Phase: phasetime.PhaseOptimize})
//	defer t.Stop()
//
// Stopped timers credit a slot of a Registry. Default is the process-wide
// registry shared by all concurrent compilations; slots are updated
// atomically.
package phasetime

// Phase identifies a pipeline phase.
type Phase uint8

const (
	// PhaseCompile spans the whole compilation.
	PhaseCompile Phase = iota
	// PhaseBuildIR covers translation of the input into IR.
	PhaseBuildIR
	// PhaseOptimize covers the backend optimizer.
	PhaseOptimize
	// PhaseCodegen covers backend code generation.
	PhaseCodegen
	// PhaseFinalize covers transcription and installation of the result.
	PhaseFinalize
	// NumPhases is the number of phases.
	NumPhases
)

var phaseNames = [NumPhases]string{
	PhaseCompile:  "compile",
	PhaseBuildIR:  "build ir",
	PhaseOptimize: "optimize",
	PhaseCodegen:  "codegen",
	PhaseFinalize: "finalize",
}

func (p Phase) String() string {
	if p < NumPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// Valid reports whether p names a registry slot.
func (p Phase) Valid() bool { return p < NumPhases }

// Phases returns all phases in pipeline order.
func Phases() []Phase {
	out := make([]Phase, 0, NumPhases)
	for p := range NumPhases {
		out = append(out, p)
	}
	return out
}
