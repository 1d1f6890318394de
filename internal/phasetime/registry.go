package phasetime

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Slot accumulates time spent in one phase across compilations.
type Slot struct {
	nanos atomic.Int64
	count atomic.Uint64
}

func (s *Slot) add(d time.Duration) {
	if d < 0 {
		d = 0
	}
	s.nanos.Add(int64(d))
	s.count.Add(1)
}

// Elapsed returns the accumulated time.
func (s *Slot) Elapsed() time.Duration { return time.Duration(s.nanos.Load()) }

// Count returns how many timers credited the slot.
func (s *Slot) Count() uint64 { return s.count.Load() }

// Registry is a fixed table of phase slots. The zero value is ready to use.
type Registry struct {
	slots [NumPhases]Slot
}

// Default is the process-wide registry.
var Default = &Registry{}

// Slot returns the slot of p, or nil for an unknown phase.
func (r *Registry) Slot(p Phase) *Slot {
	if r == nil || !p.Valid() {
		return nil
	}
	return &r.slots[p]
}

// Reset zeroes every slot.
func (r *Registry) Reset() {
	for i := range r.slots {
		r.slots[i].nanos.Store(0)
		r.slots[i].count.Store(0)
	}
}

// PhaseReport is the serialisable view of one slot.
type PhaseReport struct {
	Name    string  `json:"name"`
	Seconds float64 `json:"seconds"`
	Count   uint64  `json:"count"`
}

// Report is the serialisable view of a registry.
type Report struct {
	Phases []PhaseReport `json:"phases"`
}

// Snapshot reads every slot without modifying them.
func (r *Registry) Snapshot() Report {
	report := Report{Phases: make([]PhaseReport, 0, NumPhases)}
	for _, p := range Phases() {
		s := &r.slots[p]
		report.Phases = append(report.Phases, PhaseReport{
			Name:    p.String(),
			Seconds: s.Elapsed().Seconds(),
			Count:   s.Count(),
		})
	}
	return report
}

// Print writes one line per phase: name, accumulated seconds and count.
// Nested phases are also shown as a share of the compile total.
func (r *Registry) Print(w io.Writer) error {
	return r.Snapshot().Print(w)
}

// Print renders the report the way Registry.Print does.
func (rep Report) Print(w io.Writer) error {
	var total float64
	for _, ph := range rep.Phases {
		if ph.Name == PhaseCompile.String() {
			total = ph.Seconds
		}
	}
	if _, err := fmt.Fprintf(w, "phase timers:\n"); err != nil {
		return err
	}
	for _, ph := range rep.Phases {
		line := fmt.Sprintf("  %-10s %12.6f s  (%d)", ph.Name, ph.Seconds, ph.Count)
		if ph.Name != PhaseCompile.String() && total > 0 {
			line += fmt.Sprintf("  %5.1f%%", ph.Seconds*100/total)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// PrintTimers prints the Default registry.
func PrintTimers(w io.Writer) error {
	return Default.Print(w)
}
