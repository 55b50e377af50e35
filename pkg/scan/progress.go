package scan

import "time"

// Simulated ramp parameters. The loading view samples the simulator at
// SampleInterval; the ramp reaches 100% after SimulatedDuration of wall
// time regardless of the real scan's state.
const (
	SimulatedDuration = 180 * time.Second
	SampleInterval    = 100 * time.Millisecond
)

// PhaseCount partitions the 0-100% range into equal user-facing bands.
const PhaseCount = 4

var phaseLabels = [PhaseCount]string{
	"Initializing...",
	"Analyzing CI/CD pipeline...",
	"Scanning for vulnerabilities...",
	"Generating results...",
}

// Simulator is a wall-clock-driven indicator of apparent scan progress.
// It is purely cosmetic: it may reach 100% before or after the real
// operation resolves, and the real outcome arriving is what drives the
// page transition, never the simulator.
type Simulator struct {
	start    time.Time
	duration time.Duration
	now      func() time.Time
}

// NewSimulator starts a simulator at the current wall-clock time.
func NewSimulator() *Simulator {
	return newSimulator(time.Now)
}

func newSimulator(now func() time.Time) *Simulator {
	return &Simulator{
		start:    now(),
		duration: SimulatedDuration,
		now:      now,
	}
}

// Progress returns the apparent completion percentage in [0, 100].
func (s *Simulator) Progress() float64 {
	elapsed := s.now().Sub(s.start)
	if elapsed <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(s.duration) * 100
	if p > 100 {
		return 100
	}
	return p
}

// Phase returns the coarse phase index in [0, PhaseCount-1], a
// non-decreasing step function of elapsed time.
func (s *Simulator) Phase() int {
	phase := int(s.Progress() / 100 * PhaseCount)
	if phase >= PhaseCount {
		phase = PhaseCount - 1
	}
	return phase
}

// PhaseLabel returns the user-facing label of the current phase.
func (s *Simulator) PhaseLabel() string {
	return phaseLabels[s.Phase()]
}
