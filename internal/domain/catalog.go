package domain

import "time"

// Parameter is one monitored process parameter with its acceptance range.
type Parameter struct {
	Code        string  `json:"code" yaml:"code"`
	DisplayName string  `json:"display_name" yaml:"display_name"`
	Unit        string  `json:"unit" yaml:"unit"`
	Min         float64 `json:"min" yaml:"min"`
	Max         float64 `json:"max" yaml:"max"`
	Priority    int     `json:"priority" yaml:"priority"`
	Critical    bool    `json:"is_critical" yaml:"is_critical"`
}

// InRange reports whether v sits inside the acceptable band. The band is
// inclusive; only values strictly outside it count as out of range.
func (p Parameter) InRange(v float64) bool {
	return v >= p.Min && v <= p.Max
}

// Run is one batch run on a reactor. Seed drives the deterministic
// timeseries synthesis for the run.
type Run struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	ReactorID string    `json:"reactor_id" yaml:"reactor_id"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time `json:"ended_at" yaml:"ended_at"`
	Seed      int64     `json:"seed" yaml:"seed"`
	Product   string    `json:"product,omitempty" yaml:"product"`
	Operator  string    `json:"operator,omitempty" yaml:"operator"`
}

// DurationHours is the number of whole elapsed hours in the run window.
func (r Run) DurationHours() int {
	if r.EndedAt.Before(r.StartedAt) {
		return 0
	}
	return int(r.EndedAt.Sub(r.StartedAt) / time.Hour)
}

type InterfaceKind string

const (
	InterfaceReactorProbe  InterfaceKind = "reactor_probe"
	InterfaceReactor       InterfaceKind = "reactor"
	InterfaceGasRack       InterfaceKind = "gas_rack"
	InterfaceAnalyzer      InterfaceKind = "analyzer"
	InterfacePumpModule    InterfaceKind = "pump_module"
	InterfaceChromatograph InterfaceKind = "chromatograph"
)

// Interface is one registered instrument interface.
type Interface struct {
	ID          string        `json:"id" yaml:"id"`
	Kind        InterfaceKind `json:"kind" yaml:"kind"`
	DisplayName string        `json:"display_name" yaml:"display_name"`
	// ReactorID links reactor-scoped interfaces to their vessel.
	ReactorID string `json:"reactor_id,omitempty" yaml:"reactor_id"`
}
