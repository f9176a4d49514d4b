package catalog

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/meridianbio/batchsight-backend/internal/domain"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Catalog holds the static process reference data: monitored parameters,
// batch runs and registered instrument interfaces. It is load-time constant;
// everything here is lookup, no logic.
type Catalog struct {
	params     []domain.Parameter
	runs       []domain.Run
	interfaces []domain.Interface

	paramByCode map[string]domain.Parameter
	runByID     map[string]domain.Run
	ifaceByID   map[string]domain.Interface
}

type catalogFile struct {
	Parameters []domain.Parameter `yaml:"parameters"`
	Runs       []domain.Run       `yaml:"runs"`
	Interfaces []domain.Interface `yaml:"interfaces"`
}

// Load decodes the embedded catalog. The embedded copy is versioned with the
// binary; a broken catalog is a build defect, so Load is strict.
func Load() (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(catalogYAML, &f); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if len(f.Parameters) == 0 || len(f.Runs) == 0 || len(f.Interfaces) == 0 {
		return nil, fmt.Errorf("catalog incomplete: %d parameters, %d runs, %d interfaces",
			len(f.Parameters), len(f.Runs), len(f.Interfaces))
	}
	c := &Catalog{
		params:      f.Parameters,
		runs:        f.Runs,
		interfaces:  f.Interfaces,
		paramByCode: make(map[string]domain.Parameter, len(f.Parameters)),
		runByID:     make(map[string]domain.Run, len(f.Runs)),
		ifaceByID:   make(map[string]domain.Interface, len(f.Interfaces)),
	}
	for _, p := range f.Parameters {
		if _, dup := c.paramByCode[p.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate parameter code %q", p.Code)
		}
		c.paramByCode[p.Code] = p
	}
	for _, r := range f.Runs {
		if _, dup := c.runByID[r.RunID]; dup {
			return nil, fmt.Errorf("catalog: duplicate run id %q", r.RunID)
		}
		if r.EndedAt.Before(r.StartedAt) {
			return nil, fmt.Errorf("catalog: run %q ends before it starts", r.RunID)
		}
		c.runByID[r.RunID] = r
	}
	for _, i := range f.Interfaces {
		if _, dup := c.ifaceByID[i.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate interface id %q", i.ID)
		}
		c.ifaceByID[i.ID] = i
	}
	return c, nil
}

func (c *Catalog) Parameters() []domain.Parameter {
	out := make([]domain.Parameter, len(c.params))
	copy(out, c.params)
	return out
}

func (c *Catalog) ParameterByCode(code string) (domain.Parameter, bool) {
	p, ok := c.paramByCode[code]
	return p, ok
}

func (c *Catalog) Runs() []domain.Run {
	out := make([]domain.Run, len(c.runs))
	copy(out, c.runs)
	return out
}

func (c *Catalog) RunByID(id string) (domain.Run, bool) {
	r, ok := c.runByID[id]
	return r, ok
}

func (c *Catalog) Interfaces() []domain.Interface {
	out := make([]domain.Interface, len(c.interfaces))
	copy(out, c.interfaces)
	return out
}

func (c *Catalog) InterfaceByID(id string) (domain.Interface, bool) {
	i, ok := c.ifaceByID[id]
	return i, ok
}

// ProbeInterfaceID is the timeseries probe interface for a run's reactor.
func (c *Catalog) ProbeInterfaceID(run domain.Run) string {
	return run.ReactorID + "-p"
}

// ReactorInterfaceID is the reactor-scoped event interface for a run.
func (c *Catalog) ReactorInterfaceID(run domain.Run) string {
	return run.ReactorID
}

// InterfacesByKind returns registered interfaces of one kind, declaration
// order preserved.
func (c *Catalog) InterfacesByKind(kind domain.InterfaceKind) []domain.Interface {
	var out []domain.Interface
	for _, i := range c.interfaces {
		if i.Kind == kind {
			out = append(out, i)
		}
	}
	return out
}
