package generator

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"github.com/meridianbio/batchsight-backend/internal/domain"
)

// Sample is one synthesized probe reading.
type Sample struct {
	RunID         string    `json:"run_id"`
	ParameterCode string    `json:"parameter_code"`
	ElapsedHour   int       `json:"elapsed_hour"`
	MeasuredAt    time.Time `json:"measured_at"`
	Value         float64   `json:"value"`
}

// Generator synthesizes one probe reading per elapsed hour per run per
// parameter. The stream is seeded by run identity, so repeated calls produce
// identical samples; there is no hidden state between calls.
type Generator struct{}

func New() *Generator { return &Generator{} }

// SamplesForRun returns the full reading set for one run over the given
// parameters, ordered by parameter declaration then elapsed hour.
func (g *Generator) SamplesForRun(run domain.Run, params []domain.Parameter) []Sample {
	hours := run.DurationHours()
	out := make([]Sample, 0, hours*len(params))
	for _, p := range params {
		rng := rand.New(rand.NewSource(seedFor(run, p.Code)))
		mid := (p.Min + p.Max) / 2
		halfBand := (p.Max - p.Min) / 2
		// Slow drift phase differs per parameter so traces do not move in
		// lockstep.
		phase := rng.Float64() * 2 * math.Pi
		for h := 0; h < hours; h++ {
			wave := 0.45 * halfBand * math.Sin(phase+float64(h)/9.0)
			noise := (rng.Float64()*2 - 1) * 0.25 * halfBand
			v := mid + wave + noise
			// Occasional excursion past the acceptance band, the way a real
			// probe drifts out of control for a stretch.
			if rng.Float64() < 0.05 {
				excursion := halfBand * (0.15 + rng.Float64()*0.5)
				if rng.Intn(2) == 0 {
					v = p.Max + excursion
				} else {
					v = p.Min - excursion
				}
			}
			out = append(out, Sample{
				RunID:         run.RunID,
				ParameterCode: p.Code,
				ElapsedHour:   h,
				MeasuredAt:    run.StartedAt.Add(time.Duration(h) * time.Hour),
				Value:         round3(v),
			})
		}
	}
	return out
}

func seedFor(run domain.Run, paramCode string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(run.RunID))
	_, _ = h.Write([]byte{'|'})
	_, _ = h.Write([]byte(paramCode))
	return run.Seed ^ int64(h.Sum64())
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
