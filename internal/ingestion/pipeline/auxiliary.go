package pipeline

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/meridianbio/batchsight-backend/internal/domain"
)

// Auxiliary instruments: the gas mix rack snapshots itself on a fixed
// interval, the offgas analyzer uploads one panel per run day, and the HPLC
// injects periodically producing paired report/summary artifacts. Each has
// its own lag model between measurement and ingestion.

func (p *Pipeline) buildGasRack() []*domain.DataRecord {
	racks := p.cat.InterfacesByKind(domain.InterfaceGasRack)
	if len(racks) == 0 {
		return nil
	}
	iface := racks[0].ID
	var out []*domain.DataRecord
	for _, run := range p.cat.Runs() {
		rng := rand.New(rand.NewSource(run.Seed + 101))
		for tick := 0; ; tick++ {
			measured := run.StartedAt.Add(time.Duration(tick) * p.cfg.GasRackInterval)
			if !measured.Before(run.EndedAt) {
				break
			}
			o2 := 21.0 + rng.Float64()*15.0
			rawRef := fmt.Sprintf("gas|%s|%s|t%03d", iface, run.RunID, tick)
			r := &domain.DataRecord{
				MeasuredAt:     measured,
				IngestedAt:     measured.Add(p.cfg.GasRackLag),
				InterfaceID:    iface,
				DataType:       domain.DataTypeTimeseries,
				Summary:        fmt.Sprintf("Gas mix snapshot O2 %.1f %%", o2),
				RawRef:         rawRef,
				AttributableTo: iface,
				EntryMode:      domain.EntryModeAuto,
				Labels: map[string]string{
					"gas_blend": "o2/n2",
					"o2_pct":    fmt.Sprintf("%.1f", o2),
				},
				LinkedRunID: run.RunID,
			}
			p.finish(r)
			out = append(out, r)
		}
	}
	return out
}

func (p *Pipeline) buildAnalyzerPanels() []*domain.DataRecord {
	analyzers := p.cat.InterfacesByKind(domain.InterfaceAnalyzer)
	if len(analyzers) == 0 {
		return nil
	}
	iface := analyzers[0].ID
	var out []*domain.DataRecord
	for _, run := range p.cat.Runs() {
		rng := rand.New(rand.NewSource(run.Seed + 202))
		days := run.DurationHours() / 24
		for day := 0; day < days; day++ {
			measured := run.StartedAt.Add(time.Duration(day)*24*time.Hour + 2*time.Hour)
			co2 := 2.0 + rng.Float64()*4.0
			rawRef := fmt.Sprintf("panel|%s|%s|d%02d", iface, run.RunID, day)
			r := &domain.DataRecord{
				MeasuredAt:     measured,
				IngestedAt:     measured.Add(p.cfg.AnalyzerLag),
				InterfaceID:    iface,
				DataType:       domain.DataTypeTimeseries,
				Summary:        fmt.Sprintf("Offgas panel day %d, CO2 %.2f %%", day+1, co2),
				RawRef:         rawRef,
				AttributableTo: iface,
				EntryMode:      domain.EntryModeAuto,
				Labels: map[string]string{
					"panel":         "offgas",
					"analyzer_mode": "auto",
					"co2_pct":       fmt.Sprintf("%.2f", co2),
				},
				LinkedRunID: run.RunID,
			}
			p.finish(r)
			out = append(out, r)
		}
	}
	return out
}

func (p *Pipeline) buildChromatography() []*domain.DataRecord {
	stations := p.cat.InterfacesByKind(domain.InterfaceChromatograph)
	if len(stations) == 0 {
		return nil
	}
	iface := stations[0].ID
	var out []*domain.DataRecord
	for _, run := range p.cat.Runs() {
		injections := 0
		for hour := p.cfg.HPLCStartHour; hour < run.DurationHours(); hour += int(p.cfg.HPLCInterval / time.Hour) {
			injections++
			seq := fmt.Sprintf("SEQ-%s-%02d", run.RunID, injections)
			measured := run.StartedAt.Add(time.Duration(hour) * time.Hour)

			out = append(out, p.chromArtifact(iface, run.RunID, seq, "pdf", measured, 15*time.Minute))

			// The final R-456 summary export never made it off the
			// instrument PC; the companion-file rule reports the orphan.
			if run.RunID == "R-456" && hour+int(p.cfg.HPLCInterval/time.Hour) >= run.DurationHours() {
				continue
			}
			out = append(out, p.chromArtifact(iface, run.RunID, seq, "csv", measured, 40*time.Minute))
		}
	}
	return out
}

func (p *Pipeline) chromArtifact(iface, runID, seq, fileType string, measured time.Time, lag time.Duration) *domain.DataRecord {
	kind := "report"
	if fileType == "csv" {
		kind = "summary"
	}
	r := &domain.DataRecord{
		MeasuredAt:     measured,
		IngestedAt:     measured.Add(lag),
		InterfaceID:    iface,
		DataType:       domain.DataTypeFile,
		Summary:        fmt.Sprintf("HPLC %s %s (%s)", kind, seq, fileType),
		RawRef:         fmt.Sprintf("hplc|%s|%s|%s|%s", iface, runID, seq, fileType),
		AttributableTo: iface,
		EntryMode:      domain.EntryModeAuto,
		Labels: map[string]string{
			"file_type": fileType,
			"sequence":  seq,
			"column_id": "C18-07",
			"method":    "titer_v3",
		},
		LinkedRunID: runID,
	}
	p.finish(r)
	return r
}
