package aggregator

import (
	"sort"
	"time"

	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/timecode"
)

type Config struct {
	// MinDominantExamples is how many examples an indicator needs before it
	// can be reported as a participant's dominant one.
	MinDominantExamples int
}

func DefaultConfig() Config {
	return Config{
		MinDominantExamples: 2,
	}
}

type Aggregator struct {
	config Config
	now    time.Time
}

func NewAggregator(cfg Config) *Aggregator {
	if cfg.MinDominantExamples <= 0 {
		cfg.MinDominantExamples = 1
	}
	return &Aggregator{
		config: cfg,
		now:    time.Now(),
	}
}

// Aggregate counts detected indicators per participant and across the
// meeting, and lays every example out on a single timeline.
func (a *Aggregator) Aggregate(report *analysis.Report) *Profile {
	profile := &Profile{
		CreatedAt:    a.now,
		Totals:       make([]IndicatorTotal, len(analysis.AllIndicators)),
		Participants: []ParticipantProfile{},
		Timeline:     []TimelineEntry{},
	}
	index := make(map[analysis.IndicatorKind]int, len(analysis.AllIndicators))
	for i, kind := range analysis.AllIndicators {
		profile.Totals[i] = IndicatorTotal{Kind: kind}
		index[kind] = i
	}

	if report == nil {
		return profile
	}

	for _, p := range report.ParticipantsAnalysis {
		pp := ParticipantProfile{
			Name:   p.Name,
			Counts: make(map[analysis.IndicatorKind]int),
		}

		for _, ind := range p.Detected() {
			n := len(ind.Examples)
			pp.Counts[ind.Kind] = n
			pp.Examples += n

			total := &profile.Totals[index[ind.Kind]]
			total.Participants++
			total.Examples += n

			for _, ex := range ind.Examples {
				profile.Timeline = append(profile.Timeline, timelineEntry(p.Name, ind.Kind, ex))
			}
		}

		pp.Dominant = a.dominant(pp.Counts)
		profile.TotalExamples += pp.Examples
		profile.Participants = append(profile.Participants, pp)
	}

	sortTimeline(profile.Timeline)

	return profile
}

// dominant picks the indicator with the most examples; ties go to the one
// listed first in AllIndicators.
func (a *Aggregator) dominant(counts map[analysis.IndicatorKind]int) analysis.IndicatorKind {
	var best analysis.IndicatorKind
	bestCount := 0
	for _, kind := range analysis.AllIndicators {
		if n := counts[kind]; n > bestCount {
			best, bestCount = kind, n
		}
	}
	if bestCount < a.config.MinDominantExamples {
		return ""
	}
	return best
}

func timelineEntry(name string, kind analysis.IndicatorKind, ex analysis.Example) TimelineEntry {
	seconds, err := timecode.ParseSeconds(ex.Timestamp)
	return TimelineEntry{
		Seconds:     seconds,
		Seekable:    err == nil,
		Timestamp:   ex.Timestamp,
		Participant: name,
		Kind:        kind,
		Quote:       ex.Quote,
		Explanation: ex.Explanation,
		Context:     ex.Context,
	}
}

func sortTimeline(entries []TimelineEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.Seekable != b.Seekable {
			return a.Seekable
		}
		return a.Seconds < b.Seconds
	})
}
