package aggregator

import (
	"time"

	"github.com/strrl/meetscope/internal/analysis"
)

type IndicatorTotal struct {
	Kind         analysis.IndicatorKind `json:"kind" yaml:"kind"`
	Participants int                    `json:"participants" yaml:"participants"`
	Examples     int                    `json:"examples" yaml:"examples"`
}

type ParticipantProfile struct {
	Name     string                         `json:"name" yaml:"name"`
	Counts   map[analysis.IndicatorKind]int `json:"counts" yaml:"counts"`
	Examples int                            `json:"examples" yaml:"examples"`
	// Dominant is empty when no indicator reaches MinDominantExamples.
	Dominant analysis.IndicatorKind `json:"dominant,omitempty" yaml:"dominant,omitempty"`
}

type TimelineEntry struct {
	Seconds     float64                `json:"seconds" yaml:"seconds"`
	Seekable    bool                   `json:"seekable" yaml:"seekable"`
	Timestamp   string                 `json:"timestamp" yaml:"timestamp"`
	Participant string                 `json:"participant" yaml:"participant"`
	Kind        analysis.IndicatorKind `json:"kind" yaml:"kind"`
	Quote       string                 `json:"quote" yaml:"quote"`
	Explanation string                 `json:"explanation" yaml:"explanation"`
	Context     string                 `json:"context,omitempty" yaml:"context,omitempty"`
}

type Profile struct {
	CreatedAt     time.Time            `json:"created_at" yaml:"created_at"`
	TotalExamples int                  `json:"total_examples" yaml:"total_examples"`
	Totals        []IndicatorTotal     `json:"totals" yaml:"totals"`
	Participants  []ParticipantProfile `json:"participants" yaml:"participants"`
	Timeline      []TimelineEntry      `json:"timeline" yaml:"timeline"`
}

// Total returns the totals row for kind.
func (p *Profile) Total(kind analysis.IndicatorKind) IndicatorTotal {
	for _, t := range p.Totals {
		if t.Kind == kind {
			return t
		}
	}
	return IndicatorTotal{Kind: kind}
}
