package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/strrl/meetscope/internal/timecode"
)

// Normalize cleans up model output in place and returns warnings about
// content that was kept but is suspicious, or that had to be dropped.
func (r *Report) Normalize() []string {
	if r == nil {
		return nil
	}

	var warnings []string

	if r.MeetingSummary != nil {
		s := r.MeetingSummary
		s.Topic = strings.TrimSpace(s.Topic)
		s.Atmosphere = strings.TrimSpace(s.Atmosphere)
		s.KeyPoints = compactStrings(s.KeyPoints)
		s.Conflicts = compactStrings(s.Conflicts)
	}

	lines := r.Transcript[:0]
	for _, line := range r.Transcript {
		line.Speaker = strings.TrimSpace(line.Speaker)
		line.Text = strings.TrimSpace(line.Text)
		line.StartTime = strings.TrimSpace(line.StartTime)
		line.EndTime = strings.TrimSpace(line.EndTime)
		if line.Text == "" {
			continue
		}
		if !timecode.Valid(line.StartTime) {
			warnings = append(warnings, fmt.Sprintf("transcript line %q has invalid start time %q", truncate(line.Text, 40), line.StartTime))
		}
		lines = append(lines, line)
	}
	r.Transcript = lines

	participants := r.ParticipantsAnalysis[:0]
	for _, p := range r.ParticipantsAnalysis {
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			warnings = append(warnings, "dropped participant analysis without a name")
			continue
		}
		p.BehaviorSummary = strings.TrimSpace(p.BehaviorSummary)
		warnings = append(warnings, p.normalizeIndicators()...)
		participants = append(participants, p)
	}
	r.ParticipantsAnalysis = participants

	return warnings
}

func (p *ParticipantAnalysis) normalizeIndicators() []string {
	var warnings []string

	var unknown []string
	for kind := range p.Indicators {
		if !kind.IsValid() {
			unknown = append(unknown, string(kind))
		}
	}
	sort.Strings(unknown)
	for _, kind := range unknown {
		warnings = append(warnings, fmt.Sprintf("%s: ignored unknown indicator %q", p.Name, kind))
	}

	indicators := make(map[IndicatorKind]Indicator, len(AllIndicators))
	for _, kind := range AllIndicators {
		ind, ok := p.Indicators[kind]
		if !ok {
			indicators[kind] = Indicator{Examples: []Example{}}
			continue
		}

		examples := make([]Example, 0, len(ind.Examples))
		for _, ex := range ind.Examples {
			ex.Quote = strings.TrimSpace(ex.Quote)
			ex.Timestamp = strings.TrimSpace(ex.Timestamp)
			ex.Explanation = strings.TrimSpace(ex.Explanation)
			ex.Context = strings.TrimSpace(ex.Context)
			if ex.Quote == "" {
				continue
			}
			if !timecode.Valid(ex.Timestamp) {
				warnings = append(warnings, fmt.Sprintf("%s/%s: timestamp %q is not seekable", p.Name, kind, ex.Timestamp))
			}
			if kind.RequiresContext() && ex.Context == "" {
				warnings = append(warnings, fmt.Sprintf("%s/%s: example at %s has no context", p.Name, kind, ex.Timestamp))
			}
			examples = append(examples, ex)
		}
		ind.Examples = examples
		indicators[kind] = ind
	}
	p.Indicators = indicators

	return warnings
}

func compactStrings(in []string) []string {
	out := in[:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
