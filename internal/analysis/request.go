package analysis

import (
	"errors"
	"fmt"
	"strings"
)

var ErrNoAudio = errors.New("meeting recording is required")

type MediaFile struct {
	Path        string
	MIMEType    string
	DisplayName string
}

type Participant struct {
	Name   string
	Sample *MediaFile
}

type Options struct {
	Model             string
	// nil means the configured default; zero is a valid temperature
	Temperature       *float64
	Language          string
	IncludeSummary    bool
	IncludeTranscript bool
}

// WithDefaults fills unset options from defaults.
func (o Options) WithDefaults(defaults Options) Options {
	if o.Model == "" {
		o.Model = defaults.Model
	}
	if o.Temperature == nil {
		o.Temperature = defaults.Temperature
	}
	if o.Language == "" {
		o.Language = defaults.Language
	}
	return o
}

type Request struct {
	Audio        MediaFile
	Participants []Participant
	Options      Options
}

type PrepareStats struct {
	Dropped []string
	Renamed int
}

// Prepare validates the request and returns a copy in which participants
// without a voice sample are removed and unnamed participants get a
// positional name.
func (r Request) Prepare() (Request, PrepareStats, error) {
	var stats PrepareStats

	if strings.TrimSpace(r.Audio.Path) == "" {
		return Request{}, stats, ErrNoAudio
	}

	out := r
	out.Participants = make([]Participant, 0, len(r.Participants))
	seen := make(map[string]bool)

	for i, p := range r.Participants {
		name := strings.TrimSpace(p.Name)
		if p.Sample == nil || strings.TrimSpace(p.Sample.Path) == "" {
			if name == "" {
				name = fmt.Sprintf("#%d", i+1)
			}
			stats.Dropped = append(stats.Dropped, name)
			continue
		}

		if name == "" {
			name = fmt.Sprintf("Participant %d", len(out.Participants)+1)
			stats.Renamed++
		}
		name = uniqueName(name, seen)

		sample := *p.Sample
		if sample.DisplayName == "" {
			sample.DisplayName = name
		}
		out.Participants = append(out.Participants, Participant{Name: name, Sample: &sample})
	}

	if out.Audio.DisplayName == "" {
		out.Audio.DisplayName = "meeting"
	}

	return out, stats, nil
}

// uniqueName returns name, or name with the lowest " (n)" suffix not taken
// yet, and marks the result as taken.
func uniqueName(name string, seen map[string]bool) string {
	candidate := name
	for n := 2; seen[candidate]; n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	seen[candidate] = true
	return candidate
}

func (r Request) ParticipantNames() []string {
	names := make([]string, 0, len(r.Participants))
	for _, p := range r.Participants {
		names = append(names, p.Name)
	}
	return names
}
