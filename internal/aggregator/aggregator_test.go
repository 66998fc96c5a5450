package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/meetscope/internal/analysis"
)

func example(quote, ts string) analysis.Example {
	return analysis.Example{Quote: quote, Timestamp: ts, Explanation: "because"}
}

func testReport() *analysis.Report {
	return &analysis.Report{
		ParticipantsAnalysis: []analysis.ParticipantAnalysis{
			{
				Name: "Anna",
				Indicators: map[analysis.IndicatorKind]analysis.Indicator{
					analysis.IndicatorInterruption: {Detected: true, Examples: []analysis.Example{
						example("wait", "01:05:00"),
						example("hold on", "02:10"),
					}},
					analysis.IndicatorAgreement: {Detected: true, Examples: []analysis.Example{
						example("exactly", "00:30"),
					}},
					analysis.IndicatorVanity: {Detected: false, Examples: []analysis.Example{
						example("ignored", "00:01"),
					}},
				},
			},
			{
				Name: "Boris",
				Indicators: map[analysis.IndicatorKind]analysis.Indicator{
					analysis.IndicatorAgreement: {Detected: true, Examples: []analysis.Example{
						example("sure", "later"),
						example("fine", "1:00"),
					}},
					analysis.IndicatorDefense: {Detected: true, Examples: []analysis.Example{
						example("not my fault", "somewhere"),
						example("I was told so", "03:00"),
					}},
				},
			},
		},
	}
}

func TestAggregate(t *testing.T) {
	profile := NewAggregator(DefaultConfig()).Aggregate(testReport())

	assert.Equal(t, 7, profile.TotalExamples)
	require.Len(t, profile.Totals, len(analysis.AllIndicators))
	assert.Equal(t, analysis.IndicatorResentment, profile.Totals[0].Kind)
	assert.Equal(t, IndicatorTotal{Kind: analysis.IndicatorAgreement, Participants: 2, Examples: 3}, profile.Total(analysis.IndicatorAgreement))
	assert.Equal(t, 0, profile.Total(analysis.IndicatorVanity).Examples)

	require.Len(t, profile.Participants, 2)
	anna := profile.Participants[0]
	assert.Equal(t, 3, anna.Examples)
	assert.Equal(t, analysis.IndicatorInterruption, anna.Dominant)
	assert.NotContains(t, anna.Counts, analysis.IndicatorVanity)

	// a tie resolves to the indicator listed first
	assert.Equal(t, analysis.IndicatorDefense, profile.Participants[1].Dominant)
}

func TestAggregate_Timeline(t *testing.T) {
	profile := NewAggregator(DefaultConfig()).Aggregate(testReport())

	var stamps []string
	for _, e := range profile.Timeline {
		stamps = append(stamps, e.Timestamp)
	}
	assert.Equal(t, []string{"00:30", "1:00", "02:10", "03:00", "01:05:00", "somewhere", "later"}, stamps)

	last := profile.Timeline[len(profile.Timeline)-1]
	assert.False(t, last.Seekable)
	assert.Equal(t, "Boris", last.Participant)
	assert.Equal(t, analysis.IndicatorAgreement, last.Kind)

	assert.Equal(t, 3900.0, profile.Timeline[4].Seconds)
}

func TestAggregate_DominantThreshold(t *testing.T) {
	report := &analysis.Report{
		ParticipantsAnalysis: []analysis.ParticipantAnalysis{{
			Name: "Clara",
			Indicators: map[analysis.IndicatorKind]analysis.Indicator{
				analysis.IndicatorVanity: {Detected: true, Examples: []analysis.Example{example("me", "00:10")}},
			},
		}},
	}

	tests := []struct {
		name string
		min  int
		want analysis.IndicatorKind
	}{
		{"default needs two", 2, ""},
		{"single is enough", 1, analysis.IndicatorVanity},
		{"zero falls back to one", 0, analysis.IndicatorVanity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile := NewAggregator(Config{MinDominantExamples: tt.min}).Aggregate(report)
			assert.Equal(t, tt.want, profile.Participants[0].Dominant)
		})
	}
}

func TestAggregate_Nil(t *testing.T) {
	profile := NewAggregator(DefaultConfig()).Aggregate(nil)
	assert.Len(t, profile.Totals, len(analysis.AllIndicators))
	assert.Empty(t, profile.Participants)
	assert.Empty(t, profile.Timeline)
}
