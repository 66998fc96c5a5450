package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPrepare(t *testing.T) {
	req := Request{
		Audio: MediaFile{Path: "meeting.mp3"},
		Participants: []Participant{
			{Name: "  Anna ", Sample: &MediaFile{Path: "anna.mp3"}},
			{Name: "Boris"},
			{Name: "", Sample: &MediaFile{Path: "unknown.mp3"}},
			{Name: "Anna", Sample: &MediaFile{Path: "anna2.mp3"}},
			{Name: "", Sample: &MediaFile{Path: " "}},
		},
	}

	prepared, stats, err := req.Prepare()
	require.NoError(t, err)

	assert.Equal(t, []string{"Anna", "Participant 2", "Anna (2)"}, prepared.ParticipantNames())
	assert.Equal(t, []string{"Boris", "#5"}, stats.Dropped)
	assert.Equal(t, 1, stats.Renamed)
	assert.Equal(t, "meeting", prepared.Audio.DisplayName)
	assert.Equal(t, "Anna", prepared.Participants[0].Sample.DisplayName)

	// the caller's request is left untouched
	assert.Equal(t, "", req.Participants[0].Sample.DisplayName)
	assert.Len(t, req.Participants, 5)
}

func TestRequestPrepare_UniqueNames(t *testing.T) {
	sample := func() *MediaFile { return &MediaFile{Path: "voice.mp3"} }

	tests := []struct {
		name  string
		names []string
		want  []string
	}{
		{"suffix already taken", []string{"Alice", "Alice", "Alice (2)"}, []string{"Alice", "Alice (2)", "Alice (2) (2)"}},
		{"explicit suffix first", []string{"Alice (2)", "Alice", "Alice"}, []string{"Alice (2)", "Alice", "Alice (3)"}},
		{"positional name taken", []string{"Participant 2", ""}, []string{"Participant 2", "Participant 2 (2)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Audio: MediaFile{Path: "meeting.mp3"}}
			for _, n := range tt.names {
				req.Participants = append(req.Participants, Participant{Name: n, Sample: sample()})
			}

			prepared, _, err := req.Prepare()
			require.NoError(t, err)
			assert.Equal(t, tt.want, prepared.ParticipantNames())
		})
	}
}

func TestRequestPrepare_NoAudio(t *testing.T) {
	_, _, err := Request{}.Prepare()
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestParticipantDetected(t *testing.T) {
	p := ParticipantAnalysis{
		Name: "Anna",
		Indicators: map[IndicatorKind]Indicator{
			IndicatorVanity:       {Detected: true, Examples: []Example{{Quote: "I did it all", Timestamp: "02:00"}}},
			IndicatorResentment:   {Detected: true, Examples: []Example{{Quote: "Again?", Timestamp: "00:10"}}},
			IndicatorAgreement:    {Detected: true},
			IndicatorInterruption: {Detected: false, Examples: []Example{{Quote: "wait", Timestamp: "00:11"}}},
		},
	}

	detected := p.Detected()
	require.Len(t, detected, 2)
	assert.Equal(t, IndicatorResentment, detected[0].Kind)
	assert.Equal(t, IndicatorVanity, detected[1].Kind)
}

func TestIndicatorKind(t *testing.T) {
	assert.True(t, IndicatorFeignedInterest.IsValid())
	assert.False(t, IndicatorKind("sarcasm").IsValid())
	assert.Equal(t, "Feigned interest", IndicatorFeignedInterest.Label())
	assert.Equal(t, "sarcasm", IndicatorKind("sarcasm").Label())
	assert.True(t, IndicatorInterruption.RequiresContext())
	assert.False(t, IndicatorAgreement.RequiresContext())
	for _, kind := range AllIndicators {
		assert.NotEmpty(t, kind.Description(), kind)
	}
}

func TestReportNormalize(t *testing.T) {
	raw := `{
		"meeting_summary": {"topic": " Budget ", "atmosphere": "tense", "key_points": ["a", " ", "b "]},
		"transcript": [
			{"start_time": "00:01", "end_time": "00:03", "speaker": "Anna", "text": " Hello "},
			{"start_time": "00:04", "end_time": "00:05", "speaker": "Boris", "text": "  "},
			{"start_time": "soon", "end_time": "", "speaker": "Boris", "text": "Hi"}
		],
		"participants_analysis": [
			{
				"name": " Anna ",
				"behavior_summary": " calm ",
				"indicators": {
					"interruption": {"detected": true, "examples": [
						{"quote": "Let me stop you", "timestamp": "01:10", "explanation": "cut Boris off"},
						{"quote": " ", "timestamp": "01:20", "explanation": "empty"}
					]},
					"agreement": {"detected": true, "examples": [
						{"quote": "Exactly", "timestamp": "about a minute", "explanation": "supports"}
					]},
					"sarcasm": {"detected": true, "examples": []}
				}
			},
			{"name": "  ", "behavior_summary": "ghost", "indicators": {}}
		]
	}`

	var report Report
	require.NoError(t, json.Unmarshal([]byte(raw), &report))

	warnings := report.Normalize()

	require.NotNil(t, report.MeetingSummary)
	assert.Equal(t, "Budget", report.MeetingSummary.Topic)
	assert.Equal(t, []string{"a", "b"}, report.MeetingSummary.KeyPoints)

	require.Len(t, report.Transcript, 2)
	assert.Equal(t, "Hello", report.Transcript[0].Text)

	require.Len(t, report.ParticipantsAnalysis, 1)
	anna := report.ParticipantsAnalysis[0]
	assert.Equal(t, "Anna", anna.Name)
	assert.Equal(t, "calm", anna.BehaviorSummary)
	assert.Len(t, anna.Indicators, len(AllIndicators))
	assert.Len(t, anna.Indicators[IndicatorInterruption].Examples, 1)
	assert.NotNil(t, anna.Indicators[IndicatorDefense].Examples)
	_, hasUnknown := anna.Indicators[IndicatorKind("sarcasm")]
	assert.False(t, hasUnknown)

	assert.Contains(t, warnings, `Anna: ignored unknown indicator "sarcasm"`)
	assert.Contains(t, warnings, "Anna/interruption: example at 01:10 has no context")
	assert.Contains(t, warnings, `Anna/agreement: timestamp "about a minute" is not seekable`)
	assert.Contains(t, warnings, "dropped participant analysis without a name")
	assert.Contains(t, warnings, `transcript line "Hi" has invalid start time "soon"`)
}

func TestReportNormalize_Nil(t *testing.T) {
	var r *Report
	assert.Nil(t, r.Normalize())
}

func TestOptionsWithDefaults(t *testing.T) {
	one := 1.0
	zero := 0.0
	defaults := Options{Model: "gemini-2.5-pro", Temperature: &one, Language: "English"}

	got := Options{IncludeSummary: true}.WithDefaults(defaults)
	assert.Equal(t, "gemini-2.5-pro", got.Model)
	assert.Equal(t, 1.0, *got.Temperature)
	assert.Equal(t, "English", got.Language)
	assert.True(t, got.IncludeSummary)

	got = Options{Model: "gemini-2.5-flash", Temperature: &zero, Language: "Russian"}.WithDefaults(defaults)
	assert.Equal(t, "gemini-2.5-flash", got.Model)
	assert.Equal(t, 0.0, *got.Temperature)
	assert.Equal(t, "Russian", got.Language)
}
