// Package analysis holds the domain model shared by the analyzer, the history
// store and the renderers: what goes into an analysis and what comes back.
package analysis

import (
	"time"
)

type IndicatorKind string

const (
	IndicatorResentment      IndicatorKind = "resentment"
	IndicatorJustification   IndicatorKind = "justification"
	IndicatorDefense         IndicatorKind = "defense"
	IndicatorInterruption    IndicatorKind = "interruption"
	IndicatorAgreement       IndicatorKind = "agreement"
	IndicatorVanity          IndicatorKind = "vanity"
	IndicatorFeignedInterest IndicatorKind = "feigned_interest"
)

// AllIndicators is the canonical order used by schemas, prompts and reports.
var AllIndicators = []IndicatorKind{
	IndicatorResentment,
	IndicatorJustification,
	IndicatorDefense,
	IndicatorInterruption,
	IndicatorAgreement,
	IndicatorVanity,
	IndicatorFeignedInterest,
}

type indicatorInfo struct {
	Label       string
	Description string
}

var indicatorInfos = map[IndicatorKind]indicatorInfo{
	IndicatorResentment: {
		Label:       "Resentment",
		Description: "irritation, grievance or passive aggression towards other participants or decisions",
	},
	IndicatorJustification: {
		Label:       "Justification",
		Description: "explaining away own mistakes or delays instead of addressing them",
	},
	IndicatorDefense: {
		Label:       "Defense",
		Description: "defensive reactions to questions, criticism or feedback",
	},
	IndicatorInterruption: {
		Label:       "Interruption",
		Description: "cutting another speaker off before they finish their thought",
	},
	IndicatorAgreement: {
		Label:       "Agreement",
		Description: "explicit support of other participants' proposals or opinions",
	},
	IndicatorVanity: {
		Label:       "Vanity",
		Description: "self-promotion, boasting or steering the conversation to own achievements",
	},
	IndicatorFeignedInterest: {
		Label:       "Feigned interest",
		Description: "formal or hollow engagement that signals lack of real interest",
	},
}

func (k IndicatorKind) IsValid() bool {
	_, ok := indicatorInfos[k]
	return ok
}

func (k IndicatorKind) Label() string {
	if info, ok := indicatorInfos[k]; ok {
		return info.Label
	}
	return string(k)
}

func (k IndicatorKind) Description() string {
	return indicatorInfos[k].Description
}

// RequiresContext reports whether examples of this kind must say who or what
// was affected.
func (k IndicatorKind) RequiresContext() bool {
	return k == IndicatorInterruption
}

type Example struct {
	Quote       string `json:"quote" yaml:"quote"`
	Timestamp   string `json:"timestamp" yaml:"timestamp"`
	Explanation string `json:"explanation" yaml:"explanation"`
	Context     string `json:"context,omitempty" yaml:"context,omitempty"`
}

type Indicator struct {
	Detected bool      `json:"detected" yaml:"detected"`
	Examples []Example `json:"examples" yaml:"examples"`
}

type ParticipantAnalysis struct {
	Name            string                      `json:"name" yaml:"name"`
	BehaviorSummary string                      `json:"behavior_summary" yaml:"behavior_summary"`
	Indicators      map[IndicatorKind]Indicator `json:"indicators" yaml:"indicators"`
}

type DetectedIndicator struct {
	Kind IndicatorKind
	Indicator
}

// Detected returns indicators flagged as detected that carry at least one
// example, in AllIndicators order.
func (p ParticipantAnalysis) Detected() []DetectedIndicator {
	var out []DetectedIndicator
	for _, kind := range AllIndicators {
		ind, ok := p.Indicators[kind]
		if !ok || !ind.Detected || len(ind.Examples) == 0 {
			continue
		}
		out = append(out, DetectedIndicator{Kind: kind, Indicator: ind})
	}
	return out
}

type MeetingSummary struct {
	Topic      string   `json:"topic" yaml:"topic"`
	Atmosphere string   `json:"atmosphere" yaml:"atmosphere"`
	KeyPoints  []string `json:"key_points" yaml:"key_points"`
	Conflicts  []string `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
}

type TranscriptLine struct {
	StartTime string `json:"start_time" yaml:"start_time"`
	EndTime   string `json:"end_time" yaml:"end_time"`
	Speaker   string `json:"speaker" yaml:"speaker"`
	Text      string `json:"text" yaml:"text"`
}

// Report mirrors the structured output requested from the model.
type Report struct {
	MeetingSummary       *MeetingSummary       `json:"meeting_summary,omitempty" yaml:"meeting_summary,omitempty"`
	Transcript           []TranscriptLine      `json:"transcript,omitempty" yaml:"transcript,omitempty"`
	ParticipantsAnalysis []ParticipantAnalysis `json:"participants_analysis" yaml:"participants_analysis"`
}

type Usage struct {
	PromptTokens int `json:"prompt_tokens" yaml:"prompt_tokens"`
	OutputTokens int `json:"output_tokens" yaml:"output_tokens"`
	TotalTokens  int `json:"total_tokens" yaml:"total_tokens"`
}

// Result is what the analyzer hands back for a single request.
type Result struct {
	Model    string
	Report   *Report
	Usage    Usage
	Warnings []string
}

// Run is a completed analysis as persisted in history.
type Run struct {
	ID           string        `json:"id" yaml:"id"`
	CreatedAt    time.Time     `json:"created_at" yaml:"created_at"`
	Model        string        `json:"model" yaml:"model"`
	AudioPath    string        `json:"audio_path" yaml:"audio_path"`
	AudioMIME    string        `json:"audio_mime" yaml:"audio_mime"`
	Participants []string      `json:"participants" yaml:"participants"`
	Report       *Report       `json:"report" yaml:"report"`
	Usage        Usage         `json:"usage" yaml:"usage"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Warnings     []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}
