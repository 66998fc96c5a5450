package ai

import (
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"google.golang.org/genai"

	"github.com/strrl/meetscope/internal/analysis"
)

func stringSchema(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func exampleSchema(kind analysis.IndicatorKind) *genai.Schema {
	s := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"quote":       stringSchema("verbatim quote from the recording"),
			"timestamp":   stringSchema("MM:SS or HH:MM:SS from the start of the main recording"),
			"explanation": stringSchema("why the quote shows this indicator"),
			"context":     stringSchema("who or what was interrupted"),
		},
		PropertyOrdering: []string{"quote", "timestamp", "explanation", "context"},
		Required:         []string{"quote", "timestamp", "explanation"},
	}
	if kind.RequiresContext() {
		s.Required = append(s.Required, "context")
	}
	return s
}

func indicatorSchema(kind analysis.IndicatorKind) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeObject,
		Description: kind.Description(),
		Properties: map[string]*genai.Schema{
			"detected": {Type: genai.TypeBoolean},
			"examples": {Type: genai.TypeArray, Items: exampleSchema(kind)},
		},
		PropertyOrdering: []string{"detected", "examples"},
		Required:         []string{"detected", "examples"},
	}
}

func participantSchema() *genai.Schema {
	indicators := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(analysis.AllIndicators)),
	}
	for _, kind := range analysis.AllIndicators {
		indicators.Properties[string(kind)] = indicatorSchema(kind)
		indicators.PropertyOrdering = append(indicators.PropertyOrdering, string(kind))
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":             stringSchema("participant name as given with the voice sample"),
			"behavior_summary": stringSchema("short summary of the participant's behavior"),
			"indicators":       indicators,
		},
		PropertyOrdering: []string{"name", "behavior_summary", "indicators"},
		Required:         []string{"name", "behavior_summary", "indicators"},
	}
}

func summarySchema() *genai.Schema {
	list := &genai.Schema{Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"topic":      stringSchema("main topic of the meeting"),
			"atmosphere": stringSchema("overall atmosphere"),
			"key_points": list,
			"conflicts":  list,
		},
		PropertyOrdering: []string{"topic", "atmosphere", "key_points", "conflicts"},
		Required:         []string{"topic", "atmosphere", "key_points"},
	}
}

func transcriptSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"start_time": stringSchema("MM:SS or HH:MM:SS"),
				"end_time":   stringSchema("MM:SS or HH:MM:SS"),
				"speaker":    {Type: genai.TypeString},
				"text":       {Type: genai.TypeString},
			},
			PropertyOrdering: []string{"start_time", "end_time", "speaker", "text"},
			Required:         []string{"start_time", "end_time", "speaker", "text"},
		},
	}
}

// ResponseSchema is the structured output requested from the model. Only
// participants_analysis is always present; the summary and transcript
// sections are added when the options ask for them.
func ResponseSchema(opts analysis.Options) *genai.Schema {
	root := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: map[string]*genai.Schema{},
		Required:   []string{"participants_analysis"},
	}

	if opts.IncludeSummary {
		root.Properties["meeting_summary"] = summarySchema()
		root.PropertyOrdering = append(root.PropertyOrdering, "meeting_summary")
		root.Required = append(root.Required, "meeting_summary")
	}
	if opts.IncludeTranscript {
		root.Properties["transcript"] = transcriptSchema()
		root.PropertyOrdering = append(root.PropertyOrdering, "transcript")
		root.Required = append(root.Required, "transcript")
	}

	root.Properties["participants_analysis"] = &genai.Schema{
		Type:  genai.TypeArray,
		Items: participantSchema(),
	}
	root.PropertyOrdering = append(root.PropertyOrdering, "participants_analysis")

	return root
}

// JSONSchema converts a Gemini schema into a JSON Schema for validating the
// decoded response locally.
func JSONSchema(s *genai.Schema) *jsonschema.Schema {
	if s == nil {
		return nil
	}

	out := &jsonschema.Schema{
		Type:        strings.ToLower(string(s.Type)),
		Description: s.Description,
	}
	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*jsonschema.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = JSONSchema(prop)
		}
	}
	if s.Items != nil {
		out.Items = JSONSchema(s.Items)
	}
	return out
}
