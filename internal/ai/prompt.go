package ai

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"github.com/strrl/meetscope/internal/analysis"
)

const startPrompt = `You are an experienced organizational psychologist analyzing a recorded work meeting.
You receive the main meeting recording and short voice samples of the participants.
Use the voice samples only to recognize who is speaking in the main recording.
Analyze only what is actually said in the main recording. Do not invent quotes.`

// BuildPrompt lays out the request parts: instructions, the main recording,
// one labelled voice sample per participant, and the closing rules.
func BuildPrompt(main *UploadedFile, participants []UploadedParticipant, opts analysis.Options) []*genai.Part {
	parts := make([]*genai.Part, 0, 4+2*len(participants))

	parts = append(parts,
		genai.NewPartFromText(startPrompt),
		genai.NewPartFromText("Main meeting recording:"),
		genai.NewPartFromURI(main.URI, main.MIMEType),
	)

	if len(participants) > 0 {
		parts = append(parts, genai.NewPartFromText("Voice samples of participants:"))
		for _, p := range participants {
			parts = append(parts,
				genai.NewPartFromText("Participant: "+p.Name),
				genai.NewPartFromURI(p.File.URI, p.File.MIMEType),
			)
		}
	}

	parts = append(parts, genai.NewPartFromText(endPrompt(participants, opts)))

	return parts
}

func endPrompt(participants []UploadedParticipant, opts analysis.Options) string {
	var b strings.Builder

	b.WriteString("Rules:\n")
	if len(participants) > 0 {
		names := make([]string, 0, len(participants))
		for _, p := range participants {
			names = append(names, p.Name)
		}
		fmt.Fprintf(&b, "- Analyze each of these participants, using exactly these names: %s.\n", strings.Join(names, ", "))
	} else {
		b.WriteString("- No voice samples were given. Distinguish speakers yourself and name them Speaker 1, Speaker 2 and so on.\n")
	}

	b.WriteString("- For every participant evaluate each behavioral indicator:\n")
	for _, kind := range analysis.AllIndicators {
		fmt.Fprintf(&b, "  - %s: %s\n", kind, kind.Description())
	}
	b.WriteString("- Set detected to true only when you can cite at least one example. Otherwise return detected false and an empty examples list.\n")
	b.WriteString("- Every example quotes the participant verbatim, gives the timestamp where the quote starts and explains why it shows the indicator.\n")
	b.WriteString("- For interruption examples fill context with who was interrupted and what they were saying.\n")
	b.WriteString("- Timestamps use MM:SS, or HH:MM:SS for recordings longer than an hour, measured from the start of the main meeting recording.\n")
	if opts.IncludeSummary {
		b.WriteString("- Fill meeting_summary with the topic, the atmosphere, the key points and any conflicts.\n")
	}
	if opts.IncludeTranscript {
		b.WriteString("- Fill transcript with the full transcript split by speaker turns.\n")
	}

	language := opts.Language
	if language == "" {
		language = DefaultLanguage
	}
	fmt.Fprintf(&b, "- Write all summaries and explanations in %s. Keep quotes in the original language.\n", language)
	b.WriteString("- Return only JSON matching the response schema.")

	return b.String()
}
