package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/strrl/meetscope/internal/aggregator"
	"github.com/strrl/meetscope/internal/analysis"
)

func writeMarkdown(w io.Writer, run *analysis.Run, profile *aggregator.Profile) error {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Meeting analysis %s\n\n", run.ID))
	sb.WriteString(fmt.Sprintf("- **Recording:** %s\n", emptyFallback(run.AudioPath, "-")))
	sb.WriteString(fmt.Sprintf("- **Model:** %s\n", run.Model))
	if !run.CreatedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("- **Created:** %s\n", run.CreatedAt.UTC().Format(time.RFC3339)))
	}
	sb.WriteString(fmt.Sprintf("- **Participants:** %s\n", emptyFallback(strings.Join(run.Participants, ", "), "-")))
	sb.WriteString(fmt.Sprintf("- **Tokens:** %d prompt, %d output, %d total\n\n",
		run.Usage.PromptTokens, run.Usage.OutputTokens, run.Usage.TotalTokens))

	report := run.Report
	if report == nil {
		report = &analysis.Report{}
	}

	if s := report.MeetingSummary; s != nil {
		sb.WriteString("## Summary\n\n")
		sb.WriteString(fmt.Sprintf("**Topic:** %s\n\n", s.Topic))
		sb.WriteString(fmt.Sprintf("**Atmosphere:** %s\n\n", s.Atmosphere))
		writeList(&sb, "Key points", s.KeyPoints)
		writeList(&sb, "Conflicts", s.Conflicts)
	}

	sb.WriteString("## Participants\n\n")
	if len(report.ParticipantsAnalysis) == 0 {
		sb.WriteString("No participants were analyzed.\n\n")
	}
	dominant := make(map[string]analysis.IndicatorKind, len(profile.Participants))
	for _, p := range profile.Participants {
		dominant[p.Name] = p.Dominant
	}
	for _, p := range report.ParticipantsAnalysis {
		writeParticipant(&sb, p, dominant[p.Name])
	}

	if len(profile.Timeline) > 0 {
		sb.WriteString("## Timeline\n\n")
		sb.WriteString("| Time | Participant | Indicator | Quote |\n")
		sb.WriteString("|---|---|---|---|\n")
		for _, e := range profile.Timeline {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				cell(e.Timestamp), cell(e.Participant), e.Kind.Label(), cell(truncate(e.Quote, 120))))
		}
		sb.WriteString("\n")
	}

	if len(report.Transcript) > 0 {
		sb.WriteString("## Transcript\n\n")
		for _, line := range report.Transcript {
			sb.WriteString(fmt.Sprintf("- `[%s]` **%s:** %s\n", line.StartTime, line.Speaker, line.Text))
		}
		sb.WriteString("\n")
	}

	if len(run.Warnings) > 0 {
		sb.WriteString("## Warnings\n\n")
		for _, warning := range run.Warnings {
			sb.WriteString(fmt.Sprintf("- %s\n", warning))
		}
		sb.WriteString("\n")
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write markdown report: %w", err)
	}
	return nil
}

func writeParticipant(sb *strings.Builder, p analysis.ParticipantAnalysis, dominant analysis.IndicatorKind) {
	sb.WriteString(fmt.Sprintf("### %s\n\n", p.Name))
	if p.BehaviorSummary != "" {
		sb.WriteString(fmt.Sprintf("_%s_\n\n", p.BehaviorSummary))
	}
	if dominant != "" {
		sb.WriteString(fmt.Sprintf("**Dominant indicator:** %s\n\n", dominant.Label()))
	}

	detected := p.Detected()
	if len(detected) == 0 {
		sb.WriteString("No behavioral indicators detected.\n\n")
		return
	}

	for _, ind := range detected {
		sb.WriteString(fmt.Sprintf("#### %s\n\n", ind.Kind.Label()))
		for _, ex := range ind.Examples {
			sb.WriteString(fmt.Sprintf("- **Quote:** \"%s\"  \n", ex.Quote))
			sb.WriteString(fmt.Sprintf("  **Time:** %s  \n", ex.Timestamp))
			sb.WriteString(fmt.Sprintf("  **Explanation:** %s  \n", ex.Explanation))
			if ex.Context != "" {
				sb.WriteString(fmt.Sprintf("  **Context:** %s\n", ex.Context))
			}
		}
		sb.WriteString("\n")
	}
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	sb.WriteString(fmt.Sprintf("### %s\n\n", title))
	for _, item := range items {
		sb.WriteString(fmt.Sprintf("- %s\n", item))
	}
	sb.WriteString("\n")
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func emptyFallback(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) > maxLen {
		return string(r[:maxLen]) + "..."
	}
	return s
}
