package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/output"
)

var (
	analyzeAudio        string
	analyzeParticipants []string
	analyzeFormat       string
	analyzeOut          string
	analyzeModel        string
	analyzeTemperature  float64
	analyzeLanguage     string
	analyzeSummary      bool
	analyzeTranscript   bool
	analyzeNoCache      bool
	analyzeNoHistory    bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a meeting recording for behavioral indicators",
	Long: `Upload a meeting recording and optional voice samples of the participants
to Gemini and report, per participant, which behavioral indicators were
detected with quotes and timestamps. Optionally adds a meeting summary and a
transcript.

Participants are given as name=path pairs, for example:

  meetscope analyze --audio standup.mp3 -p Alice=alice.m4a -p Bob=bob.wav --summary`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&analyzeAudio, "audio", "a", "", "Meeting recording to analyze (required)")
	analyzeCmd.Flags().StringArrayVarP(&analyzeParticipants, "participant", "p", nil, "Participant voice sample as name=path (repeatable)")
	analyzeCmd.Flags().StringVarP(&analyzeFormat, "format", "f", "markdown", "Report format: markdown, json, yaml, html")
	analyzeCmd.Flags().StringVarP(&analyzeOut, "out", "o", "", "Directory to write the report to (default: print to stdout)")
	analyzeCmd.Flags().StringVar(&analyzeModel, "model", "", "Gemini model (default from config)")
	analyzeCmd.Flags().Float64Var(&analyzeTemperature, "temperature", 0, "Sampling temperature between 0 and 2 (default from config)")
	analyzeCmd.Flags().StringVar(&analyzeLanguage, "language", "", "Language of summaries and explanations (default from config)")
	analyzeCmd.Flags().BoolVar(&analyzeSummary, "summary", false, "Include a meeting summary")
	analyzeCmd.Flags().BoolVar(&analyzeTranscript, "transcript", false, "Include a transcript")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Always upload recordings, even if uploaded recently")
	analyzeCmd.Flags().BoolVar(&analyzeNoHistory, "no-history", false, "Do not record the run in the history database")

	_ = analyzeCmd.MarkFlagRequired("audio")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(analyzeFormat)
	if err != nil {
		return err
	}

	participants, err := parseParticipants(analyzeParticipants)
	if err != nil {
		return err
	}

	opts := analysis.Options{
		Model:             analyzeModel,
		Language:          analyzeLanguage,
		IncludeSummary:    analyzeSummary,
		IncludeTranscript: analyzeTranscript,
	}
	if cmd.Flags().Changed("temperature") {
		if analyzeTemperature < 0 || analyzeTemperature > 2 {
			return fmt.Errorf("temperature must be between 0 and 2, got %v", analyzeTemperature)
		}
		t := analyzeTemperature
		opts.Temperature = &t
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, cfg, log, runtimeOptions{noCache: analyzeNoCache, noHistory: analyzeNoHistory})
	if err != nil {
		return err
	}
	defer rt.close()

	// stdout carries the report, progress goes to stderr
	progress := cmd.ErrOrStderr()
	fmt.Fprintf(progress, "Analyzing recording: %s\n", analyzeAudio)
	if len(participants) > 0 {
		fmt.Fprintf(progress, "Participants with voice samples: %d\n", len(participants))
	} else {
		fmt.Fprintln(progress, "No voice samples, speakers will be labeled by the model")
	}
	fmt.Fprintf(progress, "Using Gemini model: %s\n", opts.WithDefaults(rt.client.Config().DefaultOptions()).Model)

	start := time.Now()
	run, profile, err := rt.pipeline.Process(ctx, analysis.Request{
		Audio:        analysis.MediaFile{Path: analyzeAudio},
		Participants: participants,
		Options:      opts,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(progress, "Analysis finished in %s\n", time.Since(start).Round(time.Second))
	fmt.Fprintf(progress, "  - %d participants analyzed\n", len(profile.Participants))
	fmt.Fprintf(progress, "  - %d indicator examples\n", profile.TotalExamples)
	if run.Usage.TotalTokens > 0 {
		fmt.Fprintf(progress, "  - %d tokens used\n", run.Usage.TotalTokens)
	}
	for _, w := range run.Warnings {
		fmt.Fprintf(progress, "Warning: %s\n", w)
	}
	if rt.history != nil {
		fmt.Fprintf(progress, "Saved run %s to history\n", run.ID)
	}

	if analyzeOut == "" {
		return output.Render(cmd.OutOrStdout(), run, profile, format, output.RenderOptions{
			AudioURL: output.FileURL(run.AudioPath),
		})
	}

	path, err := output.NewGenerator(analyzeOut).Write(run, profile, format)
	if err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	fmt.Fprintf(progress, "Report written to %s\n", path)

	return nil
}

// parseParticipants turns name=path flags into participants. A bare path
// leaves the name empty so the participant gets a positional name.
func parseParticipants(values []string) ([]analysis.Participant, error) {
	var participants []analysis.Participant
	for _, v := range values {
		name, path, found := strings.Cut(v, "=")
		if !found {
			name, path = "", v
		}
		name = strings.TrimSpace(name)
		path = strings.TrimSpace(path)
		if path == "" {
			return nil, fmt.Errorf("participant %q has no voice sample path", v)
		}

		participants = append(participants, analysis.Participant{
			Name: name,
			Sample: &analysis.MediaFile{
				Path:        path,
				DisplayName: displayName(name, path),
			},
		})
	}
	return participants, nil
}

func displayName(name, path string) string {
	if name != "" {
		return name
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}
