package output

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/strrl/meetscope/internal/aggregator"
	"github.com/strrl/meetscope/internal/analysis"
)

type Format string

const (
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
	FormatHTML     Format = "html"
)

var formatExtensions = map[Format]string{
	FormatMarkdown: "md",
	FormatJSON:     "json",
	FormatYAML:     "yaml",
	FormatHTML:     "html",
}

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown format %q (want markdown, json, yaml or html)", s)
}

func (f Format) Extension() string {
	return formatExtensions[f]
}

// Document is the serialized form of a run for the json and yaml formats.
type Document struct {
	Run     *analysis.Run       `json:"run" yaml:"run"`
	Profile *aggregator.Profile `json:"profile" yaml:"profile"`
}

type Generator struct {
	outputDir string
}

func NewGenerator(outputDir string) *Generator {
	return &Generator{
		outputDir: outputDir,
	}
}

// Write renders the run into <outputDir>/<run id>/report.<ext> and returns
// the file path.
func (g *Generator) Write(run *analysis.Run, profile *aggregator.Profile, format Format) (string, error) {
	ext := format.Extension()
	if ext == "" {
		return "", fmt.Errorf("unknown format %q", format)
	}

	runDir := filepath.Join(g.outputDir, sanitizeFilename(run.ID))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	filename := filepath.Join(runDir, "report."+ext)
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", filename, err)
	}
	defer file.Close()

	opts := RenderOptions{AudioURL: FileURL(run.AudioPath)}
	if err := Render(file, run, profile, format, opts); err != nil {
		return "", err
	}

	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", filename, err)
	}
	return filename, nil
}

type RenderOptions struct {
	// AudioURL is the player source in html output.
	AudioURL string
}

func Render(w io.Writer, run *analysis.Run, profile *aggregator.Profile, format Format, opts RenderOptions) error {
	if profile == nil {
		profile = aggregator.NewAggregator(aggregator.DefaultConfig()).Aggregate(run.Report)
	}

	switch format {
	case FormatMarkdown:
		return writeMarkdown(w, run, profile)
	case FormatHTML:
		return writeHTML(w, run, profile, opts)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(Document{Run: run, Profile: profile}); err != nil {
			return fmt.Errorf("failed to encode json report: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Document{Run: run, Profile: profile}); err != nil {
			return fmt.Errorf("failed to encode yaml report: %w", err)
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown format %q", format)
}

// FileURL is the file:// URL of a local recording, used as the player source
// for reports opened from disk.
func FileURL(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}
	return u.String()
}

var unsafeFilename = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

func sanitizeFilename(s string) string {
	result := unsafeFilename.ReplaceAllString(s, "-")
	result = strings.Trim(result, "-")
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "unnamed"
	}
	return strings.ToLower(result)
}
