package output

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/strrl/meetscope/internal/aggregator"
	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/timecode"
)

type stamp struct {
	Text     string
	Seconds  float64
	Seekable bool
}

func newStamp(text string) stamp {
	seconds, err := timecode.ParseSeconds(text)
	return stamp{Text: text, Seconds: seconds, Seekable: err == nil}
}

type pageExample struct {
	Quote       string
	Time        stamp
	Explanation string
	Context     string
}

type pageIndicator struct {
	Label    string
	Examples []pageExample
}

type pageParticipant struct {
	Name       string
	Summary    string
	Dominant   string
	Indicators []pageIndicator
}

type pageTimelineEntry struct {
	Time        stamp
	Participant string
	Indicator   string
	Quote       string
}

type pageLine struct {
	Time    stamp
	Speaker string
	Text    string
}

type page struct {
	Run          *analysis.Run
	Created      string
	AudioURL     template.URL
	Summary      *analysis.MeetingSummary
	Participants []pageParticipant
	Timeline     []pageTimelineEntry
	Transcript   []pageLine
}

func writeHTML(w io.Writer, run *analysis.Run, profile *aggregator.Profile, opts RenderOptions) error {
	data := page{
		Run:      run,
		AudioURL: template.URL(opts.AudioURL),
	}
	if !run.CreatedAt.IsZero() {
		data.Created = run.CreatedAt.UTC().Format(time.RFC1123)
	}

	dominant := make(map[string]analysis.IndicatorKind, len(profile.Participants))
	for _, p := range profile.Participants {
		dominant[p.Name] = p.Dominant
	}

	if run.Report != nil {
		data.Summary = run.Report.MeetingSummary

		for _, p := range run.Report.ParticipantsAnalysis {
			pp := pageParticipant{Name: p.Name, Summary: p.BehaviorSummary}
			if kind := dominant[p.Name]; kind != "" {
				pp.Dominant = kind.Label()
			}
			for _, ind := range p.Detected() {
				pi := pageIndicator{Label: ind.Kind.Label()}
				for _, ex := range ind.Examples {
					pi.Examples = append(pi.Examples, pageExample{
						Quote:       ex.Quote,
						Time:        newStamp(ex.Timestamp),
						Explanation: ex.Explanation,
						Context:     ex.Context,
					})
				}
				pp.Indicators = append(pp.Indicators, pi)
			}
			data.Participants = append(data.Participants, pp)
		}

		for _, line := range run.Report.Transcript {
			data.Transcript = append(data.Transcript, pageLine{
				Time:    newStamp(line.StartTime),
				Speaker: line.Speaker,
				Text:    line.Text,
			})
		}
	}

	for _, e := range profile.Timeline {
		data.Timeline = append(data.Timeline, pageTimelineEntry{
			Time:        stamp{Text: e.Timestamp, Seconds: e.Seconds, Seekable: e.Seekable},
			Participant: e.Participant,
			Indicator:   e.Kind.Label(),
			Quote:       e.Quote,
		})
	}

	if err := reportTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render html report: %w", err)
	}
	return nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Meeting analysis {{.Run.ID}}</title>
<style>
body { font-family: sans-serif; max-width: 960px; margin: 0 auto; padding: 16px; color: #222; }
audio { width: 100%; position: sticky; top: 0; background: #fff; padding: 8px 0; }
.participant { margin-bottom: 32px; padding: 16px; border: 1px solid #eee; border-radius: 8px; }
.behavior { font-style: italic; color: #555; }
.example { margin: 8px 0 16px; }
button.ts { border: none; background: none; padding: 0; color: #1976d2; text-decoration: underline; cursor: pointer; font: inherit; }
.ts-invalid { color: #999; }
table { border-collapse: collapse; width: 100%; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #eee; vertical-align: top; }
.warnings { color: #8a6d3b; }
</style>
</head>
<body>
<h1>Meeting analysis</h1>
<p>{{if .Created}}{{.Created}} · {{end}}{{.Run.Model}}</p>
{{if .AudioURL}}<audio id="player" controls preload="metadata" src="{{.AudioURL}}"></audio>{{end}}
{{with .Summary}}
<section>
<h2>Summary</h2>
<p><b>Topic:</b> {{.Topic}}</p>
<p><b>Atmosphere:</b> {{.Atmosphere}}</p>
{{if .KeyPoints}}<h3>Key points</h3><ul>{{range .KeyPoints}}<li>{{.}}</li>{{end}}</ul>{{end}}
{{if .Conflicts}}<h3>Conflicts</h3><ul>{{range .Conflicts}}<li>{{.}}</li>{{end}}</ul>{{end}}
</section>
{{end}}
<section>
<h2>Participants</h2>
{{range .Participants}}
<div class="participant">
<h3>{{.Name}}</h3>
{{if .Summary}}<p class="behavior">{{.Summary}}</p>{{end}}
{{if .Dominant}}<p><b>Dominant indicator:</b> {{.Dominant}}</p>{{end}}
{{range .Indicators}}
<h4>{{.Label}}</h4>
{{range .Examples}}
<div class="example">
<b>Quote:</b> "{{.Quote}}"<br>
<b>Time:</b> {{template "stamp" .Time}}<br>
<b>Explanation:</b> {{.Explanation}}
{{if .Context}}<br><b>Context:</b> {{.Context}}{{end}}
</div>
{{end}}
{{else}}
<p>No behavioral indicators detected.</p>
{{end}}
</div>
{{else}}
<p>No participants were analyzed.</p>
{{end}}
</section>
{{if .Timeline}}
<section>
<h2>Timeline</h2>
<table>
<tr><th>Time</th><th>Participant</th><th>Indicator</th><th>Quote</th></tr>
{{range .Timeline}}<tr><td>{{template "stamp" .Time}}</td><td>{{.Participant}}</td><td>{{.Indicator}}</td><td>{{.Quote}}</td></tr>
{{end}}
</table>
</section>
{{end}}
{{if .Transcript}}
<section>
<h2>Transcript</h2>
{{range .Transcript}}<p>{{template "stamp" .Time}} <b>{{.Speaker}}:</b> {{.Text}}</p>
{{end}}
</section>
{{end}}
{{if .Run.Warnings}}
<section class="warnings">
<h2>Warnings</h2>
<ul>{{range .Run.Warnings}}<li>{{.}}</li>{{end}}</ul>
</section>
{{end}}
<script>
document.addEventListener("click", function (event) {
  var target = event.target.closest("button.ts");
  var player = document.getElementById("player");
  if (!target || !player) {
    return;
  }
  player.currentTime = parseFloat(target.dataset.seconds);
  player.play();
});
</script>
</body>
</html>
{{define "stamp"}}{{if .Seekable}}<button type="button" class="ts" data-seconds="{{.Seconds}}">{{.Text}}</button>{{else}}<span class="ts-invalid">{{.Text}}</span>{{end}}{{end}}
`))
