package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strrl/meetscope/internal/ai"
	"github.com/strrl/meetscope/internal/aggregator"
	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/db"
	"github.com/strrl/meetscope/internal/media"
	"github.com/strrl/meetscope/internal/metrics"
	"github.com/strrl/meetscope/internal/pipeline"
)

type fakePipeline struct {
	got analysis.Request
	err error
	run *analysis.Run
}

func (f *fakePipeline) Process(_ context.Context, req analysis.Request) (*analysis.Run, *aggregator.Profile, error) {
	f.got = req
	if f.err != nil {
		return nil, nil, f.err
	}
	run := f.run
	if run == nil {
		run = &analysis.Run{
			ID:           "run-1",
			Model:        "gemini-2.5-pro",
			AudioPath:    req.Audio.Path,
			Participants: req.ParticipantNames(),
			Report:       &analysis.Report{ParticipantsAnalysis: []analysis.ParticipantAnalysis{}},
		}
	}
	return run, aggregator.NewAggregator(aggregator.DefaultConfig()).Aggregate(run.Report), nil
}

type fakeHistory struct {
	runs map[string]*analysis.Run
}

func (f *fakeHistory) GetRun(_ context.Context, id string) (*analysis.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", db.ErrNotFound, id)
	}
	return run, nil
}

func (f *fakeHistory) ListRuns(_ context.Context, limit int) ([]db.RunSummary, error) {
	out := []db.RunSummary{}
	for id, run := range f.runs {
		out = append(out, db.RunSummary{ID: id, Model: run.Model})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type part struct {
	field    string
	filename string
	mime     string
	content  string
}

func multipartBody(t *testing.T, parts []part) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, p := range parts {
		if p.filename == "" {
			require.NoError(t, w.WriteField(p.field, p.content))
			continue
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		h.Set("Content-Type", p.mime)
		fw, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(fw, p.content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func newTestServer(t *testing.T, p Pipeline, h History) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	one := 1.0
	s, err := New(Config{
		Pipeline:  p,
		History:   h,
		Metrics:   metrics.New(),
		UploadDir: dir,
		Defaults:  analysis.Options{Model: "gemini-2.5-pro", Temperature: &one, Language: "English"},
	})
	require.NoError(t, err)
	return s, dir
}

func do(t *testing.T, s *Server, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestCreateAnalysis(t *testing.T) {
	p := &fakePipeline{}
	s, dir := newTestServer(t, p, &fakeHistory{})

	body, contentType := multipartBody(t, []part{
		{field: "audio", filename: "standup.mp3", mime: "audio/mpeg", content: "ID3 main"},
		{field: "participant_name[0]", content: "Anna"},
		{field: "participant_file[0]", filename: "anna.wav", mime: "audio/wav", content: "RIFF anna"},
		{field: "participant_name[1]", content: "Boris"},
		{field: "summary", content: "true"},
		{field: "language", content: "Russian"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
	req.Header.Set("Content-Type", contentType)

	resp, raw := do(t, s, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var doc struct {
		Run analysis.Run `json:"run"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "run-1", doc.Run.ID)

	got := p.got
	assert.True(t, strings.HasPrefix(got.Audio.Path, dir))
	assert.Equal(t, ".mp3", filepath.Ext(got.Audio.Path))
	assert.Equal(t, "audio/mpeg", got.Audio.MIMEType)
	content, err := os.ReadFile(got.Audio.Path)
	require.NoError(t, err)
	assert.Equal(t, "ID3 main", string(content))

	require.Len(t, got.Participants, 2)
	assert.Equal(t, "Anna", got.Participants[0].Name)
	require.NotNil(t, got.Participants[0].Sample)
	assert.Equal(t, "audio/wav", got.Participants[0].Sample.MIMEType)
	assert.Equal(t, "Boris", got.Participants[1].Name)
	assert.Nil(t, got.Participants[1].Sample)

	assert.True(t, got.Options.IncludeSummary)
	assert.False(t, got.Options.IncludeTranscript)
	assert.Equal(t, "Russian", got.Options.Language)
	assert.Equal(t, "gemini-2.5-pro", got.Options.Model)
}

func TestCreateAnalysis_PairsSamplesByIndex(t *testing.T) {
	p := &fakePipeline{}
	s, _ := newTestServer(t, p, &fakeHistory{})

	// Anna's file input was left empty, so it arrives as a plain value
	body, contentType := multipartBody(t, []part{
		{field: "audio", filename: "standup.mp3", mime: "audio/mpeg", content: "ID3 main"},
		{field: "participant_name[0]", content: "Anna"},
		{field: "participant_file[0]", content: ""},
		{field: "participant_name[1]", content: "Boris"},
		{field: "participant_file[1]", filename: "boris.wav", mime: "audio/wav", content: "RIFF boris"},
		{field: "participant_name[2]", content: "Vera"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
	req.Header.Set("Content-Type", contentType)

	resp, raw := do(t, s, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	got := p.got.Participants
	require.Len(t, got, 3)

	assert.Equal(t, "Anna", got[0].Name)
	assert.Nil(t, got[0].Sample)

	assert.Equal(t, "Boris", got[1].Name)
	require.NotNil(t, got[1].Sample)
	assert.Equal(t, "Boris", got[1].Sample.DisplayName)
	content, err := os.ReadFile(got[1].Sample.Path)
	require.NoError(t, err)
	assert.Equal(t, "RIFF boris", string(content))

	assert.Equal(t, "Vera", got[2].Name)
	assert.Nil(t, got[2].Sample)
}

func TestCreateAnalysis_RepeatedFields(t *testing.T) {
	p := &fakePipeline{}
	s, _ := newTestServer(t, p, &fakeHistory{})

	body, contentType := multipartBody(t, []part{
		{field: "audio", filename: "standup.mp3", mime: "audio/mpeg", content: "ID3 main"},
		{field: "participant_name[]", content: "Anna"},
		{field: "participant_file[]", filename: "anna.wav", mime: "audio/wav", content: "RIFF anna"},
		{field: "participant_name[]", content: "Boris"},
		{field: "participant_file[]", filename: "boris.wav", mime: "audio/wav", content: "RIFF boris"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
	req.Header.Set("Content-Type", contentType)

	resp, raw := do(t, s, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	got := p.got.Participants
	require.Len(t, got, 2)
	for i, want := range []string{"anna", "boris"} {
		require.NotNil(t, got[i].Sample)
		content, err := os.ReadFile(got[i].Sample.Path)
		require.NoError(t, err)
		assert.Equal(t, "RIFF "+want, string(content))
	}
	assert.Equal(t, "Anna", got[0].Name)
	assert.Equal(t, "Boris", got[1].Name)
}

func TestCreateAnalysis_Temperature(t *testing.T) {
	p := &fakePipeline{}
	s, _ := newTestServer(t, p, &fakeHistory{})

	body, contentType := multipartBody(t, []part{
		{field: "audio", filename: "standup.mp3", mime: "audio/mpeg", content: "ID3 main"},
		{field: "temperature", content: "0"},
	})
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
	req.Header.Set("Content-Type", contentType)

	resp, raw := do(t, s, req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	require.NotNil(t, p.got.Options.Temperature)
	assert.Equal(t, 0.0, *p.got.Options.Temperature)
}

func TestCreateAnalysis_Errors(t *testing.T) {
	audioOnly := []part{{field: "audio", filename: "m.mp3", mime: "audio/mpeg", content: "x"}}

	tests := []struct {
		name  string
		parts []part
		err   error
		want  int
	}{
		{"missing audio", []part{{field: "language", content: "English"}}, nil, http.StatusBadRequest},
		{"unsupported media", audioOnly, fmt.Errorf("%w: %w", pipeline.ErrInvalidRequest, media.ErrUnsupportedMedia), http.StatusUnsupportedMediaType},
		{"invalid request", audioOnly, fmt.Errorf("%w: %w", pipeline.ErrInvalidRequest, pipeline.ErrEmptyFile), http.StatusBadRequest},
		{"vendor failure", audioOnly, errors.New("analysis failed: 500 from upstream"), http.StatusBadGateway},
		{"breaker open", audioOnly, ai.ErrUnavailable, http.StatusServiceUnavailable},
		{"unpaired samples", append([]part{
			{field: "participant_name[]", content: "Anna"},
			{field: "participant_name[]", content: "Boris"},
			{field: "participant_file[]", filename: "boris.wav", mime: "audio/wav", content: "RIFF boris"},
		}, audioOnly...), nil, http.StatusBadRequest},
		{"temperature not a number", append([]part{{field: "temperature", content: "warm"}}, audioOnly...), nil, http.StatusBadRequest},
		{"temperature out of range", append([]part{{field: "temperature", content: "2.5"}}, audioOnly...), nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, dir := newTestServer(t, &fakePipeline{err: tt.err}, &fakeHistory{})

			body, contentType := multipartBody(t, tt.parts)
			req := httptest.NewRequest(http.MethodPost, "/api/analyses", body)
			req.Header.Set("Content-Type", contentType)

			resp, raw := do(t, s, req)
			assert.Equal(t, tt.want, resp.StatusCode, string(raw))

			var payload map[string]string
			require.NoError(t, json.Unmarshal(raw, &payload))
			assert.NotEmpty(t, payload["error"])

			// failed submissions leave no uploads behind
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			assert.Empty(t, entries)
		})
	}
}

func TestCreateAnalysis_NotMultipart(t *testing.T) {
	s, _ := newTestServer(t, &fakePipeline{}, &fakeHistory{})
	req := httptest.NewRequest(http.MethodPost, "/api/analyses", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, _ := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func storedRun(t *testing.T) *analysis.Run {
	audio := filepath.Join(t.TempDir(), "meeting.mp3")
	require.NoError(t, os.WriteFile(audio, []byte("ID3 audio bytes"), 0o644))
	return &analysis.Run{
		ID:        "abc",
		CreatedAt: time.Date(2025, 5, 6, 12, 0, 0, 0, time.UTC),
		Model:     "gemini-2.5-pro",
		AudioPath: audio,
		AudioMIME: "audio/mpeg",
		Report: &analysis.Report{ParticipantsAnalysis: []analysis.ParticipantAnalysis{{
			Name: "Anna",
			Indicators: map[analysis.IndicatorKind]analysis.Indicator{
				analysis.IndicatorDefense: {Detected: true, Examples: []analysis.Example{
					{Quote: "not me", Timestamp: "00:01:05", Explanation: "deflects"},
				}},
			},
		}}},
	}
}

func TestGetAnalysis(t *testing.T) {
	run := storedRun(t)
	s, _ := newTestServer(t, &fakePipeline{}, &fakeHistory{runs: map[string]*analysis.Run{"abc": run}})

	resp, raw := do(t, s, httptest.NewRequest(http.MethodGet, "/api/analyses/abc", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var doc struct {
		Run     analysis.Run       `json:"run"`
		Profile aggregator.Profile `json:"profile"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "abc", doc.Run.ID)
	require.Len(t, doc.Profile.Timeline, 1)
	assert.Equal(t, 65.0, doc.Profile.Timeline[0].Seconds)

	resp, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/api/analyses/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGetAnalysis_AggregatorConfig(t *testing.T) {
	run := storedRun(t)
	history := &fakeHistory{runs: map[string]*analysis.Run{"abc": run}}

	tests := []struct {
		name string
		cfg  aggregator.Config
		want analysis.IndicatorKind
	}{
		{"default needs two examples", aggregator.Config{}, ""},
		{"single example is enough", aggregator.Config{MinDominantExamples: 1}, analysis.IndicatorDefense},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(Config{
				Pipeline:   &fakePipeline{},
				History:    history,
				UploadDir:  t.TempDir(),
				Aggregator: tt.cfg,
			})
			require.NoError(t, err)

			resp, raw := do(t, s, httptest.NewRequest(http.MethodGet, "/api/analyses/abc", nil))
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var doc struct {
				Profile aggregator.Profile `json:"profile"`
			}
			require.NoError(t, json.Unmarshal(raw, &doc))
			require.Len(t, doc.Profile.Participants, 1)
			assert.Equal(t, tt.want, doc.Profile.Participants[0].Dominant)
		})
	}
}

func TestListAnalyses(t *testing.T) {
	history := &fakeHistory{runs: map[string]*analysis.Run{"a": {Model: "m"}, "b": {Model: "m"}}}
	s, _ := newTestServer(t, &fakePipeline{}, history)

	resp, raw := do(t, s, httptest.NewRequest(http.MethodGet, "/api/analyses?limit=1", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var runs []db.RunSummary
	require.NoError(t, json.Unmarshal(raw, &runs))
	assert.Len(t, runs, 1)
}

func TestReportPageAndAudio(t *testing.T) {
	run := storedRun(t)
	s, _ := newTestServer(t, &fakePipeline{}, &fakeHistory{runs: map[string]*analysis.Run{"abc": run}})

	resp, raw := do(t, s, httptest.NewRequest(http.MethodGet, "/analyses/abc", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, string(raw), `src="/analyses/abc/audio"`)
	assert.Contains(t, string(raw), `data-seconds="65">00:01:05</button>`)

	resp, raw = do(t, s, httptest.NewRequest(http.MethodGet, "/analyses/abc/audio", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ID3 audio bytes", string(raw))
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))

	resp, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/analyses/missing", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestTimecode(t *testing.T) {
	s, _ := newTestServer(t, &fakePipeline{}, &fakeHistory{})

	tests := []struct {
		query   string
		status  int
		seconds float64
	}{
		{"01:05", http.StatusOK, 65},
		{"1:02:03", http.StatusOK, 3723},
		{"00:10.5", http.StatusOK, 10.5},
		{"99:99", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, raw := do(t, s, httptest.NewRequest(http.MethodGet, "/api/timecode?t="+tt.query, nil))
			require.Equal(t, tt.status, resp.StatusCode)
			if tt.status != http.StatusOK {
				return
			}
			var payload struct {
				Seconds float64 `json:"seconds"`
			}
			require.NoError(t, json.Unmarshal(raw, &payload))
			assert.Equal(t, tt.seconds, payload.Seconds)
		})
	}
}

func TestIndexHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, &fakePipeline{}, &fakeHistory{})

	resp, raw := do(t, s, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `name="audio"`)
	assert.Contains(t, string(raw), `value="English"`)

	resp, raw = do(t, s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	resp, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Pipeline: &fakePipeline{}, History: &fakeHistory{}})
	assert.Error(t, err)
}
