package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/strrl/meetscope/internal/ai"
	"github.com/strrl/meetscope/internal/aggregator"
	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/db"
	"github.com/strrl/meetscope/internal/logging"
	"github.com/strrl/meetscope/internal/media"
	"github.com/strrl/meetscope/internal/output"
	"github.com/strrl/meetscope/internal/pipeline"
	"github.com/strrl/meetscope/internal/timecode"
)

const defaultListLimit = 50

func (s *Server) index(c *fiber.Ctx) error {
	c.Type("html", "utf-8")
	return indexTemplate.Execute(c.Response().BodyWriter(), s.cfg.Defaults)
}

func (s *Server) createAnalysis(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "expected a multipart form")
	}

	audio := firstFile(form, "audio")
	if audio == nil {
		return fiber.NewError(fiber.StatusBadRequest, analysis.ErrNoAudio.Error())
	}

	entries, err := formParticipants(form)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	opts, err := s.options(form)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	dir := filepath.Join(s.cfg.UploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}

	req := analysis.Request{Options: opts}

	req.Audio, err = s.saveUpload(c, audio, dir, "meeting")
	if err != nil {
		os.RemoveAll(dir)
		return err
	}

	for i, entry := range entries {
		p := analysis.Participant{Name: entry.name}
		if entry.file != nil {
			sample, err := s.saveUpload(c, entry.file, dir, fmt.Sprintf("participant-%d", i+1))
			if err != nil {
				os.RemoveAll(dir)
				return err
			}
			sample.DisplayName = entry.name
			p.Sample = &sample
		}
		req.Participants = append(req.Participants, p)
	}

	run, profile, err := s.cfg.Pipeline.Process(c.UserContext(), req)
	if err != nil {
		os.RemoveAll(dir)
		return analysisError(err)
	}

	s.cfg.Logger.Info("analysis created", logging.F("run_id", run.ID))

	return c.Status(fiber.StatusCreated).JSON(output.Document{Run: run, Profile: profile})
}

func (s *Server) options(form *multipart.Form) (analysis.Options, error) {
	opts := s.cfg.Defaults
	if v := formValue(form, "model"); v != "" {
		opts.Model = v
	}
	if v := formValue(form, "language"); v != "" {
		opts.Language = v
	}
	if v := formValue(form, "temperature"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return analysis.Options{}, fmt.Errorf("invalid temperature %q", v)
		}
		if t < 0 || t > 2 {
			return analysis.Options{}, fmt.Errorf("temperature must be between 0 and 2, got %v", t)
		}
		opts.Temperature = &t
	}
	if v := formValue(form, "summary"); v != "" {
		opts.IncludeSummary = isTrue(v)
	}
	if v := formValue(form, "transcript"); v != "" {
		opts.IncludeTranscript = isTrue(v)
	}
	return opts, nil
}

func (s *Server) saveUpload(c *fiber.Ctx, fh *multipart.FileHeader, dir, base string) (analysis.MediaFile, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext == "" {
		if mime, err := media.Normalize(fh.Header.Get("Content-Type")); err == nil {
			ext = media.Extension(mime)
		}
	}

	path := filepath.Join(dir, base+ext)
	if err := c.SaveFile(fh, path); err != nil {
		return analysis.MediaFile{}, fmt.Errorf("failed to store upload %s: %w", fh.Filename, err)
	}

	return analysis.MediaFile{
		Path:        path,
		MIMEType:    fh.Header.Get("Content-Type"),
		DisplayName: strings.TrimSuffix(fh.Filename, filepath.Ext(fh.Filename)),
	}, nil
}

func analysisError(err error) error {
	switch {
	case errors.Is(err, media.ErrUnsupportedMedia):
		return fiber.NewError(fiber.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ai.ErrUnavailable):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case errors.Is(err, ai.ErrMissingAPIKey):
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return fiber.NewError(fiber.StatusBadGateway, err.Error())
}

func (s *Server) listAnalyses(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", defaultListLimit)
	runs, err := s.cfg.History.ListRuns(c.UserContext(), limit)
	if err != nil {
		return err
	}
	return c.JSON(runs)
}

func (s *Server) loadRun(c *fiber.Ctx) (*analysis.Run, error) {
	run, err := s.cfg.History.GetRun(c.UserContext(), c.Params("id"))
	if errors.Is(err, db.ErrNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	return run, err
}

func (s *Server) getAnalysis(c *fiber.Ctx) error {
	run, err := s.loadRun(c)
	if err != nil {
		return err
	}
	return c.JSON(output.Document{Run: run, Profile: s.profile(run)})
}

func (s *Server) reportPage(c *fiber.Ctx) error {
	run, err := s.loadRun(c)
	if err != nil {
		return err
	}

	c.Type("html", "utf-8")
	opts := output.RenderOptions{AudioURL: "/analyses/" + run.ID + "/audio"}
	return output.Render(c.Response().BodyWriter(), run, s.profile(run), output.FormatHTML, opts)
}

func (s *Server) profile(run *analysis.Run) *aggregator.Profile {
	return aggregator.NewAggregator(s.cfg.Aggregator).Aggregate(run.Report)
}

func (s *Server) audio(c *fiber.Ctx) error {
	run, err := s.loadRun(c)
	if err != nil {
		return err
	}
	if _, err := os.Stat(run.AudioPath); err != nil {
		return fiber.NewError(fiber.StatusNotFound, "recording is no longer available")
	}

	if err := c.SendFile(run.AudioPath); err != nil {
		return err
	}
	if run.AudioMIME != "" {
		c.Set(fiber.HeaderContentType, run.AudioMIME)
	}
	return nil
}

func (s *Server) timecode(c *fiber.Ctx) error {
	raw := c.Query("t")
	seconds, err := timecode.ParseSeconds(raw)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(fiber.Map{
		"input":     raw,
		"seconds":   seconds,
		"formatted": timecode.Format(seconds),
	})
}

type formParticipant struct {
	name string
	file *multipart.FileHeader
}

// formParticipants pairs participant names with voice samples. Indexed
// fields (participant_name[0], participant_file[0]) pair by index and a
// missing or empty file means no sample. Repeated fields (participant_name[]
// or participant_name) pair by position, which is only unambiguous when
// every name has a file or none has.
func formParticipants(form *multipart.Form) ([]formParticipant, error) {
	names := formValues(form, "participant_name")
	files := formFiles(form, "participant_file")
	if len(names) > 0 && len(files) > 0 && len(names) != len(files) {
		return nil, fmt.Errorf("%d participant names but %d voice samples; use participant_name[i] and participant_file[i] to pair them", len(names), len(files))
	}

	var out []formParticipant
	for i := 0; i < len(names) || i < len(files); i++ {
		var p formParticipant
		if i < len(names) {
			p.name = strings.TrimSpace(names[i])
		}
		if i < len(files) {
			p.file = files[i]
		}
		out = append(out, p)
	}

	indexed := make(map[int]*formParticipant)
	entry := func(i int) *formParticipant {
		if indexed[i] == nil {
			indexed[i] = &formParticipant{}
		}
		return indexed[i]
	}
	for key, values := range form.Value {
		if i, ok := fieldIndex(key, "participant_name"); ok && len(values) > 0 {
			entry(i).name = strings.TrimSpace(values[0])
		}
	}
	for key, fhs := range form.File {
		i, ok := fieldIndex(key, "participant_file")
		if !ok {
			continue
		}
		p := entry(i)
		for _, fh := range fhs {
			if fh != nil && fh.Filename != "" && fh.Size > 0 {
				p.file = fh
				break
			}
		}
	}

	indices := make([]int, 0, len(indexed))
	for i := range indexed {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		out = append(out, *indexed[i])
	}

	return out, nil
}

// fieldIndex parses keys of the form field[N].
func fieldIndex(key, field string) (int, bool) {
	rest, ok := strings.CutPrefix(key, field+"[")
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, "]")
	if !ok || digits == "" {
		return 0, false
	}
	i, err := strconv.Atoi(digits)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

func firstFile(form *multipart.Form, name string) *multipart.FileHeader {
	files := formFiles(form, name)
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// formFiles accepts both name and name[] so plain HTML forms and scripted
// clients can post repeated fields.
func formFiles(form *multipart.Form, name string) []*multipart.FileHeader {
	var out []*multipart.FileHeader
	for _, key := range []string{name, name + "[]"} {
		for _, fh := range form.File[key] {
			if fh != nil && fh.Filename != "" {
				out = append(out, fh)
			}
		}
	}
	return out
}

func formValues(form *multipart.Form, name string) []string {
	var out []string
	for _, key := range []string{name, name + "[]"} {
		out = append(out, form.Value[key]...)
	}
	return out
}

func formValue(form *multipart.Form, name string) string {
	values := formValues(form, name)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func isTrue(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
