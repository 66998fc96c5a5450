package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/media"
)

var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrEmptyFile      = errors.New("file is empty")
)

// prepare validates the request, drops participants that cannot be
// recognized and resolves the MIME type of every recording.
func prepare(req analysis.Request) (analysis.Request, analysis.PrepareStats, error) {
	prepared, stats, err := req.Prepare()
	if err != nil {
		return analysis.Request{}, stats, err
	}

	if err := resolveMedia(&prepared.Audio); err != nil {
		return analysis.Request{}, stats, fmt.Errorf("meeting recording: %w", err)
	}
	for _, p := range prepared.Participants {
		if err := resolveMedia(p.Sample); err != nil {
			return analysis.Request{}, stats, fmt.Errorf("voice sample of %s: %w", p.Name, err)
		}
	}

	return prepared, stats, nil
}

// resolveMedia stores the absolute path; saved runs are read back from
// other working directories.
func resolveMedia(file *analysis.MediaFile) error {
	abs, err := filepath.Abs(file.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", file.Path, err)
	}
	file.Path = abs

	info, err := os.Stat(file.Path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", file.Path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", file.Path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: %s", ErrEmptyFile, file.Path)
	}

	// a declared non-audio type such as application/octet-stream falls back to detection
	if file.MIMEType != "" {
		if mime, err := media.Normalize(file.MIMEType); err == nil {
			file.MIMEType = mime
			return nil
		}
	}

	mime, err := media.DetectMIME(file.Path)
	if err != nil {
		return err
	}
	file.MIMEType = mime
	return nil
}
