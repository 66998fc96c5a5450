package media

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var ErrUnsupportedMedia = errors.New("unsupported media type")

var extensionToMIME = map[string]string{
	".mp3":  "audio/mpeg",
	".mpeg": "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".mp4":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".oga":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".aif":  "audio/aiff",
	".aiff": "audio/aiff",
}

// sniffed content types that net/http reports for audio containers it
// recognizes without the audio/ prefix
var sniffAliases = map[string]string{
	"application/ogg": "audio/ogg",
	"video/webm":      "audio/webm",
	"video/mp4":       "audio/mp4",
}

func DetectMIME(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if mime, ok := extensionToMIME[ext]; ok {
		return mime, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}

	return Normalize(http.DetectContentType(head[:n]))
}

// Normalize maps a declared or sniffed content type onto the audio type sent
// to the model, rejecting anything that is not audio.
func Normalize(contentType string) (string, error) {
	mime := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if alias, ok := sniffAliases[mime]; ok {
		mime = alias
	}
	switch mime {
	case "audio/x-wav", "audio/wave":
		mime = "audio/wav"
	case "audio/mp3":
		mime = "audio/mpeg"
	case "audio/x-m4a":
		mime = "audio/mp4"
	}
	if !strings.HasPrefix(mime, "audio/") {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedMedia, contentType)
	}
	return mime, nil
}

func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func Extension(mime string) string {
	for ext, m := range preferredExtension {
		if m == mime {
			return ext
		}
	}
	return ".bin"
}

var preferredExtension = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
	".aiff": "audio/aiff",
}
