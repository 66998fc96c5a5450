package ai

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/strrl/meetscope/internal/analysis"
	"github.com/strrl/meetscope/internal/cache"
	"github.com/strrl/meetscope/internal/logging"
	"github.com/strrl/meetscope/internal/media"
)

type Uploader struct {
	client *Client
	cache  cache.Store
	digest func(path string) (string, error)
}

func NewUploader(client *Client, store cache.Store) *Uploader {
	if store == nil {
		store = cache.Nop{}
	}
	return &Uploader{
		client: client,
		cache:  store,
		digest: media.Digest,
	}
}

// Upload sends one recording to the file API and waits until the model can
// use it. Files uploaded earlier with identical content are reused while the
// provider still has them.
func (u *Uploader) Upload(ctx context.Context, file analysis.MediaFile) (*UploadedFile, error) {
	ctx, span := tracer.Start(ctx, "gemini.upload", trace.WithAttributes(
		attribute.String("file.display_name", file.DisplayName),
		attribute.String("file.mime_type", file.MIMEType),
	))
	defer span.End()

	log := u.client.log.With(logging.F("file", file.Path))

	key, err := u.digest(file.Path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if cached := u.lookup(ctx, key, log); cached != nil {
		span.SetAttributes(attribute.Bool("upload.cached", true))
		cached.DisplayName = file.DisplayName
		return cached, nil
	}

	start := time.Now()
	uploaded, err := u.client.files.UploadFromPath(ctx, file.Path, &genai.UploadFileConfig{
		MIMEType:    file.MIMEType,
		DisplayName: file.DisplayName,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to upload %s: %w", file.Path, err)
	}

	active, err := u.waitActive(ctx, uploaded)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	u.client.metrics.ObserveUpload(time.Since(start))

	mimeType := active.MIMEType
	if mimeType == "" {
		mimeType = file.MIMEType
	}
	result := &UploadedFile{
		Name:        active.Name,
		DisplayName: file.DisplayName,
		URI:         active.URI,
		MIMEType:    mimeType,
	}

	if err := u.cache.Put(ctx, key, cache.Entry{
		Name:     result.Name,
		URI:      result.URI,
		MIMEType: result.MIMEType,
	}, u.client.cfg.CacheTTL); err != nil {
		log.Warn("failed to remember upload", logging.Err(err))
	}

	log.Info("uploaded recording",
		logging.F("name", result.Name),
		logging.F("mime_type", result.MIMEType),
		logging.F("elapsed", time.Since(start)),
	)

	return result, nil
}

func (u *Uploader) lookup(ctx context.Context, key string, log logging.Logger) *UploadedFile {
	entry, ok, err := u.cache.Get(ctx, key)
	if err != nil {
		log.Warn("upload cache unavailable", logging.Err(err))
		return nil
	}
	if !ok {
		u.client.metrics.CacheResult(false)
		return nil
	}

	// the provider expires files on its own schedule, so confirm it still exists
	remote, err := u.client.files.Get(ctx, entry.Name, nil)
	if err != nil || remote == nil || remote.State != genai.FileStateActive {
		u.client.metrics.CacheResult(false)
		log.Debug("cached upload is gone, uploading again", logging.F("name", entry.Name))
		return nil
	}

	u.client.metrics.CacheResult(true)
	log.Debug("reusing uploaded recording", logging.F("name", entry.Name))
	return &UploadedFile{
		Name:     entry.Name,
		URI:      entry.URI,
		MIMEType: entry.MIMEType,
		Cached:   true,
	}
}

func (u *Uploader) waitActive(ctx context.Context, file *genai.File) (*genai.File, error) {
	deadline := time.Now().Add(u.client.cfg.PollTimeout)

	for {
		switch file.State {
		case genai.FileStateActive, genai.FileStateUnspecified, "":
			return file, nil
		case genai.FileStateFailed:
			msg := "processing failed"
			if file.Error != nil && file.Error.Message != "" {
				msg = file.Error.Message
			}
			return nil, fmt.Errorf("file %s could not be processed: %s", file.Name, msg)
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("file %s still processing after %s", file.Name, u.client.cfg.PollTimeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(u.client.cfg.PollInterval):
		}

		next, err := u.client.files.Get(ctx, file.Name, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to poll file %s: %w", file.Name, err)
		}
		file = next
	}
}

// UploadAll uploads the meeting recording first and then every participant
// sample in parallel. The first failure cancels the remaining uploads.
// Participant results keep the input order.
func (u *Uploader) UploadAll(ctx context.Context, main analysis.MediaFile, participants []analysis.Participant) (*UploadedFile, []UploadedParticipant, error) {
	mainFile, err := u.Upload(ctx, main)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to upload meeting recording: %w", err)
	}

	uploaded := make([]UploadedParticipant, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range participants {
		if p.Sample == nil {
			continue
		}
		g.Go(func() error {
			f, err := u.Upload(gctx, *p.Sample)
			if err != nil {
				return fmt.Errorf("failed to upload voice sample for %s: %w", p.Name, err)
			}
			uploaded[i] = UploadedParticipant{Name: p.Name, File: f}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	out := uploaded[:0]
	for _, p := range uploaded {
		if p.File != nil {
			out = append(out, p)
		}
	}

	return mainFile, out, nil
}
