package core

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/JonMunkholm/labelqr/internal/config"
	"github.com/JonMunkholm/labelqr/internal/logging"
)

// Source names the input surface of a batch.
type Source string

const (
	SourceText Source = "text"
	SourceCSV  Source = "csv"
)

// BatchObserver receives pipeline outcomes. Implementations must be safe for
// concurrent use.
type BatchObserver interface {
	ObserveRecord(err error)
	ObserveBatch(source Source, sheet *Sheet, elapsed time.Duration)
	ObserveBatchError(source Source, err error)
}

// Upload is a CSV file handed to GenerateCSV.
type Upload struct {
	Reader      io.Reader
	FileName    string
	ContentType string
}

// Service runs the text and CSV pipelines: parse or ingest, normalize, render.
// It holds no per-request state and is safe for concurrent use.
type Service struct {
	renderer    *Renderer
	limiter     *UploadLimiter
	maxFileSize int64
	maxSize     int
	defaults    Settings
	observer    BatchObserver
}

// NewService creates a Service encoding with enc. A nil cfg uses built-in
// defaults.
func NewService(enc Encoder, cfg *config.Config) *Service {
	s := &Service{
		renderer: NewRenderer(enc),
		defaults: DefaultSettings(),
	}

	if cfg == nil {
		s.limiter = NewUploadLimiter(0, 0)
		return s
	}

	s.limiter = NewUploadLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime)
	s.maxFileSize = cfg.Upload.MaxFileSize
	s.maxSize = cfg.Render.MaxSize
	s.defaults = Settings{
		Render: ParseRenderOptions(
			"", cfg.Render.DefaultLevel,
			RenderOptions{Size: cfg.Render.DefaultSize, Level: DefaultLevel},
			cfg.Render.MaxSize,
		),
		Deduplicate: cfg.Render.DefaultDedup,
		Layout:      ParseLayout(cfg.Render.DefaultLayout, DefaultLayout),
	}
	return s
}

// SetObserver registers o for record and batch outcomes.
func (s *Service) SetObserver(o BatchObserver) {
	s.observer = o
	if o == nil {
		s.renderer.Observe(nil)
		return
	}
	s.renderer.Observe(func(_ Record, err error) { o.ObserveRecord(err) })
}

// Defaults returns the settings used when a client has none saved.
func (s *Service) Defaults() Settings {
	return s.defaults
}

// MaxSize returns the upper bound applied to QR sizes, 0 if unbounded.
func (s *Service) MaxSize() int {
	return s.maxSize
}

// GenerateText parses, normalizes and renders delimited text.
// Blank text returns ErrInputEmpty and renders nothing.
func (s *Service) GenerateText(ctx context.Context, text string, set Settings) (*Sheet, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		s.batchFailed(SourceText, ErrInputEmpty)
		return nil, ErrInputEmpty
	}

	records := Normalize(ParseText(text), set.Deduplicate)
	sheet := s.render(ctx, records, set)
	sheet.SourceText = text

	s.batchDone(ctx, SourceText, sheet, start)
	return sheet, nil
}

// GenerateCSV ingests an uploaded CSV file, then normalizes and renders its
// rows. Rejected or malformed files return an error and render nothing.
func (s *Service) GenerateCSV(ctx context.Context, up Upload, set Settings) (*Sheet, error) {
	start := time.Now()
	records, err := s.IngestUpload(ctx, up)
	if err != nil {
		s.batchFailed(SourceCSV, err)
		return nil, err
	}

	sheet := s.render(ctx, Normalize(records, set.Deduplicate), set)
	sheet.SourceText = RecordsToText(records)

	s.batchDone(ctx, SourceCSV, sheet, start)
	return sheet, nil
}

// IngestUpload checks the file type and reads the CSV rows while holding an
// ingestion slot.
func (s *Service) IngestUpload(ctx context.Context, up Upload) ([]Record, error) {
	if up.Reader == nil {
		return nil, ErrNoFile
	}
	if !AcceptFile(up.ContentType, up.FileName) {
		return nil, ErrUnsupportedFile
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.FromContext(ctx)
	logger.Debug("ingesting csv", "file", up.FileName)

	records, err := IngestCSV(up.Reader, s.maxFileSize)
	if err != nil {
		logger.Warn("csv ingestion failed", "file", up.FileName, "error", err)
		return nil, err
	}
	return records, nil
}

// Render renders already-normalized records, e.g. a saved sheet.
func (s *Service) Render(ctx context.Context, records []Record, set Settings) *Sheet {
	return s.render(ctx, records, set)
}

func (s *Service) render(ctx context.Context, records []Record, set Settings) *Sheet {
	opts := set.Render
	if opts.Size <= 0 {
		opts.Size = s.defaults.Render.Size
	}
	if !opts.Level.Valid() {
		opts.Level = s.defaults.Render.Level
	}
	opts = ParseRenderOptions("", "", opts, s.maxSize)
	return &Sheet{
		Layout:  ParseLayout(string(set.Layout), s.defaults.Layout),
		Options: opts,
		Items:   s.renderer.Render(ctx, records, opts),
	}
}

func (s *Service) batchDone(ctx context.Context, src Source, sheet *Sheet, start time.Time) {
	elapsed := time.Since(start)
	logging.FromContext(ctx).Info("batch rendered",
		"source", src,
		"records", sheet.Processed(),
		"failed", sheet.Failed(),
		"duration", elapsed,
	)
	if s.observer != nil {
		s.observer.ObserveBatch(src, sheet, elapsed)
	}
}

func (s *Service) batchFailed(src Source, err error) {
	if s.observer != nil {
		s.observer.ObserveBatchError(src, err)
	}
}

// UploadLimiterStatus returns the ingestion limiter state for health output.
func (s *Service) UploadLimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until in-flight ingestions finish or ctx is done.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
