package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/labelqr/internal/logging"
)

// Encoder is the QR-generation capability. Encode returns a PNG image of
// payload at opts.Size pixels square using opts.Level error correction.
type Encoder interface {
	Encode(payload string, opts RenderOptions) ([]byte, error)
}

// EncoderFunc adapts a function to Encoder.
type EncoderFunc func(payload string, opts RenderOptions) ([]byte, error)

// Encode calls f.
func (f EncoderFunc) Encode(payload string, opts RenderOptions) ([]byte, error) {
	return f(payload, opts)
}

// RecordObserver is notified of every render outcome. Err is nil on success.
type RecordObserver func(rec Record, err error)

// Renderer turns records into sheet items, one per record, in order.
// A failing record becomes a placeholder item and never stops the batch.
type Renderer struct {
	enc      Encoder
	observer RecordObserver
}

// NewRenderer creates a renderer backed by enc.
func NewRenderer(enc Encoder) *Renderer {
	return &Renderer{enc: enc}
}

// Observe registers a callback invoked after each record is rendered.
func (r *Renderer) Observe(fn RecordObserver) {
	r.observer = fn
}

// Render produces exactly len(records) items.
func (r *Renderer) Render(ctx context.Context, records []Record, opts RenderOptions) []Item {
	logger := logging.FromContext(ctx)
	items := make([]Item, 0, len(records))

	for _, rec := range records {
		img, err := r.renderOne(rec, opts)
		if err != nil {
			logger.Error("qr generation failed",
				"identifier", rec.Identifier,
				"error", err,
			)
		}
		if r.observer != nil {
			r.observer(rec, err)
		}
		items = append(items, Item{Record: rec, Image: img, Err: err})
	}

	return items
}

// renderOne validates and encodes a single record, converting encoder
// panics into a RenderError so they stay confined to the record.
func (r *Renderer) renderOne(rec Record, opts RenderOptions) (img []byte, err error) {
	if strings.TrimSpace(rec.Identifier) == "" {
		return nil, &ValidationError{Record: rec, Reason: "empty identifier"}
	}

	defer func() {
		if p := recover(); p != nil {
			img = nil
			err = &RenderError{Identifier: rec.Identifier, Err: fmt.Errorf("encoder panic: %v", p)}
		}
	}()

	img, err = r.enc.Encode(rec.Identifier, opts)
	if err != nil {
		return nil, &RenderError{Identifier: rec.Identifier, Err: err}
	}
	return img, nil
}
