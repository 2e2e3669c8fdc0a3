package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/labelqr/internal/core"
)

// generateRequest is the body of POST /api/generate. Zero values take the
// server defaults; saved browser preferences are not consulted.
type generateRequest struct {
	Text          string `json:"text"`
	Size          int    `json:"size"`
	Level         string `json:"level"`
	Dedup         *bool  `json:"dedup"`
	Layout        string `json:"layout"`
	IncludeImages bool   `json:"include_images"`
}

type apiRecord struct {
	Identifier string `json:"identifier"`
	Label      string `json:"label"`
	Quantity   string `json:"quantity"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
	Image      []byte `json:"image,omitempty"`
}

type generateResponse struct {
	SheetID string      `json:"sheet_id,omitempty"`
	Count   int         `json:"count"`
	Failed  int         `json:"failed"`
	Layout  string      `json:"layout"`
	Size    int         `json:"size"`
	Level   string      `json:"level"`
	Records []apiRecord `json:"records"`
}

// handleAPIGenerate runs the text pipeline for JSON clients. Per-record
// failures are reported inside records; batch-level errors use the JSON
// error response.
func (s *Server) handleAPIGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			s.respondError(w, r, core.ErrFileTooLarge, http.StatusRequestEntityTooLarge)
			return
		}
		s.respondError(w, r, fmt.Errorf("%w: %v", errInvalidForm, err), http.StatusBadRequest)
		return
	}

	def := s.service.Defaults()
	set := def
	set.Render = core.ParseRenderOptions(strconv.Itoa(req.Size), req.Level, def.Render, s.service.MaxSize())
	if req.Dedup != nil {
		set.Deduplicate = *req.Dedup
	}
	set.Layout = core.ParseLayout(req.Layout, def.Layout)

	sheet, err := s.service.GenerateText(ctx, req.Text, set)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	s.saveSheet(ctx, sheet, set)

	resp := generateResponse{
		SheetID: sheet.ID,
		Count:   sheet.Processed(),
		Failed:  sheet.Failed(),
		Layout:  string(sheet.Layout),
		Size:    sheet.Options.Size,
		Level:   string(sheet.Options.Level),
		Records: make([]apiRecord, len(sheet.Items)),
	}
	for i, it := range sheet.Items {
		rec := apiRecord{
			Identifier: it.Record.Identifier,
			Label:      it.Record.Label,
			Quantity:   it.Record.Quantity,
		}
		if it.OK() {
			if req.IncludeImages {
				rec.Image = it.Image
			}
		} else {
			msg := core.MapError(it.Err)
			rec.Error = msg.Message
			rec.Code = msg.Code
		}
		resp.Records[i] = rec
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// handleHealth reports liveness and ingestion slot usage.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"uploads": s.service.UploadLimiterStatus(),
	})
}
