package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/labelqr/internal/core"
	"github.com/JonMunkholm/labelqr/internal/label"
	"github.com/JonMunkholm/labelqr/internal/logging"
	"github.com/JonMunkholm/labelqr/internal/web/templates"
)

// handlePrint renders a saved sheet for printing.
func (s *Server) handlePrint(w http.ResponseWriter, r *http.Request) {
	saved, err := s.loadPrintable(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	render(w, r, http.StatusOK, templates.PrintPage(s.renderSaved(r.Context(), saved)))
}

// handleLabel serves one record of a saved sheet as a label PNG.
func (s *Server) handleLabel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	saved, err := s.store.LoadSheet(ctx, id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 || index >= len(saved.Records) {
		err = fmt.Errorf("label %q of sheet %s: %w", chi.URLParam(r, "index"), id, core.ErrSheetNotFound)
		s.respondError(w, r, err, http.StatusNotFound)
		return
	}

	rec := saved.Records[index]
	item := s.service.Render(ctx, []core.Record{rec}, saved.Settings).Items[0]
	if !item.OK() {
		s.respondError(w, r, item.Err, http.StatusUnprocessableEntity)
		return
	}

	img, err := label.Draw(rec, item.Image)
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="label-%d.png"`, index+1))
	if err := label.EncodePNG(w, img); err != nil {
		logging.FromContext(ctx).Error("write label", "sheet", id, "index", index, "error", err)
	}
}
