package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/labelqr/internal/core"
	"github.com/JonMunkholm/labelqr/internal/logging"
	"github.com/JonMunkholm/labelqr/internal/store"
	"github.com/JonMunkholm/labelqr/internal/web/templates"
)

// formOverhead is allowed on top of the upload limit for the other fields
// of the main form.
const formOverhead = 1 << 20

var errInvalidForm = errors.New("invalid form")

// handleIndex renders the page with the client's saved settings and input.
// The sheet area starts empty.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	set, prefs := s.savedSettings(r.Context())
	render(w, r, http.StatusOK, templates.Page(templates.PageData{
		Input:    prefs.InputData,
		Settings: set,
		MaxSize:  s.service.MaxSize(),
	}))
}

// handleGenerate renders the pasted text.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	base, _ := s.savedSettings(ctx)
	set := formSettings(r, base, s.service.MaxSize())
	text := r.FormValue("input")
	data := templates.PageData{Input: text, Settings: set, MaxSize: s.service.MaxSize()}

	sheet, err := s.service.GenerateText(ctx, text, set)
	if err != nil {
		s.renderPageError(w, r, data, err)
		return
	}

	s.saveSheet(ctx, sheet, set)
	s.savePreferences(ctx, store.NewPreferences(set, text))

	data.Sheet = sheet
	data.Status = templates.Success("Generated %d QR codes", sheet.Processed())
	render(w, r, http.StatusOK, templates.Page(data))
}

// handleUpload ingests the CSV file in the "csv" field and renders it. The
// text area is replaced by the regenerated text of the file.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	base, _ := s.savedSettings(ctx)
	set := formSettings(r, base, s.service.MaxSize())
	data := templates.PageData{
		Input:    r.FormValue("input"),
		Settings: set,
		MaxSize:  s.service.MaxSize(),
	}

	file, header, err := r.FormFile("csv")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			err = core.ErrNoFile
		}
		s.renderPageError(w, r, data, err)
		return
	}
	defer file.Close()
	data.FileName = header.Filename

	sheet, err := s.service.GenerateCSV(ctx, core.Upload{
		Reader:      file,
		FileName:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
	}, set)
	if err != nil {
		s.renderPageError(w, r, data, err)
		return
	}

	s.saveSheet(ctx, sheet, set)
	s.savePreferences(ctx, store.NewPreferences(set, sheet.SourceText))

	data.Input = sheet.SourceText
	data.Sheet = sheet
	data.Status = templates.Success("CSV processed with %d valid rows", sheet.Processed())
	render(w, r, http.StatusOK, templates.Page(data))
}

// handleLayout switches between table and cards. When the text area holds
// data it is rendered again in the new layout.
func (s *Server) handleLayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	base, _ := s.savedSettings(ctx)
	set := formSettings(r, base, s.service.MaxSize())
	set.Layout = core.ParseLayout(r.FormValue("view"), set.Layout)
	text := r.FormValue("input")
	data := templates.PageData{Input: text, Settings: set, MaxSize: s.service.MaxSize()}

	if strings.TrimSpace(text) != "" {
		sheet, err := s.service.GenerateText(ctx, text, set)
		if err != nil {
			s.renderPageError(w, r, data, err)
			return
		}
		s.saveSheet(ctx, sheet, set)
		data.Sheet = sheet
	}

	s.savePreferences(ctx, store.NewPreferences(set, text))
	render(w, r, http.StatusOK, templates.Page(data))
}

// handleClear forgets the client's saved input and settings and shows the
// empty state. The preferred layout survives a clear.
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	base, prefs := s.savedSettings(ctx)
	set := formSettings(r, base, s.service.MaxSize())

	client := clientFromContext(ctx)
	if err := s.store.Clear(ctx, client); err != nil {
		logging.FromContext(ctx).Warn("clear preferences failed", "error", err)
	}
	if prefs.PreferredView != "" {
		s.savePreferences(ctx, store.Preferences{PreferredView: prefs.PreferredView})
	}

	render(w, r, http.StatusOK, templates.Page(templates.PageData{
		Settings: set,
		MaxSize:  s.service.MaxSize(),
	}))
}

// handlePrintRequest sends the browser to the print view of the current
// sheet, or reports that there is nothing to print.
func (s *Server) handlePrintRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := s.parseForm(w, r); err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	base, _ := s.savedSettings(ctx)
	set := formSettings(r, base, s.service.MaxSize())
	data := templates.PageData{Input: r.FormValue("input"), Settings: set, MaxSize: s.service.MaxSize()}

	id := r.FormValue("sheet_id")
	saved, err := s.loadPrintable(ctx, id)
	if err != nil {
		s.renderPageError(w, r, data, err)
		return
	}
	http.Redirect(w, r, "/sheets/"+saved.ID+"/print", http.StatusSeeOther)
}

// renderPageError shows a batch-level error on the page. The sheet that was
// on screen, if any, stays there.
func (s *Server) renderPageError(w http.ResponseWriter, r *http.Request, data templates.PageData, err error) {
	status := statusFor(err)
	msg := core.MapError(err)
	logError(r, err, status, msg.Code)

	data.Status = templates.Failure(msg)
	if data.Sheet == nil {
		data.Sheet = s.previousSheet(r)
	}
	render(w, r, status, templates.Page(data))
}

// previousSheet re-renders the sheet named by the form's sheet_id.
func (s *Server) previousSheet(r *http.Request) *core.Sheet {
	id := r.FormValue("sheet_id")
	if id == "" {
		return nil
	}
	saved, err := s.store.LoadSheet(r.Context(), id)
	if err != nil {
		return nil
	}
	return s.renderSaved(r.Context(), saved)
}

// loadPrintable returns the saved sheet id if it exists and has records.
func (s *Server) loadPrintable(ctx context.Context, id string) (store.SavedSheet, error) {
	if id == "" {
		return store.SavedSheet{}, core.ErrSheetNotFound
	}
	saved, err := s.store.LoadSheet(ctx, id)
	if err != nil {
		return store.SavedSheet{}, err
	}
	if len(saved.Records) == 0 {
		return store.SavedSheet{}, fmt.Errorf("sheet %s is empty: %w", id, core.ErrSheetNotFound)
	}
	return saved, nil
}

func (s *Server) renderSaved(ctx context.Context, saved store.SavedSheet) *core.Sheet {
	sheet := s.service.Render(ctx, saved.Records, saved.Settings)
	sheet.ID = saved.ID
	return sheet
}

// savedSettings returns the service defaults overlaid with the client's
// stored preferences. Store failures fall back to the defaults.
func (s *Server) savedSettings(ctx context.Context) (core.Settings, store.Preferences) {
	def := s.service.Defaults()
	prefs, ok, err := s.store.Load(ctx, clientFromContext(ctx))
	if err != nil {
		logging.FromContext(ctx).Warn("load preferences failed", "error", err)
		return def, store.Preferences{}
	}
	if !ok {
		return def, store.Preferences{}
	}
	return prefs.Settings(def, s.service.MaxSize()), prefs
}

func (s *Server) savePreferences(ctx context.Context, p store.Preferences) {
	if err := s.store.Save(ctx, clientFromContext(ctx), p); err != nil {
		logging.FromContext(ctx).Warn("save preferences failed", "error", err)
	}
}

// saveSheet stores the sheet's records and sets its ID. On failure the
// sheet is still shown, without print and label links.
func (s *Server) saveSheet(ctx context.Context, sheet *core.Sheet, set core.Settings) {
	set.Render = sheet.Options
	set.Layout = sheet.Layout
	id, err := s.store.SaveSheet(ctx, store.SavedSheet{Records: sheet.Records(), Settings: set})
	if err != nil {
		logging.FromContext(ctx).Warn("save sheet failed", "error", err)
		return
	}
	sheet.ID = id
}

// parseForm limits the body and parses either form encoding.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize+formOverhead)

	err := r.ParseMultipartForm(s.cfg.Upload.MaxFileSize)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	var mbe *http.MaxBytesError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &mbe):
		return core.ErrFileTooLarge
	default:
		return fmt.Errorf("%w: %v", errInvalidForm, err)
	}
}

// formSettings reads qrSize, qrEcc, dedup and layout over base. The dedup
// checkbox is only read when the form marks it present, since an unchecked
// box is not submitted.
func formSettings(r *http.Request, base core.Settings, maxSize int) core.Settings {
	set := base
	set.Render = core.ParseRenderOptions(r.FormValue("qrSize"), r.FormValue("qrEcc"), base.Render, maxSize)
	if r.FormValue("dedup_present") != "" {
		set.Deduplicate = r.FormValue("dedup") != ""
	}
	set.Layout = core.ParseLayout(r.FormValue("layout"), base.Layout)
	return set
}
