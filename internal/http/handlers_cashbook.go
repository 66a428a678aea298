package http

import (
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"cashense/internal/store"
)

// handleCreateCashbook creates a cashbook from form fields and returns
// a success fragment. HTMX listeners refresh the grids on the trigger.
func (s *Server) handleCreateCashbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		writeErrorFragment(w, http.StatusBadRequest, "invalid request format")
		return
	}

	name := sanitizeInput(r.Form.Get("name"))
	description := sanitizeInput(r.Form.Get("description"))
	category := sanitizeInput(r.Form.Get("category"))

	cb, err := s.service.Create(r.Context(), name, description, category)
	if err != nil {
		slog.ErrorContext(r.Context(), "Cashbook create failed", "error", err, "name", name)
		writeErrorFragment(w, statusForError(err), "could not create cashbook: "+err.Error())
		return
	}

	s.invalidatePartials()
	w.Header().Set("HX-Trigger", `{"cashbook:changed": {"id": "`+template.JSEscapeString(cb.ID)+`"}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Created cashbook ` +
		template.HTMLEscapeString(cb.Name) + `</div>`))
}

// handleUpdateCashbook applies the submitted fields. Absent fields are
// left untouched, so a rename does not clear the description.
func (s *Server) handleUpdateCashbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		writeErrorFragment(w, http.StatusBadRequest, "invalid request format")
		return
	}

	id := strings.TrimSpace(r.Form.Get("id"))
	if id == "" {
		writeErrorFragment(w, http.StatusBadRequest, "missing cashbook id")
		return
	}

	var fields store.UpdateFields
	if r.Form.Has("name") {
		v := sanitizeInput(r.Form.Get("name"))
		fields.Name = &v
	}
	if r.Form.Has("description") {
		v := sanitizeInput(r.Form.Get("description"))
		fields.Description = &v
	}
	if r.Form.Has("category") {
		v := sanitizeInput(r.Form.Get("category"))
		fields.Category = &v
	}
	if r.Form.Has("icon_color") {
		v := sanitizeInput(r.Form.Get("icon_color"))
		fields.IconColor = &v
	}

	cb, err := s.service.Update(r.Context(), id, fields)
	if err != nil {
		slog.ErrorContext(r.Context(), "Cashbook update failed", "error", err, "cashbook_id", id)
		writeErrorFragment(w, statusForError(err), "could not update cashbook: "+err.Error())
		return
	}

	s.invalidatePartials()
	w.Header().Set("HX-Trigger", `{"cashbook:changed": {"id": "`+template.JSEscapeString(cb.ID)+`"}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Updated cashbook ` +
		template.HTMLEscapeString(cb.Name) + `</div>`))
}

// handleDeleteCashbook removes a cashbook permanently.
func (s *Server) handleDeleteCashbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.ErrorContext(r.Context(), "Parse form error", "error", err, "url", r.URL.Path)
		writeErrorFragment(w, http.StatusBadRequest, "invalid request format")
		return
	}

	id := strings.TrimSpace(r.Form.Get("id"))
	if id == "" {
		writeErrorFragment(w, http.StatusBadRequest, "missing cashbook id")
		return
	}

	if err := s.service.Delete(r.Context(), id); err != nil {
		slog.ErrorContext(r.Context(), "Cashbook delete failed", "error", err, "cashbook_id", id)
		writeErrorFragment(w, statusForError(err), "could not delete cashbook: "+err.Error())
		return
	}

	s.invalidatePartials()
	w.Header().Set("HX-Trigger", `{"cashbook:changed": {"id": "`+template.JSEscapeString(id)+`"}}`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`<div class="success">Cashbook deleted</div>`))
}
