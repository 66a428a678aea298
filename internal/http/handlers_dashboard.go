package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"cashense/internal/core"
)

// handleDashboard renders the main dashboard page.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded")
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	md, err := s.service.Metadata(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Metadata read failed", "error", err)
		http.Error(w, "failed to load dashboard", http.StatusInternalServerError)
		return
	}

	data := struct {
		TotalCashbooks int
		Categories     []string
		LastBackup     string
	}{
		TotalCashbooks: md.TotalCashbooks,
		Categories:     md.Categories,
	}
	if !md.LastBackup.IsZero() {
		data.LastBackup = md.LastBackup.Format("02 Jan 2006 15:04")
	}

	if err := s.templates.ExecuteTemplate(w, "dashboard_page", data); err != nil {
		slog.ErrorContext(r.Context(), "Dashboard template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// handleRecentCashbooks renders the recent-cashbooks card grid partial.
// The optional limit query overrides the configured card count.
func (s *Server) handleRecentCashbooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	limit := s.recentLimit
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErrorFragment(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		if n <= 0 {
			writeErrorFragment(w, http.StatusUnprocessableEntity, "limit must be positive")
			return
		}
		limit = n
	}

	cacheKey := "recent-" + strconv.Itoa(limit)
	if html, found := s.partialCache.Get(cacheKey); found {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
		return
	}

	books, err := s.service.GetRecent(r.Context(), limit)
	if err != nil {
		slog.ErrorContext(r.Context(), "Recent cashbooks read failed", "error", err, "limit", limit)
		writeErrorFragment(w, statusForError(err), "failed to load recent cashbooks")
		return
	}

	s.renderCardGrid(w, r, "recent_cashbooks", cacheKey, books)
}

// handleAllCashbooks renders the full collection list partial.
func (s *Server) handleAllCashbooks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	const cacheKey = "all"
	if html, found := s.partialCache.Get(cacheKey); found {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
		return
	}

	books, err := s.service.GetAll(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Cashbook list read failed", "error", err)
		writeErrorFragment(w, statusForError(err), "failed to load cashbooks")
		return
	}

	s.renderCardGrid(w, r, "cashbook_list", cacheKey, books)
}

// handleCashbookStats renders the aggregate snapshot for one cashbook.
func (s *Server) handleCashbookStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		writeErrorFragment(w, http.StatusBadRequest, "missing cashbook id")
		return
	}

	cb, err := s.service.Get(r.Context(), id)
	if err != nil {
		slog.ErrorContext(r.Context(), "Cashbook stats read failed", "error", err, "cashbook_id", id)
		writeErrorFragment(w, statusForError(err), "cashbook not found")
		return
	}

	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded")
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	data := struct {
		Name        string
		EntryCount  int
		TotalAmount string
	}{
		Name:        cb.Name,
		EntryCount:  cb.EntryCount,
		TotalAmount: formatEuros(cb.TotalAmount.Cents),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.templates.ExecuteTemplate(w, "cashbook_stats", data); err != nil {
		slog.ErrorContext(r.Context(), "Stats template execution failed", "error", err, "cashbook_id", id)
		writeErrorFragment(w, http.StatusInternalServerError, "failed to render stats")
	}
}

// renderCardGrid renders a list of cashbooks through the named template
// and stores the result in the partial cache.
func (s *Server) renderCardGrid(w http.ResponseWriter, r *http.Request, tmpl, cacheKey string, books []*core.Cashbook) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded")
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	type card struct {
		ID          string
		Name        string
		Description string
		Category    string
		IconColor   string
		EntryCount  int
		TotalAmount string
		Modified    string
	}
	data := struct {
		Cards []card
	}{}
	for _, cb := range books {
		data.Cards = append(data.Cards, card{
			ID:          cb.ID,
			Name:        cb.Name,
			Description: cb.Description,
			Category:    cb.Category,
			IconColor:   cb.IconColor,
			EntryCount:  cb.EntryCount,
			TotalAmount: formatEuros(cb.TotalAmount.Cents),
			Modified:    cb.LastModified.Format("02 Jan 2006 15:04"),
		})
	}

	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed", "error", err, "template", tmpl)
		writeErrorFragment(w, http.StatusInternalServerError, "failed to render cashbooks")
		return
	}

	s.partialCache.Set(cacheKey, buf.String())
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
