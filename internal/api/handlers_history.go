package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/contractreview/internal/history"
)

const defaultHistoryLimit = 20

// handleListHistory lists recent reviews, or those matching ?q=.
func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	var recs []history.Record
	if q := r.URL.Query().Get("q"); q != "" {
		recs = s.history.Search(q)
		if len(recs) > limit {
			recs = recs[:limit]
		}
	} else {
		recs = s.history.List(limit)
	}
	if recs == nil {
		recs = []history.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	rec, ok := s.history.Get(chi.URLParam(r, "id"))
	if !ok {
		jsonError(w, "record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	ok, err := s.history.Delete(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, "failed to delete record: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		jsonError(w, "record not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (s *Server) handleHistoryStats(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		jsonError(w, "history unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, s.history.Stats())
}
