package api

import (
	"net/http"
)

func (s *Server) handleLLMStats(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil || s.llm.Stats() == nil {
		jsonError(w, "llm stats unavailable", http.StatusServiceUnavailable)
		return
	}

	b := s.llm.Backend()
	writeJSON(w, http.StatusOK, map[string]any{
		"backend": string(b.Kind),
		"model":   b.Model,
		"stats":   s.llm.Stats().Snapshot(),
	})
}
