package rpc

import (
	"net/http"

	"rebasevault/core/types"
)

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultJournalLimit, maxJournalLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	entries, err := s.vault.Journal(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, journalResponse{Entries: entries})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"), defaultJournalLimit, maxJournalLimit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := []types.Event{}
	if s.events != nil {
		out = append(out, s.events.Recent(limit)...)
	}
	writeJSON(w, http.StatusOK, map[string][]types.Event{"events": out})
}
