package rpc

import (
	"net/http"

	"rebasevault/native/params"
)

type pausesPayload struct {
	Rebase bool `json:"rebase"`
	Bank   bool `json:"bank"`
	AMM    bool `json:"amm"`
}

func (s *Server) handlePauses(w http.ResponseWriter, r *http.Request) {
	pauses, err := s.vault.Pauses(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pausesPayload{Rebase: pauses.Rebase, Bank: pauses.Bank, AMM: pauses.AMM})
}

// handleSetPauses replaces every switch; omitted fields unpause.
func (s *Server) handleSetPauses(w http.ResponseWriter, r *http.Request) {
	var req pausesPayload
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	next := params.Pauses{Rebase: req.Rebase, Bank: req.Bank, AMM: req.AMM}
	if err := s.vault.SetPauses(r.Context(), next); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}
