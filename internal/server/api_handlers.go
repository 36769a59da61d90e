package server

import (
	"encoding/json"
	"net/http"
	"time"
)

type sessionJSON struct {
	ID      string `json:"id"`
	Created string `json:"created"`
	Clients int    `json:"clients"`
	Alive   bool   `json:"alive"`
}

// handleSessionList enumerates live sessions, oldest first.
func (s *Server) handleSessionList(w http.ResponseWriter, r *http.Request) {
	infos := s.registry.List()
	out := make([]sessionJSON, 0, len(infos))
	for _, info := range infos {
		out = append(out, sessionJSON{
			ID:      info.ID,
			Created: info.Created.Format(time.RFC3339),
			Clients: info.Clients,
			Alive:   info.Alive,
		})
	}
	writeJSON(w, out)
}

func (s *Server) handleMOTD(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"motd": s.motd})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
