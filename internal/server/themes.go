package server

import (
	"embed"
	"io/fs"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
)

//go:embed themes/*.json
var themesFS embed.FS

// handleThemeList returns the names of all bundled terminal color themes.
func (s *Server) handleThemeList(w http.ResponseWriter, r *http.Request) {
	entries, err := fs.ReadDir(themesFS, "themes")
	if err != nil {
		http.Error(w, "themes unavailable", http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(names)
	writeJSON(w, map[string]any{
		"themes":  names,
		"default": s.cfg.Server.Theme,
	})
}

// handleThemeGet serves one theme's color object.
func (s *Server) handleThemeGet(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if strings.ContainsAny(name, "/\\.") {
		http.Error(w, "unknown theme", http.StatusNotFound)
		return
	}
	data, err := themesFS.ReadFile("themes/" + name + ".json")
	if err != nil {
		http.Error(w, "unknown theme", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}
