package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/loomline/loomline/internal/graph"
	"github.com/loomline/loomline/internal/storage"
)

// ---------------------------------------------------------------------------
// GET /api/graph
// ---------------------------------------------------------------------------

func (s *Server) handleLoadGraph(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.LoadGraph(r.Context())
	if err != nil {
		if errors.Is(err, storage.ErrNoFile) {
			writeError(w, http.StatusConflict, "NO_FILE_OPEN", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "LOAD_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": snap,
	})
}

// ---------------------------------------------------------------------------
// POST /api/graph  (body: snapshot JSON)
// ---------------------------------------------------------------------------

func (s *Server) handleSaveGraph(w http.ResponseWriter, r *http.Request) {
	var snap graph.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SNAPSHOT",
			"request body is not a valid snapshot: "+err.Error())
		return
	}
	snap.Normalize()

	// Reject dangling edges up front with a pointed message; letting them
	// reach the engine would fail the save anyway, as a bare constraint
	// violation.
	if dangling := snap.DanglingEdges(); len(dangling) > 0 {
		writeError(w, http.StatusBadRequest, "DANGLING_EDGES",
			"snapshot contains edges referencing missing nodes (first: "+dangling[0].ID+")")
		return
	}

	if err := s.session.SaveGraph(r.Context(), &snap); err != nil {
		if errors.Is(err, storage.ErrNoFile) {
			writeError(w, http.StatusConflict, "NO_FILE_OPEN", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "SAVE_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// ---------------------------------------------------------------------------
// POST /api/session/file  (body: {"path": "name-or-path"})
// ---------------------------------------------------------------------------

func (s *Server) handleSwitchFile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Path == "" {
		writeError(w, http.StatusBadRequest, "MISSING_PATH",
			`body must be {"path": "<graph file>"}`)
		return
	}
	if strings.Contains(req.Path, "..") {
		writeError(w, http.StatusBadRequest, "INVALID_PATH",
			"path must not contain '..'")
		return
	}

	path := req.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.dataDir, path)
	}
	if !strings.HasSuffix(path, storage.FileExt) {
		path += storage.FileExt
	}

	if err := s.session.SwitchFile(r.Context(), path); err != nil {
		writeError(w, http.StatusInternalServerError, "SWITCH_FAILED", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "switched",
		"path":   path,
	})
}

// ---------------------------------------------------------------------------
// GET /api/session
// ---------------------------------------------------------------------------

func (s *Server) handleSessionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"path": s.session.Path(),
	})
}

// ---------------------------------------------------------------------------
// GET /api/graphs
// ---------------------------------------------------------------------------

func (s *Server) handleListGraphs(w http.ResponseWriter, r *http.Request) {
	infos, err := storage.ListGraphs(r.Context(), s.dataDir)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "LIST_FAILED", err.Error())
		return
	}
	if infos == nil {
		infos = []storage.GraphInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"graphs": infos,
		},
	})
}
