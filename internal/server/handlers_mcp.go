package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/apollo-chat/apollo/internal/mcp"
	"github.com/apollo-chat/apollo/internal/toolcache"
)

func (s *Server) getMCPStatus(w http.ResponseWriter, r *http.Request) {
	status := s.manager.Status()
	if status == nil {
		status = []mcp.ConnectionStatus{}
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) connectMCP(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var cfg mcp.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	if err := s.manager.Connect(r.Context(), name, cfg); err != nil {
		writeError(w, http.StatusBadGateway, ErrCodeProviderError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"connected": true})
}

func (s *Server) disconnectMCP(w http.ResponseWriter, r *http.Request) {
	s.manager.Disconnect(chi.URLParam(r, "name"))
	writeJSON(w, http.StatusOK, map[string]bool{"disconnected": true})
}

func (s *Server) listTools(w http.ResponseWriter, r *http.Request) {
	snapshot := s.cache.Snapshot()
	if snapshot == nil {
		snapshot = map[string][]toolcache.ToolDescriptor{}
	}
	writeJSON(w, http.StatusOK, snapshot)
}
