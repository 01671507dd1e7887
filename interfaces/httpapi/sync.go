package httpapi

import (
	"net/http"
	"strconv"

	"github.com/relaysync/conductor/application/coordinator"
	"github.com/relaysync/conductor/domain/node"
)

// registerNodeRequest mirrors §6's `/nodes/register` body.
type registerNodeRequest struct {
	NodeID       string   `json:"nodeId"`
	ProjectID    string   `json:"projectId"`
	NodeType     string   `json:"nodeType"`
	DisplayName  string   `json:"displayName,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
}

func (s *Server) handleRegisterNode(w http.ResponseWriter, r *http.Request) {
	var req registerNodeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if req.NodeID == "" || req.ProjectID == "" {
		badRequest(w, "nodeId and projectId are required")
		return
	}
	n := &node.Node{
		ID:           req.NodeID,
		ProjectID:    req.ProjectID,
		Type:         node.Type(req.NodeType),
		DisplayName:  req.DisplayName,
		Capabilities: req.Capabilities,
	}
	if n.Type == "" {
		n.Type = node.TypeAgent
	}
	if err := s.h.RegisterNode(r.Context(), n); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (s *Server) handleNodeHeartbeat(w http.ResponseWriter, r *http.Request) {
	nodeID := r.PathValue("nodeId")
	if err := s.h.NodeHeartbeat(r.Context(), nodeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleListNodes(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	nodes, err := s.h.ListNodes(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *Server) handleHandshake(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	var req coordinator.HandshakeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	resp, err := s.h.Handshake(r.Context(), projectID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	var req coordinator.PushRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	resp, err := s.h.Push(r.Context(), projectID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	var req coordinator.PullRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	resp, err := s.h.Pull(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	var req coordinator.ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	resp, err := s.h.Claim(r.Context(), r.URL.Query().Get("projectId"), taskID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleTaskHeartbeat(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	var req coordinator.HeartbeatRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	resp, err := s.h.Heartbeat(r.Context(), taskID, req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("taskId")
	var req coordinator.ReleaseRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	if err := s.h.Release(r.Context(), r.URL.Query().Get("projectId"), taskID, req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleIntervene(w http.ResponseWriter, r *http.Request) {
	var req coordinator.IntervenRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid body")
		return
	}
	iv, err := s.h.Intervene(r.Context(), r.URL.Query().Get("projectId"), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	summary, err := s.h.Status(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	projectID := r.PathValue("projectId")
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	entries, err := s.h.Log(r.Context(), projectID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleFixExpiredLocks(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("projectId")
	result, err := s.h.Sweep(r.Context(), projectID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
