package httpapi

import "net/http"

// routes builds the full mux named in §6: the `/api/v2/sync/*` protocol
// surface, the convenience `/api/*` surface, and the websocket stream.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	// Sync protocol (§4.1-§4.5).
	mux.HandleFunc("POST /api/v2/sync/nodes/register", s.handleRegisterNode)
	mux.HandleFunc("POST /api/v2/sync/nodes/{nodeId}/heartbeat", s.handleNodeHeartbeat)
	mux.HandleFunc("GET /api/v2/sync/nodes/{projectId}", s.handleListNodes)
	mux.HandleFunc("POST /api/v2/sync/handshake/{projectId}", s.handleHandshake)
	mux.HandleFunc("POST /api/v2/sync/push/{projectId}", s.handlePush)
	mux.HandleFunc("POST /api/v2/sync/pull/{projectId}", s.handlePull)
	mux.HandleFunc("POST /api/v2/sync/tasks/{taskId}/claim", s.handleClaim)
	mux.HandleFunc("POST /api/v2/sync/tasks/{taskId}/heartbeat", s.handleTaskHeartbeat)
	mux.HandleFunc("POST /api/v2/sync/tasks/{taskId}/release", s.handleRelease)
	mux.HandleFunc("POST /api/v2/sync/intervene", s.handleIntervene)
	mux.HandleFunc("GET /api/v2/sync/status/{projectId}", s.handleStatus)
	mux.HandleFunc("GET /api/v2/sync/log/{projectId}", s.handleLog)
	mux.HandleFunc("POST /api/v2/sync/fix-expired-locks", s.handleFixExpiredLocks)

	// Websocket bridge onto the broadcast bus (C5, §11).
	mux.HandleFunc("GET /api/v2/stream/{projectId}", s.handleStream)

	// Convenience CRUD/read surface.
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("GET /api/projects/{projectId}", s.handleGetProject)
	mux.HandleFunc("GET /api/projects/{projectId}/stats", s.handleProjectStats)
	mux.HandleFunc("POST /api/projects/{projectId}/tasks", s.handleCreateTask)
	mux.HandleFunc("GET /api/projects/{projectId}/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/projects/{projectId}/queue", s.handleListTasks)
	mux.HandleFunc("POST /api/projects/{projectId}/claim-task", s.handleClaimTaskConvenience)
	mux.HandleFunc("GET /api/projects/{projectId}/task-defs/{taskId}/status", s.handleTaskDefStatus)

	mux.HandleFunc("GET /api/tasks/{taskId}", s.handleGetTask)
	mux.HandleFunc("DELETE /api/tasks/{taskId}", s.handleDeleteTask)
	mux.HandleFunc("POST /api/tasks/{taskId}/complete", s.handleTaskComplete)
	mux.HandleFunc("GET /api/tasks/{taskId}/iterations", s.handleTaskIterations)

	return mux
}
