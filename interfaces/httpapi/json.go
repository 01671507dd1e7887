package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/relaysync/conductor/application/coordinator"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	return dec.Decode(v)
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// writeError maps a coordinator.Error to the wire status table in §6; any
// other error is a storage/internal failure, surfaced as a 500 per §7.
func writeError(w http.ResponseWriter, err error) {
	if cerr, ok := coordinator.AsError(err); ok {
		writeJSON(w, cerr.Code.HTTPStatus(), errorBody{Error: string(cerr.Code), Reason: cerr.Reason})
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "INTERNAL", Reason: err.Error()})
}

func badRequest(w http.ResponseWriter, reason string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: "BAD_REQUEST", Reason: reason})
}
