// internal/handlers/session.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/anayv/crease/internal/auth"
	"github.com/anayv/crease/internal/validate"
)

// SessionHandler issues an ephemeral session token for a display name. The
// name goes through the same validation gate as every other inbound payload.
func (s *Server) SessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	name, err := validate.PlayerName(req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := auth.CreateSession(name)
	if err != nil {
		s.Log.WithField("error", err).Error("failed to sign session token")
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"token": token,
		"name":  name,
	})
}
