package httpapi

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/daybook/internal/common"
	"github.com/dmitrijs2005/daybook/internal/syncwire"
)

// handleProbe reports whether the service is up and configured, and shares
// the server's clock. 503 means the deployment is missing its secrets.
func (s *Server) handleProbe(w http.ResponseWriter, r *http.Request) {
	resp := syncwire.ProbeResponse{OK: s.ready(), ServerTime: s.now().UTC()}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, r, status, resp)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if !s.ready() {
		http.Error(w, "service is not configured", http.StatusServiceUnavailable)
		return
	}
	if !s.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req syncwire.SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if err := s.validateRequest(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.svc.Merge(r.Context(), &req)
	if err != nil {
		s.logger.Error(r.Context(), "merge failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

// authorized checks the shared sync key. A deployment without a configured
// key does not demand one.
func (s *Server) authorized(r *http.Request) bool {
	if s.syncKey == "" {
		return true
	}
	key := r.Header.Get(common.SyncKeyHeaderName)
	return subtle.ConstantTimeCompare([]byte(key), []byte(s.syncKey)) == 1
}

func (s *Server) validateRequest(req *syncwire.SyncRequest) error {
	for _, cs := range []*syncwire.ChangeSet{req.Updates, req.Force} {
		if cs.Empty() {
			continue
		}
		for _, row := range cs.Entries {
			if err := s.validate.Struct(row); err != nil {
				return fmt.Errorf("invalid entry: %w", err)
			}
		}
		for _, row := range cs.People {
			if err := s.validate.Struct(row); err != nil {
				return fmt.Errorf("invalid person: %w", err)
			}
		}
		for _, row := range cs.Sessions {
			if err := s.validate.Struct(row); err != nil {
				return fmt.Errorf("invalid session: %w", err)
			}
		}
		for i := range cs.Deletes {
			if err := s.validate.Struct(&cs.Deletes[i]); err != nil {
				return fmt.Errorf("invalid tombstone: %w", err)
			}
		}
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error(r.Context(), "failed to write response", "error", err)
	}
}
