package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dyluth/blueprints/internal/store"
	"github.com/dyluth/blueprints/pkg/blueprint"
	"github.com/golang/glog"
	"github.com/gorilla/mux"
)

// maxBodyBytes bounds REST request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	bps, err := s.repo.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bps)
}

func (s *Server) handleListByAuthor(w http.ResponseWriter, r *http.Request) {
	author := mux.Vars(r)["author"]
	bps, err := s.repo.ListByAuthor(r.Context(), author)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bps)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	bp, err := s.repo.Get(r.Context(), pathKey(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bp)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	bp, err := decodeBlueprint(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := bp.Validate(); err != nil {
		writeError(w, invalid(err))
		return
	}
	if err := s.repo.Create(r.Context(), bp); err != nil {
		// a duplicate create is a client error, as is an invalid body
		if store.IsExists(err) {
			writeAPIError(w, &store.APIError{Status: http.StatusBadRequest, Reason: store.ReasonExists, Message: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	glog.V(1).Infof("[relay] created %s", bp.Key())
	writeJSON(w, http.StatusOK, bp)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	bp, err := decodeBlueprint(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	// the route names the blueprint; the body only supplies points
	key := pathKey(r)
	bp.Author, bp.Name = key.Author, key.Name
	if err := bp.Validate(); err != nil {
		writeError(w, invalid(err))
		return
	}

	if err := s.repo.Update(r.Context(), bp); err != nil {
		writeError(w, err)
		return
	}
	glog.V(1).Infof("[relay] updated %s", key)
	writeJSON(w, http.StatusOK, bp)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key := pathKey(r)
	if err := s.repo.Delete(r.Context(), key); err != nil {
		writeError(w, err)
		return
	}
	glog.V(1).Infof("[relay] deleted %s", key)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": key.String()})
}

func pathKey(r *http.Request) blueprint.Key {
	vars := mux.Vars(r)
	return blueprint.Key{Author: vars["author"], Name: vars["name"]}
}

// errInvalid marks request bodies that cannot be stored.
var errInvalid = errors.New("invalid request")

func invalid(err error) error {
	return fmt.Errorf("%w: %v", errInvalid, err)
}

func decodeBlueprint(w http.ResponseWriter, r *http.Request) (*blueprint.Blueprint, error) {
	var bp blueprint.Blueprint
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&bp); err != nil {
		return nil, invalid(fmt.Errorf("failed to decode blueprint: %w", err))
	}
	if bp.Points == nil {
		bp.Points = []blueprint.Point{}
	}
	return &bp, nil
}

func writeError(w http.ResponseWriter, err error) {
	apiErr := &store.APIError{Message: err.Error()}
	switch {
	case store.IsNotFound(err):
		apiErr.Status, apiErr.Reason = http.StatusNotFound, store.ReasonNotFound
	case errors.Is(err, errInvalid):
		apiErr.Status, apiErr.Reason = http.StatusBadRequest, store.ReasonInvalid
	default:
		glog.Errorf("[relay] request failed: %v", err)
		apiErr.Status, apiErr.Reason = http.StatusInternalServerError, store.ReasonInternal
		apiErr.Message = "an internal error occurred"
	}
	writeAPIError(w, apiErr)
}

func writeAPIError(w http.ResponseWriter, apiErr *store.APIError) {
	writeJSON(w, apiErr.Status, apiErr)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		glog.Warningf("[relay] failed to encode response: %v", err)
	}
}
