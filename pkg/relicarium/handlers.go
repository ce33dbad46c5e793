package relicarium

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/relicarium/relicarium/pkg/models"
	"github.com/relicarium/relicarium/pkg/store"
)

// Artifact handlers provide the catalog CRUD surface. Engagement state on
// the artifact (reaction_count, liked_by, revision) is read-only here; it is
// mutated only through the like and comment endpoints backed by the
// engagement engine.

// handleCreateArtifact creates a catalog entry from a JSON payload.
//
// HTTP Method: POST
// Endpoint: /artifacts
//
// Response:
//   - 201 Created: returns the created artifact with its assigned ID
//   - 400 Bad Request: malformed JSON or missing name
//   - 503 Service Unavailable: store unreachable
func (a *App) handleCreateArtifact(w http.ResponseWriter, r *http.Request) {
	var artifact models.Artifact
	if err := json.NewDecoder(r.Body).Decode(&artifact); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if artifact.Name == "" {
		respondError(w, http.StatusBadRequest, "Artifact name is required")
		return
	}

	ctx := r.Context()
	if err := a.store.CreateArtifact(ctx, &artifact); err != nil {
		a.respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, artifact)
}

func (a *App) handleGetArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseArtifactID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid artifact ID")
		return
	}

	ctx := r.Context()
	artifact, err := a.store.GetArtifact(ctx, id)
	if err != nil {
		a.respondStoreError(w, r, err)
		return
	}
	if artifact == nil {
		respondError(w, http.StatusNotFound, "Artifact not found")
		return
	}

	respondJSON(w, http.StatusOK, artifact)
}

func (a *App) handleUpdateArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseArtifactID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid artifact ID")
		return
	}

	var artifact models.Artifact
	if err := json.NewDecoder(r.Body).Decode(&artifact); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	artifact.ID = id

	ctx := r.Context()
	if err := a.store.UpdateArtifact(ctx, &artifact); err != nil {
		a.respondStoreError(w, r, err)
		return
	}

	updated, err := a.store.GetArtifact(ctx, id)
	if err != nil {
		a.respondStoreError(w, r, err)
		return
	}
	if updated == nil {
		respondError(w, http.StatusNotFound, "Artifact not found")
		return
	}

	respondJSON(w, http.StatusOK, updated)
}

func (a *App) handleDeleteArtifact(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseArtifactID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid artifact ID")
		return
	}

	ctx := r.Context()
	if err := a.store.DeleteArtifact(ctx, id); err != nil {
		a.respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusNoContent, nil)
}

// handleListArtifacts lists the catalog, optionally filtered by a
// case-insensitive name substring via ?name=.
func (a *App) handleListArtifacts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	artifacts, err := a.store.ListArtifacts(ctx, r.URL.Query().Get("name"))
	if err != nil {
		a.respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, artifacts)
}

// Engagement handlers route through the engagement engine rather than the
// store directly; the engine owns the consistency guarantees.

// likeRequest is the toggle payload: which user, and the state to set.
type likeRequest struct {
	UserID models.UserID `json:"user_id"`
	Liked  bool          `json:"liked"`
}

// handleSetLike sets a user's like state on an artifact.
//
// HTTP Method: PATCH
// Endpoint: /artifacts/{id}/like
//
// Request body:
//
//	{"user_id": "<uuid>", "liked": true}
//
// Response:
//   - 200 OK: {"reaction_count": N, "liked": bool} after the write
//   - 400 Bad Request: malformed artifact ID, payload or zero user ID
//   - 404 Not Found: artifact does not exist
//   - 409 Conflict: the write lost its optimistic-concurrency race
//     repeatedly; the client may retry
//   - 503 Service Unavailable: store unreachable or the request deadline
//     expired inside a store call
//
// Repeating the same request is a no-op and returns the current state.
func (a *App) handleSetLike(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseArtifactID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid artifact ID")
		return
	}

	var req likeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	ctx := r.Context()
	result, err := a.engagement.SetLike(ctx, id, req.UserID, req.Liked)
	if err != nil {
		a.respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// commentRequest is the comment payload. CreatedAt is server-assigned.
type commentRequest struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// handleAddComment appends a comment to an artifact's thread, creating the
// thread on first comment.
//
// HTTP Method: POST
// Endpoint: /artifacts/{id}/comments
//
// Response:
//   - 201 Created: {"created": bool}, true when this comment opened the
//     thread, false when it was appended to an existing one
//   - 400 Bad Request: malformed ID or missing author/text
//   - 404 Not Found: artifact does not exist
//   - 503 Service Unavailable: store unreachable
func (a *App) handleAddComment(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseArtifactID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid artifact ID")
		return
	}

	var req commentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	comment := models.Comment{
		Author:    req.Author,
		Text:      req.Text,
		CreatedAt: time.Now(),
	}

	ctx := r.Context()
	created, err := a.engagement.AddComment(ctx, id, comment)
	if err != nil {
		a.respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]bool{"created": created})
}

// handleListComments returns an artifact's comments in append order. An
// artifact without comments yields an empty array, not a 404.
func (a *App) handleListComments(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseArtifactID(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid artifact ID")
		return
	}

	ctx := r.Context()
	comments, err := a.engagement.GetThread(ctx, id)
	if err != nil {
		a.respondStoreError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"artifact_id": id,
		"comments":    comments,
	})
}

// handleHealth reports service liveness for load balancers and monitoring.
// It does not touch the store; a healthy response means only that the
// process is up and serving.
func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"backend": a.config.StoreBackend,
		"time":    time.Now().Unix(),
	})
}

// respondStoreError maps the store/engine error taxonomy onto HTTP status
// codes. Anything outside the taxonomy is an internal error; the detail is
// logged but not leaked to the client.
func (a *App) respondStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidArgument):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		a.log.Error().Err(err).Str("path", r.URL.Path).Msg("store unavailable")
		respondError(w, http.StatusServiceUnavailable, "Store unavailable")
	default:
		a.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
