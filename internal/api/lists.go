package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meur/cinerank/internal/auth"
	"github.com/meur/cinerank/internal/models"
)

// handleMyLists returns the caller's lists
func (s *Server) handleMyLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.svc.MyLists(r.Context(), auth.FromContext(r.Context()))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, lists)
}

// handleCreateList creates a new empty list
func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req models.ListCreate
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	list, err := s.svc.CreateList(r.Context(), auth.FromContext(r.Context()), req.Name)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, list)
}

// handleGetList returns a list by private or public token
func (s *Server) handleGetList(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	view, err := s.svc.Fetch(r.Context(), ref, auth.FromContext(r.Context()))
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, view)
}

// handleRenameList renames a list
func (s *Server) handleRenameList(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var update models.ListUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if update.Name == nil {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	list, err := s.svc.Rename(r.Context(), ref, auth.FromContext(r.Context()), *update.Name)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, list)
}

// handleDeleteList deletes a list and its items
func (s *Server) handleDeleteList(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	if err := s.svc.Delete(r.Context(), ref, auth.FromContext(r.Context())); err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleAddItem appends a movie to a list
func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var req models.ItemCreate
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := s.svc.AddItem(r.Context(), ref, auth.FromContext(r.Context()), req)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, item)
}

// handleUpdateItem sets or clears an item's comment
func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	itemID := chi.URLParam(r, "itemID")

	var update models.ItemUpdate
	if err := decodeJSON(r, &update); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	item, err := s.svc.UpdateItem(r.Context(), ref, auth.FromContext(r.Context()), itemID, update)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, item)
}

// handleRemoveItem removes an item and returns the renumbered items
func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")
	itemID := chi.URLParam(r, "itemID")

	items, err := s.svc.RemoveItem(r.Context(), ref, auth.FromContext(r.Context()), itemID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.ReorderRequest{Items: rankUpdates(items)})
}

// handleReorder overwrites the order of a list from a complete mapping
func (s *Server) handleReorder(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "ref")

	var req models.ReorderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	items, err := s.svc.Reorder(r.Context(), ref, auth.FromContext(r.Context()), req.Items)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, models.ReorderRequest{Items: rankUpdates(items)})
}

func rankUpdates(items []models.Item) []models.RankUpdate {
	out := make([]models.RankUpdate, len(items))
	for i, item := range items {
		out[i] = models.RankUpdate{ID: item.ID, Rank: item.Rank}
	}
	return out
}
