package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleGetMovie returns a single catalog entry
func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movieID, err := strconv.ParseInt(chi.URLParam(r, "movieID"), 10, 64)
	if err != nil || movieID <= 0 {
		respondError(w, http.StatusBadRequest, "Invalid movie id")
		return
	}

	movie, err := s.svc.Movie(r.Context(), movieID)
	if err != nil {
		s.respondFailure(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, movie)
}
