package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/parlamentwatch/member-ingestion-service/internal/ingestion"
	"github.com/parlamentwatch/member-ingestion-service/internal/models"
)

type ingestSuccess struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    *models.RunResult `json:"data"`
}

type ingestFailure struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error"`
}

// handleIngest runs one ingestion and always answers with a JSON envelope
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// a disconnecting client must not abort a run halfway through the reload
	result, err := s.ingestor.Run(context.WithoutCancel(r.Context()))
	if err == nil {
		writeJSON(w, http.StatusOK, ingestSuccess{
			Success: true,
			Message: "Parliament data fetched and stored successfully",
			Data:    result,
		})
		return
	}

	if errors.Is(err, ingestion.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, ingestFailure{Error: err.Error()})
		return
	}

	failure := ingestFailure{Error: err.Error()}
	var runErr *ingestion.RunError
	if errors.As(err, &runErr) {
		failure.SessionID = runErr.SessionID
	}
	writeJSON(w, http.StatusInternalServerError, failure)
}
