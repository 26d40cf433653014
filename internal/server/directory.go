package server

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/jszwec/csvutil"

	"github.com/parlamentwatch/member-ingestion-service/internal/directory"
)

func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

// handleMembers lists members with optional search, filters and paging
func (s *Server) handleMembers(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()
	page, err := s.directory.Members(r.Context(), directory.Filter{
		Query:    q.Get("q"),
		Party:    q.Get("party"),
		State:    q.Get("state"),
		District: q.Get("district"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve members: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleMemberByID returns a single member
func (s *Server) handleMemberByID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	member, err := s.directory.Member(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve member: %v", err))
		return
	}
	if member == nil {
		writeError(w, http.StatusNotFound, "Member not found")
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	views, err := s.directory.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to export members: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="parliament-members.csv"`)
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	rows := directory.ExportRows(views)
	if len(rows) == 0 {
		err = enc.EncodeHeader(directory.ExportRow{})
	} else {
		err = enc.Encode(rows)
	}
	if err == nil {
		cw.Flush()
		err = cw.Error()
	}
	if err != nil {
		s.logger.WithError(err).Error("CSV export failed")
	}
}

func (s *Server) handleParties(w http.ResponseWriter, r *http.Request) {
	parties, err := s.directory.Parties(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve parties: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, parties)
}

func (s *Server) handleStates(w http.ResponseWriter, r *http.Request) {
	states, err := s.directory.States(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve states: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, states)
}

func (s *Server) handleDistricts(w http.ResponseWriter, r *http.Request) {
	districts, err := s.directory.Districts(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to retrieve districts: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, districts)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.directory.Stats(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to compute stats: %v", err))
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
