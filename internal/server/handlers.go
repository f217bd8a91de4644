// internal/server/handlers.go
package server

import (
	"encoding/json"
	"net/http"

	"recruiter-backend/internal/common/errors"
	"recruiter-backend/internal/models"
	"recruiter-backend/internal/ranking"
)

// rankingRequest is the body shared by the start-run and synchronous ranked
// endpoints. Both fields are optional; structured feedback wins when present.
type rankingRequest struct {
	Comment  string                     `json:"comment"`
	Feedback *models.StructuredFeedback `json:"feedback"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleStartRanking(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	var body rankingRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errors.NewInvalidInputError("invalid JSON body"))
			return
		}
	}

	result, err := s.service.StartRun(r.Context(), &ranking.StartRequest{
		JobID:    jobID,
		Comment:  body.Comment,
		Feedback: body.Feedback,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleRankingStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.service.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// handleRankingResult returns 200 with the snapshot once the run is done and
// 202 otherwise, carrying the live status when one exists and a pending
// placeholder when none does.
func (s *Server) handleRankingResult(w http.ResponseWriter, r *http.Request) {
	result, status, err := s.service.GetResult(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if result == nil {
		writeJSON(w, http.StatusAccepted, status)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRankedJob(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("id")

	var body rankingRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, errors.NewInvalidInputError("invalid JSON body"))
			return
		}
	}

	snapshot, err := s.service.GetRankedJob(r.Context(), jobID, body.Comment, body.Feedback)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (s *Server) handleJobsByUser(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.service.ListJobsByUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleJobCVs(w http.ResponseWriter, r *http.Request) {
	links, err := s.service.ListCVs(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.IsInvalidInput(err):
		status = http.StatusBadRequest
	case errors.IsNotFound(err):
		status = http.StatusNotFound
	}

	resp := errorResponse{Error: err.Error()}
	if se, ok := err.(*errors.StandardError); ok {
		resp.Error = se.Message
		resp.Code = string(se.Code)
		resp.Details = se.Details
	}
	writeJSON(w, status, resp)
}
