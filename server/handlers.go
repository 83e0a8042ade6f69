package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/poiesic/ragline/jobs"
)

type ingestResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

type chatRequest struct {
	Question string `json:"question"`
}

type chatResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleIngest streams the "file" part to the upload store and queues a job.
// The body is read part by part and never buffered whole.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("requestID", middleware.GetReqID(r.Context()))

	mr, err := r.MultipartReader()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "expected multipart/form-data: "+err.Error())
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			writeDetail(w, http.StatusBadRequest, ErrMissingFile.Error())
			return
		}
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "malformed multipart body: "+err.Error())
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		filename := cleanFilename(part.FileName())
		state := s.registry.Create(filename)
		logger = logger.With("jobID", state.JobID, "file", filename)

		ref, err := s.uploads.Save(r.Context(), state.JobID, filename, part)
		_ = part.Close()
		if err != nil {
			logger.Error("failed to save upload", "err", err)
			_ = s.registry.Fail(state.JobID, fmt.Errorf("save upload: %w", err))
			writeDetail(w, http.StatusInternalServerError, "File save failed: "+err.Error())
			return
		}

		if err := s.runner.Submit(jobs.Job{ID: state.JobID, Filename: filename, Ref: ref}); err != nil {
			logger.Error("failed to submit job", "err", err)
			_ = s.registry.Fail(state.JobID, fmt.Errorf("submit job: %w", err))
			_ = s.uploads.Delete(r.Context(), ref)
			writeDetail(w, http.StatusServiceUnavailable, "Job submission failed: "+err.Error())
			return
		}

		logger.Info("job queued")
		writeJSON(w, http.StatusOK, ingestResponse{JobID: state.JobID, Status: string(state.Status)})
		return
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.registry.Get(chi.URLParam(r, "jobID"))
	if errors.Is(err, jobs.ErrJobNotFound) {
		writeDetail(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeDetail(w, http.StatusBadRequest, "question is required")
		return
	}

	answer, err := s.chat.Answer(r.Context(), req.Question)
	if err != nil {
		s.logger.Error("chat failed", "requestID", middleware.GetReqID(r.Context()), "err", err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer})
}

// cleanFilename strips any client-supplied directories.
func cleanFilename(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || base == "" {
		return "upload"
	}
	return base
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
