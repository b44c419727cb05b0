package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/utsushi/internal/feature"
	"github.com/hyperjump/utsushi/internal/models"
	"github.com/hyperjump/utsushi/internal/pipeline"
)

// imageField is the multipart field carrying the query image.
const imageField = "image"

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		s.respondError(w, http.StatusBadRequest, "invalid multipart request")
		return
	}
	file, header, err := r.FormFile(imageField)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "image file is required")
		return
	}
	defer file.Close()
	if !s.allowedUpload(header.Filename) {
		s.respondError(w, http.StatusBadRequest, fmt.Sprintf("file type not allowed: %s", header.Filename))
		return
	}
	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}
	if len(data) == 0 {
		s.respondError(w, http.StatusBadRequest, "image file is empty")
		return
	}

	query := &models.ImageQuery{Image: data, Text: strings.TrimSpace(r.FormValue("query"))}
	if k := r.FormValue("k"); k != "" {
		n, err := strconv.Atoi(k)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "k must be a positive integer")
			return
		}
		query.K = n
	}

	s.logger.Debug("search request",
		zap.String("filename", header.Filename),
		zap.Int("bytes", len(data)),
		zap.String("query", query.Text),
		zap.Int("k", query.K),
	)
	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		if errors.Is(err, feature.ErrUndecodable) {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("search failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

type remoteIndexRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (s *Server) handleRemoteIndex(w http.ResponseWriter, r *http.Request) {
	if s.remote == nil {
		s.respondError(w, http.StatusNotImplemented, "remote indexing not enabled")
		return
	}
	var req remoteIndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.respondError(w, http.StatusBadRequest, "query is required")
		return
	}
	if req.MaxResults <= 0 {
		req.MaxResults = s.maxResults
	}
	s.logger.Debug("remote index request", zap.String("query", req.Query), zap.Int("max_results", req.MaxResults))
	report, err := s.remote.Build(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		s.logger.Error("remote indexing failed", zap.Error(err))
		s.respondError(w, statusFor(err), err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, report)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.engine.Status(r.Context())
	if err != nil {
		s.logger.Error("status failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Reset(r.Context()); err != nil {
		s.logger.Error("reset failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) allowedUpload(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range s.config.AllowedExtensions {
		if strings.ToLower(allowed) == ext {
			return true
		}
	}
	return false
}

// statusFor maps pipeline failures to gateway statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrFetchUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, pipeline.ErrSourceUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
