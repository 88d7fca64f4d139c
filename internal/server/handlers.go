package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/exasperation/internal/apperrors"
	"github.com/hyperjump/exasperation/internal/storage"
)

const (
	maxBodyBytes    = 1 << 20
	maxSuggestLimit = 20
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !s.decode(w, r, &req) {
		return
	}
	query, err := req.toQuery()
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.logger.Debug("search request",
		zap.String("query", query.Text),
		zap.Int("filters", query.Filters.Count()),
		zap.String("http_request_id", middleware.GetReqID(r.Context())))

	response, err := s.engine.Handle(r.Context(), query)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	w.Header().Set("X-Request-ID", response.RequestID)
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	partial := strings.TrimSpace(r.URL.Query().Get("q"))
	limit := s.config.Suggestions.AutocompleteLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSuggestLimit {
			s.respondDomainError(w, r, apperrors.InvalidInput("limit must be an integer between 1 and %d", maxSuggestLimit).
				WithDetail("limit", raw))
			return
		}
		limit = n
	}
	suggestions, err := s.completer.Complete(r.Context(), partial, limit)
	if err != nil {
		s.logger.Warn("autocomplete failed", zap.Error(err))
		suggestions = []string{}
	}
	s.respondJSON(w, http.StatusOK, suggestionsResponse{
		Suggestions: suggestions,
		Metadata: map[string]any{
			"query": partial,
			"count": len(suggestions),
		},
	})
}

func (s *Server) handleMetadataOptions(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.config.Metadata)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := "fb_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s.logger.Info("feedback received",
		zap.String("feedback_id", id),
		zap.String("request_id", req.RequestID),
		zap.String("rating", req.Rating),
		zap.Int("selected_sources", len(req.SelectedSources)),
		zap.Bool("has_comments", req.Comments != ""))
	s.respondJSON(w, http.StatusOK, feedbackResponse{
		Status:     "success",
		FeedbackID: id,
		Message:    "Feedback received",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := map[string]any{
		"status": "ok",
		"providers": map[string]string{
			"embedding": s.config.Embedding.Provider,
			"vector":    s.config.Vector.Type,
			"rerank":    s.config.Rerank.Provider,
			"llm":       s.config.LLM.Provider,
		},
	}
	if s.index != nil {
		resp["vector_index_size"] = s.index.Size()
		resp["vector_index_type"] = s.index.Type()
	}
	if s.storage != nil {
		if err := s.storage.Ping(ctx); err != nil {
			s.logger.Error("status: catalog ping failed", zap.Error(err))
			resp["status"] = "degraded"
		} else {
			docCount, err := s.storage.CountDocuments(ctx)
			if err != nil {
				s.respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			chunkCount, err := s.storage.CountChunks(ctx)
			if err != nil {
				s.respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
				return
			}
			resp["documents"] = docCount
			resp["chunks"] = chunkCount
		}
	}
	if usage, err := storage.MeasureUsage(s.config.Storage.DatabasePath, s.config.Storage.KeywordIndexPath); err == nil {
		resp["disk_usage"] = usage
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decode reads and validates a JSON body into dst. On failure it writes a 400 and returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondError(w, http.StatusBadRequest, string(apperrors.ErrorTypeInvalidInput), "invalid request body")
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			s.respondError(w, http.StatusBadRequest, string(apperrors.ErrorTypeInvalidInput), err.Error())
			return false
		}
		details := make(map[string]any, len(verrs))
		for _, fe := range verrs {
			details[fe.Field()] = fieldMessage(fe)
		}
		s.respondJSON(w, http.StatusBadRequest, errorResponse{Error: errorBody{
			Code:    string(apperrors.ErrorTypeInvalidInput),
			Message: "validation failed",
			Details: details,
		}})
		return false
	}
	return true
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", fe.Field(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s validation failed on '%s' tag", fe.Field(), fe.Tag())
	}
}

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	switch apperrors.TypeOf(err) {
	case apperrors.ErrorTypeInvalidInput:
		return http.StatusBadRequest
	case apperrors.ErrorTypeEmbeddingUnavailable,
		apperrors.ErrorTypeRetrievalUnavailable,
		apperrors.ErrorTypeSynthesisUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	code, message := "internal_error", "internal server error"
	var de *apperrors.DomainError
	if errors.As(err, &de) {
		code, message = string(de.Type), de.Message
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
	}
	s.respondJSON(w, status, errorResponse{
		Error: errorBody{
			Code:    code,
			Message: message,
			Details: apperrors.DetailsOf(err),
		},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
