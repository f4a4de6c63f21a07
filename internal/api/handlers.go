package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/beartec-jpg/Ai-Peer-review/internal/common/errors"
	"github.com/beartec-jpg/Ai-Peer-review/internal/common/validation"
	"github.com/beartec-jpg/Ai-Peer-review/internal/models"
	"github.com/beartec-jpg/Ai-Peer-review/internal/review/followup"
	historyledger "github.com/beartec-jpg/Ai-Peer-review/internal/storage/history-ledger"
)

var (
	ErrInvalidQuery    = apperrors.Sentinel(apperrors.ErrCodeInvalidRequest, "Missing or invalid query")
	ErrInvalidFollowup = apperrors.Sentinel(apperrors.ErrCodeInvalidRequest, "Missing or invalid followupQuery or context")
	ErrInvalidFilter   = apperrors.Sentinel(apperrors.ErrCodeInvalidRequest, "Invalid history filter")
)

var (
	reviewSchema   = validation.MustSchema(validation.ReviewRequestSchema)
	followupSchema = validation.MustSchema(validation.FollowupRequestSchema)
)

type reviewResponse struct {
	*models.Result
	FollowupContext models.FollowupContext `json:"followupContext"`
	Suggestions     []string               `json:"suggestions"`
}

type historyResponse struct {
	History []models.HistoryEntry `json:"history"`
	Stats   *models.HistoryStats  `json:"stats"`
	Count   int                   `json:"count"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// decodeBody validates the raw body against schema before unmarshalling.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, schema *validation.Schema, invalid error, out interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return invalidBody(invalid, err)
	}
	if res := schema.ValidateBytes(body); !res.Valid {
		s.logger.Debug("request body rejected", map[string]interface{}{
			"path":   r.URL.Path,
			"errors": res.GetErrorMessages(),
		})
		return invalidBody(invalid, res)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return invalidBody(invalid, err)
	}
	return nil
}

// invalidBody keeps invalid as the visible message and code while carrying
// the decoder or schema detail.
func invalidBody(invalid, cause error) error {
	return fmt.Errorf("%w: %w", invalid, apperrors.NewValidationError(apperrors.CodeOf(invalid), cause))
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest
	if err := s.decodeBody(w, r, reviewSchema, ErrInvalidQuery, &req); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	req.UserID = userID(r, req.UserID)

	result, err := s.deps.Reviews.Submit(r.Context(), req)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}

	fctx := followup.NewContext(result)
	apperrors.WriteJSON(w, http.StatusOK, reviewResponse{
		Result:          result,
		FollowupContext: fctx,
		Suggestions:     followup.Suggestions(fctx),
	})
}

func (s *Server) handleFollowup(w http.ResponseWriter, r *http.Request) {
	var req models.FollowupRequest
	if err := s.decodeBody(w, r, followupSchema, ErrInvalidFollowup, &req); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}

	result, err := s.deps.Followups.Process(r.Context(), req.FollowupQuery, req.Context)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handleFollowupCost(w http.ResponseWriter, _ *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, map[string]float64{
		"estimatedCost": s.deps.Followups.EstimateCost(),
	})
}

func (s *Server) handleListHistory(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	user := userID(r, "")

	entries, err := s.deps.History.List(r.Context(), user, filter)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	stats, err := s.deps.History.Stats(r.Context(), user)
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}

	apperrors.WriteJSON(w, http.StatusOK, historyResponse{
		History: entries,
		Stats:   stats,
		Count:   len(entries),
	})
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.History.Clear(r.Context(), userID(r, "")); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "History cleared"})
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.History.Get(r.Context(), chi.URLParam(r, "id"), userID(r, ""))
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, entry)
}

func (s *Server) handleDeleteHistory(w http.ResponseWriter, r *http.Request) {
	deleted, err := s.deps.History.Delete(r.Context(), chi.URLParam(r, "id"), userID(r, ""))
	if err == nil && !deleted {
		err = historyledger.ErrNotFound
	}
	if err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "History entry deleted"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	apperrors.WriteJSON(w, http.StatusOK, s.deps.Cache.Stats(r.Context()))
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Cache.ClearAll(r.Context()); err != nil {
		s.errors.HandleHTTPError(w, r, err)
		return
	}
	apperrors.WriteJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Cache cleared"})
}

// parseFilter reads history filters from the query string. Dates accept
// epoch milliseconds or RFC 3339.
func parseFilter(r *http.Request) (*models.HistoryFilter, error) {
	q := r.URL.Query()
	filter := &models.HistoryFilter{SearchQuery: q.Get("search")}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"startDate", &filter.StartDate}, {"endDate", &filter.EndDate}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		t, err := parseTime(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, p.name, err)
		}
		*p.dst = &t
	}

	for _, p := range []struct {
		name string
		dst  **float64
	}{{"minScore", &filter.MinScore}, {"maxScore", &filter.MaxScore}} {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidFilter, p.name, err)
		}
		*p.dst = &v
	}
	return filter, nil
}

func parseTime(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	return time.Parse(time.RFC3339, raw)
}
