package main

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/finwise/obligations/pkg/processor"
)

type processRequest struct {
	Date string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type processResponse struct {
	Success       bool                              `json:"success"`
	Processed     int                               `json:"processed"`
	Subscriptions int                               `json:"subscriptions"`
	EMIs          int                               `json:"emis"`
	Templates     int                               `json:"templates"`
	UserSummary   map[string]*processor.UserSummary `json:"userSummary"`
}

// processHandler triggers one batch run. The processing date defaults to the
// current UTC date and can be overridden with a date query parameter or a
// JSON body for replays.
func (s *Server) processHandler(w http.ResponseWriter, r *http.Request) {
	today := processor.DateOnly(time.Now())

	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := parseDate(raw)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid date")
			return
		}
		today = parsed
	} else if r.Body != nil && r.ContentLength > 0 {
		var req processRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondWithError(w, http.StatusBadRequest, "malformed JSON body")
			return
		}
		if req.Date != "" {
			parsed, err := parseDate(req.Date)
			if err != nil {
				respondWithError(w, http.StatusBadRequest, "invalid date")
				return
			}
			today = parsed
		}
	}

	summary, err := s.processor.Run(today)
	if err != nil {
		s.log.WithError(err).Error("processing run failed")
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, processResponse{
		Success:       true,
		Processed:     summary.Processed,
		Subscriptions: summary.Subscriptions,
		EMIs:          summary.EMIs,
		Templates:     summary.Templates,
		UserSummary:   summary.Users,
	})
}
