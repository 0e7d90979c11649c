package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"reservo/internal/metrics"
	"reservo/internal/model"
	"reservo/internal/regen"
	"reservo/internal/report"
	"reservo/internal/schedule"
	"reservo/internal/slots"
)

// GET /api/v1/businesses/{id}/calendar?from=YYYY-MM-DD&to=YYYY-MM-DD
// from defaults to today in the business zone; to defaults to from.
func (s *HTTPServer) handleCalendar(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		metrics.IncHTTP("calendar", s.writeDomainError(w, err))
		return
	}

	from := r.URL.Query().Get("from")
	if from == "" {
		from = s.deps.Calendar.Today(r.Context(), id)
	}
	to := r.URL.Query().Get("to")
	if to == "" {
		to = from
	}

	days, err := s.deps.Calendar.Days(r.Context(), id, from, to)
	if err != nil {
		metrics.IncHTTP("calendar", s.writeDomainError(w, err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"business_id": id, "days": days})
	metrics.IncHTTP("calendar", http.StatusOK)
}

// GET /api/v1/businesses/{id}/slots?date=YYYY-MM-DD&minutes=N&start=HH:MM
// Stored slots of one date plus the bookable windows at least N minutes long.
// With start, "fits" tells whether an N minute booking can begin there.
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		metrics.IncHTTP("slots", s.writeDomainError(w, err))
		return
	}

	date := r.URL.Query().Get("date")
	if _, err := model.ParseDate(date); err != nil {
		metrics.IncHTTP("slots", s.writeDomainError(w, &model.ValidationError{Field: "date", Message: err.Error()}))
		return
	}
	var minutes int
	if raw := r.URL.Query().Get("minutes"); raw != "" {
		minutes, err = strconv.Atoi(raw)
		if err != nil || minutes < 0 {
			metrics.IncHTTP("slots", s.writeDomainError(w, &model.ValidationError{Field: "minutes", Message: "must be a non-negative number"}))
			return
		}
	}

	stored, err := s.deps.Slots.ListSlots(r.Context(), id, date)
	if err != nil {
		metrics.IncHTTP("slots", s.writeDomainError(w, err))
		return
	}
	if stored == nil {
		stored = []model.Slot{}
	}
	windows := slots.LongerThan(slots.Windows(stored), minutes)
	if windows == nil {
		windows = []slots.Window{}
	}
	resp := map[string]interface{}{
		"business_id": id,
		"date":        date,
		"slots":       stored,
		"windows":     windows,
	}
	if start := r.URL.Query().Get("start"); start != "" {
		resp["fits"] = slots.FitsAt(stored, start, minutes)
	}
	writeJSON(w, http.StatusOK, resp)
	metrics.IncHTTP("slots", http.StatusOK)
}

// GET /api/v1/businesses/{id}/settings
func (s *HTTPServer) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		metrics.IncHTTP("get_settings", s.writeDomainError(w, err))
		return
	}
	settings, err := s.deps.Store.GetSettings(r.Context(), id)
	if err != nil {
		metrics.IncHTTP("get_settings", s.writeDomainError(w, err))
		return
	}
	writeJSON(w, http.StatusOK, settings)
	metrics.IncHTTP("get_settings", http.StatusOK)
}

// PUT /api/v1/businesses/{id}/settings
func (s *HTTPServer) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		metrics.IncHTTP("save_settings", s.writeDomainError(w, err))
		return
	}

	var req schedule.SaveRequest
	if !s.decode(w, r, "save_settings", &req) {
		return
	}

	res, err := s.deps.Settings.Save(r.Context(), id, req)
	if err != nil {
		metrics.IncHTTP("save_settings", s.writeDomainError(w, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
	metrics.IncHTTP("save_settings", http.StatusOK)
}

// POST /api/v1/businesses/{id}/exceptions
func (s *HTTPServer) handleCreateException(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		metrics.IncHTTP("create_exception", s.writeDomainError(w, err))
		return
	}

	var req schedule.EventRequest
	if !s.decode(w, r, "create_exception", &req) {
		return
	}

	created, err := s.deps.Exceptions.Create(r.Context(), id, req)
	if err != nil {
		metrics.IncHTTP("create_exception", s.writeDomainError(w, err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"exceptions": created})
	metrics.IncHTTP("create_exception", http.StatusCreated)
}

// DELETE /api/v1/businesses/{id}/exceptions/{date}
func (s *HTTPServer) handleDeleteException(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		metrics.IncHTTP("delete_exception", s.writeDomainError(w, err))
		return
	}

	if err := s.deps.Exceptions.Delete(r.Context(), id, r.PathValue("date")); err != nil {
		metrics.IncHTTP("delete_exception", s.writeDomainError(w, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
	metrics.IncHTTP("delete_exception", http.StatusNoContent)
}

type regenerateRequest struct {
	AdvanceDays int  `json:"advance_days" validate:"gte=0,lte=366"`
	Silent      bool `json:"silent"`
}

// POST /api/v1/businesses/{id}/regenerate runs a pass and waits for it.
func (s *HTTPServer) handleRegenerate(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		metrics.IncHTTP("regenerate", s.writeDomainError(w, err))
		return
	}

	var req regenerateRequest
	if r.ContentLength != 0 {
		if !s.decode(w, r, "regenerate", &req) {
			return
		}
	}

	res := s.deps.Regen.Regenerate(r.Context(), id, model.ReasonManual, regen.Options{
		AdvanceDays: req.AdvanceDays,
		Silent:      req.Silent,
	})
	status := http.StatusOK
	if !res.Success {
		status = http.StatusInternalServerError
		if res.ErrorCode == regen.ErrCodeTimeout {
			status = http.StatusGatewayTimeout
		}
	}
	writeJSON(w, status, res)
	metrics.IncHTTP("regenerate", status)
}

// GET /api/v1/businesses/{id}/protected?format=json|xlsx
func (s *HTTPServer) handleProtected(w http.ResponseWriter, r *http.Request) {
	id, err := businessID(r)
	if err != nil {
		metrics.IncHTTP("protected", s.writeDomainError(w, err))
		return
	}

	rep, ok := s.deps.Reports.Latest(id)
	if !ok {
		metrics.IncHTTP("protected", s.writeDomainError(w, model.ErrNotFound))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		writeJSON(w, http.StatusOK, rep)
	case "xlsx":
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=protected_%d.xlsx", id))
		if err := report.WriteXLSX(w, rep); err != nil {
			s.logger.Error().Err(err).Int64("business_id", id).Msg("Failed to write report")
			metrics.IncHTTP("protected", http.StatusInternalServerError)
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "format must be json or xlsx")
		metrics.IncHTTP("protected", http.StatusBadRequest)
		return
	}
	metrics.IncHTTP("protected", http.StatusOK)
}

// decode reads a JSON body into v and validates it. It writes the error
// response itself and reports whether the handler may continue.
func (s *HTTPServer) decode(w http.ResponseWriter, r *http.Request, endpoint string, v interface{}) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		metrics.IncHTTP(endpoint, http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		metrics.IncHTTP(endpoint, s.writeDomainError(w, err))
		return false
	}
	return true
}
